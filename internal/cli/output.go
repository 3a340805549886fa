package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/bytedance/sonic"
	"github.com/fatih/color"

	"github.com/GriffinCanCode/nodegraph/internal/shared/types"
)

var (
	cyan  = color.New(color.FgCyan)
	green = color.New(color.FgGreen)
	grey  = color.New(color.FgHiBlack)
)

func printJSON(w io.Writer, v any) error {
	out, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func statusColor(s types.Status) *color.Color {
	switch s {
	case types.StatusEnabled:
		return color.New(color.FgGreen)
	case types.StatusDisabled:
		return color.New(color.FgYellow)
	case types.StatusError:
		return color.New(color.FgRed)
	}
	return color.New(color.FgCyan)
}

func printEntries(w io.Writer, entries []types.CatalogEntry) error {
	if len(entries) == 0 {
		grey.Fprintln(w, "No components installed")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tVERSION\tSTATUS\tNAME")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ID, e.Version, statusColor(e.Status).Sprint(e.Status), e.Name)
	}
	return tw.Flush()
}

func printEntry(w io.Writer, e *types.CatalogEntry) {
	row := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(w, "%s: %s\n", label, cyan.Sprint(value))
	}

	row("ID", e.ID)
	row("Kind", string(e.Kind))
	row("Name", e.Name)
	row("Version", e.Version)
	row("Author", e.Author)
	row("Description", e.Description)
	fmt.Fprintf(w, "Status: %s\n", statusColor(e.Status).Sprint(e.Status))
	if e.ErrorMessage != "" {
		fmt.Fprintf(w, "Error: %s\n", color.RedString(e.ErrorMessage))
	}
	row("Main", e.File)
	row("URL", e.URL)
	row("Digest", e.Digest)
	if e.Size > 0 {
		fmt.Fprintf(w, "Size: %s %s\n", cyan.Sprint(e.Size), grey.Sprint("bytes"))
	}
	if len(e.Tags) > 0 {
		fmt.Fprintf(w, "Tags: %s\n", cyan.Sprint(e.Tags))
	}
}
