package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/nodegraph/internal/shared/types"
)

func withTimeout(cmd *cobra.Command, flags *rootFlags) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), flags.timeout)
}

func newListCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed components",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.client()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd, flags)
			defer cancel()

			entries, err := client.List(ctx)
			if err != nil {
				return fmt.Errorf("failed to list %s: %w", client.Kind().Prefix(), err)
			}
			if flags.json {
				return printJSON(cmd.OutOrStdout(), entries)
			}
			return printEntries(cmd.OutOrStdout(), entries)
		},
	}
}

func newInfoCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "info <id>",
		Short: "Show the catalog entry for a component",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.client()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd, flags)
			defer cancel()

			entry, err := client.Metadata(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get %s: %w", args[0], err)
			}
			if flags.json {
				return printJSON(cmd.OutOrStdout(), entry)
			}
			printEntry(cmd.OutOrStdout(), entry)
			return nil
		},
	}
}

func newPathCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show the server's install root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.client()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd, flags)
			defer cancel()

			info, err := client.Path(ctx)
			if err != nil {
				return fmt.Errorf("failed to get install root: %w", err)
			}
			if flags.json {
				return printJSON(cmd.OutOrStdout(), info)
			}
			state := green.Sprint("exists")
			if !info.Exists {
				state = color.YellowString("missing")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", info.Path, state)
			return nil
		},
	}
}

func newInstallCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "install <archive>",
		Short: "Upload a .zip or .tar.gz archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.client()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read archive: %w", err)
			}
			ctx, cancel := withTimeout(cmd, flags)
			defer cancel()

			id, err := client.Upload(ctx, filepath.Base(args[0]), data)
			if err != nil {
				return fmt.Errorf("failed to install %s: %w", filepath.Base(args[0]), err)
			}
			if flags.json {
				return printJSON(cmd.OutOrStdout(), map[string]string{"id": id})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Installed %s\n", green.Sprint("✓"), cyan.Sprint(id))
			return nil
		},
	}
}

func newRemoveCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm", "uninstall"},
		Short:   "Delete an installed component",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.client()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd, flags)
			defer cancel()

			if err := client.Delete(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to remove %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Removed %s\n", green.Sprint("✓"), cyan.Sprint(args[0]))
			return nil
		},
	}
}

func newStatusCommand(flags *rootFlags, use string, status types.Status) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: "Mark a component " + string(status),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.client()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd, flags)
			defer cancel()

			if err := client.SetStatus(ctx, args[0], status); err != nil {
				return fmt.Errorf("failed to %s %s: %w", use, args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s is now %s\n", green.Sprint("✓"), cyan.Sprint(args[0]), statusColor(status).Sprint(status))
			return nil
		},
	}
}

func newRescanCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rescan",
		Short: "Rebuild the server's catalog from disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.client()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd, flags)
			defer cancel()

			count, err := client.Rescan(ctx)
			if err != nil {
				return fmt.Errorf("failed to rescan: %w", err)
			}
			if flags.json {
				return printJSON(cmd.OutOrStdout(), map[string]int{"count": count})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Found %d %s\n", green.Sprint("✓"), count, client.Kind().Prefix())
			return nil
		},
	}
}
