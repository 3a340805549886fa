package cli

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/nodegraph/internal/client/component"
	"github.com/GriffinCanCode/nodegraph/internal/client/loader"
	"github.com/GriffinCanCode/nodegraph/internal/infrastructure/logging"
)

type loadResult struct {
	ID         string                 `json:"id"`
	Output     any                    `json:"output"`
	Capability *component.Description `json:"capability,omitempty"`
	Result     any                    `json:"result,omitempty"`
}

func newLoadCommand(flags *rootFlags) *cobra.Command {
	var (
		props   string
		call    string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "load <id>",
		Short: "Fetch a component module, render it and optionally call its capability",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.client()
			if err != nil {
				return err
			}

			input := map[string]any{}
			if props != "" {
				if err := sonic.UnmarshalString(props, &input); err != nil {
					return fmt.Errorf("invalid --props: %w", err)
				}
			}
			var callArgs []any
			if call != "" {
				if err := sonic.UnmarshalString(call, &callArgs); err != nil {
					return fmt.Errorf("invalid --call (want a JSON array): %w", err)
				}
			}

			log := zap.NewNop()
			if verbose {
				l, err := logging.New(logging.Config{Level: "debug", Development: true, OutputPaths: []string{"stderr"}})
				if err != nil {
					return err
				}
				log = l.Component("loader", string(client.Kind()))
			}

			ld, err := loader.New(loader.Options{
				Kind:     client.Kind(),
				Host:     loader.Browser,
				BaseURL:  flags.server,
				Metadata: client,
				Fetcher:  loader.NewHTTPFetcher(flags.server),
				Shared:   map[string]any{"host": hostModule(cmd, log)},
				Logger:   log,
			})
			if err != nil {
				return err
			}

			ctx, cancel := withTimeout(cmd, flags)
			defer cancel()

			id := args[0]
			c := ld.Load(ctx, id)
			if c == nil {
				return fmt.Errorf("component %s could not be loaded (rerun with --verbose for details)", id)
			}

			out := loadResult{ID: id}
			if out.Output, err = c.Render(ctx, input); err != nil {
				return fmt.Errorf("failed to render %s: %w", id, err)
			}
			if act, ok := c.(loader.Activatable); ok {
				desc, err := act.Describe(ctx)
				if err != nil {
					return err
				}
				out.Capability = &desc
			}
			if call != "" {
				if out.Capability == nil {
					return errors.New("component has no capability to call")
				}
				if out.Result, err = ld.Registry().Call(ctx, id, callArgs...); err != nil {
					return fmt.Errorf("capability call failed: %w", err)
				}
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringVar(&props, "props", "", "Props passed to the component as a JSON object")
	cmd.Flags().StringVar(&call, "call", "", "Invoke the capability with a JSON array of arguments")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log loader activity to stderr")
	return cmd
}

// hostModule is what modules see as require("host")
func hostModule(cmd *cobra.Command, log *zap.Logger) map[string]any {
	return map[string]any{
		"name": "extctl",
		"ready": func(name string) {
			log.Debug("Capability ready", zap.String("capability", name))
		},
		"print": func(msg string) {
			fmt.Fprintln(cmd.ErrOrStderr(), msg)
		},
	}
}
