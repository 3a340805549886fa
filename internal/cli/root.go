package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/nodegraph/internal/client/catalogclient"
	"github.com/GriffinCanCode/nodegraph/internal/shared/types"
)

// ServerEnv overrides the default server URL
const ServerEnv = "NODEGRAPH_SERVER"

const defaultServer = "http://localhost:8000"

type rootFlags struct {
	server  string
	kind    string
	json    bool
	timeout time.Duration
}

func (f *rootFlags) parseKind() (types.Kind, error) {
	return types.ParseKind(f.kind)
}

func (f *rootFlags) client() (*catalogclient.Client, error) {
	kind, err := f.parseKind()
	if err != nil {
		return nil, err
	}
	return catalogclient.New(catalogclient.Options{
		BaseURL: f.server,
		Kind:    kind,
		Timeout: f.timeout,
		Retries: 2,
	}), nil
}

// NewRootCommand builds the extctl command tree
func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:           "extctl <command> [options]",
		Short:         "Manage extensions and nodes on a catalog server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	server := os.Getenv(ServerEnv)
	if server == "" {
		server = defaultServer
	}
	rootCmd.PersistentFlags().StringVarP(&flags.server, "server", "s", server, "Catalog server URL")
	rootCmd.PersistentFlags().StringVarP(&flags.kind, "kind", "k", "extension", "Component kind (extension or node)")
	rootCmd.PersistentFlags().BoolVar(&flags.json, "json", false, "Print JSON instead of text")
	rootCmd.PersistentFlags().DurationVar(&flags.timeout, "timeout", 30*time.Second, "Request timeout")

	rootCmd.AddCommand(newListCommand(flags))
	rootCmd.AddCommand(newInfoCommand(flags))
	rootCmd.AddCommand(newPathCommand(flags))
	rootCmd.AddCommand(newInstallCommand(flags))
	rootCmd.AddCommand(newRemoveCommand(flags))
	rootCmd.AddCommand(newStatusCommand(flags, "enable", types.StatusEnabled))
	rootCmd.AddCommand(newStatusCommand(flags, "disable", types.StatusDisabled))
	rootCmd.AddCommand(newRescanCommand(flags))
	rootCmd.AddCommand(newLoadCommand(flags))
	rootCmd.AddCommand(newEventsCommand(flags))

	return rootCmd
}
