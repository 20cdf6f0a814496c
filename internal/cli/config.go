package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/chrubuntu/chrubuntu/internal/config"
	"github.com/chrubuntu/chrubuntu/internal/configflag"
)

// configCmd is chrubuntu config.
func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		GroupID: "install",
		Use:     "config",
		Short:   "Manage the chrubuntu configuration file",
	}
	cmd.AddCommand(configInitCmd())
	return cmd
}

// configInitCmd is chrubuntu config init.
func configInitCmd() *cobra.Command {
	impl := &configInitImplConfig{}
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the default settings",
		Long: `Write a configuration file with the default settings, for
editing before running chrubuntu install.

Examples:
  % chrubuntu config init
  % chrubuntu config init --config=/usr/local/etc/chrubuntu.json
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return impl.run(cmd.Context(), args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	configflag.RegisterPflags(cmd.Flags())
	return cmd
}

type configInitImplConfig struct{}

func (r *configInitImplConfig) run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	path := configflag.Path()
	if err := config.WriteDefault(path); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "chrubuntu config written to %s\n", path)
	return nil
}
