package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/chrubuntu/chrubuntu/internal/version"
)

// versionCmd is chrubuntu version.
func versionCmd() *cobra.Command {
	impl := &versionImplConfig{}
	return &cobra.Command{
		Use:   "version",
		Short: "Print chrubuntu version",
		Long:  `Print chrubuntu version`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return impl.run(cmd.Context(), args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

type versionImplConfig struct{}

func (r *versionImplConfig) run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fmt.Fprintf(stdout, "%s\n", version.Verbose())
	return nil
}
