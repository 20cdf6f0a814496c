// Package cli implements the chrubuntu command line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chrubuntu/chrubuntu/internal/configflag"
	"github.com/chrubuntu/chrubuntu/internal/version"
)

func RootCmd() *cobra.Command {
	impl := &installImplConfig{}
	rootCmd := &cobra.Command{
		Use:   "chrubuntu [target-disk]",
		Short: "install Ubuntu on a Chrome OS device",
		Long: `The chrubuntu tool installs Ubuntu next to Chrome OS:

1. Without arguments, it makes room on the internal disk by shrinking
   the stateful partition (this wipes Chrome OS user data and reboots;
   run chrubuntu again afterwards to continue),
2. With a disk argument (e.g. /dev/sdb for a USB stick), it wipes that
   disk and installs Ubuntu onto it.

The device must be in developer mode. Switch between Ubuntu and
Chrome OS with chrubuntu boot.
`,
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			versionVal, err := cmd.Flags().GetBool("version")
			if err != nil {
				return fmt.Errorf("BUG: version flag declared as non-bool")
			}
			if versionVal {
				fmt.Fprintln(cmd.OutOrStdout(), version.Read())
				return nil
			}
			return impl.run(cmd.Context(), args, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	rootCmd.AddGroup(&cobra.Group{
		ID:    "install",
		Title: "Commands to install Ubuntu:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "runtime",
		Title: "Commands to work with an installed Ubuntu:",
	})
	rootCmd.Flags().Bool("version", false, "print chrubuntu version")
	configflag.RegisterPflags(rootCmd.Flags())
	impl.registerFlags(rootCmd.Flags())
	rootCmd.AddCommand(installCmd())
	rootCmd.AddCommand(bootCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())
	return rootCmd
}
