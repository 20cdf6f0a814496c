package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chrubuntu/chrubuntu/internal/config"
	"github.com/chrubuntu/chrubuntu/internal/configflag"
	"github.com/chrubuntu/chrubuntu/internal/installer"
	"github.com/chrubuntu/chrubuntu/internal/partitions"
	"github.com/chrubuntu/chrubuntu/internal/prompt"
	"github.com/chrubuntu/chrubuntu/internal/runner"
)

// bootCmd is chrubuntu boot.
func bootCmd() *cobra.Command {
	impl := &bootImplConfig{}
	cmd := &cobra.Command{
		GroupID: "runtime",
		Use:     "boot chromeos|ubuntu|status",
		Short:   "Select which system the firmware boots next",
		Long: `Select which system the firmware boots next, or show the boot
flags of all kernel partitions.

Examples:
  # Boot Chrome OS again (same as sudo boot2chromeos from Ubuntu):
  % sudo chrubuntu boot chromeos --reboot

  # Boot Ubuntu from the USB stick sdb:
  % sudo chrubuntu boot ubuntu --disk=/dev/sdb
`,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"chromeos", "ubuntu", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return impl.run(cmd.Context(), args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	configflag.RegisterPflags(cmd.Flags())
	cmd.Flags().StringVar(&impl.disk, "disk", "", "disk holding the Ubuntu kernel partition (default: internal disk)")
	cmd.Flags().BoolVar(&impl.reboot, "reboot", false, "reboot after changing the boot target")
	return cmd
}

type bootImplConfig struct {
	disk   string
	reboot bool

	// newInstaller is overridden in tests.
	newInstaller func(cfg *config.Struct, stdout, stderr io.Writer) *installer.Installer
}

func (r *bootImplConfig) makeInstaller(cfg *config.Struct, stdout, stderr io.Writer) *installer.Installer {
	if r.newInstaller != nil {
		return r.newInstaller(cfg, stdout, stderr)
	}
	run := &runner.Exec{Stdout: stdout, Stderr: stderr}
	return installer.New(cfg, run, prompt.New(strings.NewReader(""), stdout), stdout)
}

func (r *bootImplConfig) run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.ReadFromFile(configflag.Path())
	if err != nil {
		return err
	}
	if err := cfg.Partitions.Validate(); err != nil {
		return err
	}
	in := r.makeInstaller(cfg, stdout, stderr)
	disk, err := in.BootDisk(ctx, r.disk)
	if err != nil {
		return err
	}

	var flags partitions.BootFlags
	switch args[0] {
	case "status":
		status, err := in.BootStatus(disk)
		if err != nil {
			return err
		}
		for _, s := range status {
			fmt.Fprintf(stdout, "%d\t%s\t%s\n", s.Index, s.Label, s.Flags)
		}
		return nil
	case "chromeos":
		flags = partitions.ChromeOSSelected
	case "ubuntu":
		flags = partitions.UbuntuSelected
	default:
		return fmt.Errorf("unknown boot target %q, expected chromeos, ubuntu or status", args[0])
	}

	if err := in.SetBootTarget(ctx, disk, cfg.Partitions.Kernel, flags); err != nil {
		return err
	}
	if !r.reboot {
		fmt.Fprintf(stdout, "%s boots on the next reboot.\n", bootTargetName(args[0]))
		return nil
	}
	_, err = in.Runner.Run(ctx, "reboot")
	return err
}

func bootTargetName(target string) string {
	if target == "chromeos" {
		return "Chrome OS"
	}
	return "Ubuntu"
}
