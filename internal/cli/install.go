package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/chrubuntu/chrubuntu/internal/config"
	"github.com/chrubuntu/chrubuntu/internal/configflag"
	"github.com/chrubuntu/chrubuntu/internal/installer"
	"github.com/chrubuntu/chrubuntu/internal/prompt"
	"github.com/chrubuntu/chrubuntu/internal/runner"
)

// installCmd is chrubuntu install.
func installCmd() *cobra.Command {
	impl := &installImplConfig{}
	cmd := &cobra.Command{
		GroupID: "install",
		Use:     "install [target-disk]",
		Short:   "Install Ubuntu to the internal disk or to target-disk",
		Long: `Install Ubuntu to the internal disk or to target-disk.

Examples:
  # Make room on the internal disk (reboots), then install after the reboot:
  % sudo chrubuntu install
  % sudo chrubuntu install

  # Wipe the USB stick sdb and install Ubuntu 20.04 onto it:
  % sudo chrubuntu install --version_name=20.04.5 /dev/sdb
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return impl.run(cmd.Context(), args, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	configflag.RegisterPflags(cmd.Flags())
	impl.registerFlags(cmd.Flags())
	return cmd
}

type installImplConfig struct {
	mirror        string
	ubuntuVersion string
	hostname      string
	user          string
	password      string
	mountPoint    string
	sizeGB        int
	yes           bool
	dryRun        bool
}

func (r *installImplConfig) registerFlags(fs *pflag.FlagSet) {
	fs.StringVar(&r.mirror, "mirror", "", "Ubuntu base mirror URL (default "+config.DefaultMirror+")")
	fs.StringVar(&r.ubuntuVersion, "version_name", "", "Ubuntu release to install (default "+config.DefaultUbuntuVersion+", "+config.DefaultUbuntuVersions["i386"]+" on i686, the last release with i386 base images)")
	fs.StringVar(&r.hostname, "hostname", "", "hostname of the new system")
	fs.StringVar(&r.user, "user", "", "name of the user account to create")
	fs.StringVar(&r.password, "password", "", "password of the user account (default: randomly generated and printed)")
	fs.StringVar(&r.mountPoint, "mount_point", "", "where to mount the new root file system while installing")
	fs.IntVar(&r.sizeGB, "size_gb", 0, "size of the Ubuntu root file system on the internal disk in GB (default: ask)")
	fs.BoolVarP(&r.yes, "yes", "y", false, "answer every confirmation with yes (the size prompt still asks unless --size_gb)")
	fs.BoolVar(&r.dryRun, "dry_run", false, "print commands which would modify the system instead of running them")
}

// apply overrides cfg with the flags which were set.
func (r *installImplConfig) apply(cfg *config.Struct) {
	for _, o := range []struct {
		flag  string
		field *string
	}{
		{r.mirror, &cfg.Mirror},
		{r.ubuntuVersion, &cfg.UbuntuVersion},
		{r.hostname, &cfg.Hostname},
		{r.user, &cfg.User},
		{r.password, &cfg.Password},
		{r.mountPoint, &cfg.MountPoint},
	} {
		if o.flag != "" {
			*o.field = o.flag
		}
	}
	cfg.InternalCompatibilityFlags.SizeGB = r.sizeGB
	cfg.InternalCompatibilityFlags.Yes = r.yes
	cfg.InternalCompatibilityFlags.DryRun = r.dryRun
}

func (r *installImplConfig) run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := config.ReadFromFile(configflag.Path())
	if err != nil {
		return err
	}
	r.apply(cfg)
	if len(args) > 0 {
		cfg.InternalCompatibilityFlags.Disk = args[0]
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if !r.dryRun && os.Geteuid() != 0 {
		return fmt.Errorf("chrubuntu modifies partitions and must be run as root (sudo chrubuntu)")
	}
	if f, ok := stdin.(*os.File); ok && !prompt.Terminal(f) && !r.yes {
		return fmt.Errorf("standard input is not a terminal: answer the questions interactively or pass --yes (and --size_gb)")
	}

	p := prompt.New(stdin, stdout)
	p.AssumeYes = r.yes
	run := &runner.Exec{
		Stdout: stdout,
		Stderr: stderr,
		DryRun: r.dryRun,
	}
	in := installer.New(cfg, run, p, stdout)
	if err := in.Run(ctx, cfg.InternalCompatibilityFlags.Disk); err != nil {
		if errors.Is(err, installer.ErrRebootRequired) {
			fmt.Fprintln(stdout, err)
			return nil
		}
		return err
	}
	return nil
}
