package installer

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/shlex"

	"github.com/chrubuntu/chrubuntu/internal/partitions"
)

// KernelCommandLine returns the command line the repacked kernel boots
// Ubuntu from rootDevice with. extra is split like a shell would.
func KernelCommandLine(rootDevice, extra string) (string, error) {
	args := []string{
		"console=tty1",
		"debug",
		"verbose",
		"root=" + rootDevice,
		"rootwait",
		"rw",
		"lsm.module_locking=0",
	}
	extraArgs, err := shlex.Split(extra)
	if err != nil {
		return "", fmt.Errorf("parsing extra kernel arguments %q: %v", extra, err)
	}
	for _, a := range extraArgs {
		args = append(args, kernelQuote(a))
	}
	return strings.Join(args, " "), nil
}

// kernelQuote quotes the value of arguments containing spaces the way the
// kernel command line parser expects, e.g. acpi_osi="Windows 2012".
func kernelQuote(arg string) string {
	if !strings.ContainsAny(arg, " \t") {
		return arg
	}
	if key, value, ok := strings.Cut(arg, "="); ok {
		return key + `="` + value + `"`
	}
	return `"` + arg + `"`
}

// RepackKernel re-signs the running Chrome OS kernel with a command line
// pointing to the Ubuntu root file system and writes it to the kernel
// partition of target.
func (in *Installer) RepackKernel(ctx context.Context, host Host, target Target) error {
	cmdline, err := KernelCommandLine(target.RootDevice, in.Config.ExtraKernelArgs)
	if err != nil {
		return err
	}
	running, err := partitions.KernelForRoot(host.RunningRoot, in.Config.KernelRootOffset)
	if err != nil {
		return err
	}

	f, err := os.CreateTemp("", "chrubuntu-kernel-config")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(cmdline + "\n"); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	log.Printf("repacking kernel %s onto %s with command line %q", running, target.KernelDevice, cmdline)
	_, err = in.Runner.Run(ctx, "vbutil_kernel",
		"--repack", target.KernelDevice,
		"--oldblob", running,
		"--keyblock", in.Config.DevKey("kernel.keyblock"),
		"--version", "1",
		"--signprivate", in.Config.DevKey("kernel_data_key.vbprivk"),
		"--config", f.Name(),
		"--arch", host.Arch.SigningArch)
	return err
}
