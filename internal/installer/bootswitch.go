package installer

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/chrubuntu/chrubuntu/internal/partitions"
	"github.com/chrubuntu/chrubuntu/internal/prompt"
)

// Toggle scripts installed into the new root file system.
const (
	Boot2ChromeOS = "usr/local/sbin/boot2chromeos"
	Boot2Ubuntu   = "usr/local/sbin/boot2ubuntu"
)

// SetBootTarget applies flags to the kernel partition index on disk.
func (in *Installer) SetBootTarget(ctx context.Context, disk string, index int, flags partitions.BootFlags) error {
	log.Printf("setting %s on %s", flags, partitions.Path(disk, index))
	return in.cgpt(ctx, flags.CgptArgs(index, disk))
}

// SwitchBoot makes the firmware boot Ubuntu, installs the scripts to switch
// between Ubuntu and Chrome OS, unmounts the new root file system and
// reboots once the operator confirms.
func (in *Installer) SwitchBoot(ctx context.Context, target Target, mnt, password string) error {
	if err := in.SetBootTarget(ctx, target.Disk, target.KernelIndex, partitions.UbuntuSelected); err != nil {
		return err
	}

	for _, s := range []struct {
		name  string
		flags partitions.BootFlags
	}{
		{Boot2ChromeOS, partitions.ChromeOSSelected},
		{Boot2Ubuntu, partitions.UbuntuSelected},
	} {
		script := s.flags.Script(target.KernelIndex, target.Disk)
		if err := writeFile(mnt, s.name, script, 0755); err != nil {
			return err
		}
	}

	if _, err := in.Runner.Run(ctx, "umount", mnt); err != nil {
		return err
	}

	fmt.Fprintf(in.Out, "\nUbuntu has been installed to %s.\n", target.RootDevice)
	fmt.Fprintf(in.Out, "Log in as %q with password %q.\n", in.Config.User, password)
	fmt.Fprintf(in.Out, "To boot Chrome OS again, run: sudo /%s\n", Boot2ChromeOS)
	fmt.Fprintf(in.Out, "From Chrome OS, switch back with: sudo chrubuntu boot ubuntu\n\n")

	if err := in.Prompt.Confirm("Reboot into Ubuntu now?"); err != nil {
		if errors.Is(err, prompt.ErrDeclined) {
			fmt.Fprintf(in.Out, "Not rebooting. Ubuntu starts with the next reboot.\n")
			return nil
		}
		return err
	}
	_, err := in.Runner.Run(ctx, "reboot")
	return err
}

// KernelStatus describes the boot flags of one kernel partition.
type KernelStatus struct {
	Index int
	Label string
	Flags partitions.BootFlags
}

// BootStatus returns the boot flags of all kernel partitions on disk.
func (in *Installer) BootStatus(disk string) ([]KernelStatus, error) {
	table, err := in.ReadTable(disk)
	if err != nil {
		return nil, err
	}
	var status []KernelStatus
	for _, n := range table.Kernels() {
		p := table.Parts[n]
		status = append(status, KernelStatus{
			Index: n,
			Label: p.Label,
			Flags: partitions.FlagsFromAttributes(p.Attributes),
		})
	}
	if len(status) == 0 {
		return nil, fmt.Errorf("%s: no kernel partitions found", disk)
	}
	return status, nil
}

// BootDisk returns disk or, if empty, the internal disk.
func (in *Installer) BootDisk(ctx context.Context, disk string) (string, error) {
	if disk != "" {
		return disk, nil
	}
	d, err := in.Runner.Run(ctx, "rootdev", "-d", "-s")
	if err != nil {
		return "", fmt.Errorf("determining internal disk: %w", err)
	}
	return d, nil
}
