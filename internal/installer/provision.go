package installer

import (
	"context"
	"fmt"
	"log"

	"github.com/chrubuntu/chrubuntu/internal/mounts"
	"github.com/chrubuntu/chrubuntu/internal/partitions"
	"github.com/chrubuntu/chrubuntu/internal/runner"
)

// Provisioning is how space for Ubuntu is obtained: FreshPartition or
// ResizeInPlace.
type Provisioning interface {
	provision(ctx context.Context, in *Installer, host Host) (Target, error)
}

// FreshPartition wipes Disk and fills it with a kernel and a root
// partition.
type FreshPartition struct {
	Disk string
}

// ResizeInPlace shrinks the stateful partition of the internal disk to make
// room for a kernel and a root partition of SizeGB GB. With SizeGB 0, the
// operator is asked.
type ResizeInPlace struct {
	SizeGB int
}

var (
	_ Provisioning = FreshPartition{}
	_ Provisioning = ResizeInPlace{}
)

// Provision prepares the partitions Ubuntu is installed to.
func (in *Installer) Provision(ctx context.Context, host Host, p Provisioning) (Target, error) {
	return p.provision(ctx, in, host)
}

func (in *Installer) cgpt(ctx context.Context, args []string) error {
	_, err := in.Runner.Run(ctx, "cgpt", args...)
	return err
}

// unmountDisk unmounts file systems on disk which Chrome OS mounted
// automatically, e.g. an inserted USB stick.
func (in *Installer) unmountDisk(ctx context.Context, host Host, disk string) error {
	if d, _, err := partitions.Parse(host.RunningRoot); err == nil && d == disk {
		return fmt.Errorf("%w: %s holds the running root file system %s", ErrMounted, disk, host.RunningRoot)
	}
	tbl, err := mounts.Read(in.MountTable)
	if err != nil {
		return err
	}
	for i := len(tbl) - 1; i >= 0; i-- {
		e := tbl[i]
		d, _, err := partitions.Parse(e.Device)
		if e.Device != disk && (err != nil || d != disk) {
			continue
		}
		log.Printf("unmounting %s from %s", e.Device, e.MountPoint)
		if _, err := in.Runner.Run(ctx, "umount", e.MountPoint); err != nil {
			return fmt.Errorf("%w: %s on %s: %v", ErrMounted, e.Device, e.MountPoint, err)
		}
	}
	return nil
}

func (f FreshPartition) provision(ctx context.Context, in *Installer, host Host) (Target, error) {
	idx := in.Config.Partitions
	target, err := newTarget(host, f.Disk, idx)
	if err != nil {
		return Target{}, err
	}

	devsize, err := in.DeviceSize(f.Disk)
	if err != nil {
		return Target{}, err
	}
	log.Printf("device %s holds %d bytes", f.Disk, devsize)
	layout, err := partitions.Fresh(devsize/partitions.SectorSize, idx)
	if err != nil {
		return Target{}, fmt.Errorf("%s: %v", f.Disk, err)
	}

	if err := in.Prompt.Confirm(fmt.Sprintf("All data on %s will be wiped. Continue?", f.Disk)); err != nil {
		return Target{}, err
	}
	if err := in.unmountDisk(ctx, host, f.Disk); err != nil {
		return Target{}, err
	}

	if _, err := in.Runner.Run(ctx, "parted", "--script", f.Disk, "mktable", "gpt"); err != nil {
		return Target{}, err
	}
	if err := in.cgpt(ctx, []string{"create", f.Disk}); err != nil {
		return Target{}, err
	}
	for _, s := range layout.Slots {
		if err := in.cgpt(ctx, s.CgptArgs(f.Disk)); err != nil {
			return Target{}, err
		}
	}

	if _, err := in.Runner.Run(ctx, "sync"); err != nil {
		return Target{}, err
	}
	err = in.Retry.Do(ctx, "re-reading partition table of "+f.Disk, func() error {
		return in.RereadPartitions(f.Disk)
	})
	if err != nil {
		if ctx.Err() != nil {
			return Target{}, ctx.Err()
		}
		log.Printf("warning: %v. The kernel might still use the old partition table.", err)
	}
	runner.BestEffort(ctx, in.Runner, "partprobe", f.Disk)
	// Allow the firmware to boot from external media.
	runner.BestEffort(ctx, in.Runner, "crossystem", "dev_boot_usb=1")
	return target, nil
}

func (r ResizeInPlace) provision(ctx context.Context, in *Installer, host Host) (Target, error) {
	disk, err := in.Runner.Run(ctx, "rootdev", "-d", "-s")
	if err != nil {
		return Target{}, fmt.Errorf("determining internal disk: %w", err)
	}
	idx := in.Config.Partitions
	target, err := newTarget(host, disk, idx)
	if err != nil {
		return Target{}, err
	}

	table, err := in.ReadTable(disk)
	if err != nil {
		return Target{}, err
	}
	needsResize, err := table.NeedsResize(idx)
	if err != nil {
		return Target{}, fmt.Errorf("%s: %v (check the configured partition indices %+v)", disk, err, idx)
	}
	if !needsResize {
		log.Printf("%s already has kernel partition %d and root partition %d, not resizing", disk, idx.Kernel, idx.Root)
		return target, nil
	}

	state, err := table.Stateful(idx)
	if err != nil {
		return Target{}, fmt.Errorf("%s: %v", disk, err)
	}
	maxGB := partitions.MaxSizeGB(state.Size)
	if err := partitions.ValidateSizeGB(partitions.MinSizeGB, maxGB); err != nil {
		return Target{}, fmt.Errorf("%s: %v", disk, err)
	}

	gb := r.SizeGB
	if gb == 0 {
		recommended := maxGB - 1
		if recommended < partitions.MinSizeGB {
			recommended = partitions.MinSizeGB
		}
		fmt.Fprintf(in.Out, "The stateful partition of %s has room for up to %d GB.\n", disk, maxGB)
		fmt.Fprintf(in.Out, "Leave some space for Chrome OS: %d GB is the recommended maximum.\n", recommended)
		gb, err = in.Prompt.Integer("Size of the Ubuntu root file system in GB", partitions.MinSizeGB, maxGB)
		if err != nil {
			return Target{}, err
		}
	}
	layout, err := partitions.Resize(table, gb, idx)
	if err != nil {
		return Target{}, fmt.Errorf("%s: %v", disk, err)
	}

	msg := fmt.Sprintf("The stateful partition of %s will be shrunk to make room for %d GB, "+
		"which wipes all Chrome OS user data, and the device will reboot. Continue?", disk, gb)
	if err := in.Prompt.Confirm(msg); err != nil {
		return Target{}, err
	}

	if err := in.unmountStateful(ctx); err != nil {
		return Target{}, err
	}

	for _, s := range layout.Slots {
		if err := in.cgpt(ctx, s.CgptArgs(disk)); err != nil {
			return Target{}, err
		}
	}

	fmt.Fprintf(in.Out, "Partitions of %s resized. Rebooting; run chrubuntu again afterwards to continue.\n", disk)
	if _, err := in.Runner.Run(ctx, "reboot"); err != nil {
		return Target{}, err
	}
	return Target{}, ErrRebootRequired
}

// unmountStateful unmounts the stateful partition so that its file system
// can be shrunk by Chrome OS on the next boot. Daemons keep it busy for a
// while after being asked to stop, so unmounting is retried.
func (in *Installer) unmountStateful(ctx context.Context) error {
	mnt := in.Config.StatefulMount
	err := in.Retry.Do(ctx, "unmounting "+mnt, func() error {
		_, umountErr := in.Runner.Run(ctx, "umount", "-f", mnt)
		if in.DryRun {
			return umountErr
		}
		tbl, err := mounts.Read(in.MountTable)
		if err != nil {
			return err
		}
		if e, ok := tbl.At(mnt); ok {
			if umountErr != nil {
				return umountErr
			}
			return fmt.Errorf("%s is still mounted on %s", e.Device, mnt)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrMounted, err)
	}
	return nil
}
