// Package installer installs Ubuntu onto a Chrome OS device in five
// sequential phases: preflight checks, partition provisioning, root file
// system installation, kernel repacking and switching the boot target.
//
// Each phase returns the state the next one needs, so the phases can be
// tested (and, after a failure, reasoned about) one at a time.
package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/chrubuntu/chrubuntu/internal/arch"
	"github.com/chrubuntu/chrubuntu/internal/blockdev"
	"github.com/chrubuntu/chrubuntu/internal/config"
	"github.com/chrubuntu/chrubuntu/internal/measure"
	"github.com/chrubuntu/chrubuntu/internal/partitions"
	"github.com/chrubuntu/chrubuntu/internal/prompt"
	"github.com/chrubuntu/chrubuntu/internal/pwgen"
	"github.com/chrubuntu/chrubuntu/internal/retry"
	"github.com/chrubuntu/chrubuntu/internal/runner"
)

var (
	// ErrRebootRequired is returned after the partition table was resized.
	// The device reboots; the installation continues when chrubuntu is run
	// again.
	ErrRebootRequired = errors.New("reboot required, run chrubuntu again after the reboot to continue the installation")

	ErrNotDeveloperMode = errors.New("not in developer mode")
	ErrInvalidArchive   = errors.New("invalid root file system archive")
	ErrMounted          = errors.New("device is mounted")
)

const passwordLength = 20

// Installer holds everything the installation phases share.
type Installer struct {
	Config *config.Struct
	Runner runner.Runner
	Prompt *prompt.Prompter
	Out    io.Writer // operator-facing messages

	HTTPClient *http.Client

	// MountTable is read to find out what is mounted, typically
	// /proc/self/mounts.
	MountTable string

	// HostRoot is the directory host files (/etc/lsb-release,
	// /etc/resolv.conf, /lib/modules, /lib/firmware) are read from.
	HostRoot string

	// CgptBinary is copied into the new root so that the boot toggle
	// scripts work from Ubuntu.
	CgptBinary string

	// DryRun skips checks which only hold after commands really ran.
	DryRun bool

	DeviceSize       func(path string) (uint64, error)
	RereadPartitions func(path string) error
	ReadTable        func(path string) (partitions.Table, error)
	Uname            func() (arch.Uname, error)

	Retry retry.Policy
}

// New returns an Installer operating on the running system.
func New(cfg *config.Struct, r runner.Runner, p *prompt.Prompter, out io.Writer) *Installer {
	in := &Installer{
		Config:           cfg,
		Runner:           r,
		Prompt:           p,
		Out:              out,
		HTTPClient:       http.DefaultClient,
		MountTable:       "/proc/self/mounts",
		HostRoot:         "/",
		CgptBinary:       "/usr/bin/cgpt",
		DryRun:           cfg.InternalCompatibilityFlags.DryRun,
		DeviceSize:       blockdev.Size,
		RereadPartitions: blockdev.RereadPartitions,
		ReadTable:        partitions.ReadTable,
		Uname:            arch.Host,
		Retry:            retry.Default,
	}
	if in.DryRun {
		in.RereadPartitions = func(path string) error {
			log.Printf("dry run: re-reading partition table of %s", path)
			return nil
		}
	}
	return in
}

// Host describes the running Chrome OS system.
type Host struct {
	Arch          arch.Descriptor
	KernelRelease string // names /lib/modules/<release>
	RunningRoot   string // e.g. /dev/mmcblk0p3
	Board         string // from /etc/lsb-release, informational
	Release       string // ditto
}

// Target is where Ubuntu is installed to.
type Target struct {
	Disk         string // e.g. /dev/mmcblk0
	KernelDevice string // e.g. /dev/mmcblk0p6
	RootDevice   string // e.g. /dev/mmcblk0p7
	KernelIndex  int
	RootIndex    int
}

func newTarget(host Host, disk string, idx partitions.Indices) (Target, error) {
	t := Target{
		Disk:         disk,
		KernelDevice: partitions.Path(disk, idx.Kernel),
		RootDevice:   partitions.Path(disk, idx.Root),
		KernelIndex:  idx.Kernel,
		RootIndex:    idx.Root,
	}
	if t.RootDevice == host.RunningRoot {
		return Target{}, fmt.Errorf("%w: %s is the running root file system", ErrMounted, t.RootDevice)
	}
	return t, nil
}

// password returns the configured password or generates one.
func (in *Installer) password() (string, error) {
	if pw := in.Config.Password; pw != "" {
		return pw, nil
	}
	return pwgen.RandomPassword(passwordLength)
}

// Run installs Ubuntu. With an empty disk, space is carved out of the
// stateful partition of the internal disk, otherwise disk is wiped.
func (in *Installer) Run(ctx context.Context, disk string) error {
	if err := in.Config.Validate(); err != nil {
		return err
	}

	done := measure.Interactively(in.Out, "preflight")
	host, err := in.Preflight(ctx)
	if err != nil {
		return err
	}
	done(fmt.Sprintf(" (%s, %s)", host.Arch.Machine, host.RunningRoot))

	var prov Provisioning = ResizeInPlace{SizeGB: in.Config.InternalCompatibilityFlags.SizeGB}
	if disk != "" {
		prov = FreshPartition{Disk: disk}
	}
	done = measure.Interactively(in.Out, "partitioning")
	target, err := in.Provision(ctx, host, prov)
	if err != nil {
		return err
	}
	done(" (" + target.Disk + ")")

	password, err := in.password()
	if err != nil {
		return err
	}

	done = measure.Interactively(in.Out, "installing root file system")
	mnt, err := in.InstallRootFS(ctx, host, target, password)
	if err != nil {
		return err
	}
	done(" (" + target.RootDevice + ")")

	done = measure.Interactively(in.Out, "repacking kernel")
	if err := in.RepackKernel(ctx, host, target); err != nil {
		return err
	}
	done(" (" + target.KernelDevice + ")")

	return in.SwitchBoot(ctx, target, mnt, password)
}

func mkdirAll(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %v", dir, err)
	}
	return nil
}
