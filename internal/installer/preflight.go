package installer

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"gopkg.in/ini.v1"

	"github.com/chrubuntu/chrubuntu/internal/arch"
	"github.com/chrubuntu/chrubuntu/internal/runner"
)

// Preflight verifies that the device can be installed to. It runs before
// anything on disk is modified.
func (in *Installer) Preflight(ctx context.Context) (Host, error) {
	fwType, err := in.Runner.Run(ctx, "crossystem", "mainfw_type")
	if err != nil {
		return Host{}, fmt.Errorf("%w: %v", ErrNotDeveloperMode, err)
	}
	if fwType != "developer" {
		return Host{}, fmt.Errorf("%w: firmware type is %q, switch the device to developer mode first", ErrNotDeveloperMode, fwType)
	}

	uts, err := in.Uname()
	if err != nil {
		return Host{}, err
	}
	desc, err := arch.Lookup(uts.Machine)
	if err != nil {
		return Host{}, err
	}

	root, err := in.Runner.Run(ctx, "rootdev", "-s")
	if err != nil {
		return Host{}, fmt.Errorf("determining running root file system: %w", err)
	}

	host := Host{
		Arch:          desc,
		KernelRelease: uts.Release,
		RunningRoot:   root,
	}
	in.readLSBRelease(&host)

	// Installing takes a while; keep the device from suspending and the
	// screen from blanking.
	runner.BestEffort(ctx, in.Runner, "initctl", "stop", "powerd")
	runner.BestEffort(ctx, in.Runner, "setterm", "-blank", "0")

	return host, nil
}

func (in *Installer) readLSBRelease(host *Host) {
	fn := filepath.Join(in.HostRoot, "etc", "lsb-release")
	lsb, err := ini.Load(fn)
	if err != nil {
		log.Printf("warning: cannot load %s: %v", fn, err)
		return
	}
	sec := lsb.Section("")
	host.Board = sec.Key("CHROMEOS_RELEASE_BOARD").String()
	host.Release = sec.Key("CHROMEOS_RELEASE_VERSION").String()
	log.Printf("running Chrome OS %s on board %s (%s)", host.Release, host.Board, host.Arch.Machine)
}
