// Package arch maps the host CPU to the Ubuntu package architecture and the
// architecture vbutil_kernel signs kernels for.
package arch

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned for CPUs no Ubuntu base image is installed for.
var ErrUnsupported = errors.New("unsupported platform")

// Descriptor describes one supported host CPU.
type Descriptor struct {
	Machine     string // uname -m, e.g. x86_64
	PackageArch string // Ubuntu package architecture, e.g. amd64
	SigningArch string // vbutil_kernel --arch, e.g. x86
}

var descriptors = []Descriptor{
	{Machine: "x86_64", PackageArch: "amd64", SigningArch: "x86"},
	{Machine: "i686", PackageArch: "i386", SigningArch: "x86"},
	{Machine: "armv7l", PackageArch: "armhf", SigningArch: "arm"},
}

// Lookup returns the Descriptor for machine.
func Lookup(machine string) (Descriptor, error) {
	for _, d := range descriptors {
		if d.Machine == machine {
			return d, nil
		}
	}
	return Descriptor{}, fmt.Errorf("%w: %q (supported: x86_64, i686, armv7l)", ErrUnsupported, machine)
}

// Uname is the subset of uname(2) the installer needs.
type Uname struct {
	Machine string // e.g. armv7l
	Release string // kernel release, names the /lib/modules directory
}
