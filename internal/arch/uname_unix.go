//go:build unix

package arch

import "golang.org/x/sys/unix"

// Host returns uname(2) information of the running kernel.
func Host() (Uname, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return Uname{}, err
	}
	return Uname{
		Machine: unix.ByteSliceToString(uts.Machine[:]),
		Release: unix.ByteSliceToString(uts.Release[:]),
	}, nil
}
