// Package blockdev talks to the kernel about block devices directly.
package blockdev

import (
	"fmt"
	"os"
)

// Size returns the size of the block device at path in bytes.
func Size(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	devsize, err := deviceSize(f.Fd())
	if err != nil {
		return 0, fmt.Errorf("%s: %v", path, err)
	}
	if devsize == 0 {
		return 0, fmt.Errorf("path %s does not seem to be a device", path)
	}
	return devsize, nil
}

// RereadPartitions makes Linux re-read the partition table of the device at
// path. Sequence of system calls like in fdisk(8).
func RereadPartitions(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	syncAll()

	if err := rereadPartitions(f.Fd()); err != nil {
		return fmt.Errorf("re-reading partition table of %s: %v", path, err)
	}

	if err := f.Sync(); err != nil {
		return err
	}

	syncAll()
	return nil
}
