//go:build !linux

package blockdev

import (
	"fmt"
	"runtime"
)

func deviceSize(fd uintptr) (uint64, error) {
	return 0, fmt.Errorf("chrubuntu is missing code for getting device sizes on %s", runtime.GOOS)
}

func rereadPartitions(fd uintptr) error {
	return fmt.Errorf("chrubuntu is missing code for re-reading partition tables on %s", runtime.GOOS)
}

func syncAll() {}
