// Package partitions knows the Chrome OS GPT layout chrubuntu installs into:
// partition device naming, the FreshPartition and ResizeInPlace layouts and
// the kernel boot flags.
package partitions

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Path returns the device path of partition number n on disk. Disks whose
// name ends in a digit (mmcblk0, nvme0n1, loop0) use a p delimiter.
func Path(disk string, n int) string {
	if disk == "" {
		return ""
	}
	if unicode.IsDigit(rune(disk[len(disk)-1])) {
		return fmt.Sprintf("%sp%d", disk, n)
	}
	return disk + strconv.Itoa(n)
}

// Parse splits a partition device path like /dev/mmcblk0p3 into the disk
// (/dev/mmcblk0) and the partition number (3).
func Parse(partition string) (disk string, number int, err error) {
	disk = strings.TrimRight(partition, "0123456789")
	number, err = strconv.Atoi(partition[len(disk):])
	if err != nil || disk == "" {
		return "", 0, fmt.Errorf("cannot parse %q as a partition", partition)
	}
	if strings.HasSuffix(disk, "p") {
		trimmed := disk[:len(disk)-1]
		if trimmed != "" && unicode.IsDigit(rune(trimmed[len(trimmed)-1])) {
			return trimmed, number, nil
		}
	}
	return disk, number, nil
}

// KernelForRoot returns the kernel partition belonging to the root partition
// root. On Chrome OS, KERN-A (2) precedes ROOT-A (3) and KERN-B (4) precedes
// ROOT-B (5), so offset is 1.
func KernelForRoot(root string, offset int) (string, error) {
	disk, n, err := Parse(root)
	if err != nil {
		return "", err
	}
	if n-offset < 1 {
		return "", fmt.Errorf("root partition %s has no kernel partition at offset %d", root, offset)
	}
	return Path(disk, n-offset), nil
}
