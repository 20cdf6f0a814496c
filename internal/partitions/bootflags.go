package partitions

import (
	"fmt"
	"strconv"
	"strings"
)

// BootFlags are the Chrome OS kernel partition attributes the firmware uses
// to pick the kernel to boot: the highest priority kernel with tries left or
// marked successful wins.
type BootFlags struct {
	Priority   int
	Tries      int
	Successful bool
}

var (
	// UbuntuSelected makes the firmware boot the chrubuntu kernel.
	UbuntuSelected = BootFlags{Priority: 5, Tries: 1, Successful: true}

	// ChromeOSSelected makes the chrubuntu kernel unbootable, so the
	// firmware falls back to the Chrome OS kernels.
	ChromeOSSelected = BootFlags{Priority: 0, Tries: 0, Successful: false}
)

// Bit positions within the GPT entry attributes (ChromeOS extension).
const (
	priorityShift   = 48
	triesShift      = 52
	successfulShift = 56

	priorityMask   = uint64(0xf) << priorityShift
	triesMask      = uint64(0xf) << triesShift
	successfulMask = uint64(1) << successfulShift
)

func (f BootFlags) successful() int {
	if f.Successful {
		return 1
	}
	return 0
}

// CgptArgs returns the arguments of the cgpt invocation which applies f to
// partition index on disk.
func (f BootFlags) CgptArgs(index int, disk string) []string {
	return []string{
		"add",
		"-i", strconv.Itoa(index),
		"-P", strconv.Itoa(f.Priority),
		"-T", strconv.Itoa(f.Tries),
		"-S", strconv.Itoa(f.successful()),
		disk,
	}
}

// Apply returns attr with the boot flag bits replaced by f. All other bits
// are retained.
func (f BootFlags) Apply(attr uint64) uint64 {
	attr &^= priorityMask | triesMask | successfulMask
	attr |= (uint64(f.Priority) << priorityShift) & priorityMask
	attr |= (uint64(f.Tries) << triesShift) & triesMask
	if f.Successful {
		attr |= successfulMask
	}
	return attr
}

// FlagsFromAttributes decodes the boot flags of a GPT entry.
func FlagsFromAttributes(attr uint64) BootFlags {
	return BootFlags{
		Priority:   int((attr & priorityMask) >> priorityShift),
		Tries:      int((attr & triesMask) >> triesShift),
		Successful: attr&successfulMask != 0,
	}
}

func (f BootFlags) String() string {
	return fmt.Sprintf("priority=%d tries=%d successful=%d", f.Priority, f.Tries, f.successful())
}

// Script returns a shell script which applies f to partition index on disk
// and reboots.
func (f BootFlags) Script(index int, disk string) string {
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	b.WriteString("cgpt " + strings.Join(f.CgptArgs(index, disk), " ") + "\n")
	b.WriteString("reboot\n")
	return b.String()
}
