// Package mounts reads the kernel mount table.
package mounts

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Entry is one line of /proc/self/mounts.
type Entry struct {
	Device     string
	MountPoint string
	FSType     string
}

// Table is the list of mounted file systems.
type Table []Entry

// Read parses the mount table at fn, typically /proc/self/mounts. Without a
// mount table nothing can be verified, so a missing file is an error.
func Read(fn string) (Table, error) {
	b, err := os.ReadFile(fn)
	if err != nil {
		return nil, fmt.Errorf("reading mount table: %w", err)
	}
	return Parse(string(b)), nil
}

// Parse parses the contents of a mounts file.
func Parse(contents string) Table {
	var t Table
	for _, line := range strings.Split(strings.TrimSpace(contents), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		t = append(t, Entry{
			Device:     unescape(fields[0]),
			MountPoint: unescape(fields[1]),
			FSType:     fields[2],
		})
	}
	return t
}

// unescape decodes the octal escapes (\040 for space) the kernel uses.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+4 <= len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// Mounted reports whether dev is mounted anywhere.
func (t Table) Mounted(dev string) bool {
	for _, e := range t {
		if e.Device == dev {
			return true
		}
	}
	return false
}

// At returns the file system mounted at mountpoint. With stacked mounts,
// the topmost one is returned.
func (t Table) At(mountpoint string) (Entry, bool) {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].MountPoint == mountpoint {
			return t[i], true
		}
	}
	return Entry{}, false
}

// VerifyNotMounted returns an error if dev is mounted.
func (t Table) VerifyNotMounted(dev string) error {
	for _, e := range t {
		if e.Device == dev {
			return fmt.Errorf("%s is mounted on %s", dev, e.MountPoint)
		}
	}
	return nil
}
