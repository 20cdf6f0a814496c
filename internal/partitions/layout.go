package partitions

import (
	"fmt"
	"strconv"
)

// All sizes and offsets are in 512-byte sectors.
const (
	SectorSize = 512

	// KernelSectors is the size of the kernel partition (16 MiB).
	KernelSectors = 32768

	// FreshKernelStart is where the kernel partition starts on a freshly
	// partitioned disk, after the primary GPT.
	FreshKernelStart = 64

	// FreshRootStart is where the root partition starts on a freshly
	// partitioned disk: the kernel partition plus padding.
	FreshRootStart = 65600

	// BackupGPTSectors are reserved at the end of the disk for the backup
	// GPT header and entries.
	BackupGPTSectors = 33

	// SectorsPerGB converts the user-entered size in GB to sectors.
	SectorsPerGB = 1 << 21

	// MinSizeGB is the smallest root filesystem ResizeInPlace creates.
	MinSizeGB = 5
)

// Partition labels of the Chrome OS layout.
const (
	LabelState   = "STATE"
	LabelKernelA = "KERN-A"
	LabelRootA   = "ROOT-A"
	LabelKernelB = "KERN-B"
	LabelKernelC = "KERN-C"
	LabelRootC   = "ROOT-C"
)

// Indices are the GPT entry numbers chrubuntu writes to.
type Indices struct {
	Stateful int `json:",omitempty"`
	Kernel   int `json:",omitempty"`
	Root     int `json:",omitempty"`
}

// DefaultIndices are the Chrome OS STATE, KERN-C and ROOT-C entries.
var DefaultIndices = Indices{
	Stateful: 1,
	Kernel:   6,
	Root:     7,
}

func (i Indices) Validate() error {
	if i.Stateful < 1 || i.Kernel < 1 || i.Root < 1 {
		return fmt.Errorf("partition indices must be positive, got %+v", i)
	}
	if i.Root != i.Kernel+1 {
		return fmt.Errorf("root partition index %d must directly follow kernel partition index %d", i.Root, i.Kernel)
	}
	if i.Stateful == i.Kernel || i.Stateful == i.Root {
		return fmt.Errorf("stateful partition index %d collides with kernel/root", i.Stateful)
	}
	return nil
}

// Slot is one cgpt add invocation.
type Slot struct {
	Index int
	Start uint64
	Size  uint64
	Label string
	Type  string     // cgpt -t, empty to keep the existing type
	Flags *BootFlags // cgpt -S/-P/-T, nil to keep the existing flags
}

// End returns the first sector after the slot.
func (s Slot) End() uint64 { return s.Start + s.Size }

// CgptArgs returns the arguments of the cgpt invocation writing s to disk.
func (s Slot) CgptArgs(disk string) []string {
	args := []string{
		"add",
		"-i", strconv.Itoa(s.Index),
		"-b", strconv.FormatUint(s.Start, 10),
		"-s", strconv.FormatUint(s.Size, 10),
	}
	if s.Flags != nil {
		args = append(args,
			"-S", strconv.Itoa(s.Flags.successful()),
			"-P", strconv.Itoa(s.Flags.Priority),
			"-T", strconv.Itoa(s.Flags.Tries))
	}
	args = append(args, "-l", s.Label)
	if s.Type != "" {
		args = append(args, "-t", s.Type)
	}
	return append(args, disk)
}

// Layout is the set of partition entries one provisioning variant writes,
// in the order they must be written.
type Layout struct {
	Slots []Slot
}

// Fits reports an error if any slot extends past the usable sectors of a
// disk with totalSectors sectors or if slots overlap.
func (l Layout) Fits(totalSectors uint64) error {
	usable := totalSectors - BackupGPTSectors
	if totalSectors < BackupGPTSectors {
		usable = 0
	}
	for i, s := range l.Slots {
		if s.Size == 0 {
			return fmt.Errorf("partition %d (%s) is empty", s.Index, s.Label)
		}
		if s.End() > usable {
			return fmt.Errorf("partition %d (%s) ends at sector %d, beyond the usable %d sectors", s.Index, s.Label, s.End(), usable)
		}
		for _, o := range l.Slots[i+1:] {
			if s.Start < o.End() && o.Start < s.End() {
				return fmt.Errorf("partition %d (%s) overlaps partition %d (%s)", s.Index, s.Label, o.Index, o.Label)
			}
		}
	}
	return nil
}

// Fresh returns the layout for a wiped disk of totalSectors sectors: a
// kernel slot right after the primary GPT, selected for booting, and a root
// slot filling the rest of the disk.
func Fresh(totalSectors uint64, idx Indices) (Layout, error) {
	if totalSectors <= FreshRootStart+BackupGPTSectors {
		return Layout{}, fmt.Errorf("disk of %d sectors is too small, need more than %d", totalSectors, FreshRootStart+BackupGPTSectors)
	}
	flags := UbuntuSelected
	l := Layout{
		Slots: []Slot{
			{
				Index: idx.Kernel,
				Start: FreshKernelStart,
				Size:  KernelSectors,
				Label: LabelKernelA,
				Type:  "kernel",
				Flags: &flags,
			},
			{
				Index: idx.Root,
				Start: FreshRootStart,
				Size:  totalSectors - FreshRootStart - BackupGPTSectors,
				Label: LabelRootA,
				Type:  "rootfs",
			},
		},
	}
	return l, l.Fits(totalSectors)
}

// MaxSizeGB returns the largest root filesystem size in GB which can be
// carved out of a stateful partition of stateSectors sectors, next to the
// kernel partition and leaving at least one sector of stateful partition.
func MaxSizeGB(stateSectors uint64) int {
	if stateSectors <= KernelSectors {
		return 0
	}
	return int((stateSectors - KernelSectors - 1) / SectorsPerGB)
}

// ValidateSizeGB checks a user-entered root filesystem size.
func ValidateSizeGB(gb, maxGB int) error {
	if maxGB < MinSizeGB {
		return fmt.Errorf("stateful partition too small: at most %d GB available, need at least %d GB", maxGB, MinSizeGB)
	}
	if gb < MinSizeGB || gb > maxGB {
		return fmt.Errorf("size %d GB out of range, must be between %d and %d", gb, MinSizeGB, maxGB)
	}
	return nil
}

// Resize returns the layout which shrinks the stateful partition of t and
// places a kernel slot and a root slot of gb GB at its end.
func Resize(t Table, gb int, idx Indices) (Layout, error) {
	state, err := t.Stateful(idx)
	if err != nil {
		return Layout{}, err
	}
	if err := ValidateSizeGB(gb, MaxSizeGB(state.Size)); err != nil {
		return Layout{}, err
	}
	rootSectors := uint64(gb) * SectorsPerGB
	if rootSectors+KernelSectors >= state.Size {
		return Layout{}, fmt.Errorf("%d GB root filesystem does not fit into the %d sector stateful partition", gb, state.Size)
	}
	newState := state.Size - rootSectors - KernelSectors
	kernStart := state.Start + newState
	rootStart := kernStart + KernelSectors
	l := Layout{
		Slots: []Slot{
			{Index: idx.Stateful, Start: state.Start, Size: newState, Label: LabelState},
			{Index: idx.Kernel, Start: kernStart, Size: KernelSectors, Label: LabelKernelC},
			{Index: idx.Root, Start: rootStart, Size: rootSectors, Label: LabelRootC},
		},
	}
	if t.TotalSectors > 0 {
		return l, l.Fits(t.TotalSectors)
	}
	return l, nil
}
