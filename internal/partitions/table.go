package partitions

import (
	"fmt"
	"sort"
	"strings"

	"github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/partition/gpt"
)

// GPT partition type GUIDs cgpt uses for -t kernel and -t rootfs.
var (
	TypeKernel = string(gpt.ChromeOSKernel)
	TypeRootFS = string(gpt.ChromeOSRootFs)
)

// Part is one GPT entry, in sectors.
type Part struct {
	Label      string
	Type       string
	Start      uint64
	Size       uint64
	Attributes uint64
}

// Table is the subset of a disk's GPT chrubuntu looks at, keyed by GPT
// entry number (starting at 1, as cgpt -i).
type Table struct {
	TotalSectors uint64
	Parts        map[int]Part
}

// Entry returns GPT entry n.
func (t Table) Entry(n int) (Part, error) {
	p, ok := t.Parts[n]
	if !ok {
		return Part{}, fmt.Errorf("GPT entry %d is unused", n)
	}
	return p, nil
}

func (t Table) entryOfType(n int, typ, what string) (Part, error) {
	p, err := t.Entry(n)
	if err != nil {
		return Part{}, fmt.Errorf("%s partition: %v", what, err)
	}
	if !strings.EqualFold(p.Type, typ) {
		return Part{}, fmt.Errorf("%s partition: GPT entry %d (%q) has type %s, want %s", what, n, p.Label, p.Type, typ)
	}
	return p, nil
}

// Stateful returns the stateful partition entry of idx.
func (t Table) Stateful(idx Indices) (Part, error) {
	p, err := t.Entry(idx.Stateful)
	if err != nil {
		return Part{}, fmt.Errorf("stateful partition: %v", err)
	}
	if p.Label != LabelState {
		return Part{}, fmt.Errorf("stateful partition: GPT entry %d is labeled %q, want %s", idx.Stateful, p.Label, LabelState)
	}
	return p, nil
}

// NeedsResize reports whether the kernel or root entry of idx still has its
// factory size of one sector, i.e. no space has been carved out of the
// stateful partition yet. Entries which are unused or of the wrong type mean
// idx does not match the disk and are errors.
func (t Table) NeedsResize(idx Indices) (bool, error) {
	if _, err := t.Stateful(idx); err != nil {
		return false, err
	}
	kern, err := t.entryOfType(idx.Kernel, TypeKernel, "kernel")
	if err != nil {
		return false, err
	}
	root, err := t.entryOfType(idx.Root, TypeRootFS, "root")
	if err != nil {
		return false, err
	}
	return kern.Size == 1 || root.Size == 1, nil
}

// Kernels returns the entry numbers of all kernel partitions, in order.
func (t Table) Kernels() []int {
	var kernels []int
	for n, p := range t.Parts {
		if strings.EqualFold(p.Type, TypeKernel) {
			kernels = append(kernels, n)
		}
	}
	sort.Ints(kernels)
	return kernels
}

// ReadTable reads the GPT of the disk at path without modifying it.
//
// go-diskfs returns used entries in entry order and omits unused ones, so
// entries are numbered by position. cgpt-created Chrome OS tables have no
// unused entries; on other tables the type checks of NeedsResize catch a
// shifted numbering.
func ReadTable(path string) (Table, error) {
	disk, err := diskfs.Open(path, diskfs.WithOpenMode(diskfs.ReadOnly))
	if err != nil {
		return Table{}, err
	}
	defer disk.File.Close()
	table, err := disk.GetPartitionTable()
	if err != nil {
		return Table{}, fmt.Errorf("reading partition table of %s: %v", path, err)
	}
	sectorSize := disk.LogicalBlocksize
	if sectorSize <= 0 {
		sectorSize = SectorSize
	}
	t := Table{
		TotalSectors: uint64(disk.Size / sectorSize),
		Parts:        make(map[int]Part),
	}
	for i, p := range table.GetPartitions() {
		p, ok := p.(*gpt.Partition)
		if !ok {
			return Table{}, fmt.Errorf("%s: partition table is not GPT", path)
		}
		t.Parts[i+1] = Part{
			Label:      p.Name,
			Type:       string(p.Type),
			Start:      uint64(p.GetStart() / sectorSize),
			Size:       uint64(p.GetSize() / sectorSize),
			Attributes: p.Attributes,
		}
	}
	return t, nil
}
