package partitions

import "testing"

func TestPath(t *testing.T) {
	for _, tt := range []struct {
		disk string
		n    int
		want string
	}{
		{"/dev/sda", 7, "/dev/sda7"},
		{"/dev/sdb", 1, "/dev/sdb1"},
		{"/dev/mmcblk0", 7, "/dev/mmcblk0p7"},
		{"/dev/mmcblk1", 6, "/dev/mmcblk1p6"},
		{"/dev/nvme0n1", 6, "/dev/nvme0n1p6"},
		{"/dev/loop0", 1, "/dev/loop0p1"},
	} {
		t.Run(tt.want, func(t *testing.T) {
			if got := Path(tt.disk, tt.n); got != tt.want {
				t.Errorf("Path(%q, %d) = %q, want %q", tt.disk, tt.n, got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	for _, tt := range []struct {
		partition string
		disk      string
		number    int
	}{
		{"/dev/sda3", "/dev/sda", 3},
		{"/dev/mmcblk0p3", "/dev/mmcblk0", 3},
		{"/dev/mmcblk0p12", "/dev/mmcblk0", 12},
		{"/dev/nvme0n1p5", "/dev/nvme0n1", 5},
	} {
		t.Run(tt.partition, func(t *testing.T) {
			disk, number, err := Parse(tt.partition)
			if err != nil {
				t.Fatal(err)
			}
			if disk != tt.disk || number != tt.number {
				t.Errorf("Parse(%q) = (%q, %d), want (%q, %d)", tt.partition, disk, number, tt.disk, tt.number)
			}
			if got := Path(disk, number); got != tt.partition {
				t.Errorf("Path(Parse(%q)) = %q", tt.partition, got)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, partition := range []string{"/dev/sda", "", "3"} {
		if _, _, err := Parse(partition); err == nil {
			t.Errorf("Parse(%q) unexpectedly succeeded", partition)
		}
	}
}

func TestKernelForRoot(t *testing.T) {
	for _, tt := range []struct {
		root string
		want string
	}{
		{"/dev/mmcblk0p3", "/dev/mmcblk0p2"},
		{"/dev/mmcblk0p5", "/dev/mmcblk0p4"},
		{"/dev/sda3", "/dev/sda2"},
		{"/dev/nvme0n1p5", "/dev/nvme0n1p4"},
	} {
		got, err := KernelForRoot(tt.root, 1)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("KernelForRoot(%q, 1) = %q, want %q", tt.root, got, tt.want)
		}
	}
	if _, err := KernelForRoot("/dev/sda1", 1); err == nil {
		t.Errorf("KernelForRoot(/dev/sda1, 1) unexpectedly succeeded")
	}
}
