package installer

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chrubuntu/chrubuntu/internal/arch"
	"github.com/chrubuntu/chrubuntu/internal/config"
	"github.com/chrubuntu/chrubuntu/internal/partitions"
	"github.com/chrubuntu/chrubuntu/internal/prompt"
	"github.com/chrubuntu/chrubuntu/internal/retry"
	"github.com/chrubuntu/chrubuntu/internal/runner"
)

const lsbRelease = `CHROMEOS_AUSERVER=https://tools.google.com/service/update2
CHROMEOS_RELEASE_BOARD=peach_pit-signed-mp-v2keys
CHROMEOS_RELEASE_NAME=Chrome OS
CHROMEOS_RELEASE_VERSION=6812.88.0
`

const chromebookMounts = `/dev/root / ext2 ro,seclabel,relatime 0 0
proc /proc proc rw,nosuid,nodev,noexec,relatime 0 0
/dev/mmcblk0p1 /mnt/stateful_partition ext4 rw,nosuid,nodev,noexec,noatime 0 0
`

type testEnv struct {
	in   *Installer
	fake *runner.Fake
	out  *bytes.Buffer

	hostRoot   string
	mountTable string
	rereads    int
}

func newTestEnv(t *testing.T, input string) *testEnv {
	t.Helper()
	tmp := t.TempDir()
	env := &testEnv{
		fake: &runner.Fake{
			Responses: map[string][]runner.Response{
				"crossystem mainfw_type": {{Out: "developer"}},
				"rootdev -s":             {{Out: "/dev/mmcblk0p3"}},
				"rootdev -d -s":          {{Out: "/dev/mmcblk0"}},
			},
		},
		out:        &bytes.Buffer{},
		hostRoot:   filepath.Join(tmp, "host"),
		mountTable: filepath.Join(tmp, "mounts"),
	}
	for name, contents := range map[string]string{
		"etc/lsb-release": lsbRelease,
		"etc/resolv.conf": "nameserver 192.168.1.1\n",
	} {
		fn := filepath.Join(env.hostRoot, name)
		if err := os.MkdirAll(filepath.Dir(fn), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(fn, []byte(contents), 0644); err != nil {
			t.Fatal(err)
		}
	}
	env.setMounts(t, chromebookMounts)

	cfg := config.Default()
	cfg.MountPoint = filepath.Join(tmp, "urfs")
	cfg.Password = "correcthorse"

	env.in = &Installer{
		Config:     cfg,
		Runner:     env.fake,
		Prompt:     prompt.New(strings.NewReader(input), env.out),
		Out:        env.out,
		MountTable: env.mountTable,
		HostRoot:   env.hostRoot,
		CgptBinary: "/usr/bin/cgpt",
		DeviceSize: func(path string) (uint64, error) {
			return 62333952 * 512, nil
		},
		RereadPartitions: func(path string) error {
			env.rereads++
			return nil
		},
		ReadTable: func(path string) (partitions.Table, error) {
			return chromebookTable(), nil
		},
		Uname: func() (arch.Uname, error) {
			return arch.Uname{Machine: "armv7l", Release: "3.8.11"}, nil
		},
		Retry: retry.Policy{Attempts: 5, Delay: time.Millisecond},
	}
	return env
}

func (env *testEnv) setMounts(t *testing.T, contents string) {
	t.Helper()
	if err := os.WriteFile(env.mountTable, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
}

func chromebookTable() partitions.Table {
	return partitions.Table{
		TotalSectors: 30777344,
		Parts: map[int]partitions.Part{
			1: {Label: partitions.LabelState, Start: 8704000, Size: 22038495},
			2: {Label: partitions.LabelKernelA, Type: partitions.TypeKernel, Start: 20480, Size: 32768, Attributes: partitions.UbuntuSelected.Apply(0)},
			3: {Label: partitions.LabelRootA, Type: partitions.TypeRootFS, Start: 4509696, Size: 4194304},
			4: {Label: partitions.LabelKernelB, Type: partitions.TypeKernel, Start: 53248, Size: 32768},
			5: {Label: "ROOT-B", Type: partitions.TypeRootFS, Start: 315392, Size: 4194304},
			6: {Label: partitions.LabelKernelC, Type: partitions.TypeKernel, Start: 17448, Size: 1},
			7: {Label: partitions.LabelRootC, Type: partitions.TypeRootFS, Start: 17449, Size: 1},
		},
	}
}

func armHost() Host {
	return Host{
		Arch:          arch.Descriptor{Machine: "armv7l", PackageArch: "armhf", SigningArch: "arm"},
		KernelRelease: "3.8.11",
		RunningRoot:   "/dev/mmcblk0p3",
	}
}

func internalTarget() Target {
	return Target{
		Disk:         "/dev/mmcblk0",
		KernelDevice: "/dev/mmcblk0p6",
		RootDevice:   "/dev/mmcblk0p7",
		KernelIndex:  6,
		RootIndex:    7,
	}
}
