package installer

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"

	"github.com/chrubuntu/chrubuntu/internal/prompt"
	"github.com/chrubuntu/chrubuntu/internal/runner"
)

func tarball(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, f := range []struct {
		name     string
		contents string
	}{
		{"etc/os-release", "NAME=\"Ubuntu\"\nVERSION_ID=\"22.04\"\n"},
		{"bin/bash", "\x7fELF"},
	} {
		if err := tw.WriteHeader(&tar.Header{
			Name: f.name,
			Mode: 0644,
			Size: int64(len(f.contents)),
		}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(f.contents)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// randomTarball returns a tar archive of n entries of size random bytes each,
// which do not compress.
func randomTarball(t *testing.T, n, size int) []byte {
	t.Helper()
	rnd := rand.New(rand.NewSource(int64(n*size + 1)))
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	contents := make([]byte, size)
	for i := 0; i < n; i++ {
		rnd.Read(contents)
		if err := tw.WriteHeader(&tar.Header{
			Name: fmt.Sprintf("usr/lib/file%03d", i),
			Mode: 0644,
			Size: int64(size),
		}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write(contents); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func gzipped(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := pgzip.NewWriter(&buf)
	if _, err := zw.Write(b); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func xzed(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := xw.Write(b); err != nil {
		t.Fatal(err)
	}
	if err := xw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestValidateArchive(t *testing.T) {
	valid := gzipped(t, tarball(t))
	emptyTar := func() []byte {
		var buf bytes.Buffer
		tar.NewWriter(&buf).Close()
		return buf.Bytes()
	}()
	for _, tt := range []struct {
		name     string
		contents []byte
		ok       bool
	}{
		{"gzip", valid, true},
		{"xz", xzed(t, tarball(t)), true},
		{"html error page", []byte("<!DOCTYPE html><html><body>404 Not Found</body></html>"), false},
		{"empty file", nil, false},
		{"truncated gzip", valid[:len(valid)/2], false},
		{"gzip without tar", gzipped(t, []byte("hello world, this is not a tar archive at all")), false},
		{"empty archive", gzipped(t, emptyTar), false},
		{"uncompressed tar", tarball(t), false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			fn := filepath.Join(t.TempDir(), "ubuntu-base.tar.gz")
			if err := os.WriteFile(fn, tt.contents, 0644); err != nil {
				t.Fatal(err)
			}
			err := ValidateArchive(fn)
			if tt.ok && err != nil {
				t.Errorf("ValidateArchive() = %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidArchive) {
				t.Errorf("ValidateArchive() = %v, want ErrInvalidArchive", err)
			}
		})
	}
}

func TestValidateArchiveLarge(t *testing.T) {
	for _, tt := range []struct {
		name    string
		entries int
		size    int
	}{
		{"single small entry", 1, 10},
		{"many entries", 200, 4096},
		{"large entries", 12, 300 * 1000},
	} {
		t.Run(tt.name, func(t *testing.T) {
			tb := randomTarball(t, tt.entries, tt.size)
			for _, c := range []struct {
				format   string
				contents []byte
			}{
				{"gzip", gzipped(t, tb)},
				{"xz", xzed(t, tb)},
			} {
				fn := filepath.Join(t.TempDir(), "ubuntu-base."+c.format)
				if err := os.WriteFile(fn, c.contents, 0644); err != nil {
					t.Fatal(err)
				}
				if err := ValidateArchive(fn); err != nil {
					t.Errorf("%s: ValidateArchive() = %v", c.format, err)
				}
			}
		})
	}
}

func mirror(t *testing.T, path string, contents []byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		w.Write(contents)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

const armhfPath = "/22.04.4/release/ubuntu-base-22.04.4-base-armhf.tar.gz"

func TestInstallRootFS(t *testing.T) {
	env := newTestEnv(t, "y\ny\n")
	srv := mirror(t, armhfPath, gzipped(t, tarball(t)))
	env.in.Config.Mirror = srv.URL
	env.in.HTTPClient = srv.Client()
	mnt := env.in.Config.MountPoint
	archive := filepath.Join(mnt, "ubuntu-base-22.04.4-base-armhf.tar.gz")

	var script string
	env.fake.Hook = func(cmdline string) {
		if strings.HasPrefix(cmdline, "chroot ") {
			b, err := os.ReadFile(filepath.Join(mnt, "install-ubuntu.sh"))
			if err != nil {
				t.Errorf("provisioning script missing during chroot: %v", err)
			}
			script = string(b)
		}
	}

	got, err := env.in.InstallRootFS(context.Background(), armHost(), internalTarget(), "correcthorse")
	if err != nil {
		t.Fatal(err)
	}
	if got != mnt {
		t.Errorf("InstallRootFS() = %q, want %q", got, mnt)
	}

	wantCommands := []string{
		"mkfs.ext4 -F /dev/mmcblk0p7",
		"mount -t ext4 /dev/mmcblk0p7 " + mnt,
		"tar -xpf " + archive + " -C " + mnt + " --numeric-owner",
		"mount -o bind /proc " + mnt + "/proc",
		"mount -o bind /dev " + mnt + "/dev",
		"mount -o bind /dev/pts " + mnt + "/dev/pts",
		"mount -o bind /sys " + mnt + "/sys",
		"cp -p /usr/bin/cgpt " + mnt + "/usr/bin/cgpt",
		"chroot " + mnt + " /bin/bash -c /install-ubuntu.sh",
		"cp -ar " + env.hostRoot + "/lib/modules/3.8.11 " + mnt + "/lib/modules/",
		"cp -ar " + env.hostRoot + "/lib/firmware " + mnt + "/lib/",
		"umount " + mnt + "/sys",
		"umount " + mnt + "/dev/pts",
		"umount " + mnt + "/dev",
		"umount " + mnt + "/proc",
	}
	if diff := cmp.Diff(wantCommands, env.fake.Commands()); diff != "" {
		t.Errorf("commands: unexpected diff (-want +got):\n%s", diff)
	}

	for name, want := range map[string]string{
		"etc/hostname":    "chrubuntu\n",
		"etc/resolv.conf": "nameserver 192.168.1.1\n",
	} {
		b, err := os.ReadFile(filepath.Join(mnt, name))
		if err != nil {
			t.Fatal(err)
		}
		if got := string(b); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
	hosts, err := os.ReadFile(filepath.Join(mnt, "etc", "hosts"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(hosts), "127.0.1.1\tchrubuntu\n") {
		t.Errorf("etc/hosts does not map the hostname: %q", hosts)
	}

	for _, gone := range []string{archive, filepath.Join(mnt, "install-ubuntu.sh")} {
		if _, err := os.Stat(gone); !os.IsNotExist(err) {
			t.Errorf("%s not removed after installation (err = %v)", gone, err)
		}
	}

	for _, want := range []string{
		"apt-get -y install 'ubuntu-minimal' 'openssh-server'",
		"useradd -m -s /bin/bash 'user'",
		"echo 'user:correcthorse' | chpasswd",
		"usermod -a -G adm,sudo 'user'",
		"systemctl enable ssh",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("provisioning script does not contain %q:\n%s", want, script)
		}
	}
}

func TestInstallRootFSResolvConfFallback(t *testing.T) {
	env := newTestEnv(t, "y\ny\n")
	if err := os.Remove(filepath.Join(env.hostRoot, "etc", "resolv.conf")); err != nil {
		t.Fatal(err)
	}
	srv := mirror(t, armhfPath, gzipped(t, tarball(t)))
	env.in.Config.Mirror = srv.URL
	env.in.HTTPClient = srv.Client()
	mnt, err := env.in.InstallRootFS(context.Background(), armHost(), internalTarget(), "pw")
	if err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(filepath.Join(mnt, "etc", "resolv.conf"))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(b), "nameserver 8.8.8.8\n"; got != want {
		t.Errorf("resolv.conf = %q, want %q", got, want)
	}
}

func TestInstallRootFSInvalidArchive(t *testing.T) {
	env := newTestEnv(t, "y\n")
	srv := mirror(t, armhfPath, []byte("<html><body>Mirror under maintenance</body></html>"))
	env.in.Config.Mirror = srv.URL
	env.in.HTTPClient = srv.Client()
	mnt := env.in.Config.MountPoint

	_, err := env.in.InstallRootFS(context.Background(), armHost(), internalTarget(), "pw")
	if !errors.Is(err, ErrInvalidArchive) {
		t.Fatalf("InstallRootFS() = %v, want ErrInvalidArchive", err)
	}
	wantCommands := []string{
		"mkfs.ext4 -F /dev/mmcblk0p7",
		"mount -t ext4 /dev/mmcblk0p7 " + mnt,
		"umount " + mnt,
	}
	if diff := cmp.Diff(wantCommands, env.fake.Commands()); diff != "" {
		t.Errorf("commands: unexpected diff (-want +got):\n%s", diff)
	}
	if env.fake.Ran("tar") {
		t.Errorf("invalid archive extracted: %v", env.fake.Commands())
	}
}

func TestInstallRootFSNotFound(t *testing.T) {
	env := newTestEnv(t, "y\n")
	srv := mirror(t, "/other/", nil)
	env.in.Config.Mirror = srv.URL
	env.in.HTTPClient = srv.Client()
	mnt := env.in.Config.MountPoint

	_, err := env.in.InstallRootFS(context.Background(), armHost(), internalTarget(), "pw")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("InstallRootFS() = %v, want HTTP 404 error", err)
	}
	if !env.fake.Ran("umount " + mnt) {
		t.Errorf("root file system not unmounted after failed download")
	}
	if env.fake.Ran("tar") {
		t.Errorf("tar run after failed download")
	}
}

func TestInstallRootFSRefusesMountedRoot(t *testing.T) {
	env := newTestEnv(t, "")
	env.setMounts(t, chromebookMounts+"/dev/mmcblk0p7 /media/ubuntu ext4 rw 0 0\n")
	_, err := env.in.InstallRootFS(context.Background(), armHost(), internalTarget(), "pw")
	if !errors.Is(err, ErrMounted) {
		t.Fatalf("InstallRootFS() = %v, want ErrMounted", err)
	}
	if env.fake.Ran("mkfs.ext4") {
		t.Errorf("mkfs.ext4 run on a mounted partition")
	}
}

func TestInstallRootFSMissingMountTable(t *testing.T) {
	env := newTestEnv(t, "y\ny\n")
	env.in.MountTable = filepath.Join(t.TempDir(), "no-such-mounts")
	if _, err := env.in.InstallRootFS(context.Background(), armHost(), internalTarget(), "pw"); err == nil {
		t.Fatalf("InstallRootFS() succeeded without a mount table")
	}
	if got := env.fake.Commands(); len(got) != 0 {
		t.Errorf("commands run without a mount table: %v", got)
	}
}

func TestInstallRootFSDeclined(t *testing.T) {
	srv := mirror(t, armhfPath, gzipped(t, tarball(t)))
	for _, tt := range []struct {
		name  string
		input string
		want  func(mnt, archive string) []string
	}{
		{
			name:  "download",
			input: "n\n",
			want: func(mnt, archive string) []string {
				return []string{
					"mkfs.ext4 -F /dev/mmcblk0p7",
					"mount -t ext4 /dev/mmcblk0p7 " + mnt,
					"umount " + mnt,
				}
			},
		},
		{
			name:  "chroot",
			input: "y\nn\n",
			want: func(mnt, archive string) []string {
				return []string{
					"mkfs.ext4 -F /dev/mmcblk0p7",
					"mount -t ext4 /dev/mmcblk0p7 " + mnt,
					"tar -xpf " + archive + " -C " + mnt + " --numeric-owner",
					"umount " + mnt,
				}
			},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.input)
			env.in.Config.Mirror = srv.URL
			env.in.HTTPClient = srv.Client()
			mnt := env.in.Config.MountPoint
			archive := filepath.Join(mnt, "ubuntu-base-22.04.4-base-armhf.tar.gz")

			_, err := env.in.InstallRootFS(context.Background(), armHost(), internalTarget(), "pw")
			if !errors.Is(err, prompt.ErrDeclined) {
				t.Fatalf("InstallRootFS() = %v, want prompt.ErrDeclined", err)
			}
			if diff := cmp.Diff(tt.want(mnt, archive), env.fake.Commands()); diff != "" {
				t.Errorf("commands: unexpected diff (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInstallRootFSAssumeYes(t *testing.T) {
	env := newTestEnv(t, "")
	env.in.Prompt.AssumeYes = true
	srv := mirror(t, armhfPath, gzipped(t, randomTarball(t, 200, 4096)))
	env.in.Config.Mirror = srv.URL
	env.in.HTTPClient = srv.Client()
	if _, err := env.in.InstallRootFS(context.Background(), armHost(), internalTarget(), "pw"); err != nil {
		t.Fatal(err)
	}
	if !env.fake.Ran("chroot ") {
		t.Errorf("chroot not run with --yes: %v", env.fake.Commands())
	}
}

func TestInstallRootFSModulesCopyFailureIsWarning(t *testing.T) {
	env := newTestEnv(t, "y\ny\n")
	srv := mirror(t, armhfPath, gzipped(t, tarball(t)))
	env.in.Config.Mirror = srv.URL
	env.in.HTTPClient = srv.Client()
	mnt := env.in.Config.MountPoint
	for _, cmdline := range []string{
		"cp -ar " + env.hostRoot + "/lib/modules/3.8.11 " + mnt + "/lib/modules/",
		"cp -ar " + env.hostRoot + "/lib/firmware " + mnt + "/lib/",
	} {
		env.fake.Responses[cmdline] = []runner.Response{{Err: errors.New("No such file or directory")}}
	}
	if _, err := env.in.InstallRootFS(context.Background(), armHost(), internalTarget(), "pw"); err != nil {
		t.Fatal(err)
	}
}

func TestProvisionScriptQuoting(t *testing.T) {
	script, err := ProvisionScript([]string{"xubuntu-desktop"}, "o'brien", "it's")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"apt-get -y install 'xubuntu-desktop' 'openssh-server'\n",
		`useradd -m -s /bin/bash 'o'\''brien'`,
		`echo 'o'\''brien:it'\''s' | chpasswd`,
	} {
		if !strings.Contains(script, want) {
			t.Errorf("script does not contain %q:\n%s", want, script)
		}
	}
}

func TestProvisionScriptPasswordWithColon(t *testing.T) {
	script, err := ProvisionScript(nil, "user", "a:b:c")
	if err != nil {
		t.Fatal(err)
	}
	if want := "echo 'user:a:b:c' | chpasswd\n"; !strings.Contains(script, want) {
		t.Errorf("script does not contain %q:\n%s", want, script)
	}
}
