package installer

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/chrubuntu/chrubuntu/internal/mounts"
)

// bindMounts are made available inside the new root for the chroot, in
// mount order.
var bindMounts = []string{"proc", "dev", "dev/pts", "sys"}

const fallbackResolvConf = "nameserver 8.8.8.8\n"

// InstallRootFS creates a file system on the root partition of target,
// fills it with the Ubuntu base system and provisions it in a chroot. The
// file system is left mounted; its mount point is returned.
func (in *Installer) InstallRootFS(ctx context.Context, host Host, target Target, password string) (string, error) {
	tbl, err := mounts.Read(in.MountTable)
	if err != nil {
		return "", fmt.Errorf("refusing to format %s: %w", target.RootDevice, err)
	}
	if err := tbl.VerifyNotMounted(target.RootDevice); err != nil {
		return "", fmt.Errorf("%w: refusing to format: %v", ErrMounted, err)
	}

	if _, err := in.Runner.Run(ctx, "mkfs.ext4", "-F", target.RootDevice); err != nil {
		return "", err
	}
	mnt := in.Config.MountPoint
	if err := mkdirAll(mnt); err != nil {
		return "", err
	}
	if _, err := in.Runner.Run(ctx, "mount", "-t", "ext4", target.RootDevice, mnt); err != nil {
		return "", err
	}

	url := in.Config.RootfsURL(host.Arch.PackageArch)
	archive := filepath.Join(mnt, path.Base(url))
	if err := in.Prompt.Confirm(fmt.Sprintf("Download Ubuntu %s (%s) from %s?", in.Config.VersionFor(host.Arch.PackageArch), host.Arch.PackageArch, url)); err != nil {
		in.abandon(ctx, mnt)
		return "", err
	}
	log.Printf("downloading %s", url)
	if err := in.download(ctx, url, archive); err != nil {
		in.abandon(ctx, mnt)
		return "", err
	}
	if err := ValidateArchive(archive); err != nil {
		in.abandon(ctx, mnt)
		return "", fmt.Errorf("%v (is the mirror %s serving Ubuntu %s?)", err, in.Config.Mirror, in.Config.VersionFor(host.Arch.PackageArch))
	}
	if _, err := in.Runner.Run(ctx, "tar", "-xpf", archive, "-C", mnt, "--numeric-owner"); err != nil {
		return "", err
	}
	if err := os.Remove(archive); err != nil {
		return "", err
	}

	if err := in.seedConfiguration(mnt); err != nil {
		return "", err
	}

	question := fmt.Sprintf("Install %s and create user %q inside the new root file system (chroot)?",
		strings.Join(in.Config.Packages, " "), in.Config.User)
	if err := in.Prompt.Confirm(question); err != nil {
		in.abandon(ctx, mnt)
		return "", err
	}

	unbind, err := in.bindMount(ctx, mnt)
	if err != nil {
		return "", err
	}
	if err := in.provisionChroot(ctx, mnt, password); err != nil {
		unbind()
		return "", err
	}
	in.copyHostFiles(ctx, host, mnt)
	if err := unbind(); err != nil {
		return "", err
	}
	return mnt, nil
}

// abandon unmounts the half-installed root file system after a failure.
func (in *Installer) abandon(ctx context.Context, mnt string) {
	if _, err := in.Runner.Run(ctx, "umount", mnt); err != nil {
		log.Printf("warning: %v", err)
	}
}

// bindMount makes the host's kernel interfaces available in mnt. The
// returned function unmounts them in reverse order.
func (in *Installer) bindMount(ctx context.Context, mnt string) (unbind func() error, _ error) {
	var mounted []string
	unbind = func() error {
		var firstErr error
		for i := len(mounted) - 1; i >= 0; i-- {
			if _, err := in.Runner.Run(ctx, "umount", mounted[i]); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		mounted = nil
		return firstErr
	}
	for _, dir := range bindMounts {
		dest := filepath.Join(mnt, dir)
		if err := mkdirAll(dest); err != nil {
			unbind()
			return nil, err
		}
		if _, err := in.Runner.Run(ctx, "mount", "-o", "bind", "/"+dir, dest); err != nil {
			unbind()
			return nil, err
		}
		mounted = append(mounted, dest)
	}
	return unbind, nil
}

func writeFile(mnt, name string, contents string, perm os.FileMode) error {
	fn := filepath.Join(mnt, name)
	if err := mkdirAll(filepath.Dir(fn)); err != nil {
		return err
	}
	if err := renameio.WriteFile(fn, []byte(contents), perm); err != nil {
		return fmt.Errorf("writing %s: %v", fn, err)
	}
	return nil
}

// seedConfiguration writes the files the new system needs before the
// chroot provisioning can reach the package mirror.
func (in *Installer) seedConfiguration(mnt string) error {
	resolvConf := fallbackResolvConf
	hostResolvConf := filepath.Join(in.HostRoot, "etc", "resolv.conf")
	if b, err := os.ReadFile(hostResolvConf); err != nil {
		log.Printf("warning: cannot read %s (%v), using %s", hostResolvConf, err, strings.TrimSpace(fallbackResolvConf))
	} else if strings.Contains(string(b), "nameserver") {
		resolvConf = string(b)
	}

	hostname := in.Config.Hostname
	hosts := "127.0.0.1\tlocalhost\n" +
		"127.0.1.1\t" + hostname + "\n" +
		"::1\tlocalhost ip6-localhost ip6-loopback\n"

	for _, f := range []struct {
		name     string
		contents string
	}{
		{"etc/resolv.conf", resolvConf},
		{"etc/hostname", hostname + "\n"},
		{"etc/hosts", hosts},
	} {
		if err := writeFile(mnt, f.name, f.contents, 0644); err != nil {
			return err
		}
	}
	return nil
}

// copyHostFiles copies the kernel modules and firmware of the running
// Chrome OS kernel, which Ubuntu boots with. Failures are not fatal: the
// system boots, some hardware might not work.
func (in *Installer) copyHostFiles(ctx context.Context, host Host, mnt string) {
	modules := filepath.Join(in.HostRoot, "lib", "modules", host.KernelRelease)
	firmware := filepath.Join(in.HostRoot, "lib", "firmware")
	for _, c := range []struct {
		src, destDir string
	}{
		{modules, filepath.Join(mnt, "lib", "modules")},
		{firmware, filepath.Join(mnt, "lib")},
	} {
		if err := mkdirAll(c.destDir); err != nil {
			log.Printf("warning: %v", err)
			continue
		}
		if _, err := in.Runner.Run(ctx, "cp", "-ar", c.src, c.destDir+"/"); err != nil {
			log.Printf("warning: copying %s: %v", c.src, err)
		}
	}
}
