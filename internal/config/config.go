// Package config is the chrubuntu configuration file: which Ubuntu release
// to install from where, how the new system is set up and where on the disk
// it goes.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/chrubuntu/chrubuntu/internal/partitions"
)

const (
	DefaultMirror        = "http://cdimage.ubuntu.com/ubuntu-base/releases"
	DefaultUbuntuVersion = "22.04.4"
)

// DefaultUbuntuVersions override DefaultUbuntuVersion for package
// architectures newer releases no longer ship base images for.
var DefaultUbuntuVersions = map[string]string{
	"i386": "18.04.5",
}

// InternalCompatibilityFlags are set from the command line only.
type InternalCompatibilityFlags struct {
	SizeGB int    `json:",omitempty"` // --size_gb
	Yes    bool   `json:",omitempty"` // --yes
	DryRun bool   `json:",omitempty"` // --dry_run
	Disk   string `json:",omitempty"` // positional argument
}

type Struct struct {
	Mirror        string   // --mirror
	UbuntuVersion string   // --version_name
	Hostname      string   // --hostname
	User          string   // --user
	Password      string   `json:",omitempty"` // --password, generated when empty
	Packages      []string // installed in addition to the base system

	// ExtraKernelArgs are appended to the kernel command line, split like a
	// shell would.
	ExtraKernelArgs string `json:",omitempty"`

	MountPoint    string // --mount_point
	StatefulMount string // where Chrome OS mounts the stateful partition
	DevKeysDir    string // verified boot developer keys

	Partitions       partitions.Indices
	KernelRootOffset int // running kernel = running root minus this

	InternalCompatibilityFlags InternalCompatibilityFlags `json:"-"`
}

// Default returns the configuration used when no config file exists.
func Default() *Struct {
	return &Struct{
		Mirror:        DefaultMirror,
		UbuntuVersion: DefaultUbuntuVersion,
		Hostname:      "chrubuntu",
		User:          "user",
		Packages: []string{
			"ubuntu-minimal",
			"openssh-server",
			"sudo",
			"network-manager",
			"vim",
		},
		MountPoint:       "/tmp/urfs",
		StatefulMount:    "/mnt/stateful_partition",
		DevKeysDir:       "/usr/share/vboot/devkeys",
		Partitions:       partitions.DefaultIndices,
		KernelRootOffset: 1,
	}
}

// ReadFromFile reads the configuration at path on top of Default. A missing
// file results in the defaults.
func ReadFromFile(path string) (*Struct, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	log.Printf("reading chrubuntu config from %s", path)
	if err := json.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	return cfg, nil
}

// WriteDefault writes the default configuration to path, refusing to
// overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	b, err := json.MarshalIndent(Default(), "", "    ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return renameio.WriteFile(path, b, 0600)
}

// VersionFor returns the Ubuntu release installed on packageArch: the
// configured one, unless it is the default and packageArch has its own.
func (s *Struct) VersionFor(packageArch string) string {
	if s.UbuntuVersion == DefaultUbuntuVersion {
		if v, ok := DefaultUbuntuVersions[packageArch]; ok {
			return v
		}
	}
	return s.UbuntuVersion
}

// RootfsURL returns the URL of the Ubuntu base tarball for packageArch.
func (s *Struct) RootfsURL(packageArch string) string {
	version := s.VersionFor(packageArch)
	return fmt.Sprintf("%s/%s/release/ubuntu-base-%s-base-%s.tar.gz",
		strings.TrimSuffix(s.Mirror, "/"),
		version,
		version,
		packageArch)
}

// DevKey returns the path of a file in the developer keys directory.
func (s *Struct) DevKey(name string) string {
	return filepath.Join(s.DevKeysDir, name)
}

// Validate reports configuration errors before anything is modified.
func (s *Struct) Validate() error {
	if s.Mirror == "" {
		return fmt.Errorf("Mirror must not be empty")
	}
	if s.UbuntuVersion == "" {
		return fmt.Errorf("UbuntuVersion must not be empty")
	}
	if s.Hostname == "" || strings.ContainsAny(s.Hostname, " \t\n/") {
		return fmt.Errorf("invalid Hostname %q", s.Hostname)
	}
	if s.User == "" || s.User == "root" || strings.ContainsAny(s.User, " \t\n:/") {
		return fmt.Errorf("invalid User %q", s.User)
	}
	if strings.ContainsAny(s.Password, "\r\n") {
		return fmt.Errorf("Password must not contain newlines")
	}
	if !filepath.IsAbs(s.MountPoint) || filepath.Clean(s.MountPoint) == "/" {
		return fmt.Errorf("MountPoint must be an absolute path other than /, got %q", s.MountPoint)
	}
	if s.KernelRootOffset < 1 {
		return fmt.Errorf("KernelRootOffset must be positive, got %d", s.KernelRootOffset)
	}
	if sz := s.InternalCompatibilityFlags.SizeGB; sz != 0 && sz < partitions.MinSizeGB {
		return fmt.Errorf("--size_gb must be at least %d, got %d", partitions.MinSizeGB, sz)
	}
	return s.Partitions.Validate()
}
