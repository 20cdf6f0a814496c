package installer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

const provisionScript = "install-ubuntu.sh"

const provisionTmplContents = `#!/bin/bash
set -e
export DEBIAN_FRONTEND=noninteractive
export LC_ALL=C

# Keep packages from starting services inside the chroot.
printf '#!/bin/sh\nexit 101\n' > /usr/sbin/policy-rc.d
chmod 755 /usr/sbin/policy-rc.d

apt-get -y update
apt-get -y dist-upgrade
apt-get -y install{{ range .Packages }} {{ quote . }}{{ end }}

useradd -m -s /bin/bash {{ quote .User }}
echo {{ quote (printf "%s:%s" .User .Password) }} | chpasswd
usermod -a -G adm,sudo {{ quote .User }}

rm /usr/sbin/policy-rc.d
systemctl enable ssh || true
apt-get clean
`

// quote quotes s for the shell.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

var provisionTmpl = template.Must(template.New("").Funcs(template.FuncMap{
	"quote": quote,
}).Parse(provisionTmplContents))

type provisionParams struct {
	Packages []string
	User     string
	Password string
}

// ProvisionScript returns the script run inside the new root file system.
func ProvisionScript(packages []string, user, password string) (string, error) {
	params := provisionParams{
		User:     user,
		Password: password,
	}
	ssh := false
	for _, p := range packages {
		if p == "openssh-server" {
			ssh = true
		}
		params.Packages = append(params.Packages, p)
	}
	if !ssh {
		params.Packages = append(params.Packages, "openssh-server")
	}
	var buf bytes.Buffer
	if err := provisionTmpl.Execute(&buf, params); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// provisionChroot installs packages and creates the user account inside
// the new root file system.
func (in *Installer) provisionChroot(ctx context.Context, mnt, password string) error {
	if err := mkdirAll(filepath.Join(mnt, "usr", "bin")); err != nil {
		return err
	}
	if _, err := in.Runner.Run(ctx, "cp", "-p", in.CgptBinary, filepath.Join(mnt, "usr", "bin", "cgpt")); err != nil {
		return fmt.Errorf("copying cgpt: %w", err)
	}

	script, err := ProvisionScript(in.Config.Packages, in.Config.User, password)
	if err != nil {
		return err
	}
	if err := writeFile(mnt, provisionScript, script, 0755); err != nil {
		return err
	}
	defer os.Remove(filepath.Join(mnt, provisionScript))
	if err := in.Runner.Stream(ctx, "chroot", mnt, "/bin/bash", "-c", "/"+provisionScript); err != nil {
		return err
	}
	return os.Remove(filepath.Join(mnt, provisionScript))
}
