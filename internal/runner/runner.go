// Package runner executes the external tools (cgpt, parted, mkfs.ext4,
// vbutil_kernel, …) the installer drives.
package runner

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
)

// Runner runs external commands.
type Runner interface {
	// Run runs name and returns its standard output with trailing newlines
	// removed. Errors include the standard error output of the command.
	Run(ctx context.Context, name string, args ...string) (string, error)

	// Stream runs name with its output connected to the terminal, for
	// long-running commands like apt-get whose progress the user should see.
	Stream(ctx context.Context, name string, args ...string) error
}

// Exec runs commands on the host.
type Exec struct {
	Stdout io.Writer
	Stderr io.Writer

	// DryRun logs commands which modify the system instead of running
	// them. Queries (rootdev, crossystem without assignments) still run.
	DryRun bool
}

// query reports whether a command only reads system state.
func query(name string, args []string) bool {
	switch name {
	case "rootdev":
		return true
	case "crossystem":
		for _, a := range args {
			if strings.Contains(a, "=") {
				return false
			}
		}
		return true
	}
	return false
}

var _ Runner = (*Exec)(nil)

func (e *Exec) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if e.DryRun && !query(name, args) {
		log.Printf("dry run: %s", cmd)
		return "", nil
	}
	output, err := cmd.Output()
	if err != nil {
		if err, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("%s failed: %w: %s", cmd, err, strings.TrimSpace(string(err.Stderr)))
		}
		return "", fmt.Errorf("%s failed: %w", cmd, err)
	}
	return strings.TrimRight(string(output), "\n"), nil
}

func (e *Exec) Stream(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if e.DryRun {
		log.Printf("dry run: %s", cmd)
		return nil
	}
	cmd.Stdout = e.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = e.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w", cmd, err)
	}
	return nil
}

// BestEffort runs a command whose failure does not stop the installation,
// e.g. stopping powerd or disabling screen blanking. Failures are logged.
func BestEffort(ctx context.Context, r Runner, name string, args ...string) {
	if _, err := r.Run(ctx, name, args...); err != nil {
		log.Printf("ignoring: %v", err)
	}
}
