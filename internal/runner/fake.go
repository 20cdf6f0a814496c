package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Response is what Fake returns for one invocation of a command.
type Response struct {
	Out string
	Err error
}

// Fake records commands instead of running them. It is used in tests.
type Fake struct {
	// Responses maps a command line (name and arguments joined by spaces) to
	// the responses of successive invocations. The last response is repeated
	// once the others are used up. Commands without an entry succeed with
	// empty output.
	Responses map[string][]Response

	// Hook, if set, is called for every command before its response is
	// looked up, e.g. to create files a real command would create.
	Hook func(cmdline string)

	mu       sync.Mutex
	commands []string
}

var _ Runner = (*Fake)(nil)

func (f *Fake) respond(name string, args []string) (string, error) {
	cmdline := strings.Join(append([]string{name}, args...), " ")
	f.mu.Lock()
	f.commands = append(f.commands, cmdline)
	resps := f.Responses[cmdline]
	var resp Response
	if len(resps) > 0 {
		resp = resps[0]
		if len(resps) > 1 {
			f.Responses[cmdline] = resps[1:]
		}
	}
	hook := f.Hook
	f.mu.Unlock()
	if hook != nil {
		hook(cmdline)
	}
	if resp.Err != nil {
		return "", fmt.Errorf("%s failed: %w", cmdline, resp.Err)
	}
	return resp.Out, nil
}

func (f *Fake) Run(ctx context.Context, name string, args ...string) (string, error) {
	return f.respond(name, args)
}

func (f *Fake) Stream(ctx context.Context, name string, args ...string) error {
	_, err := f.respond(name, args)
	return err
}

// Commands returns the command lines run so far.
func (f *Fake) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

// Ran reports whether a command line starting with prefix was run.
func (f *Fake) Ran(prefix string) bool {
	for _, c := range f.Commands() {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}
