package measure

import (
	"bytes"
	"strings"
	"testing"
)

func TestInteractively(t *testing.T) {
	var buf bytes.Buffer
	done := Interactively(&buf, "preflight")
	done(" (developer mode)")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if got, want := len(lines), 2; got != want {
		t.Fatalf("got %d lines, want %d: %q", got, want, buf.String())
	}
	if got, want := lines[0], "[preflight]"; got != want {
		t.Errorf("status line = %q, want %q", got, want)
	}
	if !strings.HasPrefix(lines[1], "[done] preflight in ") || !strings.Contains(lines[1], "s (developer mode)") {
		t.Errorf("unexpected done line %q", lines[1])
	}
}
