// Package logging configures the standard logger.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

type timingLogWriter struct {
	t0  time.Time
	out io.Writer
}

var _ io.Writer = timingLogWriter{}

func (w timingLogWriter) Write(b []byte) (int, error) {
	return fmt.Fprintf(w.out, "%6.2fs %s", time.Since(w.t0).Seconds(), string(b))
}

// SetUp prefixes every log line with the seconds passed since t0, which is
// more useful than the wall clock when looking at a long installation.
func SetUp(t0 time.Time) {
	SetUpWriter(t0, os.Stderr)
}

func SetUpWriter(t0 time.Time, out io.Writer) {
	log.SetFlags(0)
	log.SetOutput(timingLogWriter{t0: t0, out: out})
}
