// Package retry runs operations which can fail transiently because other
// processes on the host race with us (udev re-reading partition tables,
// daemons holding the stateful partition open).
package retry

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Policy describes how often and how fast an operation is retried.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// Default is used for re-reading partition tables and unmounting the
// stateful partition.
var Default = Policy{
	Attempts: 5,
	Delay:    1 * time.Second,
}

// Do calls op until it succeeds, the attempts are exhausted or ctx is done.
// The error of the last attempt is returned.
func (p Policy) Do(ctx context.Context, what string, op func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		log.Printf("%s failed (attempt %d/%d): %v", what, attempt, attempts, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay):
		}
	}
	return fmt.Errorf("%s: giving up after %d attempts: %w", what, attempts, err)
}
