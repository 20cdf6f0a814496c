// Package measure reports how long each installation phase took.
package measure

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Interactively prints status to w and returns a function which overwrites
// the status line with the elapsed time once the phase is done.
func Interactively(w io.Writer, status string) (done func(fragment string)) {
	status = "[" + status + "]"
	fmt.Fprintln(w, status)
	start := time.Now()
	return func(fragment string) {
		took := time.Since(start)
		fmt.Fprintf(w, "[done] %s in %.2fs%s"+strings.Repeat(" ", len(status))+"\n",
			strings.Trim(status, "[]"),
			took.Seconds(),
			fragment)
	}
}
