//go:build !unix

package arch

import (
	"fmt"
	"runtime"
)

func Host() (Uname, error) {
	return Uname{}, fmt.Errorf("chrubuntu is missing code for querying uname on %s", runtime.GOOS)
}
