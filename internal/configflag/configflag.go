// Package configflag provides the --config flag shared by all commands.
package configflag

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
)

var configPath string

// DefaultPath is $CHRUBUNTU_CONFIG or ~/.config/chrubuntu/config.json.
func DefaultPath() string {
	if def := os.Getenv("CHRUBUNTU_CONFIG"); def != "" {
		return def
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = fmt.Sprintf("os.UserConfigDir failed: %v", err)
	}
	return filepath.Join(configDir, "chrubuntu", "config.json")
}

func RegisterPflags(fs *pflag.FlagSet) {
	fs.StringVarP(&configPath,
		"config",
		"c",
		DefaultPath(),
		`path to the chrubuntu config.json (a missing file means defaults)`)
}

func Path() string {
	return configPath
}
