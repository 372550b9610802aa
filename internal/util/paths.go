package util

import (
	"os"
	"path/filepath"
)

// HomeDir returns the user's home directory
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return home
}

// DataDir returns the decsync data directory, $XDG_DATA_HOME/decsync or
// ~/.local/share/decsync
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "decsync")
	}
	return filepath.Join(HomeDir(), ".local", "share", "decsync")
}

// ConfigDir returns the decsync config directory, $XDG_CONFIG_HOME/decsync
// or ~/.config/decsync
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "decsync")
	}
	return filepath.Join(HomeDir(), ".config", "decsync")
}

// DefaultDecsyncDir returns the default DecSync directory, $DECSYNC_DIR when
// set and the data directory otherwise
func DefaultDecsyncDir() string {
	if dir := os.Getenv("DECSYNC_DIR"); dir != "" {
		return dir
	}
	return DataDir()
}
