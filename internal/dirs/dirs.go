// Package dirs resolves XDG Base Directory paths for mat.
package dirs

import (
	"os"
	"path/filepath"
)

const appName = "mat"

// ConfigDir returns the mat configuration directory.
// Resolution order: XDG_CONFIG_HOME/mat > ~/.config/mat.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", appName)
	}
	return filepath.Join(home, ".config", appName)
}

// StateDir returns the mat state directory.
// Resolution order: MAT_STATE_DIR > XDG_STATE_HOME/mat > ~/.local/state/mat.
func StateDir() string {
	if dir := os.Getenv("MAT_STATE_DIR"); dir != "" {
		return dir
	}
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".local", "state", appName)
	}
	return filepath.Join(home, ".local", "state", appName)
}

// LogsDir returns the build log directory (StateDir/logs).
func LogsDir() string {
	return filepath.Join(StateDir(), "logs")
}

// LocksDir returns the directory holding record lock files (StateDir/locks).
func LocksDir() string {
	return filepath.Join(StateDir(), "locks")
}

// LocalDir returns the per-project override directory inside projectRoot.
func LocalDir(projectRoot string) string {
	return filepath.Join(projectRoot, ".mat")
}
