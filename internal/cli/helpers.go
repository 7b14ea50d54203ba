package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/alexander-akhmetov/mat/internal/config"
	"github.com/alexander-akhmetov/mat/internal/dirs"
)

// resolveWorkingDir returns the provided dir or falls back to the current
// working directory.
func resolveWorkingDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	if env := os.Getenv("MAT_PROJECT_DIR"); env != "" {
		return env, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return wd, nil
}

// loadConfig loads the layered config for the project in dir.
func loadConfig(dir string) (*config.Config, error) {
	wd, err := resolveWorkingDir(dir)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadWithDirs(dirs.ConfigDir(), wd)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func formatElapsed(d time.Duration) string {
	total := int(d.Seconds())
	if total < 60 {
		return fmt.Sprintf("%ds", total)
	}
	m := total / 60
	s := total % 60
	if m < 60 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := m / 60
	m %= 60
	return fmt.Sprintf("%dh %dm", h, m)
}
