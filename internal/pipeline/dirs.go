package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// CheckDirectory verifies that dir exists, is a directory and is fully
// accessible to the current user, and returns its absolute path with
// symlinks resolved. Both the cache and temp directories go through this
// before any worker starts.
func CheckDirectory(dir string) (string, error) {
	stat, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("unable to access %s: %w", dir, err)
	}
	if !stat.IsDir() {
		return "", fmt.Errorf("%s is not a directory", dir)
	}
	if err := unix.Access(dir, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return "", fmt.Errorf("insufficient permissions for %s: %w", dir, err)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("unable to resolve %s: %w", dir, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("unable to resolve %s: %w", dir, err)
	}
	return resolved, nil
}
