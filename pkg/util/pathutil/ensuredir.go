package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDir expands path (including a leading ~), creates it if needed and
// returns its absolute form.
func EnsureDir(path string) (string, error) {
	absPath, err := filepath.Abs(Expand(path))
	if err != nil {
		return "", fmt.Errorf("failed to expand path: %s", err)
	}

	info, err := os.Stat(absPath)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(absPath, 0750); err != nil {
			return "", fmt.Errorf("failed to create dir: %s", err)
		}
	case err != nil:
		return "", fmt.Errorf("failed to stat dir: %s", err)
	case !info.IsDir():
		return "", fmt.Errorf("%s is not a directory", absPath)
	}

	return absPath, nil
}
