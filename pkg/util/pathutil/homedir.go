package pathutil

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

// HomeDir obtains the path to the user's home directory.
// It falls back to $HOME when the directory cannot be detected.
func HomeDir() string {
	home, err := homedir.Dir()
	if err != nil {
		log.WithError(err).Debug("Failed to detect home dir")
		return os.Getenv("HOME")
	}
	return home
}

// Expand expands a leading ~ in path to the user's home directory.
func Expand(path string) string {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return path
	}
	return expanded
}

// DataDir returns the per-user scopelink directory, ~/.scopelink.
func DataDir() string {
	return filepath.Join(HomeDir(), ".scopelink")
}
