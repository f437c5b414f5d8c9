package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/notesync/pkg/adapters/fs"
)

// ErrNoVault is returned by FindRoot when no ancestor is a vault.
var ErrNoVault = errors.New("no notesync vault found")

// FindRoot walks up from startDir to the nearest vault: a directory that
// holds the system dir (a directory) or a notesync.yaml file (a regular file).
func FindRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for dir := abs; ; {
		if isVault(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w from %s", ErrNoVault, startDir)
		}
		dir = parent
	}
}

func isVault(dir string) bool {
	if info, err := os.Stat(filepath.Join(dir, fs.DefaultSystemDir)); err == nil && info.IsDir() {
		return true
	}
	info, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil && info.Mode().IsRegular()
}
