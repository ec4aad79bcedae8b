package credentials

import (
	"fmt"
	"os"
	"path/filepath"
)

const appDirName = "reserve-client"

// DefaultCredsPath returns $XDG_CONFIG_HOME/reserve-client/credentials.json,
// falling back to ~/.config when XDG_CONFIG_HOME is unset.
func DefaultCredsPath() string {
	xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfigHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		xdgConfigHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(xdgConfigHome, appDirName, "credentials.json")
}

func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
