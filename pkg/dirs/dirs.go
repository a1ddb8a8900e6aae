package dirs

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDataDir returns the path to the data directory, creating it if it
// doesn't exist. The cached sandbox runtime bundle lives here, so the path
// must be stable across runs.
func GetDataDir() (string, error) {
	var dataDir string

	configDir, err := os.UserConfigDir()
	if err == nil {
		dataDir = filepath.Join(configDir, "streamsift")
	} else {
		// Fallback to executable location
		exePath, err := os.Executable()
		if err == nil {
			dataDir = filepath.Join(filepath.Dir(exePath), "streamsift-data")
		}
	}

	if dataDir == "" {
		return "", fmt.Errorf("failed to find data directory path")
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}
