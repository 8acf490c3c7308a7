package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - REAPER_CONFIG_PATH: config file location (default: ~/.config/reaper.toml)
//   - REAPER_HOME: base directory for reaper data (default: ~/.local/share/reaper)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path":   configPath,
		"base_dir":      baseDir,
		"log_dir":       filepath.Join(baseDir, "log"),
		"graveyard_dir": filepath.Join(baseDir, "graveyard"),
	}, nil
}

func getConfigPath() (string, error) {
	if path := os.Getenv("REAPER_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "reaper.toml"), nil
}

// getBaseDir returns the base directory for reaper data, checking REAPER_HOME
// first, then falling back to the XDG default ~/.local/share/reaper.
func getBaseDir() (string, error) {
	if path := os.Getenv("REAPER_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "reaper"), nil
}
