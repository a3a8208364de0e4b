package utils

import (
	"os"
	"path/filepath"
)

const appDirName = "Aviator"

// GetDataDir returns the per-user directory holding the registry file and logs.
// LOCALAPPDATA wins on Windows so the file stays out of the roaming profile.
func GetDataDir() string {
	if local := os.Getenv("LOCALAPPDATA"); local != "" {
		return filepath.Join(local, appDirName)
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return "." // fallback
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, appDirName)
}

// GetRegistryPath returns the default location of the registry file.
func GetRegistryPath() string {
	return filepath.Join(GetDataDir(), "config.json")
}

// GetLogPath returns the default log file used while the console is open.
func GetLogPath() string {
	return filepath.Join(GetDataDir(), "logs", "aviator.log")
}
