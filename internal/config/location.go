package config

import (
	"os"
	"path/filepath"
)

// ConfigEnvVar overrides the config file location.
const ConfigEnvVar = "NPC_CONFIG"

// GetConfigPath returns the configuration file path. NPC_CONFIG wins when
// set, otherwise the file is ~/.npcplan/config.
func GetConfigPath() (string, error) {
	if configPath := os.Getenv(ConfigEnvVar); configPath != "" {
		return configPath, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, ".npcplan", "config"), nil
}
