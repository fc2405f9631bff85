package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultConfigDirName = "tokenctl"
	defaultConfigFile    = "config.yaml"
	defaultProfilesDir   = "profiles"
)

func DefaultConfigPath() string {
	if env := os.Getenv("TOKENCTL_CONFIG"); env != "" {
		return env
	}
	return filepath.Join(configDir(), defaultConfigFile)
}

func DefaultProfilesDir() string {
	return filepath.Join(configDir(), defaultProfilesDir)
}

func configDir() string {
	base, err := os.UserConfigDir()
	if err == nil {
		return filepath.Join(base, defaultConfigDirName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+defaultConfigDirName)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
