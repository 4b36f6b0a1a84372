package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// EnvConfigPath names a config file to use when --config is not given.
	EnvConfigPath = "MSCONVERT_CONFIG"
	projectConfig = "msconvert.toml"
)

// DefaultConfigPath returns $XDG_CONFIG_HOME/msconvert/config.toml, falling
// back to ~/.config when XDG_CONFIG_HOME is unset.
func DefaultConfigPath() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return ExpandPath(filepath.Join(xdg, "msconvert", "config.toml"))
	}
	return ExpandPath("~/.config/msconvert/config.toml")
}

// ExpandPath resolves a leading ~ to the home directory and returns a clean
// absolute path. The empty string is returned unchanged.
func ExpandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") || strings.HasPrefix(value, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		value = filepath.Join(home, value[1:])
	}
	abs, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", value, err)
	}
	return abs, nil
}

// resolveConfigPath picks the file Load reads. An explicit path wins, then
// $MSCONVERT_CONFIG, then the user config, then msconvert.toml in the working
// directory. When nothing exists the user config path is reported as absent.
func resolveConfigPath(explicit string) (string, bool, error) {
	for _, candidate := range []string{explicit, os.Getenv(EnvConfigPath)} {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		path, err := ExpandPath(strings.TrimSpace(candidate))
		if err != nil {
			return "", false, err
		}
		exists, err := fileExists(path)
		return path, exists, err
	}

	userPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := ExpandPath(projectConfig)
	if err != nil {
		return "", false, err
	}
	for _, path := range []string{userPath, projectPath} {
		if exists, err := fileExists(path); err != nil {
			return "", false, err
		} else if exists {
			return path, true, nil
		}
	}
	return userPath, false, nil
}

func fileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat config: %w", err)
	case info.IsDir():
		return false, fmt.Errorf("config path %s is a directory", path)
	}
	return true, nil
}
