package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ResolvePath picks the config file: the --config flag, then $SCRIBE_CONFIG,
// then config.jsonc in the XDG config directory.
func ResolvePath(explicit string) (string, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit, nil
	}
	if fromEnv := strings.TrimSpace(os.Getenv("SCRIBE_CONFIG")); fromEnv != "" {
		return fromEnv, nil
	}

	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.jsonc"), nil
}

// configDir returns $XDG_CONFIG_HOME/scribe with a ~/.config fallback.
func configDir() (string, error) {
	base := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.New("unable to resolve user home for config fallback")
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "scribe"), nil
}
