package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// ErrMissingAPIKey indicates the completion API key environment variable is unset.
var ErrMissingAPIKey = errors.New("completion api key is not set")

// Credentials are the resolved completion provider, endpoint and key. An empty
// APIURL leaves the endpoint to the provider SDK.
type Credentials struct {
	Provider string
	APIKey   string
	APIURL   string
}

// DotEnvPaths lists the .env files consulted for credentials, in precedence order.
func DotEnvPaths() []string {
	paths := []string{".env"}
	if dir, err := configDir(); err == nil {
		paths = append(paths, filepath.Join(dir, ".env"))
	}
	return paths
}

// LoadDotEnv loads every existing file in paths into the process environment.
// Variables already set are never overridden, so earlier files win over later
// ones and the real environment wins over both.
func LoadDotEnv(paths ...string) ([]string, error) {
	loaded := make([]string, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return loaded, fmt.Errorf("stat env file %q: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return loaded, fmt.Errorf("load env file %q: %w", path, err)
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}

// ResolveCredentials reads the API key and URL override named by cfg.
func ResolveCredentials(cfg NotesConfig) (Credentials, error) {
	provider := strings.TrimSpace(cfg.Provider)
	if provider == "" {
		provider = ProviderOpenAI
	}
	cfg.Provider = provider
	if _, ok := providerDefaults[provider]; !ok {
		return Credentials{}, fmt.Errorf("unknown completion provider %q", provider)
	}

	var key string
	if keyEnv := cfg.KeyEnv(); keyEnv != "" {
		key = strings.TrimSpace(os.Getenv(keyEnv))
		if key == "" {
			return Credentials{}, fmt.Errorf("%w: set %s", ErrMissingAPIKey, keyEnv)
		}
	}

	apiURL := strings.TrimSpace(cfg.APIURL)
	if urlEnv := cfg.URLEnv(); urlEnv != "" {
		if override := strings.TrimSpace(os.Getenv(urlEnv)); override != "" {
			apiURL = override
		}
	}
	if apiURL == "" {
		apiURL = providerDefaults[provider].apiURL
	}
	if apiURL != "" {
		if err := validateAPIURL(apiURL); err != nil {
			return Credentials{}, fmt.Errorf("completion api url %w", err)
		}
	}

	return Credentials{Provider: provider, APIKey: key, APIURL: apiURL}, nil
}
