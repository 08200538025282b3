package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	var warnings []Warning

	for _, check := range []struct {
		ok  bool
		msg string
	}{
		{strings.TrimSpace(cfg.RivaGRPC) != "", "riva.grpc must not be empty"},
		{strings.TrimSpace(cfg.RivaHTTP) != "", "riva.http must not be empty"},
		{strings.TrimSpace(cfg.RivaHealthPath) != "", "riva.health_path must not be empty"},
		{strings.HasPrefix(strings.TrimSpace(cfg.RivaHealthPath), "/"), "riva.health_path must start with '/'"},
		{strings.TrimSpace(cfg.ASR.LanguageCode) != "", "asr.language_code must not be empty"},
	} {
		if !check.ok {
			return nil, errors.New(check.msg)
		}
	}

	noteWarnings, err := validateNotes(cfg.Notes)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, noteWarnings...)

	if err := validateIndicator(cfg.Indicator); err != nil {
		return nil, err
	}

	if cfg.Output.CopyNotes && len(cfg.Clipboard.Argv) == 0 {
		warnings = append(warnings, Warning{Message: "clipboard_cmd is empty; notes are copied with the system clipboard library"})
	}
	if cfg.Server.Enable && strings.TrimSpace(cfg.Server.Addr) == "" {
		return nil, fmt.Errorf("server.addr must not be empty when server.enable=true")
	}

	return warnings, nil
}

func validateNotes(n NotesConfig) ([]Warning, error) {
	if _, ok := providerDefaults[n.Provider]; !ok {
		return nil, fmt.Errorf("notes.provider must be one of: %s, %s, %s, %s",
			ProviderOpenAI, ProviderOllama, ProviderGemini, ProviderBedrock)
	}
	if strings.TrimSpace(n.APIURL) != "" {
		if err := validateAPIURL(n.APIURL); err != nil {
			return nil, fmt.Errorf("notes.api_url %w", err)
		}
	}
	switch {
	case strings.TrimSpace(n.Model) == "":
		return nil, fmt.Errorf("notes.model must not be empty")
	case n.MaxTokens <= 0 || n.MaxTokens > MaxNotesTokens:
		return nil, fmt.Errorf("notes.max_tokens must be between 1 and %d", MaxNotesTokens)
	case n.Temperature < 0 || n.Temperature > 2:
		return nil, fmt.Errorf("notes.temperature must be between 0 and 2")
	case n.TimeoutMS <= 0:
		return nil, fmt.Errorf("notes.timeout_ms must be > 0")
	}

	if n.Provider != ProviderOpenAI && n.Model == Default().Notes.Model {
		return []Warning{{Message: fmt.Sprintf("notes.model %q is an OpenAI model; set notes.model for provider %s", n.Model, n.Provider)}}, nil
	}
	return nil, nil
}

func validateIndicator(ind IndicatorConfig) error {
	backend := strings.ToLower(strings.TrimSpace(ind.Backend))
	switch backend {
	case "":
		return fmt.Errorf("indicator.backend must not be empty")
	case "hypr":
	case "desktop":
		if strings.TrimSpace(ind.DesktopAppName) == "" {
			return fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
		}
	default:
		return fmt.Errorf("indicator.backend must be one of: hypr, desktop")
	}
	if ind.ErrorTimeoutMS < 0 {
		return fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}
	return nil
}

func validateAPIURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("must not be empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("is not a valid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("must use http or https")
	}
	if parsed.Host == "" {
		return fmt.Errorf("must include a host")
	}
	return nil
}
