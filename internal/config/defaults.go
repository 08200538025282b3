package config

const defaultClipboardCmd = "wl-copy --trim-newline"

// MaxNotesTokens caps notes.max_tokens.
const MaxNotesTokens = 500

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		RivaGRPC:       "127.0.0.1:50051",
		RivaHTTP:       "127.0.0.1:9000",
		RivaHealthPath: "/v1/health/ready",
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		ASR: ASRConfig{
			AutomaticPunctuation: true,
			LanguageCode:         "en-US",
		},
		Notes: NotesConfig{
			Provider:    ProviderOpenAI,
			Model:       "gpt-4",
			MaxTokens:   MaxNotesTokens,
			Temperature: 0.7,
			TimeoutMS:   60000,
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        "hypr",
			DesktopAppName: "scribe",
			ErrorTimeoutMS: 1600,
		},
		Clipboard: CommandConfig{Raw: defaultClipboardCmd, Argv: splitCommand(defaultClipboardCmd)},
		Output:    OutputConfig{CopyNotes: true},
		Server: ServerConfig{
			Addr: "127.0.0.1:8765",
		},
	}
}

// providerDefaults holds the per-provider fallbacks for NotesConfig.
var providerDefaults = map[string]struct {
	apiURL string
	keyEnv string
	urlEnv string
}{
	ProviderOpenAI:  {apiURL: "https://api.openai.com/v1", keyEnv: "OPENAI_API_KEY", urlEnv: "OPENAI_API_URL"},
	ProviderOllama:  {apiURL: "http://localhost:11434", urlEnv: "OLLAMA_BASE_URL"},
	ProviderGemini:  {keyEnv: "GEMINI_API_KEY"},
	ProviderBedrock: {},
}

// KeyEnv names the environment variable holding the API key, or "" when the
// provider authenticates some other way.
func (n NotesConfig) KeyEnv() string {
	if n.APIKeyEnv != "" {
		return n.APIKeyEnv
	}
	return providerDefaults[n.Provider].keyEnv
}

// URLEnv names the environment variable that overrides APIURL, if any.
func (n NotesConfig) URLEnv() string {
	if n.APIURLEnv != "" {
		return n.APIURLEnv
	}
	return providerDefaults[n.Provider].urlEnv
}
