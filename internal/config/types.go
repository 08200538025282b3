// Package config resolves, parses, validates, and defaults scribe configuration.
package config

// Completion providers accepted by notes.provider.
const (
	ProviderOpenAI  = "openai"
	ProviderOllama  = "ollama"
	ProviderGemini  = "gemini"
	ProviderBedrock = "bedrock"
)

// Config is the fully materialized runtime configuration used by scribe.
type Config struct {
	RivaGRPC       string
	RivaHTTP       string
	RivaHealthPath string
	Audio          AudioConfig
	ASR            ASRConfig
	Notes          NotesConfig
	Store          StoreConfig
	Indicator      IndicatorConfig
	Clipboard      CommandConfig
	Output         OutputConfig
	Server         ServerConfig
}

// AudioConfig controls input-source selection and the optional FLAC archive
// of each recording. An empty ArchiveDir disables archiving.
type AudioConfig struct {
	Input      string
	Fallback   string
	ArchiveDir string
}

// ASRConfig controls request-level hints passed to Riva.
type ASRConfig struct {
	AutomaticPunctuation bool
	LanguageCode         string
	Model                string
}

// NotesConfig controls the completion request used for study notes.
//
// APIURL, APIKeyEnv and APIURLEnv may be left empty; each provider then
// supplies its own default (see KeyEnv and URLEnv).
type NotesConfig struct {
	Provider    string
	APIURL      string
	Model       string
	MaxTokens   int
	Temperature float64
	TimeoutMS   int
	APIKeyEnv   string
	APIURLEnv   string
}

// StoreConfig locates the transcript store. An empty Path means the XDG state default.
type StoreConfig struct {
	Path string
}

// IndicatorConfig controls desktop notification behavior.
type IndicatorConfig struct {
	Enable         bool
	Backend        string
	DesktopAppName string
	ErrorTimeoutMS int
}

// CommandConfig stores a raw command string and its parsed argv form. An
// empty Argv selects the system clipboard library instead of a command.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// OutputConfig controls what happens to generated notes.
type OutputConfig struct {
	CopyNotes bool
}

// ServerConfig controls the optional HTTP/websocket surface of the owner process.
type ServerConfig struct {
	Enable bool
	Addr   string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
