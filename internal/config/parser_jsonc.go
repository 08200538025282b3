package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// jsoncConfig mirrors config.jsonc. Every field is optional; present fields
// override the defaults. The jsonschema tags feed Schema.
type jsoncConfig struct {
	Riva      *jsoncRiva      `json:"riva,omitempty" jsonschema_description:"NVIDIA Riva speech recognition endpoints"`
	Audio     *jsoncAudio     `json:"audio,omitempty" jsonschema_description:"PulseAudio input selection and recording archive"`
	ASR       *jsoncASR       `json:"asr,omitempty" jsonschema_description:"Recognition hints sent with each stream"`
	Notes     *jsoncNotes     `json:"notes,omitempty" jsonschema_description:"Completion provider used to turn the transcript into notes"`
	Store     *jsoncStore     `json:"store,omitempty"`
	Indicator *jsoncIndicator `json:"indicator,omitempty" jsonschema_description:"Desktop notifications"`
	Output    *jsoncOutput    `json:"output,omitempty"`
	Server    *jsoncServer    `json:"server,omitempty" jsonschema_description:"HTTP and websocket surface of the owner process"`

	ClipboardCmd *string `json:"clipboard_cmd,omitempty" jsonschema_description:"Command that receives notes on stdin; empty uses the system clipboard"`
}

type jsoncRiva struct {
	GRPC       *string `json:"grpc,omitempty" jsonschema:"example=127.0.0.1:50051"`
	HTTP       *string `json:"http,omitempty" jsonschema:"example=127.0.0.1:9000"`
	HealthPath *string `json:"health_path,omitempty" jsonschema:"pattern=^/"`
}

type jsoncAudio struct {
	Input      *string `json:"input,omitempty"`
	Fallback   *string `json:"fallback,omitempty"`
	ArchiveDir *string `json:"archive_dir,omitempty" jsonschema_description:"Directory for one FLAC file per recording; empty disables"`
}

type jsoncASR struct {
	AutomaticPunctuation *bool   `json:"automatic_punctuation,omitempty"`
	LanguageCode         *string `json:"language_code,omitempty" jsonschema:"example=en-US"`
	Model                *string `json:"model,omitempty"`
}

type jsoncNotes struct {
	Provider    *string  `json:"provider,omitempty" jsonschema:"enum=openai,enum=ollama,enum=gemini,enum=bedrock"`
	APIURL      *string  `json:"api_url,omitempty" jsonschema:"format=uri"`
	Model       *string  `json:"model,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty" jsonschema:"minimum=1,maximum=500"`
	Temperature *float64 `json:"temperature,omitempty" jsonschema:"minimum=0,maximum=2"`
	TimeoutMS   *int     `json:"timeout_ms,omitempty" jsonschema:"minimum=1"`
	APIKeyEnv   *string  `json:"api_key_env,omitempty"`
	APIURLEnv   *string  `json:"api_url_env,omitempty"`
}

type jsoncStore struct {
	Path *string `json:"path,omitempty"`
}

type jsoncIndicator struct {
	Enable         *bool   `json:"enable,omitempty"`
	Backend        *string `json:"backend,omitempty" jsonschema:"enum=hypr,enum=desktop"`
	DesktopAppName *string `json:"desktop_app_name,omitempty"`
	ErrorTimeoutMS *int    `json:"error_timeout_ms,omitempty" jsonschema:"minimum=0"`
}

type jsoncOutput struct {
	CopyNotes *bool `json:"copy_notes,omitempty"`
}

type jsoncServer struct {
	Enable *bool   `json:"enable,omitempty"`
	Addr   *string `json:"addr,omitempty" jsonschema:"example=127.0.0.1:8765"`
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, locateJSONError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, locateJSONError(normalized, err)
	}

	cfg := base
	if err := payload.applyTo(&cfg); err != nil {
		return Config{}, nil, err
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func (p jsoncConfig) applyTo(cfg *Config) error {
	if r := p.Riva; r != nil {
		setString(&cfg.RivaGRPC, r.GRPC)
		setString(&cfg.RivaHTTP, r.HTTP)
		setString(&cfg.RivaHealthPath, r.HealthPath)
	}
	if a := p.Audio; a != nil {
		setString(&cfg.Audio.Input, a.Input)
		setString(&cfg.Audio.Fallback, a.Fallback)
		setString(&cfg.Audio.ArchiveDir, a.ArchiveDir)
	}
	if a := p.ASR; a != nil {
		setValue(&cfg.ASR.AutomaticPunctuation, a.AutomaticPunctuation)
		setString(&cfg.ASR.LanguageCode, a.LanguageCode)
		setString(&cfg.ASR.Model, a.Model)
	}
	if n := p.Notes; n != nil {
		setString(&cfg.Notes.Provider, n.Provider)
		cfg.Notes.Provider = strings.ToLower(cfg.Notes.Provider)
		setString(&cfg.Notes.APIURL, n.APIURL)
		setString(&cfg.Notes.Model, n.Model)
		setValue(&cfg.Notes.MaxTokens, n.MaxTokens)
		setValue(&cfg.Notes.Temperature, n.Temperature)
		setValue(&cfg.Notes.TimeoutMS, n.TimeoutMS)
		setString(&cfg.Notes.APIKeyEnv, n.APIKeyEnv)
		setString(&cfg.Notes.APIURLEnv, n.APIURLEnv)
	}
	if s := p.Store; s != nil {
		setString(&cfg.Store.Path, s.Path)
	}
	if i := p.Indicator; i != nil {
		setValue(&cfg.Indicator.Enable, i.Enable)
		setString(&cfg.Indicator.Backend, i.Backend)
		setString(&cfg.Indicator.DesktopAppName, i.DesktopAppName)
		setValue(&cfg.Indicator.ErrorTimeoutMS, i.ErrorTimeoutMS)
	}
	if p.ClipboardCmd != nil {
		argv, err := ParseCommand(*p.ClipboardCmd)
		if err != nil {
			return fmt.Errorf("invalid clipboard_cmd: %w", err)
		}
		cfg.Clipboard = CommandConfig{Raw: *p.ClipboardCmd, Argv: argv}
	}
	if o := p.Output; o != nil {
		setValue(&cfg.Output.CopyNotes, o.CopyNotes)
	}
	if s := p.Server; s != nil {
		setValue(&cfg.Server.Enable, s.Enable)
		setString(&cfg.Server.Addr, s.Addr)
	}
	return nil
}

// setString trims and assigns src when the field was present.
func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setValue[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// normalizeJSONC turns JSONC into strict JSON without moving any byte:
// comments and trailing commas are overwritten with spaces, so decoder
// offsets still point into the original text.
func normalizeJSONC(content string) (string, error) {
	src := []byte(content)
	out := bytes.Clone(src)
	lastComma := -1

	for i := 0; i < len(src); {
		switch c := src[i]; {
		case c == '"':
			i = skipJSONString(src, i)
			lastComma = -1
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			end := bytes.IndexAny(src[i:], "\r\n")
			if end < 0 {
				end = len(src) - i
			}
			blankOut(out[i : i+end])
			i += end
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := bytes.Index(src[i+2:], []byte("*/"))
			if end < 0 {
				return "", errors.New("unterminated block comment in JSONC")
			}
			end += i + 4
			blankOut(out[i:end])
			i = end
		case c == ',':
			lastComma = i
			i++
		case c == '}' || c == ']':
			if lastComma >= 0 {
				out[lastComma] = ' '
			}
			lastComma = -1
			i++
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		default:
			lastComma = -1
			i++
		}
	}
	return string(out), nil
}

// skipJSONString returns the index just past the string literal starting at start.
func skipJSONString(src []byte, start int) int {
	for i := start + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case '"':
			return i + 1
		}
	}
	return len(src)
}

// blankOut replaces everything but line breaks with spaces.
func blankOut(b []byte) {
	for i, c := range b {
		if c != '\n' && c != '\r' {
			b[i] = ' '
		}
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	switch err := decoder.Decode(&extra); {
	case errors.Is(err, io.EOF):
		return nil
	case err == nil:
		return errors.New("multiple JSON values are not allowed")
	default:
		return err
	}
}

// locateJSONError prefixes decoder errors that carry an offset with line and column.
func locateJSONError(content string, err error) error {
	var offset int64
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	default:
		return err
	}
	line, col := offsetToLineCol(content, offset)
	return fmt.Errorf("line %d column %d: %w", line, col, err)
}

// offsetToLineCol maps a decoder offset, which points just past the
// offending byte, to a 1-based line and column.
func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}
	prefix := content[:min(int(offset), len(content))]
	if prefix != "" {
		prefix = prefix[:len(prefix)-1]
	}
	line := strings.Count(prefix, "\n") + 1
	col := len(prefix) - strings.LastIndexByte(prefix, '\n')
	return line, col
}
