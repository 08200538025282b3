package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaultsToHelp(t *testing.T) {
	parsed, err := Parse(nil)
	require.NoError(t, err)
	require.True(t, parsed.ShowHelp)
	require.Equal(t, CommandHelp, parsed.Command)
}

func TestParseCommandWithConfig(t *testing.T) {
	parsed, err := Parse([]string{"--config", "/tmp/scribe.jsonc", "doctor"})
	require.NoError(t, err)
	require.Equal(t, CommandDoctor, parsed.Command)
	require.Equal(t, "/tmp/scribe.jsonc", parsed.ConfigPath)
	require.False(t, parsed.ShowHelp)
}

func TestParseArgMatrix(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantErr  string
		wantCmd  Command
		wantHelp bool
		wantPath string
	}{
		{
			name:     "help short flag",
			args:     []string{"-h"},
			wantCmd:  CommandHelp,
			wantHelp: true,
		},
		{
			name:     "help long flag",
			args:     []string{"--help"},
			wantCmd:  CommandHelp,
			wantHelp: true,
		},
		{
			name:     "version flag",
			args:     []string{"--version"},
			wantCmd:  CommandVersion,
			wantHelp: false,
		},
		{
			name:    "config after command",
			args:    []string{"status", "--config", "/tmp/cfg"},
			wantErr: "unexpected arguments after command",
		},
		{
			name:    "missing config path",
			args:    []string{"--config"},
			wantErr: "requires a path",
		},
		{
			name:    "unknown flag",
			args:    []string{"--bogus"},
			wantErr: "unknown flag",
		},
		{
			name:    "unknown command",
			args:    []string{"bogus"},
			wantErr: "unknown command",
		},
		{
			name:    "extra args after command",
			args:    []string{"doctor", "extra"},
			wantErr: "unexpected arguments",
		},
		{
			name:    "removed cancel command",
			args:    []string{"cancel"},
			wantErr: "unknown command",
		},
		{
			name:     "valid serve command",
			args:     []string{"serve"},
			wantCmd:  CommandServe,
			wantHelp: false,
		},
		{
			name:     "valid transcript command",
			args:     []string{"transcript"},
			wantCmd:  CommandTranscript,
			wantHelp: false,
		},
		{
			name:    "missing out path",
			args:    []string{"--out"},
			wantErr: "--out requires a path",
		},
		{
			name:    "out with wrong command",
			args:    []string{"--out", "/tmp/notes.md", "status"},
			wantErr: "only valid with the notes and schema commands",
		},
		{
			name:     "valid tui command",
			args:     []string{"tui"},
			wantCmd:  CommandTUI,
			wantHelp: false,
		},
		{
			name:     "valid mcp command",
			args:     []string{"mcp"},
			wantCmd:  CommandMCP,
			wantHelp: false,
		},
		{
			name:     "valid stop with config",
			args:     []string{"--config", "/tmp/cfg", "stop"},
			wantCmd:  CommandStop,
			wantHelp: false,
			wantPath: "/tmp/cfg",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := Parse(tc.args)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.wantCmd, parsed.Command)
			require.Equal(t, tc.wantHelp, parsed.ShowHelp)
			require.Equal(t, tc.wantPath, parsed.ConfigPath)
		})
	}
}

func TestParseNotesWithOutPath(t *testing.T) {
	parsed, err := Parse([]string{"--out", "/tmp/notes.md", "notes"})
	require.NoError(t, err)
	require.Equal(t, CommandNotes, parsed.Command)
	require.Equal(t, "/tmp/notes.md", parsed.OutPath)
}

func TestParseSchemaWithOutPath(t *testing.T) {
	parsed, err := Parse([]string{"--out", "/tmp/schema.json", "schema"})
	require.NoError(t, err)
	require.Equal(t, CommandSchema, parsed.Command)
	require.Equal(t, "/tmp/schema.json", parsed.OutPath)
}

func TestHelpTextIncludesCoreCommands(t *testing.T) {
	text := HelpText("scribe")
	for _, cmd := range []string{"toggle", "serve", "stop", "status", "notes", "transcript", "reset", "doctor", "tui", "mcp", "schema"} {
		require.Contains(t, text, cmd)
	}
	require.NotContains(t, text, "cancel")
	require.Contains(t, text, "--config PATH")
	require.Contains(t, text, "scribe/config.jsonc")
}
