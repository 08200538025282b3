package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandToggle     Command = "toggle"
	CommandServe      Command = "serve"
	CommandStop       Command = "stop"
	CommandStatus     Command = "status"
	CommandNotes      Command = "notes"
	CommandTranscript Command = "transcript"
	CommandReset      Command = "reset"
	CommandDevices    Command = "devices"
	CommandDoctor     Command = "doctor"
	CommandTUI        Command = "tui"
	CommandMCP        Command = "mcp"
	CommandSchema     Command = "schema"
	CommandVersion    Command = "version"
	CommandHelp       Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandToggle:     {},
	CommandServe:      {},
	CommandStop:       {},
	CommandStatus:     {},
	CommandNotes:      {},
	CommandTranscript: {},
	CommandReset:      {},
	CommandDevices:    {},
	CommandDoctor:     {},
	CommandTUI:        {},
	CommandMCP:        {},
	CommandSchema:     {},
	CommandVersion:    {},
	CommandHelp:       {},
}

type Parsed struct {
	Command    Command
	ConfigPath string
	OutPath    string
	ShowHelp   bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		case "--out":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--out requires a path")
			}
			parsed.OutPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			if i != len(args)-1 {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}
		}
	}

	if parsed.OutPath != "" && parsed.Command != CommandNotes && parsed.Command != CommandSchema {
		return Parsed{}, errors.New("--out is only valid with the notes and schema commands")
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [--out PATH] <command>

Commands:
  toggle      Start recording, or stop when already recording
  serve       Run the owner process idle, controlled over IPC and HTTP
  stop        Stop active recording
  status      Print recording and notes state
  notes       Generate lecture notes from the transcript
  transcript  Print the transcript
  reset       Clear the transcript
  devices     List available input devices
  doctor      Run configuration and environment checks
  tui         Run the owner process with an interactive terminal view
  mcp         Serve the session commands as MCP tools on stdio
  schema      Print the JSON Schema of the config file
  version     Print version information
  help        Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/scribe/config.jsonc)
  --out PATH      Also write the output to PATH (notes, schema)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
