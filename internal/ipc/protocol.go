package ipc

// Commands understood by the owner process.
const (
	CommandToggle     = "toggle"
	CommandStop       = "stop"
	CommandStatus     = "status"
	CommandNotes      = "notes"
	CommandTranscript = "transcript"
	CommandReset      = "reset"
)

type Request struct {
	Command string `json:"command"`
}

type Response struct {
	OK         bool   `json:"ok"`
	State      string `json:"state,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	NotesState string `json:"notes_state,omitempty"`
	Notes      string `json:"notes,omitempty"`
}
