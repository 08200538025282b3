// Package mcpserver exposes the session owner's commands as MCP tools over stdio.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rbright/scribe/internal/ipc"
)

// Tool binds one MCP tool to an owner command.
type Tool struct {
	Name        string
	Command     string
	Description string
}

// Tools lists every tool the server registers.
var Tools = []Tool{
	{Name: "scribe_toggle", Command: ipc.CommandToggle, Description: "Start recording the lecture, or stop it when already recording."},
	{Name: "scribe_stop", Command: ipc.CommandStop, Description: "Stop recording and keep the transcript."},
	{Name: "scribe_status", Command: ipc.CommandStatus, Description: "Report the recording state and the notes state."},
	{Name: "scribe_transcript", Command: ipc.CommandTranscript, Description: "Return the accumulated lecture transcript."},
	{Name: "scribe_notes", Command: ipc.CommandNotes, Description: "Generate markdown study notes from the transcript."},
	{Name: "scribe_reset", Command: ipc.CommandReset, Description: "Clear the transcript and any generated notes."},
}

// New builds an MCP server whose tools are answered by handler.
func New(handler ipc.Handler, version string) *server.MCPServer {
	s := server.NewMCPServer("scribe", version, server.WithToolCapabilities(false))
	for _, t := range Tools {
		s.AddTool(
			mcp.NewTool(t.Name, mcp.WithDescription(t.Description)),
			toolHandler(handler, t.Command),
		)
	}
	return s
}

// ServeStdio answers MCP requests on in/out until ctx ends or in closes.
func ServeStdio(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer, logger *slog.Logger) error {
	stdio := server.NewStdioServer(s)
	if logger != nil {
		stdio.SetErrorLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))
	}
	err := stdio.Listen(ctx, in, out)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func toolHandler(handler ipc.Handler, command string) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp := handler.Handle(ctx, ipc.Request{Command: command})
		if !resp.OK {
			msg := strings.TrimSpace(resp.Error)
			if msg == "" {
				msg = fmt.Sprintf("%s failed", command)
			}
			return mcp.NewToolResultError(msg), nil
		}
		return mcp.NewToolResultText(render(command, resp)), nil
	}
}

func render(command string, resp ipc.Response) string {
	switch command {
	case ipc.CommandTranscript:
		if strings.TrimSpace(resp.Transcript) == "" {
			return "(transcript is empty)"
		}
		return resp.Transcript
	case ipc.CommandNotes:
		return resp.Notes
	case ipc.CommandStatus:
		state := resp.State
		if state == "" {
			state = "idle"
		}
		out := "state: " + state
		if resp.NotesState != "" {
			out += "\nnotes: " + resp.NotesState
		}
		return out
	default:
		if resp.Message != "" {
			return resp.Message
		}
		return "state: " + resp.State
	}
}

// Forwarder answers tool calls by relaying them to the owner listening on
// socketPath. Notes requests get notesTimeout; everything else gets timeout.
func Forwarder(socketPath string, timeout time.Duration, notesTimeout time.Duration) ipc.Handler {
	return ipc.HandlerFunc(func(ctx context.Context, req ipc.Request) ipc.Response {
		wait := timeout
		if req.Command == ipc.CommandNotes {
			wait = notesTimeout
		}
		resp, err := ipc.Send(ctx, socketPath, req, wait)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED) {
				return ipc.Response{OK: false, Error: "no scribe session is running; start one with `scribe serve`"}
			}
			return ipc.Response{OK: false, Error: fmt.Sprintf("forward %s: %v", req.Command, err)}
		}
		return resp
	})
}
