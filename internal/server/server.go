// Package server exposes the owner controller over HTTP and a websocket feed.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/rbright/scribe/internal/config"
	"github.com/rbright/scribe/internal/control"
	"github.com/rbright/scribe/internal/fsm"
	"github.com/rbright/scribe/internal/notes"
	"github.com/rbright/scribe/internal/session"
)

const shutdownTimeout = 2 * time.Second

// Controller is the owner surface served over HTTP.
type Controller interface {
	Snapshot() control.Snapshot
	Toggle(context.Context) (fsm.State, error)
	Stop(context.Context) error
	GenerateNotes(context.Context) (notes.Result, error)
	Reset() error
	Subscribe() (<-chan control.Snapshot, func())
}

// Server is the fiber app plus its websocket lifecycle.
type Server struct {
	app    *fiber.App
	ctrl   Controller
	logger *slog.Logger

	closing   chan struct{}
	closeOnce sync.Once
}

type errorBody struct {
	Error string `json:"error"`
}

// New builds the HTTP routes for ctrl.
func New(ctrl Controller, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               "scribe",
			DisableStartupMessage: true,
		}),
		ctrl:    ctrl,
		logger:  logger,
		closing: make(chan struct{}),
	}

	api := s.app.Group("/api")
	api.Get("/state", s.handleState)
	api.Post("/recording/toggle", s.handleToggle)
	api.Post("/recording/stop", s.handleStop)
	api.Post("/notes", s.handleNotes)
	api.Post("/transcript/reset", s.handleReset)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws", websocket.New(s.handleFeed))

	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves addr until ctx is canceled.
func (s *Server) Listen(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves ln until ctx is canceled, then shuts down open connections.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listener(ln)
	}()
	s.logger.Info("http server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		s.close()
		return err
	case <-ctx.Done():
		s.close()
		if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			return err
		}
		return <-errCh
	}
}

func (s *Server) close() {
	s.closeOnce.Do(func() {
		close(s.closing)
	})
}

func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.Snapshot())
}

func (s *Server) handleToggle(c *fiber.Ctx) error {
	if _, err := s.ctrl.Toggle(c.UserContext()); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.ctrl.Snapshot())
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	if err := s.ctrl.Stop(c.UserContext()); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.ctrl.Snapshot())
}

func (s *Server) handleNotes(c *fiber.Ctx) error {
	result, err := s.ctrl.GenerateNotes(c.UserContext())
	if err != nil {
		return s.fail(c, err)
	}
	if result.State == fsm.NotesFailed {
		return c.Status(fiber.StatusBadGateway).JSON(s.ctrl.Snapshot())
	}
	return c.JSON(s.ctrl.Snapshot())
}

func (s *Server) handleReset(c *fiber.Ctx) error {
	if err := s.ctrl.Reset(); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.ctrl.Snapshot())
}

// handleFeed pushes one snapshot on connect and one per change until either
// side closes.
func (s *Server) handleFeed(conn *websocket.Conn) {
	clientID := uuid.NewString()
	logger := s.logger.With("client_id", clientID)
	logger.Debug("websocket client connected")
	defer logger.Debug("websocket client disconnected")

	feed, cancel := s.ctrl.Subscribe()
	defer cancel()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(s.ctrl.Snapshot()); err != nil {
		logger.Debug("websocket write failed", "error", err.Error())
		return
	}

	for {
		select {
		case snap, ok := <-feed:
			if !ok {
				return
			}
			if err := conn.WriteJSON(snap); err != nil {
				logger.Debug("websocket write failed", "error", err.Error())
				return
			}
		case <-gone:
			return
		case <-s.closing:
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		}
	}
}

func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("http request failed", "path", c.Path(), "error", err.Error())
	}
	return c.Status(status).JSON(errorBody{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, notes.ErrEmptyTranscript):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, notes.ErrBusy), errors.Is(err, session.ErrAlreadyRecording):
		return fiber.StatusConflict
	case errors.Is(err, session.ErrCapabilityUnavailable), errors.Is(err, config.ErrMissingAPIKey):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
