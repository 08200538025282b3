package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rbright/scribe/internal/notes"
	ollamasdk "github.com/rozoomcool/go-ollama-sdk"
)

const defaultOllamaURL = "http://localhost:11434"

// ollamaChatRequest is the SDK chat request plus sampling options, which the
// SDK's Chat does not send.
type ollamaChatRequest struct {
	ollamasdk.ChatRequest
	Options ollamaChatOptions `json:"options"`
}

type ollamaChatOptions struct {
	Temperature float32 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaChatResponse struct {
	ollamasdk.ChatResponse
	Error string `json:"error,omitempty"`
}

// OllamaClient implements notes.Completer against a local Ollama server.
type OllamaClient struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

// NewOllama builds a client for cfg.BaseURL. The API key is ignored.
func NewOllama(cfg Config) *OllamaClient {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultOllamaURL
	}
	return &OllamaClient{baseURL: base, http: &http.Client{}, timeout: timeoutOrDefault(cfg.Timeout)}
}

// Complete runs one non-streaming chat with the request's temperature and
// num_predict bound.
func (c *OllamaClient) Complete(ctx context.Context, req notes.Request) (string, error) {
	messages := make([]ollamasdk.ChatMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, ollamasdk.ChatMessage{Role: roleName(msg.Role), Content: msg.Content})
	}
	body, err := json.Marshal(ollamaChatRequest{
		ChatRequest: ollamasdk.ChatRequest{Model: req.Model, Messages: messages},
		Options:     ollamaChatOptions{Temperature: req.Temperature, NumPredict: req.MaxTokens},
	})
	if err != nil {
		return "", fmt.Errorf("encode ollama chat request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build ollama chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("ollama chat timed out after %s", c.timeout)
		}
		return "", fmt.Errorf("ollama chat failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read ollama chat response: %w", err)
	}

	var out ollamaChatResponse
	decodeErr := json.Unmarshal(raw, &out)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		detail := strings.TrimSpace(out.Error)
		if decodeErr != nil || detail == "" {
			detail = strings.TrimSpace(string(raw))
		}
		return "", fmt.Errorf("%w: status %d: %s", ollamasdk.ErrRequestFailed, resp.StatusCode, detail)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("decode ollama chat response: %w", decodeErr)
	}
	if msg := strings.TrimSpace(out.Error); msg != "" {
		return "", fmt.Errorf("ollama chat failed: %s", msg)
	}
	if strings.TrimSpace(out.Message.Content) == "" {
		return "", ErrNoChoices
	}
	return out.Message.Content, nil
}
