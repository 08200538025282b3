// Package completion adapts chat-completion providers to the notes generator.
package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rbright/scribe/internal/notes"
	"github.com/sashabaranov/go-openai"
)

// ErrNoChoices indicates a successful response that carried no completion.
var ErrNoChoices = errors.New("completion response has no choices")

// DefaultTimeout bounds one completion request when no timeout is configured.
const DefaultTimeout = 60 * time.Second

// Config configures the API endpoint and credentials.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client implements notes.Completer over go-openai.
type Client struct {
	api *openai.Client
}

// New builds a Client. BaseURL defaults to the public OpenAI endpoint.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("completion api key is empty")
	}
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		apiCfg.BaseURL = base
	}
	apiCfg.HTTPClient = &http.Client{Timeout: timeoutOrDefault(cfg.Timeout)}

	return &Client{api: openai.NewClientWithConfig(apiCfg)}, nil
}

// Complete sends req and returns the first choice's message content.
func (c *Client) Complete(ctx context.Context, req notes.Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    roleName(msg.Role),
			Content: msg.Content,
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("chat completion failed (status %d): %w", apiErr.HTTPStatusCode, err)
		}
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

func roleName(role notes.Role) string {
	switch role {
	case notes.RoleSystem:
		return openai.ChatMessageRoleSystem
	case notes.RoleUser:
		return openai.ChatMessageRoleUser
	default:
		return string(role)
	}
}
