package completion

import (
	"context"
	"fmt"
	"time"

	"github.com/rbright/scribe/internal/config"
	"github.com/rbright/scribe/internal/notes"
)

// Open returns the notes.Completer for the resolved provider.
func Open(ctx context.Context, creds config.Credentials, timeout time.Duration) (notes.Completer, error) {
	cfg := Config{APIKey: creds.APIKey, BaseURL: creds.APIURL, Timeout: timeout}

	switch creds.Provider {
	case config.ProviderOpenAI, "":
		return New(cfg)
	case config.ProviderOllama:
		return NewOllama(cfg), nil
	case config.ProviderGemini:
		return NewGemini(ctx, cfg)
	case config.ProviderBedrock:
		return NewBedrock(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown completion provider %q", creds.Provider)
	}
}

func timeoutOrDefault(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultTimeout
	}
	return timeout
}
