// Package llm provides chat completion clients for the supported model providers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"synergize/internal/config"
)

var ErrUnconfigured = errors.New("llm api key not configured")

// Completer sends a single prompt to a model and returns its text reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Close() error
}

// New builds the client for cfg.Provider. It returns ErrUnconfigured when no
// API key is set.
func New(ctx context.Context, cfg config.LLMConfig) (Completer, error) {
	if cfg.APIKey == "" {
		return nil, ErrUnconfigured
	}
	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		return NewOpenAIClient(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Temperature), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg.APIKey, cfg.Model, cfg.Temperature)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}

// StripCodeFences removes markdown code fences that some models wrap around JSON.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.Index(s, "\n"); i != -1 {
			s = s[i+1:]
		}
		if i := strings.LastIndex(s, "```"); i != -1 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	return s
}
