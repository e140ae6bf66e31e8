package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/AnTengye/contractwatch/config"
)

// ErrMediaUnsupported is returned by backends that cannot take binary attachments
var ErrMediaUnsupported = errors.New("model backend does not accept media attachments")

// ErrEmptyResponse is returned when the model answers with no text
var ErrEmptyResponse = errors.New("model returned an empty response")

// Model is the interface for generative model backends
type Model interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}

// Media is a binary attachment sent alongside the prompt
type Media struct {
	MIMEType string
	Data     []byte
}

// Request is a single prompt submission.
// Schema, when set, is a JSON schema the response must follow; the backend is asked for JSON output.
type Request struct {
	System      string
	Prompt      string
	Media       []Media
	Schema      any
	Temperature *float32
}

// New creates the backend named by cfg.Provider
func New(ctx context.Context, cfg *config.ModelConfig) (Model, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGemini(ctx, cfg)
	case config.ProviderOllama:
		return NewOllama(cfg), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}
