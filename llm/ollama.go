package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AnTengye/contractwatch/config"
)

// Ollama talks to a local Ollama server over its REST API
type Ollama struct {
	baseURL     string
	model       string
	temperature float32
	httpClient  *http.Client
}

// OllamaRequest represents a request to the Ollama generate API
type OllamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Format  any            `json:"format,omitempty"`
	Options *OllamaOptions `json:"options,omitempty"`
}

// OllamaOptions represents parameter options for the model
type OllamaOptions struct {
	Temperature float32 `json:"temperature"`
}

// OllamaResponse represents a non-streaming response from the Ollama generate API
type OllamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// NewOllama creates an Ollama backend
func NewOllama(cfg *config.ModelConfig) *Ollama {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &Ollama{
		baseURL:     baseURL,
		model:       cfg.Name,
		temperature: cfg.Temperature,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// Generate runs a single non-streaming completion
func (o *Ollama) Generate(ctx context.Context, req Request) (string, error) {
	if len(req.Media) > 0 {
		return "", ErrMediaUnsupported
	}

	body := OllamaRequest{
		Model:  o.model,
		Prompt: req.Prompt,
		System: req.System,
		Format: req.Schema,
	}
	switch {
	case req.Temperature != nil:
		body.Options = &OllamaOptions{Temperature: *req.Temperature}
	case o.temperature > 0:
		body.Options = &OllamaOptions{Temperature: o.temperature}
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var result OllamaResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w, body: %s", err, string(respBody))
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, result.Error)
	}
	if result.Response == "" {
		return "", ErrEmptyResponse
	}

	return result.Response, nil
}

// Name returns the backend name
func (o *Ollama) Name() string {
	return "ollama:" + o.model
}
