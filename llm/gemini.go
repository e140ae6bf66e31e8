package llm

import (
	"context"
	"fmt"

	"github.com/AnTengye/contractwatch/config"
	"google.golang.org/genai"
)

// Gemini generates content through Google's Gemini API
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGemini creates a Gemini backend. BaseURL overrides the API endpoint when set.
func NewGemini(ctx context.Context, cfg *config.ModelConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &Gemini{
		client:      client,
		model:       cfg.Name,
		temperature: cfg.Temperature,
	}, nil
}

// Generate sends the prompt plus any media as one user turn
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	parts := make([]*genai.Part, 0, len(req.Media)+1)
	parts = append(parts, genai.NewPartFromText(req.Prompt))
	for _, m := range req.Media {
		parts = append(parts, genai.NewPartFromBytes(m.Data, m.MIMEType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	genCfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Schema != nil {
		genCfg.ResponseMIMEType = "application/json"
		genCfg.ResponseJsonSchema = req.Schema
	}
	switch {
	case req.Temperature != nil:
		genCfg.Temperature = req.Temperature
	case g.temperature > 0:
		t := g.temperature
		genCfg.Temperature = &t
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, genCfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Name returns the backend name
func (g *Gemini) Name() string {
	return "gemini:" + g.model
}
