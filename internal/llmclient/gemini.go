package llmclient

import (
	"context"
	"encoding/json"

	genai "google.golang.org/genai"
)

// GeminiClient is a thin wrapper around the official genai client.
type GeminiClient struct {
	cli   *genai.Client
	model string
}

func NewGeminiClient(ctx context.Context, model string) (*GeminiClient, error) {
	// The genai client reads GEMINI_API_KEY from the environment.
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiClient{cli: cli, model: model}, nil
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.model }
func (g *GeminiClient) Close() error { return nil }

func (g *GeminiClient) Generate(ctx context.Context, caseID, system, user string) (string, error) {
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: user}}}},
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		},
	)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

func (g *GeminiClient) GenerateJSON(ctx context.Context, caseID, system, user string) (json.RawMessage, error) {
	return g.generateJSON(ctx, system, user, nil)
}

func (g *GeminiClient) GenerateStructured(ctx context.Context, caseID, system, user string, schema json.RawMessage) (json.RawMessage, error) {
	return g.generateJSON(ctx, system, user, schema)
}

func (g *GeminiClient) generateJSON(ctx context.Context, system, user string, schema json.RawMessage) (json.RawMessage, error) {
	if len(schema) > 0 {
		system = system + "\n\n[OUTPUT SCHEMA]\nRespond with JSON matching this schema exactly:\n" + string(schema)
	}
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: user}}}},
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
			ResponseMIMEType:  "application/json",
		},
	)
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, ErrEmptyResponse
	}
	return json.RawMessage(resp.Candidates[0].Content.Parts[0].Text), nil
}
