package extract

import (
	"context"
	"fmt"
	"strings"
)

const anthropicVersion = "2023-06-01"

// Anthropic uses the Messages API. It has no schema-constrained mode, so its
// answers go through the embedded-object fallback.
type Anthropic struct {
	cfg ProviderConfig
}

func NewAnthropic(cfg ProviderConfig) *Anthropic {
	return &Anthropic{cfg: cfg.withDefaults("claude-3-haiku-20240307", "https://api.anthropic.com/v1")}
}

func (a *Anthropic) Name() string { return "anthropic" }

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicBlock struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []anthropicBlock `json:"content"`
}

func (a *Anthropic) Generate(ctx context.Context, r Request) (Response, error) {
	body := anthropicRequest{
		Model:       a.cfg.Model,
		MaxTokens:   r.MaxTokens,
		Temperature: r.Temperature,
		Messages: []anthropicMessage{{
			Role: "user",
			Content: []anthropicBlock{
				{Type: "image", Source: &anthropicSource{Type: "base64", MediaType: r.MediaType, Data: r.ImageB64}},
				{Type: "text", Text: r.Instruction},
			},
		}},
	}

	headers := map[string]string{
		"x-api-key":         a.cfg.APIKey,
		"anthropic-version": anthropicVersion,
	}

	var out anthropicResponse
	if err := postJSON(ctx, a.cfg.HTTPClient, a.Name(), a.cfg.BaseURL+"/messages", headers, body, &out); err != nil {
		return Response{}, err
	}

	var sb strings.Builder
	for _, b := range out.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	if sb.Len() == 0 {
		return Response{}, fmt.Errorf("%w: anthropic returned no text", ErrMalformedResponse)
	}

	return Response{Text: sb.String()}, nil
}
