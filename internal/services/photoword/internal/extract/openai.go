package extract

import (
	"context"
	"fmt"
)

// OpenAI talks to any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	cfg ProviderConfig
}

func NewOpenAI(cfg ProviderConfig) *OpenAI {
	return &OpenAI{cfg: cfg.withDefaults("gpt-4o-mini", "https://api.openai.com/v1")}
}

func (o *OpenAI) Name() string { return "openai" }

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIContent struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIMessage struct {
	Role    string          `json:"role"`
	Content []openAIContent `json:"content"`
}

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat map[string]any  `json:"response_format"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
	} `json:"choices"`
}

func (o *OpenAI) Generate(ctx context.Context, r Request) (Response, error) {
	body := openAIRequest{
		Model: o.cfg.Model,
		Messages: []openAIMessage{{
			Role: "user",
			Content: []openAIContent{
				{Type: "text", Text: r.Instruction},
				{Type: "image_url", ImageURL: &openAIImageURL{URL: fmt.Sprintf("data:%s;base64,%s", r.MediaType, r.ImageB64)}},
			},
		}},
		Temperature: r.Temperature,
		MaxTokens:   r.MaxTokens,
		ResponseFormat: map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "vocabulary",
				"strict": true,
				"schema": vocabularySchema(false),
			},
		},
	}

	headers := map[string]string{}
	if o.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + o.cfg.APIKey
	}

	var out openAIResponse
	if err := postJSON(ctx, o.cfg.HTTPClient, o.Name(), o.cfg.BaseURL+"/chat/completions", headers, body, &out); err != nil {
		return Response{}, err
	}

	if len(out.Choices) == 0 {
		return Response{}, fmt.Errorf("%w: openai returned no choices", ErrMalformedResponse)
	}
	if msg := out.Choices[0].Message; msg.Content == "" && msg.Refusal != "" {
		return Response{}, fmt.Errorf("%w: model refused: %s", ErrMalformedResponse, msg.Refusal)
	}

	return Response{Text: out.Choices[0].Message.Content, Structured: true}, nil
}
