package extract

import (
	"context"
	"fmt"
	"strings"
)

type Gemini struct {
	cfg ProviderConfig
}

func NewGemini(cfg ProviderConfig) *Gemini {
	return &Gemini{cfg: cfg.withDefaults("gemini-2.5-flash", "https://generativelanguage.googleapis.com/v1beta")}
}

func (g *Gemini) Name() string { return "gemini" }

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		Temperature      float64        `json:"temperature"`
		MaxOutputTokens  int            `json:"maxOutputTokens,omitempty"`
		ResponseMimeType string         `json:"responseMimeType"`
		ResponseSchema   map[string]any `json:"responseSchema"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

func (g *Gemini) Generate(ctx context.Context, r Request) (Response, error) {
	var body geminiRequest
	body.Contents = []geminiContent{{
		Role: "user",
		Parts: []geminiPart{
			{InlineData: &geminiInlineData{MimeType: r.MediaType, Data: r.ImageB64}},
			{Text: r.Instruction},
		},
	}}
	body.GenerationConfig.Temperature = r.Temperature
	body.GenerationConfig.MaxOutputTokens = r.MaxTokens
	body.GenerationConfig.ResponseMimeType = "application/json"
	body.GenerationConfig.ResponseSchema = vocabularySchema(true)

	url := fmt.Sprintf("%s/models/%s:generateContent", g.cfg.BaseURL, g.cfg.Model)
	headers := map[string]string{"x-goog-api-key": g.cfg.APIKey}

	var out geminiResponse
	if err := postJSON(ctx, g.cfg.HTTPClient, g.Name(), url, headers, body, &out); err != nil {
		return Response{}, err
	}

	if len(out.Candidates) == 0 {
		return Response{}, fmt.Errorf("%w: gemini returned no candidates", ErrMalformedResponse)
	}

	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}

	return Response{Text: sb.String(), Structured: true}, nil
}
