package ai

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64                `json:"temperature"`
	ResponseMimeType string                 `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]interface{} `json:"responseSchema,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// gemini calls the Generative Language API.
type gemini struct {
	cfg BackendSettings
	t   *transport
}

func newGemini(cfg BackendSettings, o options) *gemini {
	cfg.BaseURL = orDefault(cfg.BaseURL, DefaultGeminiBaseURL)
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	return &gemini{
		cfg: cfg,
		t:   &transport{provider: Gemini, client: withTimeout(o.httpClient, o), limiter: o.limiter},
	}
}

func (g *gemini) name() ProviderName { return Gemini }

func (g *gemini) complete(ctx context.Context, c completion) (string, error) {
	if g.cfg.APIKey == "" {
		return "", &Error{Op: c.op, Kind: ErrCredentialMissing, Provider: Gemini}
	}

	req := geminiRequest{GenerationConfig: geminiGenerationConfig{Temperature: g.cfg.Temperature}}
	if c.system != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: c.system}}}
	}
	for _, m := range c.turns {
		req.Contents = append(req.Contents, geminiContent{Role: m.Role, Parts: []geminiPart{{Text: m.Text}}})
	}
	if c.json {
		req.GenerationConfig.ResponseMimeType = "application/json"
		req.GenerationConfig.ResponseSchema = c.schema
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.cfg.BaseURL, url.PathEscape(g.cfg.Model))
	var resp geminiResponse
	if err := g.t.post(ctx, c.op, endpoint, map[string]string{"x-goog-api-key": g.cfg.APIKey}, req, &resp); err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 {
		d := "no candidates in reply"
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			d = "prompt blocked: " + resp.PromptFeedback.BlockReason
		}
		return "", &Error{Op: c.op, Kind: ErrMalformedResponse, Provider: Gemini, Detail: d}
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", &Error{Op: c.op, Kind: ErrMalformedResponse, Provider: Gemini, Detail: "empty reply"}
	}
	return sb.String(), nil
}
