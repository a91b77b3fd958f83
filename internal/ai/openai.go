package ai

import (
	"context"
	"net/http"
	"strings"

	"github.com/zulandar/devtask/internal/models"
	"golang.org/x/oauth2"
)

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	Temperature    float64               `json:"temperature"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

// openAI calls the Chat Completions API. The key travels as a bearer token
// through an oauth2 transport.
type openAI struct {
	cfg BackendSettings
	t   *transport
}

func newOpenAI(cfg BackendSettings, o options) *openAI {
	cfg.BaseURL = orDefault(cfg.BaseURL, DefaultOpenAIBaseURL)
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	base := withTimeout(o.httpClient, o)
	client := base
	if cfg.APIKey != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIKey}))
		client.Timeout = base.Timeout
	}
	return &openAI{
		cfg: cfg,
		t:   &transport{provider: OpenAI, client: client, limiter: o.limiter},
	}
}

func (p *openAI) name() ProviderName { return OpenAI }

func (p *openAI) complete(ctx context.Context, c completion) (string, error) {
	if p.cfg.APIKey == "" {
		return "", &Error{Op: c.op, Kind: ErrCredentialMissing, Provider: OpenAI}
	}

	req := openAIRequest{Model: p.cfg.Model, Temperature: p.cfg.Temperature}
	if c.system != "" {
		req.Messages = append(req.Messages, openAIMessage{Role: "system", Content: c.system})
	}
	for _, m := range c.turns {
		role := "user"
		if m.Role == models.RoleModel {
			role = "assistant"
		}
		req.Messages = append(req.Messages, openAIMessage{Role: role, Content: m.Text})
	}
	if c.json {
		req.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
	}

	var resp openAIResponse
	if err := p.t.post(ctx, c.op, p.cfg.BaseURL+"/v1/chat/completions", nil, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", &Error{Op: c.op, Kind: ErrMalformedResponse, Provider: OpenAI, Status: http.StatusOK, Detail: "empty reply"}
	}
	return resp.Choices[0].Message.Content, nil
}
