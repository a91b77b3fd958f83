package ai

import (
	"context"
	"time"

	"github.com/zulandar/devtask/internal/models"
	"go.uber.org/zap"
)

// completion is one request to a backend. turns ends with the new user
// message and alternates roles.
type completion struct {
	op     string
	system string
	turns  []models.ChatMessage
	json   bool
	schema map[string]interface{}
}

// backend sends a completion and returns the raw reply text. Failures are
// *Error values.
type backend interface {
	name() ProviderName
	complete(ctx context.Context, c completion) (string, error)
}

// provider implements the operations on top of a backend.
type provider struct {
	b       backend
	prompts Prompts
	log     *zap.Logger
}

func (p *provider) Name() ProviderName { return p.b.name() }

func (p *provider) ChatTurn(ctx context.Context, history []models.ChatMessage, message string) ChatResult {
	text, err := p.run(ctx, completion{
		op:     OpChat,
		system: p.prompts.Render(PromptChatSystem, "", ""),
		turns:  conversation(history, message),
		json:   true,
		schema: chatSchema,
	})
	if err != nil {
		return ChatResult{Kind: KindError, Text: err.Error(), Err: err}
	}
	kind, content, err := parseChat(text)
	if err != nil {
		e := p.malformed(OpChat, err)
		return ChatResult{Kind: KindError, Text: e.Error(), Err: e}
	}
	return ChatResult{Kind: kind, Text: content}
}

func (p *provider) PreDevAnalysis(ctx context.Context, spec string) (models.PreDevAnalysis, error) {
	text, err := p.run(ctx, completion{
		op:     OpPreDev,
		turns:  userTurn(p.prompts.Render(PromptPreDev, spec, "")),
		json:   true,
		schema: preDevSchema,
	})
	if err != nil {
		return models.PreDevAnalysis{}, err
	}
	out, err := parsePreDev(text)
	if err != nil {
		return models.PreDevAnalysis{}, p.malformed(OpPreDev, err)
	}
	return out, nil
}

func (p *provider) TestCases(ctx context.Context, spec string) ([]TestCaseDraft, error) {
	text, err := p.run(ctx, completion{
		op:     OpTestCases,
		turns:  userTurn(p.prompts.Render(PromptTestCases, spec, "")),
		json:   true,
		schema: testCasesSchema,
	})
	if err != nil {
		return nil, err
	}
	out, err := parseTestCases(text)
	if err != nil {
		return nil, p.malformed(OpTestCases, err)
	}
	return out, nil
}

func (p *provider) Title(ctx context.Context, requirement string) (string, error) {
	text, err := p.run(ctx, completion{
		op:    OpTitle,
		turns: userTurn(p.prompts.Render(PromptTitle, "", requirement)),
	})
	if err != nil {
		return "", err
	}
	title, err := cleanTitle(text)
	if err != nil {
		return "", p.malformed(OpTitle, err)
	}
	return title, nil
}

func (p *provider) run(ctx context.Context, c completion) (string, error) {
	start := time.Now()
	text, err := p.b.complete(ctx, c)
	if err != nil {
		p.log.Warn("ai request failed", zap.String("op", c.op), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return "", err
	}
	p.log.Debug("ai request", zap.String("op", c.op), zap.Duration("elapsed", time.Since(start)), zap.Int("reply_bytes", len(text)))
	return text, nil
}

func (p *provider) malformed(op string, err error) *Error {
	p.log.Warn("ai reply rejected", zap.String("op", op), zap.String("detail", detail(err)))
	return &Error{Op: op, Kind: ErrMalformedResponse, Provider: p.b.name(), Detail: detail(err), Err: err}
}

func userTurn(text string) []models.ChatMessage {
	return []models.ChatMessage{{Role: models.RoleUser, Text: text}}
}

// conversation builds the turns sent to a backend: the history without the
// sentinel and error turns, then message. Adjacent turns of the same role
// are merged so roles alternate.
func conversation(history []models.ChatMessage, message string) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(history)+1)
	add := func(role, text string) {
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Text += "\n\n" + text
			return
		}
		out = append(out, models.ChatMessage{Role: role, Text: text})
	}
	for _, m := range history {
		if m.IsSentinel() || m.IsError {
			continue
		}
		role := models.RoleUser
		if m.Role == models.RoleModel {
			role = models.RoleModel
		}
		add(role, m.Text)
	}
	add(models.RoleUser, message)
	return out
}

var chatSchema = map[string]interface{}{
	"type": "OBJECT",
	"properties": map[string]interface{}{
		"flag":    map[string]interface{}{"type": "STRING", "enum": []string{"question", "answer"}},
		"content": map[string]interface{}{"type": "STRING"},
	},
	"required": []string{"flag", "content"},
}

var preDevSchema = map[string]interface{}{
	"type": "OBJECT",
	"properties": map[string]interface{}{
		"introduction":   map[string]interface{}{"type": "STRING", "description": "A summary of the requirements and root causes."},
		"impactAnalysis": map[string]interface{}{"type": "STRING", "description": "Affected components, systems or user workflows."},
		"howToCode":      map[string]interface{}{"type": "STRING", "description": "A high-level development plan."},
		"testApproach":   map[string]interface{}{"type": "STRING", "description": "A strategy for testing the change."},
	},
	"required": []string{"introduction", "impactAnalysis", "howToCode", "testApproach"},
}

var testCasesSchema = map[string]interface{}{
	"type": "OBJECT",
	"properties": map[string]interface{}{
		"testCases": map[string]interface{}{
			"type": "ARRAY",
			"items": map[string]interface{}{
				"type": "OBJECT",
				"properties": map[string]interface{}{
					"description":    map[string]interface{}{"type": "STRING"},
					"input":          map[string]interface{}{"type": "STRING"},
					"expectedResult": map[string]interface{}{"type": "STRING"},
				},
				"required": []string{"description", "input", "expectedResult"},
			},
		},
	},
	"required": []string{"testCases"},
}
