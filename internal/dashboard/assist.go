package dashboard

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/devtask/internal/ai"
	"github.com/zulandar/devtask/internal/card"
	"github.com/zulandar/devtask/internal/clarify"
	"github.com/zulandar/devtask/internal/generate"
	"github.com/zulandar/devtask/internal/models"
	"github.com/zulandar/devtask/internal/settings"
)

type chatRequest struct {
	Message string `json:"message"`
}

// turnResponse reports one dialogue turn. Kind is question, answer or error;
// on error Text is the message to show.
type turnResponse struct {
	Card  *models.Card  `json:"card"`
	State clarify.State `json:"state"`
	Kind  ai.ChatKind   `json:"kind"`
	Text  string        `json:"text"`
}

func newTurnResponse(t *clarify.Turn) turnResponse {
	return turnResponse{
		Card:  t.Card,
		State: clarify.StateOf(t.Card.RequirementChatHistory),
		Kind:  t.Result.Kind,
		Text:  t.Result.Text,
	}
}

func (s *server) handleChatShow(c *gin.Context) {
	id, ok := s.idParam(c, "id")
	if !ok {
		return
	}
	got, err := card.Get(c.Request.Context(), s.store, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state":   clarify.StateOf(got.RequirementChatHistory),
		"history": got.RequirementChatHistory,
	})
}

func (s *server) handleChatStart(c *gin.Context) {
	id, ok := s.idParam(c, "id")
	if !ok {
		return
	}
	svc, err := s.clarifier(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	turn, err := svc.Start(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newTurnResponse(turn))
}

func (s *server) handleChatSend(c *gin.Context) {
	id, ok := s.idParam(c, "id")
	if !ok {
		return
	}
	var req chatRequest
	if !s.bind(c, &req) {
		return
	}
	svc, err := s.clarifier(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	turn, err := svc.Send(c.Request.Context(), id, req.Message)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newTurnResponse(turn))
}

func (s *server) handleChatReset(c *gin.Context) {
	id, ok := s.idParam(c, "id")
	if !ok {
		return
	}
	// Reset never reaches the provider.
	got, err := clarify.New(s.store, nil, s.log).Reset(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, got)
}

func (s *server) clarifier(ctx context.Context) (*clarify.Service, error) {
	p, err := s.provider(ctx)
	if err != nil {
		return nil, err
	}
	return clarify.New(s.store, p, s.log), nil
}

type generateFunc func(svc *generate.Service, ctx context.Context, cardID uint) (*models.Card, error)

// handleGenerate adapts a generator to a card route.
func (s *server) handleGenerate(fn generateFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := s.idParam(c, "id")
		if !ok {
			return
		}
		ctx := c.Request.Context()
		p, err := s.provider(ctx)
		if err != nil {
			s.fail(c, err)
			return
		}
		updated, err := fn(generate.New(s.store, p, s.log), ctx, id)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

// backendView is a backend's resolved settings without its key.
type backendView struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	APIKeySet   bool    `json:"apiKeySet"`
}

type settingsView struct {
	Provider ai.ProviderName   `json:"provider"`
	Gemini   backendView       `json:"gemini"`
	OpenAI   backendView       `json:"openai"`
	Prompts  map[string]string `json:"prompts"`
}

type backendRequest struct {
	APIKey      *string  `json:"apiKey"`
	Model       *string  `json:"model"`
	Temperature *float64 `json:"temperature"`
}

type settingsRequest struct {
	Provider *string           `json:"provider"`
	Gemini   *backendRequest   `json:"gemini"`
	OpenAI   *backendRequest   `json:"openai"`
	Prompts  map[string]string `json:"prompts"`
}

func view(b ai.BackendSettings) backendView {
	return backendView{Model: b.Model, Temperature: b.Temperature, APIKeySet: b.APIKey != ""}
}

func (s *server) settingsView(ctx context.Context) (settingsView, error) {
	st, err := settings.Load(ctx, s.store, s.ai)
	if err != nil {
		return settingsView{}, err
	}
	prompts, err := settings.CustomPrompts(ctx, s.store)
	if err != nil {
		return settingsView{}, err
	}
	return settingsView{
		Provider: st.Provider,
		Gemini:   view(st.Gemini),
		OpenAI:   view(st.OpenAI),
		Prompts:  prompts,
	}, nil
}

func (s *server) handleSettingsGet(c *gin.Context) {
	v, err := s.settingsView(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *server) handleSettingsUpdate(c *gin.Context) {
	var req settingsRequest
	if !s.bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	if err := s.applySettings(ctx, req); err != nil {
		s.fail(c, err)
		return
	}
	s.handleSettingsGet(c)
}

func (s *server) applySettings(ctx context.Context, req settingsRequest) error {
	if req.Provider != nil {
		if err := settings.SetProvider(ctx, s.store, *req.Provider); err != nil {
			return err
		}
	}
	for name, b := range map[ai.ProviderName]*backendRequest{ai.Gemini: req.Gemini, ai.OpenAI: req.OpenAI} {
		if b == nil {
			continue
		}
		if b.APIKey != nil {
			if err := settings.SetAPIKey(ctx, s.store, name, *b.APIKey); err != nil {
				return err
			}
		}
		if b.Model != nil {
			if err := settings.SetModel(ctx, s.store, name, *b.Model); err != nil {
				return err
			}
		}
		if b.Temperature != nil {
			if err := settings.SetTemperature(ctx, s.store, name, *b.Temperature); err != nil {
				return err
			}
		}
	}
	if len(req.Prompts) > 0 {
		return settings.SetPrompts(ctx, s.store, req.Prompts)
	}
	return nil
}

func (s *server) handlePromptsReset(c *gin.Context) {
	if err := settings.ResetPrompts(c.Request.Context(), s.store); err != nil {
		s.fail(c, err)
		return
	}
	s.handleSettingsGet(c)
}
