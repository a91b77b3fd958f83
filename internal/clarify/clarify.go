// Package clarify runs the requirement clarification dialogue of a card.
//
// The dialogue state is never stored on its own; it is derived from the
// card's chat history by StateOf. A turn persists the user message first,
// calls the provider, then re-reads the card and commits the reply only if
// the history is still the one this turn wrote.
package clarify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/devtask/internal/ai"
	"github.com/zulandar/devtask/internal/card"
	"github.com/zulandar/devtask/internal/db"
	"github.com/zulandar/devtask/internal/knowledge"
	"github.com/zulandar/devtask/internal/logging"
	"github.com/zulandar/devtask/internal/models"
	"go.uber.org/zap"
)

var (
	ErrDialogueCompleted = errors.New("dialogue already completed")
	ErrDialogueActive    = errors.New("dialogue already active")
	ErrNotStarted        = errors.New("dialogue not started")
	ErrEmptyRequirement  = errors.New("requirement is empty")
	ErrEmptyMessage      = errors.New("message is empty")
	// ErrStaleTurn means the history changed while the provider was
	// answering; the reply was dropped.
	ErrStaleTurn = errors.New("stale turn")
)

// State of a dialogue.
type State string

const (
	Idle          State = "idle"
	AwaitingModel State = "awaiting_model"
	AwaitingUser  State = "awaiting_user"
	Completed     State = "completed"
	Errored       State = "errored"
)

// StateOf derives the dialogue state from a chat history.
func StateOf(history []models.ChatMessage) State {
	if len(history) == 0 {
		return Idle
	}
	for _, m := range history {
		if m.IsSentinel() {
			return Completed
		}
	}
	last := history[len(history)-1]
	switch {
	case last.Role != models.RoleModel:
		return AwaitingModel
	case last.IsError:
		return Errored
	}
	return AwaitingUser
}

// Service runs dialogue turns against one provider.
type Service struct {
	store    *db.Store
	provider ai.Provider
	log      *zap.Logger
}

// New returns a Service.
func New(s *db.Store, p ai.Provider, log *zap.Logger) *Service {
	return &Service{store: s, provider: p, log: logging.OrNop(log).Named("clarify")}
}

// Turn is the outcome of Start or Send.
type Turn struct {
	Card   *models.Card
	Result ai.ChatResult
}

// initialMessage frames the card for the first turn.
func initialMessage(c *models.Card) string {
	title := c.Title
	if strings.TrimSpace(title) == "" {
		title = "Untitled"
	}
	return "Here is the complete context for a task I want to build. Please analyze all of it, ask clarifying questions if needed, and then generate a comprehensive technical spec: \n\n" +
		"Task Title: " + title + "\n\n" +
		"Requirement:\n---\n" + c.Requirement + "\n---\n\n"
}

// Start opens the dialogue with the card's requirement. The card must be
// Idle and have a requirement.
func (s *Service) Start(ctx context.Context, cardID uint) (*Turn, error) {
	var opened []models.ChatMessage
	c, err := card.Apply(ctx, s.store, cardID, func(c *models.Card) (card.Patch, error) {
		switch StateOf(c.RequirementChatHistory) {
		case Idle:
		case Completed:
			return card.Patch{}, ErrDialogueCompleted
		default:
			return card.Patch{}, ErrDialogueActive
		}
		if strings.TrimSpace(c.Requirement) == "" {
			return card.Patch{}, ErrEmptyRequirement
		}
		opened = []models.ChatMessage{{Role: models.RoleUser, Text: c.Requirement}}
		return card.Patch{RequirementChatHistory: &opened}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("clarify: start %d: %w", cardID, err)
	}
	s.log.Info("dialogue started", zap.Uint("card_id", cardID), zap.String("provider", string(s.provider.Name())))

	msg, err := s.augment(ctx, c, initialMessage(c))
	if err != nil {
		return nil, fmt.Errorf("clarify: start %d: %w", cardID, err)
	}
	res := s.provider.ChatTurn(ctx, nil, msg)
	return s.commit(ctx, cardID, opened, res)
}

// Send continues the dialogue with a user message. The dialogue must be
// waiting for the user or recovering from an error.
func (s *Service) Send(ctx context.Context, cardID uint, message string) (*Turn, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("clarify: send %d: %w", cardID, ErrEmptyMessage)
	}
	var prior, written []models.ChatMessage
	c, err := card.Apply(ctx, s.store, cardID, func(c *models.Card) (card.Patch, error) {
		switch StateOf(c.RequirementChatHistory) {
		case AwaitingUser, Errored:
		case Idle:
			return card.Patch{}, ErrNotStarted
		case Completed:
			return card.Patch{}, ErrDialogueCompleted
		default:
			return card.Patch{}, ErrDialogueActive
		}
		prior = append([]models.ChatMessage{}, c.RequirementChatHistory...)
		written = append(append([]models.ChatMessage{}, prior...), models.ChatMessage{Role: models.RoleUser, Text: message})
		return card.Patch{RequirementChatHistory: &written}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("clarify: send %d: %w", cardID, err)
	}

	msg, err := s.augment(ctx, c, message)
	if err != nil {
		return nil, fmt.Errorf("clarify: send %d: %w", cardID, err)
	}
	res := s.provider.ChatTurn(ctx, prior, msg)
	return s.commit(ctx, cardID, written, res)
}

// Reset discards the history so the dialogue can start over. The spec is
// kept.
func (s *Service) Reset(ctx context.Context, cardID uint) (*models.Card, error) {
	empty := []models.ChatMessage{}
	c, err := card.Update(ctx, s.store, cardID, card.Patch{RequirementChatHistory: &empty})
	if err != nil {
		return nil, fmt.Errorf("clarify: reset %d: %w", cardID, err)
	}
	s.log.Info("dialogue reset", zap.Uint("card_id", cardID))
	return c, nil
}

// commit appends the provider reply if the history still equals expected.
func (s *Service) commit(ctx context.Context, cardID uint, expected []models.ChatMessage, res ai.ChatResult) (*Turn, error) {
	c, err := card.Apply(ctx, s.store, cardID, func(c *models.Card) (card.Patch, error) {
		if !sameHistory(c.RequirementChatHistory, expected) {
			return card.Patch{}, ErrStaleTurn
		}
		history := append([]models.ChatMessage{}, expected...)
		var p card.Patch
		switch res.Kind {
		case ai.KindAnswer:
			spec := res.Text
			history = append(history,
				models.ChatMessage{Role: models.RoleModel, Text: res.Text},
				models.ChatMessage{Role: models.RoleModel, Text: models.SpecGeneratedSentinel},
			)
			p.Spec = &spec
		case ai.KindQuestion:
			history = append(history, models.ChatMessage{Role: models.RoleModel, Text: res.Text})
		default:
			history = append(history, models.ChatMessage{Role: models.RoleModel, Text: res.Text, IsError: true})
		}
		p.RequirementChatHistory = &history
		return p, nil
	})
	if err != nil {
		if errors.Is(err, ErrStaleTurn) {
			s.log.Warn("reply dropped", zap.Uint("card_id", cardID), zap.String("kind", string(res.Kind)))
		}
		return nil, fmt.Errorf("clarify: commit %d: %w", cardID, err)
	}

	fields := []zap.Field{zap.Uint("card_id", cardID), zap.String("kind", string(res.Kind))}
	if res.Err != nil {
		fields = append(fields, zap.Error(res.Err))
	}
	s.log.Info("turn committed", fields...)
	return &Turn{Card: c, Result: res}, nil
}

func (s *Service) augment(ctx context.Context, c *models.Card, message string) (string, error) {
	files, err := knowledge.ForCard(ctx, s.store, c)
	if err != nil {
		return "", err
	}
	return knowledge.Augment(message, files), nil
}

func sameHistory(a, b []models.ChatMessage) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
