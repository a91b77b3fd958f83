// Package generate derives artifacts from a card: the pre-development
// analysis and test cases from its spec, and a title from its requirement.
// A failed generation leaves the card untouched.
package generate

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
	// ErrSpecRequired means the card has no spec to generate from.
	ErrSpecRequired = errors.New("spec is required")
	// ErrRequirementRequired means the card has no requirement to title.
	ErrRequirementRequired = errors.New("requirement is required")
)

// Service runs generators against one provider.
type Service struct {
	store    *db.Store
	provider ai.Provider
	log      *zap.Logger
}

// New returns a Service.
func New(s *db.Store, p ai.Provider, log *zap.Logger) *Service {
	return &Service{store: s, provider: p, log: logging.OrNop(log).Named("generate")}
}

// PreDev replaces the card's pre-development analysis with one generated
// from its spec.
func (s *Service) PreDev(ctx context.Context, cardID uint) (*models.Card, error) {
	spec, err := s.augmentedSpec(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("generate: pre-dev %d: %w", cardID, err)
	}
	analysis, err := s.provider.PreDevAnalysis(ctx, spec)
	if err != nil {
		s.log.Warn("pre-dev analysis failed", zap.Uint("card_id", cardID), zap.Error(err))
		return nil, fmt.Errorf("generate: pre-dev %d: %w", cardID, err)
	}
	c, err := card.Update(ctx, s.store, cardID, card.Patch{PreDevAnalysis: &analysis})
	if err != nil {
		return nil, fmt.Errorf("generate: pre-dev %d: %w", cardID, err)
	}
	s.log.Info("pre-dev analysis generated", zap.Uint("card_id", cardID))
	return c, nil
}

// TestCases appends Pending test cases generated from the card's spec.
func (s *Service) TestCases(ctx context.Context, cardID uint) (*models.Card, error) {
	spec, err := s.augmentedSpec(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("generate: test cases %d: %w", cardID, err)
	}
	drafts, err := s.provider.TestCases(ctx, spec)
	if err != nil {
		s.log.Warn("test case generation failed", zap.Uint("card_id", cardID), zap.Error(err))
		return nil, fmt.Errorf("generate: test cases %d: %w", cardID, err)
	}
	tcs := make([]models.TestCase, len(drafts))
	for i, d := range drafts {
		tcs[i] = card.NewTestCase(d.Description, d.Input, d.ExpectedResult)
	}
	c, err := card.AddTestCases(ctx, s.store, cardID, tcs...)
	if err != nil {
		return nil, fmt.Errorf("generate: test cases %d: %w", cardID, err)
	}
	s.log.Info("test cases generated", zap.Uint("card_id", cardID), zap.Int("count", len(tcs)))
	return c, nil
}

// Title replaces the card's title with one generated from its requirement.
func (s *Service) Title(ctx context.Context, cardID uint) (*models.Card, error) {
	c, err := card.Get(ctx, s.store, cardID)
	if err != nil {
		return nil, fmt.Errorf("generate: title %d: %w", cardID, err)
	}
	req := strings.TrimSpace(c.Requirement)
	if req == "" {
		return nil, fmt.Errorf("generate: title %d: %w", cardID, ErrRequirementRequired)
	}
	title, err := s.provider.Title(ctx, req)
	if err != nil {
		s.log.Warn("title generation failed", zap.Uint("card_id", cardID), zap.Error(err))
		return nil, fmt.Errorf("generate: title %d: %w", cardID, err)
	}
	c, err = card.Update(ctx, s.store, cardID, card.Patch{Title: &title})
	if err != nil {
		return nil, fmt.Errorf("generate: title %d: %w", cardID, err)
	}
	return c, nil
}

func (s *Service) augmentedSpec(ctx context.Context, cardID uint) (string, error) {
	c, err := card.Get(ctx, s.store, cardID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(c.Spec) == "" {
		return "", ErrSpecRequired
	}
	files, err := knowledge.ForCard(ctx, s.store, c)
	if err != nil {
		return "", err
	}
	return knowledge.Augment(c.Spec, files), nil
}
