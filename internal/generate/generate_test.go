package generate

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/devtask/internal/ai"
	"github.com/zulandar/devtask/internal/card"
	"github.com/zulandar/devtask/internal/config"
	"github.com/zulandar/devtask/internal/db"
	"github.com/zulandar/devtask/internal/knowledge"
	"github.com/zulandar/devtask/internal/models"
)

// stubProvider returns canned artifacts and records its inputs.
type stubProvider struct {
	analysis models.PreDevAnalysis
	drafts   []ai.TestCaseDraft
	title    string
	err      error
	inputs   []string
}

func (p *stubProvider) Name() ai.ProviderName { return ai.OpenAI }

func (p *stubProvider) ChatTurn(context.Context, []models.ChatMessage, string) ai.ChatResult {
	return ai.ChatResult{Kind: ai.KindError}
}

func (p *stubProvider) PreDevAnalysis(_ context.Context, spec string) (models.PreDevAnalysis, error) {
	p.inputs = append(p.inputs, spec)
	return p.analysis, p.err
}

func (p *stubProvider) TestCases(_ context.Context, spec string) ([]ai.TestCaseDraft, error) {
	p.inputs = append(p.inputs, spec)
	return p.drafts, p.err
}

func (p *stubProvider) Title(_ context.Context, req string) (string, error) {
	p.inputs = append(p.inputs, req)
	return p.title, p.err
}

func openTestStore(t *testing.T) *db.Store {
	t.Helper()
	cfg := config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "gen.db")}
	s, err := db.Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func cardWith(t *testing.T, s *db.Store, p card.Patch) *models.Card {
	t.Helper()
	c, err := card.Create(context.Background(), s, "Task")
	require.NoError(t, err)
	c, err = card.Update(context.Background(), s, c.ID, p)
	require.NoError(t, err)
	return c
}

func str(s string) *string { return &s }

func TestPreDev_ReplacesAnalysis(t *testing.T) {
	s := openTestStore(t)
	c := cardWith(t, s, card.Patch{Spec: str("the spec")})
	want := models.PreDevAnalysis{Introduction: "i", ImpactAnalysis: "a", HowToCode: "h", TestApproach: "t"}
	p := &stubProvider{analysis: want}

	got, err := New(s, p, nil).PreDev(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, want, got.PreDevAnalysis.Data())
	assert.Equal(t, []string{"the spec"}, p.inputs)
}

func TestPreDev_MalformedLeavesCardUntouched(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	prior := models.PreDevAnalysis{Introduction: "old intro"}
	c := cardWith(t, s, card.Patch{Spec: str("spec"), PreDevAnalysis: &prior})
	before, err := card.Get(ctx, s, c.ID)
	require.NoError(t, err)

	p := &stubProvider{err: &ai.Error{Op: ai.OpPreDev, Kind: ai.ErrMalformedResponse, Provider: ai.OpenAI}}
	_, err = New(s, p, nil).PreDev(ctx, c.ID)
	assert.ErrorIs(t, err, ai.ErrMalformedResponse)

	after, err := card.Get(ctx, s, c.ID)
	require.NoError(t, err)
	assert.Equal(t, before.PreDevAnalysis.Data(), after.PreDevAnalysis.Data())
	assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))
}

func TestGenerators_RequireSpec(t *testing.T) {
	s := openTestStore(t)
	c := cardWith(t, s, card.Patch{Spec: str("  ")})
	svc := New(s, &stubProvider{}, nil)

	_, err := svc.PreDev(context.Background(), c.ID)
	assert.ErrorIs(t, err, ErrSpecRequired)
	_, err = svc.TestCases(context.Background(), c.ID)
	assert.ErrorIs(t, err, ErrSpecRequired)
}

func TestTestCases_AppendsPending(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	c := cardWith(t, s, card.Patch{Spec: str("spec")})
	_, _, err := card.AddTestCase(ctx, s, c.ID, "manual", "in", "out")
	require.NoError(t, err)

	p := &stubProvider{drafts: []ai.TestCaseDraft{
		{Description: "d1", Input: "i1", ExpectedResult: "e1"},
		{Description: "d2", Input: "i2", ExpectedResult: "e2"},
	}}
	got, err := New(s, p, nil).TestCases(ctx, c.ID)
	require.NoError(t, err)

	require.Len(t, got.TestCases, 3)
	assert.Equal(t, "manual", got.TestCases[0].Description)
	seen := map[string]bool{}
	for _, tc := range got.TestCases[1:] {
		assert.Equal(t, models.TestCasePending, tc.Status)
		assert.NotEmpty(t, tc.ID)
		assert.False(t, seen[tc.ID], "duplicate id")
		seen[tc.ID] = true
	}
	assert.Equal(t, "d2", got.TestCases[2].Description)
}

func TestTestCases_FailureLeavesCardUntouched(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	c := cardWith(t, s, card.Patch{Spec: str("spec")})

	_, err := New(s, &stubProvider{err: &ai.Error{Op: ai.OpTestCases, Kind: ai.ErrRateLimited}}, nil).TestCases(ctx, c.ID)
	assert.ErrorIs(t, err, ai.ErrRateLimited)
	got, _ := card.Get(ctx, s, c.ID)
	assert.Empty(t, got.TestCases)
}

func TestTitle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	c := cardWith(t, s, card.Patch{Requirement: str("  Export cards as CSV  ")})
	p := &stubProvider{title: "CSV export"}

	got, err := New(s, p, nil).Title(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "CSV export", got.Title)
	assert.Equal(t, []string{"Export cards as CSV"}, p.inputs)
}

func TestTitle_Errors(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	empty := cardWith(t, s, card.Patch{Requirement: str(" ")})
	_, err := New(s, &stubProvider{}, nil).Title(ctx, empty.ID)
	assert.ErrorIs(t, err, ErrRequirementRequired)

	c := cardWith(t, s, card.Patch{Requirement: str("req")})
	aerr := &ai.Error{Op: ai.OpTitle, Kind: ai.ErrCredentialMissing}
	_, err = New(s, &stubProvider{err: aerr}, nil).Title(ctx, c.ID)
	assert.ErrorIs(t, err, ai.ErrCredentialMissing)
	assert.Contains(t, err.Error(), "API Key not set")

	got, _ := card.Get(ctx, s, c.ID)
	assert.Equal(t, "Task", got.Title)
}

func TestSpecIsAugmentedWithKnowledge(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	c := cardWith(t, s, card.Patch{Spec: str("the spec")})
	f, err := knowledge.Create(ctx, s, "arch.md", "layers", 0)
	require.NoError(t, err)
	_, err = card.AttachKnowledgeFile(ctx, s, c.ID, f.ID)
	require.NoError(t, err)

	p := &stubProvider{drafts: []ai.TestCaseDraft{{Description: "d"}}}
	_, err = New(s, p, nil).TestCases(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, p.inputs, 1)
	assert.Contains(t, p.inputs[0], "--- CONTEXT FROM FILE: arch.md ---")
	assert.True(t, strings.HasSuffix(p.inputs[0], "the spec"))
}
