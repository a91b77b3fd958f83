package knowledge

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zulandar/devtask/internal/card"
	"github.com/zulandar/devtask/internal/config"
	"github.com/zulandar/devtask/internal/db"
	"github.com/zulandar/devtask/internal/models"
)

func openTestStore(t *testing.T) *db.Store {
	t.Helper()
	cfg := config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "kb.db")}
	s, err := db.Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreate(t *testing.T) {
	s := openTestStore(t)
	f, err := Create(context.Background(), s, "notes.txt", "hello", 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if f.ID == 0 || f.CreatedAt.IsZero() {
		t.Errorf("file = %+v, want ID and CreatedAt", f)
	}
	got, err := Get(context.Background(), s, f.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "notes.txt" || got.Content != "hello" {
		t.Errorf("got = %+v", got)
	}
}

func TestCreate_EmptyContentAllowed(t *testing.T) {
	s := openTestStore(t)
	if _, err := Create(context.Background(), s, "empty.md", "", 10); err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func TestCreate_Validation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := Create(ctx, s, "  ", "x", 0); !errors.Is(err, ErrNameRequired) {
		t.Errorf("blank name: err = %v, want ErrNameRequired", err)
	}
	if _, err := Create(ctx, s, "big.txt", strings.Repeat("a", 11), 10); !errors.Is(err, ErrTooLarge) {
		t.Errorf("oversize: err = %v, want ErrTooLarge", err)
	}
	if _, err := Create(ctx, s, "edge.txt", strings.Repeat("a", 10), 10); err != nil {
		t.Errorf("at bound: %v", err)
	}
	files, _ := List(ctx, s)
	if len(files) != 1 {
		t.Errorf("len(files) = %d, want 1", len(files))
	}
}

func TestGet_NotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := Get(context.Background(), s, 5); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete_PurgesReferencesFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	c, _ := card.Create(ctx, s, "New Task")
	f, err := Create(ctx, s, "notes.txt", "ctx", 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	other, _ := Create(ctx, s, "other.txt", "o", 0)
	card.AttachKnowledgeFile(ctx, s, c.ID, f.ID)
	card.AttachKnowledgeFile(ctx, s, c.ID, other.ID)

	if err := Delete(ctx, s, f.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	got, _ := card.Get(ctx, s, c.ID)
	if got.HasKnowledgeFile(f.ID) {
		t.Errorf("card still references deleted file: %v", got.KnowledgeFileIDs)
	}
	if !got.HasKnowledgeFile(other.ID) {
		t.Errorf("unrelated reference dropped: %v", got.KnowledgeFileIDs)
	}
	if _, err := Get(ctx, s, f.ID); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("file still present: %v", err)
	}
	refs, _ := card.List(ctx, s, card.ListFilters{KnowledgeFileID: f.ID})
	if len(refs) != 0 {
		t.Errorf("%d cards still reference file %d", len(refs), f.ID)
	}
}

func TestDelete_MissingIsNoop(t *testing.T) {
	s := openTestStore(t)
	if err := Delete(context.Background(), s, 123); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
}

func TestForCard_SkipsMissingAndKeepsOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a, _ := Create(ctx, s, "a.txt", "A", 0)
	b, _ := Create(ctx, s, "b.txt", "B", 0)

	c := &models.Card{KnowledgeFileIDs: []uint{b.ID, 999, a.ID}}
	files, err := ForCard(ctx, s, c)
	if err != nil {
		t.Fatalf("ForCard: %v", err)
	}
	if len(files) != 2 || files[0].ID != b.ID || files[1].ID != a.ID {
		t.Errorf("files = %+v, want [b a]", files)
	}

	none, err := ForCard(ctx, s, &models.Card{})
	if err != nil || len(none) != 0 {
		t.Errorf("ForCard(empty) = %v, %v", none, err)
	}
}

func TestAugment(t *testing.T) {
	files := []models.KnowledgeFile{
		{Name: "api.md", Content: "GET /cards"},
		{Name: "style.md", Content: "tabs"},
	}
	got := Augment("Add dark mode", files)

	if !strings.HasPrefix(got, augmentHeader) {
		t.Errorf("missing header: %q", got)
	}
	if !strings.HasSuffix(got, "Now, here is my original request:\n\nAdd dark mode") {
		t.Errorf("missing original request at end: %q", got)
	}
	wantBlock := "--- CONTEXT FROM FILE: api.md ---\nGET /cards\n--- END OF CONTEXT FROM FILE: api.md ---\n\n--- CONTEXT FROM FILE: style.md ---"
	if !strings.Contains(got, wantBlock) {
		t.Errorf("blocks not joined as expected: %q", got)
	}
}

func TestAugment_NoFiles(t *testing.T) {
	if got := Augment("plain", nil); got != "plain" {
		t.Errorf("Augment(no files) = %q, want unchanged", got)
	}
}
