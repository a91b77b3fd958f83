package tag

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/zulandar/devtask/internal/card"
	"github.com/zulandar/devtask/internal/config"
	"github.com/zulandar/devtask/internal/db"
	"github.com/zulandar/devtask/internal/models"
)

func openTestStore(t *testing.T) *db.Store {
	t.Helper()
	cfg := config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "tag.db")}
	s, err := db.Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreate(t *testing.T) {
	s := openTestStore(t)
	tg, err := Create(context.Background(), s, "backend", "indigo")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tg.ID == 0 || tg.Name != "backend" || tg.Color != "indigo" {
		t.Errorf("tag = %+v", tg)
	}
}

func TestCreate_DuplicateName(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := Create(ctx, s, "bug", "red"); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err := Create(ctx, s, "bug", "blue")
	if !errors.Is(err, db.ErrDuplicateName) {
		t.Fatalf("err = %v, want ErrDuplicateName", err)
	}
	tags, _ := List(ctx, s)
	if len(tags) != 1 || tags[0].Color != "red" {
		t.Errorf("tags = %+v, want only the original", tags)
	}
}

func TestCreate_NamesAreCaseSensitive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := Create(ctx, s, "Bug", "red"); err != nil {
		t.Fatalf("Create Bug: %v", err)
	}
	if _, err := Create(ctx, s, "bug", "red"); err != nil {
		t.Fatalf("Create bug: %v", err)
	}
}

func TestCreate_TrimsName(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tg, err := Create(ctx, s, "  ops ", "teal")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tg.Name != "ops" {
		t.Errorf("name = %q, want %q", tg.Name, "ops")
	}
	if _, err := Create(ctx, s, "ops", "red"); !errors.Is(err, db.ErrDuplicateName) {
		t.Errorf("err = %v, want ErrDuplicateName", err)
	}
}

func TestCreate_Validation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := Create(ctx, s, "x", "magenta"); !errors.Is(err, ErrInvalidColor) {
		t.Errorf("bad color: err = %v, want ErrInvalidColor", err)
	}
	if _, err := Create(ctx, s, "", "red"); !errors.Is(err, ErrNameRequired) {
		t.Errorf("empty name: err = %v, want ErrNameRequired", err)
	}
}

func TestList_OrderedByName(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for _, n := range []string{"zeta", "alpha", "mid"} {
		Create(ctx, s, n, "slate")
	}
	tags, err := List(ctx, s)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(tags) != 3 || tags[0].Name != "alpha" || tags[2].Name != "zeta" {
		t.Errorf("tags = %+v", tags)
	}
}

func TestGetByName(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	want, _ := Create(ctx, s, "ops", "amber")
	got, err := GetByName(ctx, s, "ops")
	if err != nil || got.ID != want.ID {
		t.Fatalf("GetByName = %+v, %v", got, err)
	}
	if _, err := GetByName(ctx, s, "nope"); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete_PurgesReferences(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tg, _ := Create(ctx, s, "frontend", "cyan")
	keep, _ := Create(ctx, s, "keep", "green")
	c1, _ := card.Create(ctx, s, "one")
	c2, _ := card.Create(ctx, s, "two")
	card.AttachTag(ctx, s, c1.ID, tg.ID)
	card.AttachTag(ctx, s, c2.ID, tg.ID)
	card.AttachTag(ctx, s, c2.ID, keep.ID)

	if err := Delete(ctx, s, tg.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	for _, id := range []uint{c1.ID, c2.ID} {
		c, _ := card.Get(ctx, s, id)
		if c.HasTag(tg.ID) {
			t.Errorf("card %d still references deleted tag", id)
		}
	}
	c, _ := card.Get(ctx, s, c2.ID)
	if !c.HasTag(keep.ID) {
		t.Error("unrelated tag dropped")
	}
	if _, err := Get(ctx, s, tg.ID); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("tag still present: %v", err)
	}
}

func TestDelete_MissingIsNoop(t *testing.T) {
	s := openTestStore(t)
	if err := Delete(context.Background(), s, 9); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
}

func TestForCard(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a, _ := Create(ctx, s, "a", "red")
	b, _ := Create(ctx, s, "b", "blue")
	tags, err := ForCard(ctx, s, &models.Card{TagIDs: []uint{b.ID, 404, a.ID}})
	if err != nil {
		t.Fatalf("ForCard: %v", err)
	}
	if len(tags) != 2 || tags[0].Name != "b" || tags[1].Name != "a" {
		t.Errorf("tags = %+v", tags)
	}
}
