// Package card provides card lifecycle operations.
package card

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/zulandar/devtask/internal/db"
	"github.com/zulandar/devtask/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrInvalidStatus means a status outside Todo, In Progress and Done.
var ErrInvalidStatus = errors.New("invalid status")

// ListFilters holds optional filters for listing cards.
type ListFilters struct {
	Status          string
	TagID           uint
	KnowledgeFileID uint
}

// Patch holds the fields to change on a card. Nil fields are left as is.
type Patch struct {
	Title                  *string
	Status                 *string
	Requirement            *string
	ReferenceLink          *string
	Spec                   *string
	PreDevAnalysis         *models.PreDevAnalysis
	TestCases              *[]models.TestCase
	RequirementChatHistory *[]models.ChatMessage
	KnowledgeFileIDs       *[]uint
	TagIDs                 *[]uint
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p == Patch{}
}

// DefaultTitle is the title given to a card created without one.
func DefaultTitle(now time.Time) string {
	return "New Task - " + now.Format("2006-01-02 15:04:05")
}

// Create creates a new Todo card with empty content.
func Create(ctx context.Context, s *db.Store, title string) (*models.Card, error) {
	if title == "" {
		title = DefaultTitle(time.Now())
	}
	c := models.Card{
		Title:                  title,
		Status:                 models.StatusTodo,
		PreDevAnalysis:         datatypes.NewJSONType(models.PreDevAnalysis{}),
		TestCases:              datatypes.JSONSlice[models.TestCase]{},
		RequirementChatHistory: datatypes.JSONSlice[models.ChatMessage]{},
		KnowledgeFileIDs:       datatypes.JSONSlice[uint]{},
		TagIDs:                 datatypes.JSONSlice[uint]{},
	}
	err := s.Write(ctx, func(tx *gorm.DB) error {
		return tx.Create(&c).Error
	}, db.Cards)
	if err != nil {
		return nil, fmt.Errorf("card: create: %w", err)
	}
	return &c, nil
}

// Get retrieves a card by ID.
func Get(ctx context.Context, s *db.Store, id uint) (*models.Card, error) {
	c, err := get(s.DB.WithContext(ctx), id)
	if err != nil {
		return nil, fmt.Errorf("card: %w", err)
	}
	return c, nil
}

func get(tx *gorm.DB, id uint) (*models.Card, error) {
	var c models.Card
	if err := tx.First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: card %d", db.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get %d: %w: %w", id, db.ErrStoreUnavailable, err)
	}
	return &c, nil
}

// List returns cards matching the given filters, oldest first.
func List(ctx context.Context, s *db.Store, f ListFilters) ([]models.Card, error) {
	return ListTx(s.DB.WithContext(ctx), f)
}

// ListTx is List against an existing connection or transaction. Live queries
// use it to re-evaluate a filtered board.
func ListTx(tx *gorm.DB, f ListFilters) ([]models.Card, error) {
	if f.Status != "" && !models.IsValidStatus(f.Status) {
		return nil, fmt.Errorf("card: %w: %q", ErrInvalidStatus, f.Status)
	}
	where := sq.And{}
	if f.Status != "" {
		where = append(where, sq.Eq{"status": f.Status})
	}
	dialect := tx.Dialector.Name()
	if f.TagID != 0 {
		pred, err := db.ReferencePredicate(dialect, db.ColumnTagIDs, f.TagID)
		if err != nil {
			return nil, fmt.Errorf("card: list: %w", err)
		}
		where = append(where, pred)
	}
	if f.KnowledgeFileID != 0 {
		pred, err := db.ReferencePredicate(dialect, db.ColumnKnowledgeFileIDs, f.KnowledgeFileID)
		if err != nil {
			return nil, fmt.Errorf("card: list: %w", err)
		}
		where = append(where, pred)
	}
	q, err := db.Where(tx, where)
	if err != nil {
		return nil, fmt.Errorf("card: list: %w", err)
	}

	var cards []models.Card
	if err := q.Order("created_at, id").Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("card: list: %w: %w", db.ErrStoreUnavailable, err)
	}
	return cards, nil
}

// Update merges the non-nil fields of p into the card and stamps UpdatedAt.
func Update(ctx context.Context, s *db.Store, id uint, p Patch) (*models.Card, error) {
	if p.Status != nil && !models.IsValidStatus(*p.Status) {
		return nil, fmt.Errorf("card: update %d: %w: %q", id, ErrInvalidStatus, *p.Status)
	}
	var out *models.Card
	err := s.Write(ctx, func(tx *gorm.DB) error {
		if _, err := get(tx, id); err != nil {
			return err
		}
		updates := p.columns()
		updates["updated_at"] = time.Now()
		if err := tx.Model(&models.Card{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		c, err := get(tx, id)
		if err != nil {
			return err
		}
		out = c
		return nil
	}, db.Cards)
	if err != nil {
		return nil, fmt.Errorf("card: update %d: %w", id, err)
	}
	return out, nil
}

// Apply loads the card in a transaction, lets fn derive a patch from its
// current state and writes it. An error from fn rolls back and is returned
// as is, wrapped only with the card prefix.
func Apply(ctx context.Context, s *db.Store, id uint, fn func(c *models.Card) (Patch, error)) (*models.Card, error) {
	c, err := mutate(ctx, s, id, func(c *models.Card) (map[string]interface{}, error) {
		p, err := fn(c)
		if err != nil {
			return nil, err
		}
		if p.Status != nil && !models.IsValidStatus(*p.Status) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *p.Status)
		}
		return p.columns(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("card: update %d: %w", id, err)
	}
	return c, nil
}

// columns converts the patch to a column map. Set fields are de-duplicated
// and list fields are never written as null.
func (p Patch) columns() map[string]interface{} {
	m := make(map[string]interface{})
	if p.Title != nil {
		m["title"] = *p.Title
	}
	if p.Status != nil {
		m["status"] = *p.Status
	}
	if p.Requirement != nil {
		m["requirement"] = *p.Requirement
	}
	if p.ReferenceLink != nil {
		m["reference_link"] = *p.ReferenceLink
	}
	if p.Spec != nil {
		m["spec"] = *p.Spec
	}
	if p.PreDevAnalysis != nil {
		m["pre_dev_analysis"] = datatypes.NewJSONType(*p.PreDevAnalysis)
	}
	if p.TestCases != nil {
		tcs := datatypes.JSONSlice[models.TestCase]{}
		m["test_cases"] = append(tcs, *p.TestCases...)
	}
	if p.RequirementChatHistory != nil {
		hist := datatypes.JSONSlice[models.ChatMessage]{}
		m["requirement_chat_history"] = append(hist, *p.RequirementChatHistory...)
	}
	if p.KnowledgeFileIDs != nil {
		m[db.ColumnKnowledgeFileIDs] = db.UniqueIDs(*p.KnowledgeFileIDs)
	}
	if p.TagIDs != nil {
		m[db.ColumnTagIDs] = db.UniqueIDs(*p.TagIDs)
	}
	return m
}

// Delete removes a card. Deleting a missing card is not an error.
func Delete(ctx context.Context, s *db.Store, id uint) error {
	err := s.Write(ctx, func(tx *gorm.DB) error {
		return tx.Delete(&models.Card{}, id).Error
	}, db.Cards)
	if err != nil {
		return fmt.Errorf("card: delete %d: %w", id, err)
	}
	return nil
}

// mutate loads the card inside a transaction, lets fn compute column
// updates from it and writes them with a fresh UpdatedAt.
func mutate(ctx context.Context, s *db.Store, id uint, fn func(c *models.Card) (map[string]interface{}, error)) (*models.Card, error) {
	var out *models.Card
	err := s.Write(ctx, func(tx *gorm.DB) error {
		c, err := get(tx, id)
		if err != nil {
			return err
		}
		updates, err := fn(c)
		if err != nil {
			return db.Abort(err)
		}
		updates["updated_at"] = time.Now()
		if err := tx.Model(&models.Card{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		out, err = get(tx, id)
		return err
	}, db.Cards)
	return out, err
}
