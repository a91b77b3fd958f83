// Package tag manages card labels.
package tag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/devtask/internal/db"
	"github.com/zulandar/devtask/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrInvalidColor means a colour outside the tag palette.
	ErrInvalidColor = errors.New("invalid color")
	// ErrNameRequired means the tag has no name.
	ErrNameRequired = errors.New("name is required")
)

// Create adds a tag. Names are trimmed, then unique and case-sensitive.
func Create(ctx context.Context, s *db.Store, name, color string) (*models.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("tag: create: %w", ErrNameRequired)
	}
	if !models.IsValidTagColor(color) {
		return nil, fmt.Errorf("tag: create %s: %w: %q", name, ErrInvalidColor, color)
	}
	t := models.Tag{Name: name, Color: color}
	err := s.Write(ctx, func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Tag{}).Where("name = ?", name).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %q", db.ErrDuplicateName, name)
		}
		// The unique index still guards against a concurrent insert.
		return tx.Create(&t).Error
	}, db.Tags)
	if err != nil {
		return nil, fmt.Errorf("tag: create %s: %w", name, err)
	}
	return &t, nil
}

// Get retrieves a tag by ID.
func Get(ctx context.Context, s *db.Store, id uint) (*models.Tag, error) {
	var t models.Tag
	if err := s.DB.WithContext(ctx).First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("tag: %w: tag %d", db.ErrNotFound, id)
		}
		return nil, fmt.Errorf("tag: get %d: %w: %w", id, db.ErrStoreUnavailable, err)
	}
	return &t, nil
}

// GetByName retrieves a tag by exact name.
func GetByName(ctx context.Context, s *db.Store, name string) (*models.Tag, error) {
	var t models.Tag
	if err := s.DB.WithContext(ctx).Where("name = ?", name).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("tag: %w: %q", db.ErrNotFound, name)
		}
		return nil, fmt.Errorf("tag: get %q: %w: %w", name, db.ErrStoreUnavailable, err)
	}
	return &t, nil
}

// List returns all tags ordered by name.
func List(ctx context.Context, s *db.Store) ([]models.Tag, error) {
	return ListTx(s.DB.WithContext(ctx))
}

// ListTx is List against an existing connection or transaction.
func ListTx(tx *gorm.DB) ([]models.Tag, error) {
	var tags []models.Tag
	if err := tx.Order("name").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("tag: list: %w: %w", db.ErrStoreUnavailable, err)
	}
	return tags, nil
}

// ForCard returns the card's tags in the card's order, skipping missing ones.
func ForCard(ctx context.Context, s *db.Store, c *models.Card) ([]models.Tag, error) {
	if len(c.TagIDs) == 0 {
		return nil, nil
	}
	var found []models.Tag
	if err := s.DB.WithContext(ctx).Where("id IN ?", []uint(c.TagIDs)).Find(&found).Error; err != nil {
		return nil, fmt.Errorf("tag: tags for card %d: %w: %w", c.ID, db.ErrStoreUnavailable, err)
	}
	byID := make(map[uint]models.Tag, len(found))
	for _, t := range found {
		byID[t.ID] = t
	}
	out := make([]models.Tag, 0, len(found))
	for _, id := range c.TagIDs {
		if t, ok := byID[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// Delete removes a tag after purging it from every card that references it.
// Deleting a missing tag is not an error.
func Delete(ctx context.Context, s *db.Store, id uint) error {
	_, err := s.PurgeReference(ctx, db.ColumnTagIDs, id, db.Tags, func(tx *gorm.DB) error {
		return tx.Delete(&models.Tag{}, id).Error
	})
	if err != nil {
		return fmt.Errorf("tag: delete %d: %w", id, err)
	}
	return nil
}
