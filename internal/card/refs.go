package card

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/devtask/internal/db"
	"github.com/zulandar/devtask/internal/models"
	"gorm.io/gorm"
)

// AttachKnowledgeFile adds a knowledge file to the card's context set. The
// file must exist.
func AttachKnowledgeFile(ctx context.Context, s *db.Store, cardID, fileID uint) (*models.Card, error) {
	c, err := attach(ctx, s, cardID, db.ColumnKnowledgeFileIDs, fileID, &models.KnowledgeFile{})
	if err != nil {
		return nil, fmt.Errorf("card: attach knowledge file %d to %d: %w", fileID, cardID, err)
	}
	return c, nil
}

// DetachKnowledgeFile removes a knowledge file from the card's context set.
func DetachKnowledgeFile(ctx context.Context, s *db.Store, cardID, fileID uint) (*models.Card, error) {
	c, err := detach(ctx, s, cardID, db.ColumnKnowledgeFileIDs, fileID)
	if err != nil {
		return nil, fmt.Errorf("card: detach knowledge file %d from %d: %w", fileID, cardID, err)
	}
	return c, nil
}

// AttachTag adds a tag to the card. The tag must exist.
func AttachTag(ctx context.Context, s *db.Store, cardID, tagID uint) (*models.Card, error) {
	c, err := attach(ctx, s, cardID, db.ColumnTagIDs, tagID, &models.Tag{})
	if err != nil {
		return nil, fmt.Errorf("card: attach tag %d to %d: %w", tagID, cardID, err)
	}
	return c, nil
}

// DetachTag removes a tag from the card.
func DetachTag(ctx context.Context, s *db.Store, cardID, tagID uint) (*models.Card, error) {
	c, err := detach(ctx, s, cardID, db.ColumnTagIDs, tagID)
	if err != nil {
		return nil, fmt.Errorf("card: detach tag %d from %d: %w", tagID, cardID, err)
	}
	return c, nil
}

func refIDs(c *models.Card, column string) []uint {
	if column == db.ColumnTagIDs {
		return c.TagIDs
	}
	return c.KnowledgeFileIDs
}

func attach(ctx context.Context, s *db.Store, cardID uint, column string, refID uint, model interface{}) (*models.Card, error) {
	var out *models.Card
	err := s.Write(ctx, func(tx *gorm.DB) error {
		if err := tx.Select("id").First(model, refID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s %d", db.ErrNotFound, column, refID)
			}
			return err
		}
		c, err := get(tx, cardID)
		if err != nil {
			return err
		}
		ids := append(append([]uint{}, refIDs(c, column)...), refID)
		if err := tx.Model(&models.Card{}).Where("id = ?", cardID).Updates(map[string]interface{}{
			column:       db.UniqueIDs(ids),
			"updated_at": time.Now(),
		}).Error; err != nil {
			return err
		}
		out, err = get(tx, cardID)
		return err
	}, db.Cards)
	return out, err
}

func detach(ctx context.Context, s *db.Store, cardID uint, column string, refID uint) (*models.Card, error) {
	return mutate(ctx, s, cardID, func(c *models.Card) (map[string]interface{}, error) {
		return map[string]interface{}{column: db.RemoveID(refIDs(c, column), refID)}, nil
	})
}
