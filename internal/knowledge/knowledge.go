// Package knowledge manages the knowledge base: text files that can be
// attached to cards and prepended to AI requests as context.
package knowledge

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
	// ErrTooLarge means the file content exceeds the configured bound.
	ErrTooLarge = errors.New("file too large")
	// ErrNameRequired means the file has no name.
	ErrNameRequired = errors.New("name is required")
)

// Create stores a new knowledge file. maxBytes <= 0 disables the size bound.
func Create(ctx context.Context, s *db.Store, name, content string, maxBytes int) (*models.KnowledgeFile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("knowledge: create: %w", ErrNameRequired)
	}
	if maxBytes > 0 && len(content) > maxBytes {
		return nil, fmt.Errorf("knowledge: create %s: %w: %d bytes exceeds %d", name, ErrTooLarge, len(content), maxBytes)
	}
	f := models.KnowledgeFile{Name: name, Content: content}
	err := s.Write(ctx, func(tx *gorm.DB) error {
		return tx.Create(&f).Error
	}, db.KnowledgeFiles)
	if err != nil {
		return nil, fmt.Errorf("knowledge: create %s: %w", name, err)
	}
	return &f, nil
}

// Get retrieves a knowledge file by ID.
func Get(ctx context.Context, s *db.Store, id uint) (*models.KnowledgeFile, error) {
	var f models.KnowledgeFile
	if err := s.DB.WithContext(ctx).First(&f, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("knowledge: %w: file %d", db.ErrNotFound, id)
		}
		return nil, fmt.Errorf("knowledge: get %d: %w: %w", id, db.ErrStoreUnavailable, err)
	}
	return &f, nil
}

// List returns all knowledge files, oldest first.
func List(ctx context.Context, s *db.Store) ([]models.KnowledgeFile, error) {
	return ListTx(s.DB.WithContext(ctx))
}

// ListTx is List against an existing connection or transaction.
func ListTx(tx *gorm.DB) ([]models.KnowledgeFile, error) {
	var files []models.KnowledgeFile
	if err := tx.Order("created_at, id").Find(&files).Error; err != nil {
		return nil, fmt.Errorf("knowledge: list: %w: %w", db.ErrStoreUnavailable, err)
	}
	return files, nil
}

// ForCard returns the files the card references, in the card's order.
// References to files that no longer exist are skipped.
func ForCard(ctx context.Context, s *db.Store, c *models.Card) ([]models.KnowledgeFile, error) {
	if len(c.KnowledgeFileIDs) == 0 {
		return nil, nil
	}
	var found []models.KnowledgeFile
	if err := s.DB.WithContext(ctx).Where("id IN ?", []uint(c.KnowledgeFileIDs)).Find(&found).Error; err != nil {
		return nil, fmt.Errorf("knowledge: files for card %d: %w: %w", c.ID, db.ErrStoreUnavailable, err)
	}
	byID := make(map[uint]models.KnowledgeFile, len(found))
	for _, f := range found {
		byID[f.ID] = f
	}
	out := make([]models.KnowledgeFile, 0, len(found))
	for _, id := range c.KnowledgeFileIDs {
		if f, ok := byID[id]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// Delete removes a knowledge file after purging it from every card that
// references it. Deleting a missing file is not an error.
func Delete(ctx context.Context, s *db.Store, id uint) error {
	_, err := s.PurgeReference(ctx, db.ColumnKnowledgeFileIDs, id, db.KnowledgeFiles, func(tx *gorm.DB) error {
		return tx.Delete(&models.KnowledgeFile{}, id).Error
	})
	if err != nil {
		return fmt.Errorf("knowledge: delete %d: %w", id, err)
	}
	return nil
}
