package db

import (
	"context"
	"fmt"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/zulandar/devtask/internal/models"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Set-valued card columns that hold references to other entities.
const (
	ColumnKnowledgeFileIDs = "knowledge_file_ids"
	ColumnTagIDs           = "tag_ids"
)

func validRefColumn(column string) bool {
	return column == ColumnKnowledgeFileIDs || column == ColumnTagIDs
}

// ReferencePredicate matches cards whose set column contains id. The JSON
// membership test is dialect specific.
func ReferencePredicate(dialect, column string, id uint) (sq.Sqlizer, error) {
	if !validRefColumn(column) {
		return nil, fmt.Errorf("db: %q is not a reference column", column)
	}
	switch dialect {
	case "mysql":
		return sq.Expr("JSON_CONTAINS(cards."+column+", ?)", strconv.FormatUint(uint64(id), 10)), nil
	default:
		return sq.Expr("EXISTS (SELECT 1 FROM json_each(cards."+column+") WHERE json_each.value = ?)", id), nil
	}
}

// Where applies a squirrel predicate to a GORM query.
func Where(tx *gorm.DB, pred sq.Sqlizer) (*gorm.DB, error) {
	sql, args, err := pred.ToSql()
	if err != nil {
		return nil, fmt.Errorf("db: build predicate: %w", err)
	}
	return tx.Where(sql, args...), nil
}

// CardsReferencing returns the cards whose set column contains id, oldest first.
func CardsReferencing(tx *gorm.DB, column string, id uint) ([]models.Card, error) {
	pred, err := ReferencePredicate(tx.Dialector.Name(), column, id)
	if err != nil {
		return nil, err
	}
	q, err := Where(tx, pred)
	if err != nil {
		return nil, err
	}
	var cards []models.Card
	if err := q.Order("created_at, id").Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("db: cards referencing %s=%d: %w", column, id, err)
	}
	return cards, nil
}

// RemoveID returns ids without id. The result is never nil.
func RemoveID(ids []uint, id uint) datatypes.JSONSlice[uint] {
	out := datatypes.JSONSlice[uint]{}
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// UniqueIDs returns ids with duplicates removed, order preserved. The result
// is never nil.
func UniqueIDs(ids []uint) datatypes.JSONSlice[uint] {
	seen := make(map[uint]bool, len(ids))
	out := datatypes.JSONSlice[uint]{}
	for _, v := range ids {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// PurgeReference removes id from column on every referencing card and then
// runs deleteEntity, all in one transaction. References always go first so
// that no committed state has a card pointing at a deleted entity.
func (s *Store) PurgeReference(ctx context.Context, column string, id uint, entity Collection, deleteEntity func(tx *gorm.DB) error) (int, error) {
	purged := 0
	err := s.Write(ctx, func(tx *gorm.DB) error {
		cards, err := CardsReferencing(tx, column, id)
		if err != nil {
			return err
		}
		now := time.Now()
		for _, c := range cards {
			ids := c.KnowledgeFileIDs
			if column == ColumnTagIDs {
				ids = c.TagIDs
			}
			if err := tx.Model(&models.Card{}).Where("id = ?", c.ID).Updates(map[string]interface{}{
				column:       RemoveID(ids, id),
				"updated_at": now,
			}).Error; err != nil {
				return fmt.Errorf("purge %s=%d from card %d: %w", column, id, c.ID, err)
			}
		}
		purged = len(cards)
		return deleteEntity(tx)
	}, Cards, entity)
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		s.log.Debug("purged references", zap.String("column", column), zap.Uint("id", id), zap.Int("cards", purged))
	}
	return purged, nil
}

// SweepResult reports what SweepDanglingRefs repaired.
type SweepResult struct {
	CardsUpdated      int
	KnowledgeFileRefs int
	TagRefs           int
}

// SweepDanglingRefs drops references to knowledge files and tags that no
// longer exist. It repairs stores written by a process that died between a
// reference cleanup and the entity delete.
func (s *Store) SweepDanglingRefs(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	err := s.Write(ctx, func(tx *gorm.DB) error {
		files, err := existingIDs(tx, &models.KnowledgeFile{})
		if err != nil {
			return err
		}
		tags, err := existingIDs(tx, &models.Tag{})
		if err != nil {
			return err
		}
		var cards []models.Card
		if err := tx.Order("id").Find(&cards).Error; err != nil {
			return err
		}
		now := time.Now()
		for _, c := range cards {
			keptFiles, droppedFiles := keepExisting(c.KnowledgeFileIDs, files)
			keptTags, droppedTags := keepExisting(c.TagIDs, tags)
			if droppedFiles == 0 && droppedTags == 0 {
				continue
			}
			if err := tx.Model(&models.Card{}).Where("id = ?", c.ID).Updates(map[string]interface{}{
				ColumnKnowledgeFileIDs: keptFiles,
				ColumnTagIDs:           keptTags,
				"updated_at":           now,
			}).Error; err != nil {
				return fmt.Errorf("sweep card %d: %w", c.ID, err)
			}
			res.CardsUpdated++
			res.KnowledgeFileRefs += droppedFiles
			res.TagRefs += droppedTags
		}
		return nil
	}, Cards)
	if err != nil {
		return SweepResult{}, fmt.Errorf("db: sweep: %w", err)
	}
	if res.CardsUpdated > 0 {
		s.log.Info("swept dangling references",
			zap.Int("cards", res.CardsUpdated),
			zap.Int("knowledge_file_refs", res.KnowledgeFileRefs),
			zap.Int("tag_refs", res.TagRefs))
	}
	return res, nil
}

func existingIDs(tx *gorm.DB, model interface{}) (map[uint]bool, error) {
	var ids []uint
	if err := tx.Model(model).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	set := make(map[uint]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

func keepExisting(ids []uint, existing map[uint]bool) (datatypes.JSONSlice[uint], int) {
	kept := datatypes.JSONSlice[uint]{}
	dropped := 0
	for _, id := range ids {
		if existing[id] {
			kept = append(kept, id)
		} else {
			dropped++
		}
	}
	return kept, dropped
}
