// Package db opens the card store, migrates its schema and provides the
// transactional write path that drives live queries.
package db

import (
	"context"
	"fmt"
	"sync"

	"github.com/zulandar/devtask/internal/config"
	"github.com/zulandar/devtask/internal/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Collection names a table that live queries can observe.
type Collection string

const (
	Cards          Collection = "cards"
	KnowledgeFiles Collection = "knowledge_files"
	Tags           Collection = "tags"
	Settings       Collection = "settings"
)

// Store is a migrated handle to the card store. It is safe for concurrent use.
type Store struct {
	DB  *gorm.DB
	log *zap.Logger

	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
}

// NewStore wraps an already migrated connection.
func NewStore(gdb *gorm.DB, log *zap.Logger) *Store {
	return &Store{
		DB:   gdb,
		log:  logging.OrNop(log).Named("db"),
		subs: make(map[uint64]*Subscription),
	}
}

// Open connects to the configured store and applies pending migrations. A
// store that fails to migrate is closed and never returned.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*Store, error) {
	gdb, err := Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("db: open: %w: %w", ErrStoreUnavailable, err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("db: open: %w: %w", ErrStoreUnavailable, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("db: open: %w: %w", ErrStoreUnavailable, err)
	}
	if err := Migrate(gdb.WithContext(ctx)); err != nil {
		sqlDB.Close()
		return nil, err
	}
	s := NewStore(gdb, log)
	s.log.Debug("store opened", zap.String("driver", cfg.Driver), zap.Int("schema_version", LatestVersion()))
	return s, nil
}

// Close releases the connection pool and detaches all live queries.
func (s *Store) Close() error {
	s.mu.Lock()
	subs := make([]*Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()
	for _, sub := range subs {
		sub.Close()
	}

	sqlDB, err := s.DB.DB()
	if err != nil {
		return fmt.Errorf("db: close: %w", err)
	}
	return sqlDB.Close()
}

// Write runs fn in a transaction. On commit, live queries over the touched
// collections are re-evaluated. Errors are mapped to ErrNotFound,
// ErrDuplicateName or ErrStoreUnavailable unless fn wrapped them with Abort.
func (s *Store) Write(ctx context.Context, fn func(tx *gorm.DB) error, touched ...Collection) error {
	if err := s.DB.WithContext(ctx).Transaction(fn); err != nil {
		return classify(err)
	}
	s.Notify(touched...)
	return nil
}
