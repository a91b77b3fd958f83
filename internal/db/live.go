package db

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// QueryFunc computes a live query's full result set.
type QueryFunc func(tx *gorm.DB) (any, error)

// Snapshot is one delivery of a live query.
type Snapshot struct {
	Result any
	Err    error
}

// Subscription delivers the latest result of a query. The channel holds at
// most one snapshot; a newer result replaces an unread older one.
type Subscription struct {
	C <-chan Snapshot

	ch          chan Snapshot
	id          uint64
	store       *Store
	query       QueryFunc
	collections map[Collection]bool

	refreshMu sync.Mutex // orders query+deliver so a late query never overwrites a newer one
	mu        sync.Mutex
	closed    bool
}

// Subscribe registers a live query over the given collections and delivers
// its current result immediately.
func (s *Store) Subscribe(ctx context.Context, query QueryFunc, collections ...Collection) *Subscription {
	ch := make(chan Snapshot, 1)
	sub := &Subscription{
		C:           ch,
		ch:          ch,
		store:       s,
		query:       query,
		collections: make(map[Collection]bool, len(collections)),
	}
	for _, c := range collections {
		sub.collections[c] = true
	}

	s.mu.Lock()
	s.nextID++
	sub.id = s.nextID
	s.subs[sub.id] = sub
	s.mu.Unlock()

	sub.refresh(ctx)
	return sub
}

// Notify re-evaluates every live query that observes one of the collections.
func (s *Store) Notify(collections ...Collection) {
	if len(collections) == 0 {
		return
	}
	s.mu.Lock()
	var matched []*Subscription
	for _, sub := range s.subs {
		for _, c := range collections {
			if sub.collections[c] {
				matched = append(matched, sub)
				break
			}
		}
	}
	s.mu.Unlock()

	for _, sub := range matched {
		sub.refresh(context.Background())
	}
}

func (sub *Subscription) refresh(ctx context.Context) {
	sub.refreshMu.Lock()
	defer sub.refreshMu.Unlock()
	result, err := sub.query(sub.store.DB.WithContext(ctx))
	if err != nil {
		sub.store.log.Warn("live query failed", zap.Uint64("subscription", sub.id), zap.Error(err))
	}
	sub.deliver(Snapshot{Result: result, Err: err})
}

func (sub *Subscription) deliver(snap Snapshot) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	select {
	case <-sub.ch:
	default:
	}
	sub.ch <- snap
}

// Close detaches the subscription and closes its channel. It is safe to
// call more than once.
func (sub *Subscription) Close() {
	sub.store.mu.Lock()
	delete(sub.store.subs, sub.id)
	sub.store.mu.Unlock()

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.ch)
}
