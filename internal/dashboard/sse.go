package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/devtask/internal/card"
	"github.com/zulandar/devtask/internal/db"
	"github.com/zulandar/devtask/internal/knowledge"
	"github.com/zulandar/devtask/internal/tag"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// heartbeatInterval spaces keep-alive events on idle streams.
var heartbeatInterval = 15 * time.Second

// liveQuery returns the query and observed collections for an events
// stream. Card streams accept the same filters as the card list.
func liveQuery(c *gin.Context) (db.QueryFunc, db.Collection, error) {
	switch name := db.Collection(c.DefaultQuery("collection", string(db.Cards))); name {
	case db.Cards:
		f, err := cardFilters(c)
		if err != nil {
			return nil, "", err
		}
		return func(tx *gorm.DB) (any, error) { return card.ListTx(tx, f) }, name, nil
	case db.Tags:
		return func(tx *gorm.DB) (any, error) { return tag.ListTx(tx) }, name, nil
	case db.KnowledgeFiles:
		return func(tx *gorm.DB) (any, error) {
			files, err := knowledge.ListTx(tx)
			return summarize(files), err
		}, name, nil
	default:
		return nil, "", fmt.Errorf("%w: unknown collection %q", errBadRequest, name)
	}
}

// handleEvents streams a live query: a snapshot event with the full result
// set on connect and after every write to the collection.
func (s *server) handleEvents(c *gin.Context) {
	query, collection, err := liveQuery(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	sub := s.store.Subscribe(ctx, query, collection)
	defer sub.Close()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			writeSSE(c.Writer, "heartbeat", map[string]string{
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			c.Writer.Flush()
		case snap, ok := <-sub.C:
			if !ok {
				return
			}
			if snap.Err != nil {
				s.log.Warn("live query failed", zap.String("collection", string(collection)), zap.Error(snap.Err))
				writeSSE(c.Writer, "error", map[string]string{"error": snap.Err.Error()})
			} else {
				writeSSE(c.Writer, "snapshot", snap.Result)
			}
			c.Writer.Flush()
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
