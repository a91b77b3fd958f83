// Package dashboard serves the local HTTP API behind `dt serve`: JSON
// endpoints over cards, knowledge files, tags and settings, the AI
// operations, live queries streamed over SSE, and Prometheus metrics.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zulandar/devtask/internal/ai"
	"github.com/zulandar/devtask/internal/config"
	"github.com/zulandar/devtask/internal/db"
	"github.com/zulandar/devtask/internal/logging"
	"github.com/zulandar/devtask/internal/settings"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Store *db.Store
	Port  int
	Out   io.Writer
	Log   *zap.Logger

	// AI holds transport settings for provider requests.
	AI config.AIConfig
	// MaxFileBytes bounds knowledge file uploads; <= 0 disables the bound.
	MaxFileBytes int
	// Registry receives the AI metrics and backs /metrics. A fresh registry
	// is used when nil.
	Registry *prometheus.Registry
}

// server carries the dependencies shared by all handlers.
type server struct {
	store        *db.Store
	log          *zap.Logger
	ai           config.AIConfig
	maxFileBytes int
	limiter      *rate.Limiter
	metrics      *ai.Metrics
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Store == nil {
		return fmt.Errorf("dashboard: store is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router, err := newRouter(opts)
	if err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// newRouter builds the gin engine with every route registered.
func newRouter(opts StartOpts) (*gin.Engine, error) {
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	metrics, err := ai.NewMetrics(reg)
	if err != nil {
		return nil, err
	}

	s := &server{
		store:        opts.Store,
		log:          logging.OrNop(opts.Log).Named("dashboard"),
		ai:           opts.AI,
		maxFileBytes: opts.MaxFileBytes,
		limiter:      ai.NewLimiter(opts.AI.RequestsPerMinute),
		metrics:      metrics,
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLog())
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	registerRoutes(router, s)
	return router, nil
}

// provider resolves the stored settings into a provider for one request.
// All providers share the server's limiter so pacing spans requests.
func (s *server) provider(ctx context.Context) (ai.Provider, error) {
	st, err := settings.Load(ctx, s.store, s.ai)
	if err != nil {
		return nil, err
	}
	opts := []ai.Option{ai.WithLimiter(s.limiter), ai.WithLogger(s.log)}
	if s.ai.Timeout > 0 {
		opts = append(opts, ai.WithTimeout(s.ai.Timeout))
	}
	p, err := ai.New(st, opts...)
	if err != nil {
		return nil, err
	}
	return ai.Instrument(p, s.metrics), nil
}

func (s *server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.FullPath() == "/metrics" {
			return
		}
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
