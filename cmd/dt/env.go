package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/zulandar/devtask/internal/ai"
	"github.com/zulandar/devtask/internal/config"
	"github.com/zulandar/devtask/internal/db"
	"github.com/zulandar/devtask/internal/logging"
	"github.com/zulandar/devtask/internal/settings"
	"go.uber.org/zap"
)

// appEnv is what most commands need: config, an open store and a logger.
type appEnv struct {
	cfg   *config.Config
	store *db.Store
	log   *zap.Logger
}

// openEnv loads the config, builds the logger and opens (and migrates) the
// store.
func openEnv(ctx context.Context, configPath string) (*appEnv, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	store, err := db.Open(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &appEnv{cfg: cfg, store: store, log: log}, nil
}

func (e *appEnv) Close() {
	e.store.Close()
	e.log.Sync()
}

// provider resolves the stored AI settings into a provider.
func (e *appEnv) provider(ctx context.Context) (ai.Provider, error) {
	st, err := settings.Load(ctx, e.store, e.cfg.AI)
	if err != nil {
		return nil, err
	}
	return ai.New(st,
		ai.WithTimeout(e.cfg.AI.Timeout),
		ai.WithLimiter(ai.NewLimiter(e.cfg.AI.RequestsPerMinute)),
		ai.WithLogger(e.log),
	)
}

func addConfigFlag(cmd *cobra.Command, configPath *string) {
	cmd.Flags().StringVarP(configPath, "config", "c", defaultConfigPath, "path to devtask config file")
}

// parseID parses a numeric record ID argument.
func parseID(kind, s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, s)
	}
	return uint(id), nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
