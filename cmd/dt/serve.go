package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/zulandar/devtask/internal/config"
	"github.com/zulandar/devtask/internal/dashboard"
	"github.com/zulandar/devtask/internal/maintenance"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
		noSweep    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Serves the card API, live query streams and /metrics on localhost.
Dangling references are swept on maintenance.sweep_schedule unless --no-sweep is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port, noSweep)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default: server.port from config)")
	cmd.Flags().BoolVar(&noSweep, "no-sweep", false, "disable the scheduled reference sweep")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int, noSweep bool) error {
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	env, err := openEnv(ctx, configPath)
	if err != nil {
		return err
	}
	defer env.Close()

	if port == 0 {
		port = env.cfg.Server.Port
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if !noSweep {
		sched, err := config.ParseSchedule(env.cfg.Maintenance.SweepSchedule)
		if err != nil {
			return fmt.Errorf("maintenance.sweep_schedule: %w", err)
		}
		go maintenance.RunSweeps(ctx, env.store, sched, env.log)
		env.log.Info("reference sweep scheduled", zap.String("schedule", env.cfg.Maintenance.SweepSchedule))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return dashboard.Start(ctx, dashboard.StartOpts{
		Store:        env.store,
		Port:         port,
		Out:          cmd.OutOrStdout(),
		Log:          env.log,
		AI:           env.cfg.AI,
		MaxFileBytes: env.cfg.Knowledge.MaxFileBytes,
		Registry:     reg,
	})
}
