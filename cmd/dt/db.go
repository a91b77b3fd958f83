package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/devtask/internal/config"
	"github.com/zulandar/devtask/internal/db"
	"github.com/zulandar/devtask/internal/logging"
	"gorm.io/gorm"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBMigrateCmd())
	cmd.AddCommand(newDBStatusCmd())
	cmd.AddCommand(newDBSweepCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the card store",
		Long:  "Creates the database (MySQL) or file (sqlite) and applies every schema migration.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Database.Driver == "mysql" {
		adminDB, err := db.ConnectAdmin(cfg.Database)
		if err != nil {
			return err
		}
		err = db.CreateDatabase(adminDB, cfg.Database.Name)
		closeDB(adminDB)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Database %s ready on %s:%d\n", cfg.Database.Name, cfg.Database.Host, cfg.Database.Port)
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	store, err := db.Open(commandContext(cmd), cfg.Database, log)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Fprintf(out, "Card store initialized at schema version %d.\n", db.LatestVersion())
	return nil
}

func newDBMigrateCmd() *cobra.Command {
	var (
		configPath string
		target     int
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long:  "Applies pending schema migrations in order. With --to, stops after the given version.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBMigrate(cmd, configPath, target)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVar(&target, "to", 0, "stop after this schema version (default: latest)")
	return cmd
}

func runDBMigrate(cmd *cobra.Command, configPath string, target int) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if target == 0 {
		target = db.LatestVersion()
	}
	if target < 0 || target > db.LatestVersion() {
		return fmt.Errorf("--to must be between 1 and %d", db.LatestVersion())
	}

	gdb, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}
	defer closeDB(gdb)

	before, err := db.CurrentVersion(gdb)
	if err != nil {
		return err
	}
	if err := db.MigrateTo(gdb, target); err != nil {
		return err
	}
	after, err := db.CurrentVersion(gdb)
	if err != nil {
		return err
	}

	if after == before {
		fmt.Fprintf(out, "Schema already at version %d, nothing to apply.\n", after)
		return nil
	}
	fmt.Fprintf(out, "Migrated schema from version %d to %d.\n", before, after)
	return nil
}

func newDBStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBStatus(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runDBStatus(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gdb, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}
	defer closeDB(gdb)

	applied, err := db.AppliedMigrations(gdb)
	if err != nil {
		return err
	}
	appliedAt := make(map[int]string, len(applied))
	for _, a := range applied {
		appliedAt[a.Version] = formatTime(a.AppliedAt)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
	for _, m := range db.Migrations() {
		at, ok := appliedAt[m.Version]
		if !ok {
			at = "pending"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", m.Version, m.Name, at)
	}
	w.Flush()

	current, err := db.CurrentVersion(gdb)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nCurrent version: %d (latest: %d)\n", current, db.LatestVersion())
	return nil
}

func newDBSweepCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Drop card references to deleted knowledge files and tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBSweep(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runDBSweep(cmd *cobra.Command, configPath string) error {
	ctx := commandContext(cmd)
	env, err := openEnv(ctx, configPath)
	if err != nil {
		return err
	}
	defer env.Close()

	res, err := env.store.SweepDanglingRefs(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Repaired %d card(s): %d knowledge file reference(s), %d tag reference(s) removed.\n",
		res.CardsUpdated, res.KnowledgeFileRefs, res.TagRefs)
	return nil
}

func closeDB(gdb *gorm.DB) {
	if sqlDB, err := gdb.DB(); err == nil {
		sqlDB.Close()
	}
}
