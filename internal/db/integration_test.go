//go:build integration

package db

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"testing"
	"time"

	"github.com/zulandar/devtask/internal/config"
	"github.com/zulandar/devtask/internal/models"
	"gorm.io/gorm"
)

// testMySQLServer is a Dolt sql-server, which speaks the MySQL protocol and
// dialect, started for one test.
type testMySQLServer struct {
	Port int
	cmd  *exec.Cmd
}

// startMySQLServer initializes a Dolt repo in a temp directory and starts
// dolt sql-server on a free port. The server is stopped when the test
// completes.
func startMySQLServer(t *testing.T) *testMySQLServer {
	t.Helper()
	if _, err := exec.LookPath("dolt"); err != nil {
		t.Skip("dolt not installed")
	}

	dir := t.TempDir()
	for _, kv := range [][2]string{
		{"user.name", "Test Runner"},
		{"user.email", "test@devtask.dev"},
	} {
		cfg := exec.Command("dolt", "config", "--global", "--add", kv[0], kv[1])
		cfg.Dir = dir
		cfg.CombinedOutput() // already set is fine
	}

	init := exec.Command("dolt", "init")
	init.Dir = dir
	if out, err := init.CombinedOutput(); err != nil {
		t.Fatalf("dolt init: %s\n%s", err, out)
	}

	port := freePort(t)
	cmd := exec.Command("dolt", "sql-server", "--port", fmt.Sprintf("%d", port), "--host", "127.0.0.1")
	cmd.Dir = dir
	if err := cmd.Start(); err != nil {
		t.Fatalf("dolt sql-server start: %v", err)
	}

	srv := &testMySQLServer{Port: port, cmd: cmd}
	t.Cleanup(func() {
		srv.cmd.Process.Kill()
		srv.cmd.Wait()
	})

	waitForServer(t, port)
	return srv
}

func (s *testMySQLServer) config(name string) config.DatabaseConfig {
	return config.DatabaseConfig{Driver: "mysql", Host: "127.0.0.1", Port: s.Port, Name: name, User: "root"}
}

// freePort finds an available TCP port.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

// waitForServer polls until the server accepts TCP connections.
func waitForServer(t *testing.T, port int) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("sql-server not ready on port %d after 10s", port)
}

// openMySQLStore creates the named database and opens a migrated store on it.
func openMySQLStore(t *testing.T, srv *testMySQLServer, name string) *Store {
	t.Helper()
	cfg := srv.config(name)
	adminDB, err := ConnectAdmin(cfg)
	if err != nil {
		t.Fatalf("ConnectAdmin: %v", err)
	}
	if err := CreateDatabase(adminDB, name); err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}
	s, err := Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestIntegration_CreateDatabaseIsIdempotent(t *testing.T) {
	srv := startMySQLServer(t)
	adminDB, err := ConnectAdmin(srv.config(""))
	if err != nil {
		t.Fatalf("ConnectAdmin: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := CreateDatabase(adminDB, "devtask_twice"); err != nil {
			t.Fatalf("CreateDatabase #%d: %v", i+1, err)
		}
	}
}

func TestIntegration_OpenMigratesToLatest(t *testing.T) {
	srv := startMySQLServer(t)
	s := openMySQLStore(t, srv, "devtask_migrate")

	v, err := CurrentVersion(s.DB)
	if err != nil {
		t.Fatalf("CurrentVersion: %v", err)
	}
	if v != LatestVersion() {
		t.Errorf("version = %d, want %d", v, LatestVersion())
	}

	var tables []string
	if err := s.DB.Raw("SHOW TABLES").Scan(&tables).Error; err != nil {
		t.Fatalf("SHOW TABLES: %v", err)
	}
	tableSet := make(map[string]bool)
	for _, tbl := range tables {
		tableSet[tbl] = true
	}
	for _, want := range []string{"cards", "knowledge_files", "tags", "settings", "schema_versions"} {
		if !tableSet[want] {
			t.Errorf("expected table %q not found; got tables: %v", want, tables)
		}
	}

	type columnInfo struct {
		Field string `gorm:"column:Field"`
	}
	var cols []columnInfo
	if err := s.DB.Raw("DESCRIBE cards").Scan(&cols).Error; err != nil {
		t.Fatalf("DESCRIBE cards: %v", err)
	}
	colSet := make(map[string]bool)
	for _, c := range cols {
		colSet[c.Field] = true
	}
	for _, col := range []string{"id", "title", "status", "requirement", "spec", "pre_dev_analysis",
		"test_cases", "requirement_chat_history", ColumnKnowledgeFileIDs, ColumnTagIDs} {
		if !colSet[col] {
			t.Errorf("cards table missing column %q", col)
		}
	}
}

func TestIntegration_CardsReferencingUsesJSONContains(t *testing.T) {
	srv := startMySQLServer(t)
	s := openMySQLStore(t, srv, "devtask_refs")

	a := seedCard(t, s.DB, "a", []uint{1, 2}, []uint{7})
	seedCard(t, s.DB, "b", []uint{12}, nil)

	got, err := CardsReferencing(s.DB, ColumnKnowledgeFileIDs, 1)
	if err != nil {
		t.Fatalf("CardsReferencing: %v", err)
	}
	if len(got) != 1 || got[0].ID != a.ID {
		t.Errorf("cards referencing file 1 = %v, want [%d]", cardIDs(got), a.ID)
	}
}

func TestIntegration_PurgeReference(t *testing.T) {
	srv := startMySQLServer(t)
	s := openMySQLStore(t, srv, "devtask_purge")
	ctx := context.Background()

	tag := models.Tag{Name: "urgent", Color: "red"}
	if err := s.DB.Create(&tag).Error; err != nil {
		t.Fatalf("create tag: %v", err)
	}
	c := seedCard(t, s.DB, "a", nil, []uint{tag.ID, tag.ID + 1})

	n, err := s.PurgeReference(ctx, ColumnTagIDs, tag.ID, Tags, func(tx *gorm.DB) error {
		return tx.Delete(&models.Tag{}, tag.ID).Error
	})
	if err != nil {
		t.Fatalf("PurgeReference: %v", err)
	}
	if n != 1 {
		t.Errorf("purged = %d, want 1", n)
	}

	var got models.Card
	if err := s.DB.First(&got, c.ID).Error; err != nil {
		t.Fatalf("reload card: %v", err)
	}
	if len(got.TagIDs) != 1 || got.TagIDs[0] != tag.ID+1 {
		t.Errorf("tag ids = %v, want [%d]", got.TagIDs, tag.ID+1)
	}
}
