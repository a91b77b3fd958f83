package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const fullYAML = `
database:
  driver: mysql
  host: 10.0.0.5
  port: 3307
  name: devtask_alice
  user: alice

server:
  port: 9090

log:
  level: debug
  format: json

ai:
  timeout: 45s
  requests_per_minute: 10
  gemini_base_url: http://localhost:9999
  openai_base_url: http://localhost:9998

knowledge:
  max_file_bytes: 1024

maintenance:
  sweep_schedule: "*/15 * * * *"
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Driver != "mysql" {
		t.Errorf("Database.Driver = %q, want mysql", cfg.Database.Driver)
	}
	if cfg.Database.Host != "10.0.0.5" {
		t.Errorf("Database.Host = %q, want 10.0.0.5", cfg.Database.Host)
	}
	if cfg.Database.Port != 3307 {
		t.Errorf("Database.Port = %d, want 3307", cfg.Database.Port)
	}
	if cfg.Database.Name != "devtask_alice" {
		t.Errorf("Database.Name = %q, want devtask_alice", cfg.Database.Name)
	}
	if cfg.Database.User != "alice" {
		t.Errorf("Database.User = %q, want alice", cfg.Database.User)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v, want debug/json", cfg.Log)
	}
	if cfg.AI.Timeout != 45*time.Second {
		t.Errorf("AI.Timeout = %v, want 45s", cfg.AI.Timeout)
	}
	if cfg.AI.RequestsPerMinute != 10 {
		t.Errorf("AI.RequestsPerMinute = %d, want 10", cfg.AI.RequestsPerMinute)
	}
	if cfg.AI.GeminiBaseURL != "http://localhost:9999" {
		t.Errorf("AI.GeminiBaseURL = %q", cfg.AI.GeminiBaseURL)
	}
	if cfg.Knowledge.MaxFileBytes != 1024 {
		t.Errorf("Knowledge.MaxFileBytes = %d, want 1024", cfg.Knowledge.MaxFileBytes)
	}
	if cfg.Maintenance.SweepSchedule != "*/15 * * * *" {
		t.Errorf("Maintenance.SweepSchedule = %q", cfg.Maintenance.SweepSchedule)
	}
}

func TestParse_Empty_AppliesDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want sqlite (default)", cfg.Database.Driver)
	}
	if cfg.Database.Path != "devtask.db" {
		t.Errorf("Database.Path = %q, want devtask.db (default)", cfg.Database.Path)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080 (default)", cfg.Server.Port)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "console" {
		t.Errorf("Log = %+v, want info/console (default)", cfg.Log)
	}
	if cfg.AI.Timeout != 120*time.Second {
		t.Errorf("AI.Timeout = %v, want 120s (default)", cfg.AI.Timeout)
	}
	if cfg.AI.RequestsPerMinute != 30 {
		t.Errorf("AI.RequestsPerMinute = %d, want 30 (default)", cfg.AI.RequestsPerMinute)
	}
	if cfg.Knowledge.MaxFileBytes != DefaultMaxKnowledgeFileBytes {
		t.Errorf("Knowledge.MaxFileBytes = %d, want %d", cfg.Knowledge.MaxFileBytes, DefaultMaxKnowledgeFileBytes)
	}
	if cfg.Maintenance.SweepSchedule != "0 3 * * *" {
		t.Errorf("Maintenance.SweepSchedule = %q, want default", cfg.Maintenance.SweepSchedule)
	}
}

func TestParse_MySQLDefaults(t *testing.T) {
	cfg, err := Parse([]byte("database:\n  driver: mysql\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Host != "127.0.0.1" || cfg.Database.Port != 3306 {
		t.Errorf("Database = %+v, want 127.0.0.1:3306", cfg.Database)
	}
	if cfg.Database.Name != "devtask" || cfg.Database.User != "root" {
		t.Errorf("Database = %+v, want devtask/root", cfg.Database)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad driver", "database:\n  driver: postgres\n", "database.driver"},
		{"bad port", "server:\n  port: 70000\n", "server.port"},
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"bad format", "log:\n  format: xml\n", "log.format"},
		{"negative rpm", "ai:\n  requests_per_minute: -1\n", "requests_per_minute"},
		{"bad schedule", "maintenance:\n  sweep_schedule: every day\n", "sweep_schedule"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), "config: validation failed") {
				t.Errorf("error = %q, want validation prefix", err.Error())
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("database: [unclosed"))
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "config: parse") {
		t.Errorf("error = %q, want to contain 'config: parse'", err.Error())
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "devtask.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 7000\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000", cfg.Server.Port)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want sqlite", cfg.Database.Driver)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "devtask.yaml")
	if err := os.WriteFile(path, []byte("database:\n  path: from-file.db\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("DEVTASK_DATABASE_PATH", "from-env.db")
	t.Setenv("DEVTASK_AI_REQUESTS_PER_MINUTE", "5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "from-env.db" {
		t.Errorf("Database.Path = %q, want from-env.db", cfg.Database.Path)
	}
	if cfg.AI.RequestsPerMinute != 5 {
		t.Errorf("AI.RequestsPerMinute = %d, want 5", cfg.AI.RequestsPerMinute)
	}
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"DEVTASK_DATABASE_PATH", "database.path"},
		{"DEVTASK_AI_REQUESTS_PER_MINUTE", "ai.requests_per_minute"},
		{"DEVTASK_MAINTENANCE_SWEEP_SCHEDULE", "maintenance.sweep_schedule"},
	}
	for _, tt := range tests {
		if got := envKey(tt.in); got != tt.want {
			t.Errorf("envKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseSchedule(t *testing.T) {
	sched, err := ParseSchedule("0 3 * * *")
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	next := sched.Next(from)
	if next.Hour() != 3 || next.Minute() != 0 {
		t.Errorf("next = %v, want 03:00", next)
	}
}
