// Package config provides YAML-based configuration loading for devtask.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"
)

// EnvPrefix prefixes environment overrides, e.g. DEVTASK_DATABASE_PATH.
const EnvPrefix = "DEVTASK_"

// DefaultMaxKnowledgeFileBytes bounds a single knowledge file upload.
const DefaultMaxKnowledgeFileBytes = 5 * 1024 * 1024

// Config is the top-level devtask configuration, loaded from devtask.yaml.
type Config struct {
	Database    DatabaseConfig    `koanf:"database"`
	Server      ServerConfig      `koanf:"server"`
	Log         LogConfig         `koanf:"log"`
	AI          AIConfig          `koanf:"ai"`
	Knowledge   KnowledgeConfig   `koanf:"knowledge"`
	Maintenance MaintenanceConfig `koanf:"maintenance"`
}

// DatabaseConfig selects and locates the card store.
type DatabaseConfig struct {
	Driver string `koanf:"driver"` // sqlite or mysql
	Path   string `koanf:"path"`   // sqlite file
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	Name   string `koanf:"name"`
	User   string `koanf:"user"`
}

// ServerConfig holds settings for the local HTTP API.
type ServerConfig struct {
	Port int `koanf:"port"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json or console
}

// AIConfig holds transport settings shared by both AI backends. Credentials
// and model choice are user settings stored in the database, not here.
type AIConfig struct {
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerMinute int           `koanf:"requests_per_minute"`
	GeminiBaseURL     string        `koanf:"gemini_base_url"`
	OpenAIBaseURL     string        `koanf:"openai_base_url"`
}

// KnowledgeConfig bounds knowledge base uploads.
type KnowledgeConfig struct {
	MaxFileBytes int `koanf:"max_file_bytes"`
}

// MaintenanceConfig schedules background repair jobs run by `dt serve`.
type MaintenanceConfig struct {
	SweepSchedule string `koanf:"sweep_schedule"`
}

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseSchedule parses a 5-field cron expression.
func ParseSchedule(expr string) (cron.Schedule, error) {
	return cronParser.Parse(expr)
}

// Load reads a YAML config file from path, applies DEVTASK_* environment
// overrides and returns a validated Config. A missing file yields defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return parse(data, true)
}

// Parse unmarshals YAML bytes into a validated Config. The environment is
// not consulted.
func Parse(data []byte) (*Config, error) {
	return parse(data, false)
}

func parse(data []byte, withEnv bool) (*Config, error) {
	k := koanf.New(".")
	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: parse: %w", err)
		}
	}
	if withEnv {
		if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
			return nil, fmt.Errorf("config: load env: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps DEVTASK_AI_REQUESTS_PER_MINUTE to ai.requests_per_minute:
// the first segment is the section, the rest is the field name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	return section + "." + field
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "devtask.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.Name == "" {
			c.Database.Name = "devtask"
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.AI.Timeout == 0 {
		c.AI.Timeout = 120 * time.Second
	}
	if c.AI.RequestsPerMinute == 0 {
		c.AI.RequestsPerMinute = 30
	}
	if c.Knowledge.MaxFileBytes == 0 {
		c.Knowledge.MaxFileBytes = DefaultMaxKnowledgeFileBytes
	}
	if c.Maintenance.SweepSchedule == "" {
		c.Maintenance.SweepSchedule = "0 3 * * *"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for sqlite")
		}
	case "mysql":
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port %d out of range", c.Database.Port))
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be sqlite or mysql", c.Database.Driver))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q must be debug, info, warn or error", c.Log.Level))
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Sprintf("log.format %q must be json or console", c.Log.Format))
	}
	if c.AI.Timeout < 0 {
		errs = append(errs, "ai.timeout must be positive")
	}
	if c.AI.RequestsPerMinute < 0 {
		errs = append(errs, "ai.requests_per_minute must not be negative")
	}
	if c.Knowledge.MaxFileBytes < 0 {
		errs = append(errs, "knowledge.max_file_bytes must not be negative")
	}
	if _, err := ParseSchedule(c.Maintenance.SweepSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("maintenance.sweep_schedule: %v", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
