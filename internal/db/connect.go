package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zulandar/devtask/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN builds a MySQL DSN for the card store.
func DSN(user, host string, port int, database string) string {
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?parseTime=true", user, host, port, database)
}

// SQLiteDSN builds the sqlite file DSN. The busy timeout lets a second
// process wait for the write lock instead of failing immediately.
func SQLiteDSN(path string) string {
	return path + "?_busy_timeout=5000"
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}
}

// Connect opens a GORM connection for the configured driver. It does not
// migrate; use Open for a ready store.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Driver {
	case "sqlite", "":
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("db: create dir for %s: %w", cfg.Path, err)
			}
		}
		gdb, err := gorm.Open(sqlite.Open(SQLiteDSN(cfg.Path)), gormConfig())
		if err != nil {
			return nil, fmt.Errorf("db: connect to sqlite %s: %w", cfg.Path, err)
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, fmt.Errorf("db: connect to sqlite %s: %w", cfg.Path, err)
		}
		// sqlite allows one writer; a single connection serializes writes
		// instead of surfacing "database is locked".
		sqlDB.SetMaxOpenConns(1)
		return gdb, nil
	case "mysql":
		dsn := DSN(cfg.User, cfg.Host, cfg.Port, cfg.Name)
		gdb, err := gorm.Open(mysql.Open(dsn), gormConfig())
		if err != nil {
			return nil, fmt.Errorf("db: connect to %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Name, err)
		}
		return gdb, nil
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}
}

// ConnectAdmin opens a MySQL connection without selecting a database, used
// for CREATE DATABASE.
func ConnectAdmin(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s@tcp(%s:%d)/?parseTime=true", cfg.User, cfg.Host, cfg.Port)
	gdb, err := gorm.Open(mysql.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("db: admin connect to %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return gdb, nil
}

// CreateDatabase creates the named database if it doesn't already exist.
func CreateDatabase(adminDB *gorm.DB, name string) error {
	sql := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", name)
	if err := adminDB.Exec(sql).Error; err != nil {
		return fmt.Errorf("db: create database %s: %w", name, err)
	}
	return nil
}
