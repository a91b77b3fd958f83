package db

import (
	"fmt"
	"time"

	"github.com/zulandar/devtask/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Migration is one ordered schema step. Up must be idempotent: on MySQL DDL
// commits implicitly, so a step interrupted after its DDL is re-run in full.
type Migration struct {
	Version int
	Name    string
	Up      func(tx *gorm.DB) error
}

// The structs below freeze each table as it was at the version that
// introduced or changed it. Steps must never reference the live models.

type cardV1 struct {
	ID                     uint           `gorm:"primaryKey;autoIncrement"`
	Title                  string         `gorm:"size:255;not null;index"`
	Status                 string         `gorm:"size:16;default:Todo;index"`
	Requirement            string         `gorm:"type:text"`
	ReferenceLink          string         `gorm:"size:1024"`
	Spec                   string         `gorm:"type:text"`
	PreDevAnalysis         datatypes.JSON `gorm:"column:pre_dev_analysis"`
	TestCases              datatypes.JSON `gorm:"column:test_cases"`
	RequirementChatHistory datatypes.JSON `gorm:"column:requirement_chat_history"`
	CreatedAt              time.Time      `gorm:"index"`
	UpdatedAt              time.Time      `gorm:"index"`
}

func (cardV1) TableName() string { return "cards" }

type cardV2 struct {
	cardV1
	KnowledgeFileIDs datatypes.JSON `gorm:"column:knowledge_file_ids"`
}

func (cardV2) TableName() string { return "cards" }

type knowledgeFileV2 struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Name      string    `gorm:"size:255;not null;index"`
	Content   string    `gorm:"type:longtext"`
	CreatedAt time.Time `gorm:"index"`
}

func (knowledgeFileV2) TableName() string { return "knowledge_files" }

type cardV3 struct {
	cardV2
	TagIDs datatypes.JSON `gorm:"column:tag_ids"`
}

func (cardV3) TableName() string { return "cards" }

type tagV3 struct {
	ID    uint   `gorm:"primaryKey;autoIncrement"`
	Name  string `gorm:"size:128;not null;uniqueIndex"`
	Color string `gorm:"size:16;not null"`
}

func (tagV3) TableName() string { return "tags" }

type settingV4 struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (settingV4) TableName() string { return "settings" }

var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_cards",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&cardV1{})
		},
	},
	{
		Version: 2,
		Name:    "knowledge_base",
		Up: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&knowledgeFileV2{}); err != nil {
				return err
			}
			return addSetColumn(tx, &cardV2{}, "KnowledgeFileIDs", "knowledge_file_ids")
		},
	},
	{
		Version: 3,
		Name:    "tags",
		Up: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&tagV3{}); err != nil {
				return err
			}
			return addSetColumn(tx, &cardV3{}, "TagIDs", "tag_ids")
		},
	},
	{
		Version: 4,
		Name:    "settings",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&settingV4{})
		},
	},
}

// addSetColumn adds a set-valued JSON column to cards if missing and
// backfills existing rows with an empty set.
func addSetColumn(tx *gorm.DB, snapshot interface{}, field, column string) error {
	m := tx.Migrator()
	if !m.HasColumn(snapshot, field) {
		if err := m.AddColumn(snapshot, field); err != nil {
			return fmt.Errorf("add column %s: %w", column, err)
		}
	}
	sql := fmt.Sprintf("UPDATE cards SET %s = ? WHERE %s IS NULL", column, column)
	if err := tx.Exec(sql, "[]").Error; err != nil {
		return fmt.Errorf("backfill %s: %w", column, err)
	}
	return nil
}

// Migrations returns the ordered schema steps.
func Migrations() []Migration {
	out := make([]Migration, len(migrations))
	copy(out, migrations)
	return out
}

// LatestVersion is the schema version this binary migrates to.
func LatestVersion() int {
	return migrations[len(migrations)-1].Version
}

// CurrentVersion returns the highest applied schema version, 0 for a fresh store.
func CurrentVersion(gdb *gorm.DB) (int, error) {
	if !gdb.Migrator().HasTable(&models.SchemaVersion{}) {
		return 0, nil
	}
	var v int
	if err := gdb.Model(&models.SchemaVersion{}).Select("COALESCE(MAX(version), 0)").Scan(&v).Error; err != nil {
		return 0, fmt.Errorf("db: read schema version: %w", err)
	}
	return v, nil
}

// AppliedMigrations lists the recorded schema steps in version order.
func AppliedMigrations(gdb *gorm.DB) ([]models.SchemaVersion, error) {
	if !gdb.Migrator().HasTable(&models.SchemaVersion{}) {
		return nil, nil
	}
	var rows []models.SchemaVersion
	if err := gdb.Order("version").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("db: list schema versions: %w", err)
	}
	return rows, nil
}

// Migrate applies every pending step.
func Migrate(gdb *gorm.DB) error {
	return MigrateTo(gdb, LatestVersion())
}

// MigrateTo applies pending steps up to and including target. Each step runs
// in its own transaction together with the row that records it.
func MigrateTo(gdb *gorm.DB, target int) error {
	if err := gdb.AutoMigrate(&models.SchemaVersion{}); err != nil {
		return fmt.Errorf("db: %w: schema_versions: %w", ErrMigrationFailed, err)
	}
	current, err := CurrentVersion(gdb)
	if err != nil {
		return fmt.Errorf("db: %w: %w", ErrMigrationFailed, err)
	}
	if current > LatestVersion() {
		return fmt.Errorf("db: %w: store is at version %d, newer than supported %d",
			ErrMigrationFailed, current, LatestVersion())
	}

	for _, m := range migrations {
		if m.Version <= current || m.Version > target {
			continue
		}
		err := gdb.Transaction(func(tx *gorm.DB) error {
			if err := m.Up(tx); err != nil {
				return err
			}
			return tx.Create(&models.SchemaVersion{
				Version:   m.Version,
				Name:      m.Name,
				AppliedAt: time.Now(),
			}).Error
		})
		if err != nil {
			return fmt.Errorf("db: %w: step %d (%s): %w", ErrMigrationFailed, m.Version, m.Name, err)
		}
	}
	return nil
}
