package models

import "time"

// Setting is a persisted user preference, stored as a key/value pair.
type Setting struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// SchemaVersion records one applied schema migration step.
type SchemaVersion struct {
	Version   int    `gorm:"primaryKey;autoIncrement:false"`
	Name      string `gorm:"size:64;not null"`
	AppliedAt time.Time
}
