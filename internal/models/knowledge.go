package models

import "time"

// KnowledgeFile is a named text document that can be attached to cards as
// extra context for AI requests.
type KnowledgeFile struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"size:255;not null;index" json:"name"`
	Content   string    `gorm:"type:longtext" json:"content"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

// Tag is a named, coloured label for cards. Names are unique.
type Tag struct {
	ID    uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name  string `gorm:"size:128;not null;uniqueIndex" json:"name"`
	Color string `gorm:"size:16;not null" json:"color"`
}

// TagColors is the fixed tag palette.
var TagColors = []string{
	"slate", "red", "orange", "amber", "yellow", "lime", "green", "emerald",
	"teal", "cyan", "sky", "blue", "indigo", "violet", "purple", "fuchsia",
	"pink", "rose",
}

// IsValidTagColor reports whether c is in the tag palette.
func IsValidTagColor(c string) bool {
	for _, v := range TagColors {
		if v == c {
			return true
		}
	}
	return false
}
