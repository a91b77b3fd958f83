package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Card statuses.
const (
	StatusTodo       = "Todo"
	StatusInProgress = "In Progress"
	StatusDone       = "Done"
)

// ValidStatuses lists the card statuses in board order.
var ValidStatuses = []string{StatusTodo, StatusInProgress, StatusDone}

// IsValidStatus reports whether s is one of the card statuses.
func IsValidStatus(s string) bool {
	for _, v := range ValidStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Card is a single development task and the artifacts derived from it.
type Card struct {
	ID                     uint                               `gorm:"primaryKey;autoIncrement" json:"id"`
	Title                  string                             `gorm:"size:255;not null;index" json:"title"`
	Status                 string                             `gorm:"size:16;default:Todo;index" json:"status"`
	Requirement            string                             `gorm:"type:text" json:"requirement"`
	ReferenceLink          string                             `gorm:"size:1024" json:"referenceLink"`
	Spec                   string                             `gorm:"type:text" json:"spec"`
	PreDevAnalysis         datatypes.JSONType[PreDevAnalysis] `gorm:"column:pre_dev_analysis" json:"preDevAnalysis"`
	TestCases              datatypes.JSONSlice[TestCase]      `gorm:"column:test_cases" json:"testCases"`
	RequirementChatHistory datatypes.JSONSlice[ChatMessage]   `gorm:"column:requirement_chat_history" json:"requirementChatHistory"`
	KnowledgeFileIDs       datatypes.JSONSlice[uint]          `gorm:"column:knowledge_file_ids" json:"knowledgeFileIds"`
	TagIDs                 datatypes.JSONSlice[uint]          `gorm:"column:tag_ids" json:"tagIds"`
	CreatedAt              time.Time                          `gorm:"index" json:"createdAt"`
	UpdatedAt              time.Time                          `gorm:"index" json:"updatedAt"`
}

// PreDevAnalysis is the four-part analysis generated from a card's spec.
type PreDevAnalysis struct {
	Introduction   string `json:"introduction"`
	ImpactAnalysis string `json:"impactAnalysis"`
	HowToCode      string `json:"howToCode"`
	TestApproach   string `json:"testApproach"`
}

// IsZero reports whether no section has been generated yet.
func (p PreDevAnalysis) IsZero() bool {
	return p == PreDevAnalysis{}
}

// Normalize replaces absent set and list fields with empty ones so the
// stored and loaded shapes never contain null.
func (c *Card) Normalize() {
	if c.TestCases == nil {
		c.TestCases = datatypes.JSONSlice[TestCase]{}
	}
	if c.RequirementChatHistory == nil {
		c.RequirementChatHistory = datatypes.JSONSlice[ChatMessage]{}
	}
	if c.KnowledgeFileIDs == nil {
		c.KnowledgeFileIDs = datatypes.JSONSlice[uint]{}
	}
	if c.TagIDs == nil {
		c.TagIDs = datatypes.JSONSlice[uint]{}
	}
}

// BeforeCreate normalizes list fields before the first insert.
func (c *Card) BeforeCreate(tx *gorm.DB) error {
	c.Normalize()
	return nil
}

// AfterFind normalizes list fields of rows written before a column existed.
func (c *Card) AfterFind(tx *gorm.DB) error {
	c.Normalize()
	return nil
}

// HasKnowledgeFile reports whether the card references the knowledge file.
func (c *Card) HasKnowledgeFile(id uint) bool {
	return containsID(c.KnowledgeFileIDs, id)
}

// HasTag reports whether the card references the tag.
func (c *Card) HasTag(id uint) bool {
	return containsID(c.TagIDs, id)
}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
