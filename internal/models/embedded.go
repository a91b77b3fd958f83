package models

import "strings"

// Test case statuses.
const (
	TestCasePending = "Pending"
	TestCasePass    = "Pass"
	TestCaseFail    = "Fail"
)

// IsValidTestCaseStatus reports whether s is one of the test case statuses.
func IsValidTestCaseStatus(s string) bool {
	return s == TestCasePending || s == TestCasePass || s == TestCaseFail
}

// TestCase is owned by its card and stored inline with it.
type TestCase struct {
	ID             string `json:"id"`
	Description    string `json:"description"`
	Input          string `json:"input"`
	ExpectedResult string `json:"expectedResult"`
	Status         string `json:"status"`
}

// Chat roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// SpecGeneratedSentinel marks the model turn that closes a clarification
// dialogue.
const SpecGeneratedSentinel = "**Specification Generated**"

// ChatMessage is one turn of a card's requirement clarification dialogue.
type ChatMessage struct {
	Role    string `json:"role"`
	Text    string `json:"text"`
	IsError bool   `json:"isError,omitempty"`
}

// IsSentinel reports whether the message is a model turn carrying the
// dialogue terminator anywhere in its text.
func (m ChatMessage) IsSentinel() bool {
	return m.Role == RoleModel && strings.Contains(m.Text, SpecGeneratedSentinel)
}
