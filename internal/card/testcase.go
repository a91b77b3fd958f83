package card

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/zulandar/devtask/internal/db"
	"github.com/zulandar/devtask/internal/models"
	"gorm.io/datatypes"
)

// ErrInvalidTestCaseStatus means a status outside Pending, Pass and Fail.
var ErrInvalidTestCaseStatus = errors.New("invalid test case status")

// TestCasePatch holds the test case fields to change. Nil fields are left as is.
type TestCasePatch struct {
	Description    *string
	Input          *string
	ExpectedResult *string
	Status         *string
}

// NewTestCase returns a Pending test case with a fresh ID.
func NewTestCase(description, input, expected string) models.TestCase {
	return models.TestCase{
		ID:             uuid.NewString(),
		Description:    description,
		Input:          input,
		ExpectedResult: expected,
		Status:         models.TestCasePending,
	}
}

// AddTestCase appends one manually written Pending test case.
func AddTestCase(ctx context.Context, s *db.Store, cardID uint, description, input, expected string) (*models.Card, models.TestCase, error) {
	tc := NewTestCase(description, input, expected)
	c, err := AddTestCases(ctx, s, cardID, tc)
	if err != nil {
		return nil, models.TestCase{}, err
	}
	return c, tc, nil
}

// AddTestCases appends test cases to the card in order. Missing IDs and
// statuses are filled in.
func AddTestCases(ctx context.Context, s *db.Store, cardID uint, tcs ...models.TestCase) (*models.Card, error) {
	c, err := mutate(ctx, s, cardID, func(c *models.Card) (map[string]interface{}, error) {
		list := append(datatypes.JSONSlice[models.TestCase]{}, c.TestCases...)
		for _, tc := range tcs {
			if tc.ID == "" {
				tc.ID = uuid.NewString()
			}
			if tc.Status == "" {
				tc.Status = models.TestCasePending
			}
			if !models.IsValidTestCaseStatus(tc.Status) {
				return nil, fmt.Errorf("%w: %q", ErrInvalidTestCaseStatus, tc.Status)
			}
			list = append(list, tc)
		}
		return map[string]interface{}{"test_cases": list}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("card: add test cases to %d: %w", cardID, err)
	}
	return c, nil
}

// UpdateTestCase edits one test case in place.
func UpdateTestCase(ctx context.Context, s *db.Store, cardID uint, testCaseID string, p TestCasePatch) (*models.Card, error) {
	if p.Status != nil && !models.IsValidTestCaseStatus(*p.Status) {
		return nil, fmt.Errorf("card: update test case %s: %w: %q", testCaseID, ErrInvalidTestCaseStatus, *p.Status)
	}
	c, err := mutate(ctx, s, cardID, func(c *models.Card) (map[string]interface{}, error) {
		list := append(datatypes.JSONSlice[models.TestCase]{}, c.TestCases...)
		i := indexOfTestCase(list, testCaseID)
		if i < 0 {
			return nil, fmt.Errorf("%w: test case %s", db.ErrNotFound, testCaseID)
		}
		if p.Description != nil {
			list[i].Description = *p.Description
		}
		if p.Input != nil {
			list[i].Input = *p.Input
		}
		if p.ExpectedResult != nil {
			list[i].ExpectedResult = *p.ExpectedResult
		}
		if p.Status != nil {
			list[i].Status = *p.Status
		}
		return map[string]interface{}{"test_cases": list}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("card: update test case %s on %d: %w", testCaseID, cardID, err)
	}
	return c, nil
}

// DeleteTestCase removes one test case. Removing a missing one is not an error.
func DeleteTestCase(ctx context.Context, s *db.Store, cardID uint, testCaseID string) (*models.Card, error) {
	c, err := mutate(ctx, s, cardID, func(c *models.Card) (map[string]interface{}, error) {
		list := datatypes.JSONSlice[models.TestCase]{}
		for _, tc := range c.TestCases {
			if tc.ID != testCaseID {
				list = append(list, tc)
			}
		}
		return map[string]interface{}{"test_cases": list}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("card: delete test case %s on %d: %w", testCaseID, cardID, err)
	}
	return c, nil
}

func indexOfTestCase(list []models.TestCase, id string) int {
	for i, tc := range list {
		if tc.ID == id {
			return i
		}
	}
	return -1
}
