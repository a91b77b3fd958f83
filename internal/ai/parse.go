package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/zulandar/devtask/internal/models"
)

// MaxTestCases bounds how many generated test cases are kept.
const MaxTestCases = 10

var (
	openFence  = regexp.MustCompile("^```[a-zA-Z]*\\s*")
	closeFence = regexp.MustCompile("\\s*```$")
)

// stripFences removes a surrounding markdown code fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = openFence.ReplaceAllString(s, "")
	return closeFence.ReplaceAllString(s, "")
}

// parseError is a validation failure of a backend reply.
type parseError struct{ detail string }

func (e *parseError) Error() string        { return ErrMalformedResponse.Error() + ": " + e.detail }
func (e *parseError) Is(target error) bool { return target == ErrMalformedResponse }

func malformed(format string, args ...interface{}) error {
	return &parseError{detail: fmt.Sprintf(format, args...)}
}

// detail returns the human part of a parse failure.
func detail(err error) string {
	var pe *parseError
	if errors.As(err, &pe) {
		return pe.detail
	}
	return err.Error()
}

// decodeObject parses text as a JSON object, keeping values raw.
func decodeObject(text string) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripFences(text)), &obj); err != nil {
		return nil, malformed("invalid JSON: %v", err)
	}
	if obj == nil {
		return nil, malformed("expected a JSON object")
	}
	return obj, nil
}

// stringField reads a required string member of obj.
func stringField(obj map[string]json.RawMessage, key string) (string, error) {
	raw, ok := obj[key]
	if !ok {
		return "", malformed("missing %q", key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", malformed("%q is not a string", key)
	}
	return s, nil
}

// parseChat validates a chat reply of the form {"flag": ..., "content": ...}.
func parseChat(text string) (ChatKind, string, error) {
	obj, err := decodeObject(text)
	if err != nil {
		return "", "", err
	}
	flag, err := stringField(obj, "flag")
	if err != nil {
		return "", "", err
	}
	content, err := stringField(obj, "content")
	if err != nil {
		return "", "", err
	}
	kind := ChatKind(flag)
	if kind != KindQuestion && kind != KindAnswer {
		return "", "", malformed("unknown flag %q", flag)
	}
	if strings.TrimSpace(content) == "" {
		return "", "", malformed("empty content")
	}
	return kind, content, nil
}

// parsePreDev requires all four analysis sections as strings.
func parsePreDev(text string) (models.PreDevAnalysis, error) {
	obj, err := decodeObject(text)
	if err != nil {
		return models.PreDevAnalysis{}, err
	}
	var out models.PreDevAnalysis
	fields := []struct {
		key string
		dst *string
	}{
		{"introduction", &out.Introduction},
		{"impactAnalysis", &out.ImpactAnalysis},
		{"howToCode", &out.HowToCode},
		{"testApproach", &out.TestApproach},
	}
	for _, f := range fields {
		v, err := stringField(obj, f.key)
		if err != nil {
			return models.PreDevAnalysis{}, err
		}
		*f.dst = v
	}
	return out, nil
}

// parseTestCases accepts a top-level array or an object with a testCases
// array. The list must be non-empty; at most MaxTestCases items are kept.
func parseTestCases(text string) ([]TestCaseDraft, error) {
	body := stripFences(text)
	var items []map[string]json.RawMessage
	if strings.HasPrefix(body, "[") {
		if err := json.Unmarshal([]byte(body), &items); err != nil {
			return nil, malformed("invalid JSON array: %v", err)
		}
	} else {
		obj, err := decodeObject(body)
		if err != nil {
			return nil, err
		}
		raw, ok := obj["testCases"]
		if !ok {
			return nil, malformed("missing \"testCases\"")
		}
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, malformed("\"testCases\" is not an array of objects")
		}
	}
	if len(items) == 0 {
		return nil, malformed("no test cases")
	}
	if len(items) > MaxTestCases {
		items = items[:MaxTestCases]
	}
	out := make([]TestCaseDraft, 0, len(items))
	for i, item := range items {
		if item == nil {
			return nil, malformed("test case %d is not an object", i+1)
		}
		var d TestCaseDraft
		var err error
		if d.Description, err = stringField(item, "description"); err != nil {
			return nil, malformed("test case %d: %s", i+1, detail(err))
		}
		if d.Input, err = stringField(item, "input"); err != nil {
			return nil, malformed("test case %d: %s", i+1, detail(err))
		}
		if d.ExpectedResult, err = stringField(item, "expectedResult"); err != nil {
			return nil, malformed("test case %d: %s", i+1, detail(err))
		}
		out = append(out, d)
	}
	return out, nil
}

// cleanTitle trims the reply and drops surrounding quotes.
func cleanTitle(text string) (string, error) {
	t := strings.TrimSpace(text)
	t = strings.TrimPrefix(t, "\"")
	t = strings.TrimSuffix(t, "\"")
	t = strings.TrimSpace(t)
	if t == "" {
		return "", malformed("empty title")
	}
	return t, nil
}
