package main

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func TestCardLifecycle(t *testing.T) {
	cfg := testConfig(t, "")

	out := mustRun(t, "card", "create", "--title", "Export reports", "--requirement", "Users need CSV export", "-c", cfg)
	if !strings.Contains(out, "Created card 1: Export reports") {
		t.Fatalf("unexpected create output: %s", out)
	}
	out = mustRun(t, "card", "create", "-c", cfg)
	if !strings.Contains(out, "Created card 2: New Task - ") {
		t.Fatalf("default title missing: %s", out)
	}

	out = mustRun(t, "card", "update", "1", "--status", "In Progress", "-c", cfg)
	if !strings.Contains(out, "[In Progress]") {
		t.Errorf("unexpected update output: %s", out)
	}

	if _, err := runCmd(t, "", "card", "update", "1", "--status", "Blocked", "-c", cfg); err == nil {
		t.Error("expected invalid status error")
	}
	if _, err := runCmd(t, "", "card", "update", "1", "-c", cfg); err == nil || !strings.Contains(err.Error(), "no fields") {
		t.Errorf("err = %v, want no fields error", err)
	}

	out = mustRun(t, "card", "list", "--status", "In Progress", "-c", cfg)
	if !strings.Contains(out, "Export reports") || strings.Contains(out, "New Task") {
		t.Errorf("status filter output: %s", out)
	}

	out = mustRun(t, "card", "show", "1", "-c", cfg)
	for _, want := range []string{"Card 1: Export reports", "Users need CSV export", "Dialogue:   idle"} {
		if !strings.Contains(out, want) {
			t.Errorf("show missing %q:\n%s", want, out)
		}
	}

	mustRun(t, "card", "delete", "2", "-c", cfg)
	if _, err := runCmd(t, "", "card", "show", "2", "-c", cfg); err == nil {
		t.Error("expected not found after delete")
	}
	out = mustRun(t, "card", "list", "-c", cfg)
	if !strings.Contains(out, "1 card(s)") {
		t.Errorf("list output: %s", out)
	}
}

func TestCardUpdate_RequirementFromStdin(t *testing.T) {
	cfg := testConfig(t, "")
	mustRun(t, "card", "create", "-c", cfg)

	if _, err := runCmd(t, "Read from stdin\n", "card", "update", "1", "--requirement-file", "-", "-c", cfg); err != nil {
		t.Fatal(err)
	}
	out := mustRun(t, "card", "show", "1", "-c", cfg)
	if !strings.Contains(out, "Read from stdin") {
		t.Errorf("requirement not updated:\n%s", out)
	}
}

func TestCardRefs(t *testing.T) {
	cfg := testConfig(t, "")
	dir := t.TempDir()
	doc := filepath.Join(dir, "api-guide.md")
	if err := writeTestFile(doc, "Use REST."); err != nil {
		t.Fatal(err)
	}

	mustRun(t, "card", "create", "--title", "Sync", "-c", cfg)
	mustRun(t, "card", "create", "--title", "Other", "-c", cfg)
	mustRun(t, "tag", "add", "backend", "--color", "blue", "-c", cfg)
	out := mustRun(t, "kb", "add", doc, "-c", cfg)
	if !strings.Contains(out, "Added knowledge file 1: api-guide.md (9 B)") {
		t.Fatalf("kb add output: %s", out)
	}

	out = mustRun(t, "card", "attach", "1", "--kb", "1", "--tag", "backend", "-c", cfg)
	if !strings.Contains(out, "attached knowledge file 1") || !strings.Contains(out, "attached tag backend") {
		t.Errorf("attach output: %s", out)
	}
	if _, err := runCmd(t, "", "card", "attach", "1", "--kb", "9", "-c", cfg); err == nil {
		t.Error("expected error attaching a missing knowledge file")
	}

	out = mustRun(t, "card", "list", "--tag", "backend", "-c", cfg)
	if !strings.Contains(out, "Sync") || strings.Contains(out, "Other") {
		t.Errorf("tag filter output: %s", out)
	}
	out = mustRun(t, "card", "show", "1", "-c", cfg)
	if !strings.Contains(out, "api-guide.md (#1)") || !strings.Contains(out, "Tags:       backend") {
		t.Errorf("show output: %s", out)
	}

	mustRun(t, "kb", "rm", "1", "-c", cfg)
	mustRun(t, "tag", "rm", "backend", "-c", cfg)
	out = mustRun(t, "card", "show", "1", "-c", cfg)
	if !strings.Contains(out, "Tags:       -") || !strings.Contains(out, "Knowledge:  -") {
		t.Errorf("references should be purged: %s", out)
	}
}

func TestCardDetach(t *testing.T) {
	cfg := testConfig(t, "")
	mustRun(t, "card", "create", "--title", "Sync", "-c", cfg)
	mustRun(t, "tag", "add", "ops", "-c", cfg)
	mustRun(t, "card", "attach", "1", "--tag", "ops", "-c", cfg)

	out := mustRun(t, "card", "detach", "1", "--tag", "ops", "-c", cfg)
	if !strings.Contains(out, "detached tag ops") {
		t.Errorf("detach output: %s", out)
	}
	if _, err := runCmd(t, "", "card", "detach", "1", "-c", cfg); err == nil {
		t.Error("expected error without --kb or --tag")
	}
}

func TestCardExport(t *testing.T) {
	cfg := testConfig(t, "")
	mustRun(t, "card", "create", "--title", "Export me", "--reference", "https://example.com/1", "-c", cfg)

	out := mustRun(t, "card", "export", "1", "-c", cfg)
	if !strings.HasPrefix(out, "# Export me") || !strings.Contains(out, "https://example.com/1") {
		t.Errorf("export output: %s", out)
	}

	path := filepath.Join(t.TempDir(), "card.md")
	mustRun(t, "card", "export", "1", "-o", path, "-c", cfg)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "## 4. Test Cases") {
		t.Errorf("exported file: %s", data)
	}
}

var testCaseIDPattern = regexp.MustCompile(`Added test case (\S+) to card`)

func TestTestCaseCommands(t *testing.T) {
	cfg := testConfig(t, "")
	mustRun(t, "card", "create", "--title", "Login", "-c", cfg)

	out := mustRun(t, "testcase", "add", "1", "-d", "Valid login", "--input", "user/pass", "--expected", "Dashboard shown", "-c", cfg)
	m := testCaseIDPattern.FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("add output: %s", out)
	}
	id := m[1]

	mustRun(t, "tc", "update", "1", id, "--status", "Pass", "-c", cfg)
	out = mustRun(t, "testcase", "list", "1", "-c", cfg)
	if !strings.Contains(out, "Pass") || !strings.Contains(out, "Valid login") {
		t.Errorf("list output: %s", out)
	}

	if _, err := runCmd(t, "", "testcase", "update", "1", id, "--status", "Skipped", "-c", cfg); err == nil {
		t.Error("expected invalid status error")
	}
	if _, err := runCmd(t, "", "testcase", "update", "1", "missing", "--status", "Fail", "-c", cfg); err == nil {
		t.Error("expected not found for unknown test case")
	}

	mustRun(t, "testcase", "rm", "1", id, "-c", cfg)
	out = mustRun(t, "testcase", "list", "1", "-c", cfg)
	if !strings.Contains(out, "No test cases.") {
		t.Errorf("list after rm: %s", out)
	}
}

func TestTagCommands(t *testing.T) {
	cfg := testConfig(t, "")
	out := mustRun(t, "tag", "add", "urgent", "--color", "red", "-c", cfg)
	if !strings.Contains(out, "Created tag 1: urgent (red)") {
		t.Errorf("add output: %s", out)
	}
	if _, err := runCmd(t, "", "tag", "add", "urgent", "-c", cfg); err == nil {
		t.Error("expected duplicate name error")
	}
	if _, err := runCmd(t, "", "tag", "add", "later", "--color", "beige", "-c", cfg); err == nil {
		t.Error("expected invalid color error")
	}
	out = mustRun(t, "tag", "list", "-c", cfg)
	if !strings.Contains(out, "urgent") || !strings.Contains(out, "red") {
		t.Errorf("list output: %s", out)
	}
	if _, err := runCmd(t, "", "tag", "rm", "nope", "-c", cfg); err == nil {
		t.Error("expected not found removing an unknown tag")
	}
}

func TestKBCommands(t *testing.T) {
	cfg := testConfig(t, "knowledge:\n  max_file_bytes: 16\n")
	dir := t.TempDir()
	small := filepath.Join(dir, "small.txt")
	big := filepath.Join(dir, "big.txt")
	if err := writeTestFile(small, "tiny"); err != nil {
		t.Fatal(err)
	}
	if err := writeTestFile(big, strings.Repeat("x", 64)); err != nil {
		t.Fatal(err)
	}

	mustRun(t, "kb", "add", small, "--name", "Glossary", "-c", cfg)
	if _, err := runCmd(t, "", "kb", "add", big, "-c", cfg); err == nil {
		t.Error("expected error for a file over max_file_bytes")
	}

	out := mustRun(t, "kb", "list", "-c", cfg)
	if !strings.Contains(out, "Glossary") || !strings.Contains(out, "4 B") {
		t.Errorf("list output: %s", out)
	}
	out = mustRun(t, "kb", "show", "1", "-c", cfg)
	if out != "tiny" {
		t.Errorf("show output = %q, want tiny", out)
	}
}
