package main

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestSettingsShow_Defaults(t *testing.T) {
	cfg := testConfig(t, "")
	out := mustRun(t, "settings", "show", "-c", cfg)
	for _, want := range []string{"Provider:     Gemini", "API key:      not set", "defaults apply"} {
		if !strings.Contains(out, want) {
			t.Errorf("show missing %q:\n%s", want, out)
		}
	}
}

func TestSettings_ProviderModelTemperature(t *testing.T) {
	cfg := testConfig(t, "")

	mustRun(t, "settings", "provider", "OpenAI", "-c", cfg)
	mustRun(t, "settings", "model", "openai", "gpt-4.1", "-c", cfg)
	mustRun(t, "settings", "temperature", "openai", "0.2", "-c", cfg)

	out := mustRun(t, "settings", "show", "-c", cfg)
	for _, want := range []string{"Provider:     OpenAI", "Model:        gpt-4.1", "Temperature:  0.2"} {
		if !strings.Contains(out, want) {
			t.Errorf("show missing %q:\n%s", want, out)
		}
	}

	if _, err := runCmd(t, "", "settings", "provider", "claude", "-c", cfg); err == nil || !strings.Contains(err.Error(), "unknown provider") {
		t.Errorf("err = %v, want unknown provider", err)
	}
	if _, err := runCmd(t, "", "settings", "temperature", "openai", "3", "-c", cfg); err == nil || !strings.Contains(err.Error(), "invalid temperature") {
		t.Errorf("err = %v, want invalid temperature", err)
	}
	if _, err := runCmd(t, "", "settings", "temperature", "openai", "warm", "-c", cfg); err == nil {
		t.Error("expected error for a non-numeric temperature")
	}

	mustRun(t, "settings", "model", "openai", "-c", cfg)
	out = mustRun(t, "settings", "show", "-c", cfg)
	if !strings.Contains(out, "gpt-4o-mini") {
		t.Errorf("model should be back to default:\n%s", out)
	}
}

func TestSettingsSetKey_FromStdin(t *testing.T) {
	cfg := testConfig(t, "")

	out, err := runCmd(t, "g-secret-9876\n", "settings", "set-key", "gemini", "-c", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Gemini API key saved (********9876)") {
		t.Errorf("set-key output: %s", out)
	}

	out = mustRun(t, "settings", "show", "-c", cfg)
	if strings.Contains(out, "g-secret-9876") {
		t.Errorf("key leaked in show output:\n%s", out)
	}
	if !strings.Contains(out, "********9876") {
		t.Errorf("masked key missing:\n%s", out)
	}

	out, err = runCmd(t, "", "settings", "set-key", "gemini", "-c", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "API key removed") {
		t.Errorf("empty key should remove it: %s", out)
	}
}

func TestPromptCommands(t *testing.T) {
	cfg := testConfig(t, "")

	out := mustRun(t, "settings", "prompt", "show", "-c", cfg)
	if strings.Contains(out, "custom") {
		t.Errorf("no overrides expected:\n%s", out)
	}

	mustRun(t, "settings", "prompt", "set", "titleGeneration", "Name this: {requirement}", "-c", cfg)
	out = mustRun(t, "settings", "prompt", "show", "titleGeneration", "-c", cfg)
	if strings.TrimSpace(out) != "Name this: {requirement}" {
		t.Errorf("show titleGeneration = %q", out)
	}

	if _, err := runCmd(t, "", "settings", "prompt", "set", "bogus", "x", "-c", cfg); err == nil || !strings.Contains(err.Error(), "unknown prompt") {
		t.Errorf("err = %v, want unknown prompt", err)
	}
	if _, err := runCmd(t, "", "settings", "prompt", "show", "bogus", "-c", cfg); err == nil {
		t.Error("expected unknown prompt error")
	}

	mustRun(t, "settings", "prompt", "reset", "-c", cfg)
	out = mustRun(t, "settings", "prompt", "show", "-c", cfg)
	if strings.Contains(out, "custom") {
		t.Errorf("reset should drop overrides:\n%s", out)
	}
}

func TestPromptImport(t *testing.T) {
	cfg := testConfig(t, "")
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	content := "preDevAnalysis: |\n  Analyse {spec}\ntestCases: List tests for {spec}\n"
	if err := writeTestFile(path, content); err != nil {
		t.Fatal(err)
	}

	out := mustRun(t, "settings", "prompt", "import", path, "-c", cfg)
	if !strings.Contains(out, "Imported 2 prompt(s): preDevAnalysis, testCases") {
		t.Errorf("import output: %s", out)
	}
	out = mustRun(t, "settings", "prompt", "show", "-c", cfg)
	if strings.Count(out, "custom") != 2 {
		t.Errorf("want two custom prompts:\n%s", out)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := writeTestFile(bad, "- not\n- a map\n"); err != nil {
		t.Fatal(err)
	}
	if _, err := runCmd(t, "", "settings", "prompt", "import", bad, "-c", cfg); err == nil {
		t.Error("expected parse error for a YAML list")
	}
}
