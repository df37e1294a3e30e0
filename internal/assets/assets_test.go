package assets

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
}

func TestLoadPromptAndPronunciations(t *testing.T) {
	dir := t.TempDir()
	promptPath := filepath.Join(dir, "prompt.txt")
	pronPath := filepath.Join(dir, "pron.yaml")
	writeFile(t, promptPath, "你是導讀老師。\n")
	writeFile(t, pronPath, "- from: DNA\n  to: 滴恩欸\n- from: RNA\n  to: 阿恩欸\n")

	l, err := Load(promptPath, "", pronPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer l.Stop()

	if got := l.Prompt(); got != "你是導讀老師。" {
		t.Errorf("Prompt() = %q", got)
	}
	if got := l.PageLead(3); got != "導讀P.3內容。" {
		t.Errorf("PageLead(3) = %q", got)
	}
	pron := l.Pronunciations()
	if len(pron) != 2 || pron[0].From != "DNA" || pron[0].To != "滴恩欸" {
		t.Errorf("Pronunciations() = %+v", pron)
	}
}

func TestLoadCustomPageLead(t *testing.T) {
	dir := t.TempDir()
	promptPath := filepath.Join(dir, "prompt.txt")
	writeFile(t, promptPath, "prompt")

	l, err := Load(promptPath, "請看第%d頁。", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer l.Stop()

	if got := l.PageLead(7); got != "請看第7頁。" {
		t.Errorf("PageLead(7) = %q", got)
	}
}

func TestLoadValidation(t *testing.T) {
	dir := t.TempDir()
	promptPath := filepath.Join(dir, "prompt.txt")
	writeFile(t, promptPath, "prompt")

	tests := []struct {
		name       string
		promptPath string
		pageLead   string
		pronPath   string
	}{
		{"empty prompt path", "", "", ""},
		{"missing prompt file", filepath.Join(dir, "nope.txt"), "", ""},
		{"page lead without verb", promptPath, "no verb", ""},
		{"page lead with two verbs", promptPath, "%d and %d", ""},
		{"missing pronunciation file", promptPath, "", filepath.Join(dir, "nope.yaml")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(tc.promptPath, tc.pageLead, tc.pronPath); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoadEmptyPromptFile(t *testing.T) {
	dir := t.TempDir()
	promptPath := filepath.Join(dir, "prompt.txt")
	writeFile(t, promptPath, "   \n")

	if _, err := Load(promptPath, "", ""); err == nil {
		t.Error("expected error for blank prompt file, got nil")
	}
}

func TestLoadRejectsEmptyFrom(t *testing.T) {
	dir := t.TempDir()
	promptPath := filepath.Join(dir, "prompt.txt")
	pronPath := filepath.Join(dir, "pron.yaml")
	writeFile(t, promptPath, "prompt")
	writeFile(t, pronPath, "- from: \"\"\n  to: x\n")

	if _, err := Load(promptPath, "", pronPath); err == nil {
		t.Error("expected error for empty from, got nil")
	}
}

func TestWatchReloadsPrompt(t *testing.T) {
	dir := t.TempDir()
	promptPath := filepath.Join(dir, "prompt.txt")
	writeFile(t, promptPath, "old prompt")

	l, err := Load(promptPath, "", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer l.Stop()
	if err := l.Watch(); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	writeFile(t, promptPath, "new prompt")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if l.Prompt() == "new prompt" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("Prompt() = %q, want reloaded content", l.Prompt())
}

func TestWatchKeepsOldOnInvalidPronunciations(t *testing.T) {
	dir := t.TempDir()
	promptPath := filepath.Join(dir, "prompt.txt")
	pronPath := filepath.Join(dir, "pron.yaml")
	writeFile(t, promptPath, "prompt")
	writeFile(t, pronPath, "- from: DNA\n  to: 滴恩欸\n")

	l, err := Load(promptPath, "", pronPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer l.Stop()
	if err := l.Watch(); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	writeFile(t, pronPath, "{not a list")
	time.Sleep(time.Second)

	pron := l.Pronunciations()
	if len(pron) != 1 || pron[0].From != "DNA" {
		t.Errorf("Pronunciations() = %+v, want previous table kept", pron)
	}
}
