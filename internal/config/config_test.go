package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.DebounceMillis != 800 {
		t.Errorf("DebounceMillis = %d, want 800", cfg.DebounceMillis)
	}
	if cfg.TranscriptAlias != "chat" {
		t.Errorf("TranscriptAlias = %q, want %q", cfg.TranscriptAlias, "chat")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Missing file falls back to defaults
	if cfg.DebounceMillis != 800 {
		t.Errorf("DebounceMillis = %d, want 800", cfg.DebounceMillis)
	}
}

func TestLoad_PartialFile(t *testing.T) {
	tmpDir := t.TempDir()
	content := `{"transcript_alias": "context"}`
	if err := os.WriteFile(filepath.Join(tmpDir, "config.json"), []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.TranscriptAlias != "context" {
		t.Errorf("TranscriptAlias = %q, want %q", cfg.TranscriptAlias, "context")
	}
	// Unset scalar falls back to default
	if cfg.DebounceMillis != 800 {
		t.Errorf("DebounceMillis = %d, want 800", cfg.DebounceMillis)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "config.json"), []byte("{not json"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Error("Load should fail on invalid JSON")
	}
}

func TestLoad_Completion(t *testing.T) {
	tmpDir := t.TempDir()
	content := `{
		"debounce_ms": 250,
		"completion": {"base_url": "http://localhost:8080/v1", "model": "local", "api_key_env": "LOCAL_KEY"}
	}`
	if err := os.WriteFile(filepath.Join(tmpDir, "config.json"), []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DebounceMillis != 250 {
		t.Errorf("DebounceMillis = %d, want 250", cfg.DebounceMillis)
	}
	if cfg.Completion.Model != "local" {
		t.Errorf("Completion.Model = %q, want %q", cfg.Completion.Model, "local")
	}
	if cfg.Completion.BaseURL != "http://localhost:8080/v1" {
		t.Errorf("Completion.BaseURL = %q", cfg.Completion.BaseURL)
	}
}

func TestMerge_Scalars(t *testing.T) {
	base := DefaultConfig()
	overlay := &Config{DebounceMillis: 100}

	merged := Merge(base, overlay)

	if merged.DebounceMillis != 100 {
		t.Errorf("DebounceMillis = %d, want 100", merged.DebounceMillis)
	}
	if merged.TranscriptAlias != "chat" {
		t.Errorf("TranscriptAlias = %q, want base default", merged.TranscriptAlias)
	}
}

func TestMerge_DisabledToolsDeduplicated(t *testing.T) {
	base := &Config{DisabledTools: []string{"suite_render", "macro_expand"}}
	overlay := &Config{DisabledTools: []string{"macro_expand", " reply_apply "}}

	merged := Merge(base, overlay)

	want := []string{"suite_render", "macro_expand", "reply_apply"}
	if len(merged.DisabledTools) != len(want) {
		t.Fatalf("DisabledTools = %v, want %v", merged.DisabledTools, want)
	}
	for i, s := range want {
		if merged.DisabledTools[i] != s {
			t.Errorf("DisabledTools[%d] = %q, want %q", i, merged.DisabledTools[i], s)
		}
	}
}
