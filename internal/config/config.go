package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Config holds application configuration.
type Config struct {
	// DebounceMillis is the write-coalescing delay for dirty documents.
	// Every mutation re-arms the timer; a burst of edits produces one write.
	DebounceMillis int `json:"debounce_ms"`

	// TranscriptAlias is the reserved macro name that resolves against the
	// chat transcript instead of a stored variable (e.g. {{chat@1-5}}).
	TranscriptAlias string `json:"transcript_alias,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// Completion configures the optional chat-completion backend used by
	// the run command. Left empty, run is unavailable.
	Completion CompletionConfig `json:"completion,omitempty"`
}

// CompletionConfig points at an OpenAI-compatible completion endpoint.
type CompletionConfig struct {
	// BaseURL overrides the API endpoint (empty means the library default).
	BaseURL string `json:"base_url,omitempty"`

	// Model is the model identifier passed to the backend.
	Model string `json:"model,omitempty"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `json:"api_key_env,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DebounceMillis:  800,
		TranscriptAlias: "chat",
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.varloom.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.DebounceMillis = overlay.DebounceMillis
	if result.DebounceMillis == 0 {
		result.DebounceMillis = base.DebounceMillis
	}

	result.TranscriptAlias = overlay.TranscriptAlias
	if result.TranscriptAlias == "" {
		result.TranscriptAlias = base.TranscriptAlias
	}

	result.Completion = overlay.Completion
	if result.Completion.BaseURL == "" {
		result.Completion.BaseURL = base.Completion.BaseURL
	}
	if result.Completion.Model == "" {
		result.Completion.Model = base.Completion.Model
	}
	if result.Completion.APIKeyEnv == "" {
		result.Completion.APIKeyEnv = base.Completion.APIKeyEnv
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
