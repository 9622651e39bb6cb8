package variable

// ItemType discriminates the suite item union.
type ItemType string

const (
	// ItemPrompt is static template text; macros are resolved at render time.
	ItemPrompt ItemType = "prompt"

	// ItemVariable is a typed hole bound to a Definition, rendered with the
	// variable's default resolution.
	ItemVariable ItemType = "variable"

	// ItemTranscript is a range-selector over the chat transcript.
	ItemTranscript ItemType = "transcript"

	// ItemCharacter is prompt text visible only while a specific character
	// is active.
	ItemCharacter ItemType = "character"
)

// Item is one element of a suite. Which fields are meaningful depends
// on Type.
type Item struct {
	Type ItemType `json:"type"`

	// Template is the text body for prompt and character items.
	Template string `json:"template,omitempty"`

	// VariableID binds a variable item to a Definition.
	VariableID string `json:"variable_id,omitempty"`

	// Range is the transcript range spec for transcript items, e.g. "1-end".
	Range string `json:"range,omitempty"`

	// Character gates a character item.
	Character string `json:"character,omitempty"`
}

// Suite is an ordered, independently triggerable group of items that
// together form one generation request. Item order is the literal order
// content is concatenated into the outgoing prompt.
type Suite struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`

	// Trigger names the event that fires this suite (host-defined).
	Trigger string `json:"trigger,omitempty"`

	Items []Item `json:"items"`

	// UseSnapshotMode captures transcript item content at enqueue time
	// instead of re-resolving at send time. Without it, two suites queued
	// back-to-back may see different transcript windows if new messages
	// arrive between them.
	UseSnapshotMode bool `json:"use_snapshot_mode,omitempty"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// Settings is the per-installation settings block of the root document.
type Settings struct {
	// TranscriptAlias is the reserved macro name for transcript references.
	TranscriptAlias string `json:"transcript_alias,omitempty"`

	// DebounceMillis overrides the write-coalescing delay.
	DebounceMillis int `json:"debounce_ms,omitempty"`

	// ActiveCharacter gates character-bound suite items.
	ActiveCharacter string `json:"active_character,omitempty"`

	// InstructionHeader replaces the default lead-in line of the
	// tag-emission instruction block.
	InstructionHeader string `json:"instruction_header,omitempty"`
}
