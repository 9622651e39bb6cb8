package variable

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Mode controls how parsed values accumulate.
type Mode string

const (
	// ModeStack appends every parsed value as a new entry; nothing is
	// overwritten. Stack variables are logs.
	ModeStack Mode = "stack"

	// ModeReplace overwrites the current value, pushing the prior value
	// into history. Replace variables are snapshots.
	ModeReplace Mode = "replace"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeStack || m == ModeReplace
}

// Definition describes a named variable the model emits via a bracket tag.
type Definition struct {
	// ID is a ULID that uniquely identifies this definition.
	ID string `json:"id"`

	// Name is the macro-reference name ({{name}}).
	Name string `json:"name"`

	// Tag is the bracket label the model is instructed to emit, e.g. "[summary]".
	Tag string `json:"tag"`

	// Mode is stack or replace.
	Mode Mode `json:"mode"`
}

// BareTag returns the tag name with surrounding brackets stripped.
func (d Definition) BareTag() string {
	return strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(d.Tag), "["), "]")
}

// Entry is one captured value: a stack-mode unit or a replace-mode
// history unit.
type Entry struct {
	// ID is a monotonic per-variable counter, never reused or renumbered.
	ID int64 `json:"id"`

	// Content is the captured text.
	Content string `json:"content"`

	// FloorRange describes the originating transcript span, e.g. "56-65".
	FloorRange string `json:"floor_range,omitempty"`

	// Timestamp is the Unix time the entry was captured.
	Timestamp int64 `json:"timestamp"`

	// Hidden excludes the entry from default range resolution without
	// renumbering its siblings (soft deletion).
	Hidden bool `json:"hidden,omitempty"`
}

// Value holds the accumulated state of one variable within one chat.
// Stack mode uses Entries/NextEntryID; replace mode uses CurrentValue,
// CurrentFloor, History, and HistoryIndex.
type Value struct {
	Entries     []Entry `json:"entries,omitempty"`
	NextEntryID int64   `json:"next_entry_id,omitempty"`

	CurrentValue string  `json:"current_value,omitempty"`
	CurrentFloor string  `json:"current_floor,omitempty"`
	HasCurrent   bool    `json:"has_current,omitempty"`
	History      []Entry `json:"history,omitempty"`

	// HistoryIndex addresses History when browsing; -1 means "viewing
	// current". Reset to -1 on every new overwrite.
	HistoryIndex int `json:"history_index,omitempty"`
}

// AppendEntry adds a stack-mode entry and returns it.
// The new entry gets id = NextEntryID; NextEntryID strictly increases.
func (v *Value) AppendEntry(content, floorRange string, now time.Time) Entry {
	if v.NextEntryID < 1 {
		v.NextEntryID = 1
	}
	e := Entry{
		ID:         v.NextEntryID,
		Content:    content,
		FloorRange: floorRange,
		Timestamp:  now.Unix(),
	}
	v.NextEntryID++
	v.Entries = append(v.Entries, e)
	return e
}

// Overwrite replaces the current value, pushing the prior current (if any)
// onto History first. HistoryIndex resets to "viewing current".
func (v *Value) Overwrite(content, floorRange string, now time.Time) {
	if v.HasCurrent {
		if v.NextEntryID < 1 {
			v.NextEntryID = 1
		}
		v.History = append(v.History, Entry{
			ID:         v.NextEntryID,
			Content:    v.CurrentValue,
			FloorRange: v.CurrentFloor,
			Timestamp:  now.Unix(),
		})
		v.NextEntryID++
	}
	v.CurrentValue = content
	v.CurrentFloor = floorRange
	v.HasCurrent = true
	v.HistoryIndex = -1
}

// Visible returns the non-hidden entries in stored order.
func (v *Value) Visible() []Entry {
	out := make([]Entry, 0, len(v.Entries))
	for _, e := range v.Entries {
		if !e.Hidden {
			out = append(out, e)
		}
	}
	return out
}

// Hide marks the entry with the given id hidden. Returns false if no
// entry has that id.
func (v *Value) Hide(id int64) bool {
	for i := range v.Entries {
		if v.Entries[i].ID == id {
			v.Entries[i].Hidden = true
			return true
		}
	}
	return false
}

// RangeUniverse returns the ordered contents ranges index into (1-based).
// Stack mode: visible entry contents. Replace mode: history contents in
// order, with the current value as the final index.
func (v *Value) RangeUniverse(mode Mode) []string {
	if mode == ModeReplace {
		out := make([]string, 0, len(v.History)+1)
		for _, e := range v.History {
			if !e.Hidden {
				out = append(out, e.Content)
			}
		}
		if v.HasCurrent {
			out = append(out, v.CurrentValue)
		}
		return out
	}
	vis := v.Visible()
	out := make([]string, len(vis))
	for i, e := range vis {
		out[i] = e.Content
	}
	return out
}

// DefaultText is the no-range resolution: all visible entries joined by a
// blank line for stack variables, the current value alone for replace
// variables. The two defaults differ because stack variables are logs
// while replace variables are snapshots.
func (v *Value) DefaultText(mode Mode) string {
	if mode == ModeReplace {
		return v.CurrentValue
	}
	vis := v.Visible()
	parts := make([]string, len(vis))
	for i, e := range vis {
		parts[i] = e.Content
	}
	return strings.Join(parts, "\n\n")
}

// NewID generates a ULID for definitions and suites.
func NewID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
