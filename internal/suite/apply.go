package suite

import (
	"github.com/rs/zerolog/log"

	"github.com/hpungsan/varloom/internal/store"
	"github.com/hpungsan/varloom/internal/tagparse"
	"github.com/hpungsan/varloom/internal/variable"
)

// AppliedValue describes one stored parse result.
type AppliedValue struct {
	VariableID string        `json:"variable_id"`
	Name       string        `json:"name"`
	Tag        string        `json:"tag"`
	Mode       variable.Mode `json:"mode"`

	// EntryID is the new entry id for stack mode; zero for replace mode.
	EntryID int64 `json:"entry_id,omitempty"`
}

// ApplyOutput reports what a reply produced.
type ApplyOutput struct {
	Applied []AppliedValue `json:"applied"`

	// Missing lists expected tags the reply never emitted. Partial output
	// is a diagnostic, not a failure.
	Missing []string `json:"missing,omitempty"`
}

// Apply parses a complete model reply with the suite's variable definitions
// and applies each captured tag per its mode. Only complete responses may
// be fed here; streamed partial text would corrupt histories.
func Apply(st *store.Store, suite variable.Suite, chatID, reply, floorRange string) (*ApplyOutput, error) {
	defs := Definitions(st, suite)
	results := tagparse.Parse(reply, defs)

	byTag := make(map[string]variable.Definition, len(defs))
	for _, d := range defs {
		byTag[d.BareTag()] = d
	}

	out := &ApplyOutput{Applied: make([]AppliedValue, 0, len(results))}
	for _, res := range results {
		def, ok := byTag[res.Tag]
		if !ok {
			continue
		}
		entry, err := st.ApplyValue(chatID, def, res.Content, floorRange)
		if err != nil {
			return nil, err
		}
		out.Applied = append(out.Applied, AppliedValue{
			VariableID: def.ID,
			Name:       def.Name,
			Tag:        res.Tag,
			Mode:       def.Mode,
			EntryID:    entryID(def.Mode, entry),
		})
	}

	out.Missing = tagparse.CheckCompleteness(results, defs)
	if len(out.Missing) > 0 {
		log.Info().Strs("missing", out.Missing).Msg("suite: reply omitted expected tags")
	}
	return out, nil
}

func entryID(mode variable.Mode, entry variable.Entry) int64 {
	if mode == variable.ModeStack {
		return entry.ID
	}
	return 0
}

// InstructionsFor builds the tag-emission instruction block for a suite,
// honoring a custom header from settings when one is set.
func InstructionsFor(st *store.Store, suite variable.Suite) string {
	return tagparse.InstructionsWithHeader(st.Settings().InstructionHeader, Definitions(st, suite))
}
