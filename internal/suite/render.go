// Package suite renders prompt suites and applies model replies back into
// variable storage.
package suite

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hpungsan/varloom/internal/macro"
	"github.com/hpungsan/varloom/internal/store"
	"github.com/hpungsan/varloom/internal/transcript"
	"github.com/hpungsan/varloom/internal/variable"
)

// Renderer renders suites against one chat. The transcript and storage are
// injected; rendering itself is read-only and synchronous.
type Renderer struct {
	Store      *store.Store
	Transcript transcript.Reader

	// Alias is the reserved transcript macro name (config/settings).
	Alias string

	// ActiveCharacter gates character-bound items.
	ActiveCharacter string
}

// Rendered is one produced prompt.
type Rendered struct {
	Prompt string `json:"prompt"`

	// FloorRange is the transcript span this prompt covered, recorded on
	// entries created from the reply.
	FloorRange string `json:"floor_range,omitempty"`

	// Instructions is the tag-emission block for the suite's variables.
	Instructions string `json:"instructions,omitempty"`
}

// QueuedRender is a suite waiting to be sent. In snapshot mode the
// transcript items' content is captured at enqueue time, so prompts queued
// back-to-back see the same transcript window even if messages arrive in
// between; otherwise transcript items re-resolve at render time.
type QueuedRender struct {
	r         *Renderer
	suite     variable.Suite
	chatID    string
	snapshots map[int]string
	span      string
}

// Enqueue prepares a suite for rendering. The chat's value document is
// warmed here so the synchronous macro resolver sees it.
func (r *Renderer) Enqueue(suite variable.Suite, chatID string) *QueuedRender {
	r.Store.WarmChat(chatID)

	q := &QueuedRender{r: r, suite: suite, chatID: chatID}
	if suite.UseSnapshotMode {
		q.snapshots = make(map[int]string)
		for i, item := range suite.Items {
			if item.Type == variable.ItemTranscript {
				q.snapshots[i] = r.transcriptText(item.Range)
			}
		}
		q.span = r.currentSpan()
	}
	return q
}

// Render produces the prompt by concatenating items in list order.
func (q *QueuedRender) Render() Rendered {
	r := q.r
	env := macro.Env{
		Transcript: r.Transcript,
		Alias:      r.Alias,
		Lookup:     r.lookup(q.chatID),
	}

	parts := make([]string, 0, len(q.suite.Items))
	for i, item := range q.suite.Items {
		var text string
		switch item.Type {
		case variable.ItemPrompt:
			text = macro.Process(item.Template, env)
		case variable.ItemVariable:
			text = r.variableText(q.chatID, item.VariableID)
		case variable.ItemTranscript:
			if snap, ok := q.snapshots[i]; ok {
				text = snap
			} else {
				text = r.transcriptText(item.Range)
			}
		case variable.ItemCharacter:
			if item.Character == r.ActiveCharacter && r.ActiveCharacter != "" {
				text = macro.Process(item.Template, env)
			}
		default:
			log.Warn().Str("type", string(item.Type)).Msg("suite: skipping item of unknown type")
		}
		if text != "" {
			parts = append(parts, text)
		}
	}

	span := q.span
	if span == "" {
		span = r.currentSpan()
	}

	return Rendered{
		Prompt:       strings.Join(parts, "\n\n"),
		FloorRange:   span,
		Instructions: InstructionsFor(r.Store, q.suite),
	}
}

// Render is Enqueue followed by an immediate Render.
func (r *Renderer) Render(suite variable.Suite, chatID string) Rendered {
	return r.Enqueue(suite, chatID).Render()
}

// lookup builds the synchronous macro resolver over the warm cache.
func (r *Renderer) lookup(chatID string) macro.Lookup {
	return macro.LookupFunc(func(name string) (variable.Definition, *variable.Value, bool) {
		def, ok := r.Store.DefinitionByName(name)
		if !ok {
			return variable.Definition{}, nil, false
		}
		val, ok := r.Store.CachedValue(chatID, def.ID)
		if !ok {
			// Defined but no value yet in this chat: resolve to empty.
			return def, &variable.Value{}, true
		}
		return def, &val, true
	})
}

// variableText renders a variable item with the variable's default
// resolution.
func (r *Renderer) variableText(chatID, defID string) string {
	def, ok := r.Store.Definition(defID)
	if !ok {
		log.Debug().Str("variable", defID).Msg("suite: variable item references unknown definition")
		return ""
	}
	val, ok := r.Store.CachedValue(chatID, def.ID)
	if !ok {
		return ""
	}
	return val.DefaultText(def.Mode)
}

// transcriptText resolves a transcript item's range. An empty range means
// the whole chat.
func (r *Renderer) transcriptText(rangeSpec string) string {
	if r.Transcript == nil {
		return ""
	}
	count := r.Transcript.FloorCount()
	universe := make([]string, count)
	for i := 1; i <= count; i++ {
		m, _ := r.Transcript.Floor(i)
		universe[i-1] = transcript.FloorText(m)
	}
	if strings.TrimSpace(rangeSpec) == "" {
		rangeSpec = "1-end"
	}
	return macro.Pick(universe, rangeSpec)
}

// currentSpan describes the transcript window as "1-N", or "" with no chat.
func (r *Renderer) currentSpan() string {
	if r.Transcript == nil || r.Transcript.FloorCount() == 0 {
		return ""
	}
	return fmt.Sprintf("1-%d", r.Transcript.FloorCount())
}

// Definitions returns the definitions bound by a suite's variable items,
// in item order without duplicates.
func Definitions(st *store.Store, suite variable.Suite) []variable.Definition {
	defs := make([]variable.Definition, 0, len(suite.Items))
	seen := make(map[string]bool)
	for _, item := range suite.Items {
		if item.Type != variable.ItemVariable || item.VariableID == "" || seen[item.VariableID] {
			continue
		}
		seen[item.VariableID] = true
		def, ok := st.Definition(item.VariableID)
		if !ok {
			log.Debug().Str("variable", item.VariableID).Msg("suite: dangling variable item")
			continue
		}
		defs = append(defs, def)
	}
	return defs
}
