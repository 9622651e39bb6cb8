package suite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/varloom/internal/kv"
	"github.com/hpungsan/varloom/internal/store"
	"github.com/hpungsan/varloom/internal/transcript"
	"github.com/hpungsan/varloom/internal/variable"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	backend, err := kv.NewFileStore(t.TempDir())
	require.NoError(t, err)
	st, err := store.Open(backend, 10*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func chatOf(texts ...string) transcript.Slice {
	msgs := make(transcript.Slice, len(texts))
	for i, text := range texts {
		msgs[i] = transcript.Message{Sender: "user", Text: text}
	}
	return msgs
}

func TestRender_ItemOrderAndTypes(t *testing.T) {
	st := testStore(t)

	def := variable.Definition{ID: "d1", Name: "log", Tag: "[log]", Mode: variable.ModeStack}
	require.NoError(t, st.PutDefinition(def))
	_, err := st.ApplyValue("chat1", def, "first entry", "1-1")
	require.NoError(t, err)

	r := &Renderer{
		Store:      st,
		Transcript: chatOf("hello", "world"),
		Alias:      "chat",
	}

	suite := variable.Suite{
		ID:   "s1",
		Name: "test",
		Items: []variable.Item{
			{Type: variable.ItemPrompt, Template: "Context: {{chat@1}}"},
			{Type: variable.ItemVariable, VariableID: "d1"},
			{Type: variable.ItemTranscript, Range: "2"},
		},
	}

	out := r.Render(suite, "chat1")

	want := "Context: user: hello\n\nfirst entry\n\nuser: world"
	require.Equal(t, want, out.Prompt)
	require.Equal(t, "1-2", out.FloorRange)
}

func TestRender_CharacterItemGated(t *testing.T) {
	st := testStore(t)

	suite := variable.Suite{
		ID:   "s1",
		Name: "test",
		Items: []variable.Item{
			{Type: variable.ItemCharacter, Character: "alice", Template: "alice only"},
			{Type: variable.ItemCharacter, Character: "bob", Template: "bob only"},
		},
	}

	r := &Renderer{Store: st, ActiveCharacter: "alice"}
	out := r.Render(suite, "chat1")
	require.Equal(t, "alice only", out.Prompt)

	// No active character renders neither.
	r.ActiveCharacter = ""
	out = r.Render(suite, "chat1")
	require.Equal(t, "", out.Prompt)
}

func TestRender_EmptyTranscriptRangeMeansWholeChat(t *testing.T) {
	st := testStore(t)
	r := &Renderer{Store: st, Transcript: chatOf("a", "b", "c")}

	suite := variable.Suite{
		ID:    "s1",
		Name:  "test",
		Items: []variable.Item{{Type: variable.ItemTranscript}},
	}

	out := r.Render(suite, "chat1")
	require.Equal(t, "user: a\n\nuser: b\n\nuser: c", out.Prompt)
}

func TestRender_UnknownVariableItemSkipped(t *testing.T) {
	st := testStore(t)
	r := &Renderer{Store: st}

	suite := variable.Suite{
		ID:   "s1",
		Name: "test",
		Items: []variable.Item{
			{Type: variable.ItemPrompt, Template: "head"},
			{Type: variable.ItemVariable, VariableID: "ghost"},
			{Type: variable.ItemPrompt, Template: "tail"},
		},
	}

	out := r.Render(suite, "chat1")
	require.Equal(t, "head\n\ntail", out.Prompt)
}

// growingChat simulates messages arriving between enqueue and render.
type growingChat struct {
	msgs transcript.Slice
}

func (g *growingChat) FloorCount() int                        { return len(g.msgs) }
func (g *growingChat) Floor(n int) (transcript.Message, bool) { return g.msgs.Floor(n) }

func TestSnapshotMode_CapturesAtEnqueue(t *testing.T) {
	st := testStore(t)
	chat := &growingChat{msgs: chatOf("one", "two")}

	suiteSnap := variable.Suite{
		ID:              "snap",
		Name:            "snap",
		UseSnapshotMode: true,
		Items:           []variable.Item{{Type: variable.ItemTranscript, Range: "1-end"}},
	}
	suiteLive := variable.Suite{
		ID:    "live",
		Name:  "live",
		Items: []variable.Item{{Type: variable.ItemTranscript, Range: "1-end"}},
	}

	r := &Renderer{Store: st, Transcript: chat}

	qSnap := r.Enqueue(suiteSnap, "chat1")
	qLive := r.Enqueue(suiteLive, "chat1")

	// A message arrives while both are queued.
	chat.msgs = append(chat.msgs, transcript.Message{Sender: "user", Text: "three"})

	snap := qSnap.Render()
	live := qLive.Render()

	require.Equal(t, "user: one\n\nuser: two", snap.Prompt)
	require.Equal(t, "user: one\n\nuser: two\n\nuser: three", live.Prompt)

	// The snapshot also pins the recorded floor span.
	require.Equal(t, "1-2", snap.FloorRange)
	require.Equal(t, "1-3", live.FloorRange)
}

func TestDefinitions_DeduplicatedInItemOrder(t *testing.T) {
	st := testStore(t)
	require.NoError(t, st.PutDefinition(variable.Definition{ID: "d1", Name: "b", Tag: "[b]", Mode: variable.ModeStack}))
	require.NoError(t, st.PutDefinition(variable.Definition{ID: "d2", Name: "a", Tag: "[a]", Mode: variable.ModeReplace}))

	suite := variable.Suite{
		ID:   "s1",
		Name: "test",
		Items: []variable.Item{
			{Type: variable.ItemVariable, VariableID: "d1"},
			{Type: variable.ItemVariable, VariableID: "d2"},
			{Type: variable.ItemVariable, VariableID: "d1"}, // duplicate
			{Type: variable.ItemVariable, VariableID: "nope"},
		},
	}

	defs := Definitions(st, suite)
	require.Len(t, defs, 2)
	require.Equal(t, "d1", defs[0].ID)
	require.Equal(t, "d2", defs[1].ID)
}
