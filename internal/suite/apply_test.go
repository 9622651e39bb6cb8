package suite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/varloom/internal/variable"
)

func suiteWithVars(ids ...string) variable.Suite {
	items := make([]variable.Item, len(ids))
	for i, id := range ids {
		items[i] = variable.Item{Type: variable.ItemVariable, VariableID: id}
	}
	return variable.Suite{ID: "s1", Name: "test", Items: items}
}

func TestApply_StackAndReplace(t *testing.T) {
	st := testStore(t)
	require.NoError(t, st.PutDefinition(variable.Definition{ID: "d1", Name: "log", Tag: "[log]", Mode: variable.ModeStack}))
	require.NoError(t, st.PutDefinition(variable.Definition{ID: "d2", Name: "mood", Tag: "[mood]", Mode: variable.ModeReplace}))

	suite := suiteWithVars("d1", "d2")
	reply := "Some prose.\n[log]went north[/log]\nmore prose\n[mood]wary[/mood]"

	out, err := Apply(st, suite, "chat1", reply, "1-4")
	require.NoError(t, err)
	require.Len(t, out.Applied, 2)
	require.Empty(t, out.Missing)

	byName := map[string]AppliedValue{}
	for _, a := range out.Applied {
		byName[a.Name] = a
	}
	require.Equal(t, int64(1), byName["log"].EntryID)
	require.Zero(t, byName["mood"].EntryID)

	logVal, ok := st.Value("chat1", "d1")
	require.True(t, ok)
	require.Len(t, logVal.Entries, 1)
	require.Equal(t, "went north", logVal.Entries[0].Content)
	require.Equal(t, "1-4", logVal.Entries[0].FloorRange)

	moodVal, ok := st.Value("chat1", "d2")
	require.True(t, ok)
	require.Equal(t, "wary", moodVal.CurrentValue)
	require.Empty(t, moodVal.History)
}

func TestApply_ReportsMissingTags(t *testing.T) {
	st := testStore(t)
	require.NoError(t, st.PutDefinition(variable.Definition{ID: "d1", Name: "log", Tag: "[log]", Mode: variable.ModeStack}))
	require.NoError(t, st.PutDefinition(variable.Definition{ID: "d2", Name: "mood", Tag: "[mood]", Mode: variable.ModeReplace}))

	out, err := Apply(st, suiteWithVars("d1", "d2"), "chat1", "[log]only this[/log]", "1-1")
	require.NoError(t, err)
	require.Len(t, out.Applied, 1)
	require.Equal(t, []string{"mood"}, out.Missing)

	// The missing variable stays untouched.
	_, ok := st.Value("chat1", "d2")
	require.False(t, ok)
}

func TestApply_RepeatedRepliesGrowStack(t *testing.T) {
	st := testStore(t)
	require.NoError(t, st.PutDefinition(variable.Definition{ID: "d1", Name: "log", Tag: "[log]", Mode: variable.ModeStack}))
	suite := suiteWithVars("d1")

	for i, reply := range []string{"[log]a[/log]", "[log]b[/log]", "[log]c[/log]"} {
		out, err := Apply(st, suite, "chat1", reply, "1-1")
		require.NoError(t, err)
		require.Equal(t, int64(i+1), out.Applied[0].EntryID)
	}

	val, ok := st.Value("chat1", "d1")
	require.True(t, ok)
	require.Len(t, val.Entries, 3)
}

type fakeCompleter struct {
	reply string
	err   error

	gotPrompt string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.gotPrompt = prompt
	return f.reply, f.err
}

func TestRun_RendersCompletesApplies(t *testing.T) {
	st := testStore(t)
	require.NoError(t, st.PutDefinition(variable.Definition{ID: "d1", Name: "log", Tag: "[log]", Mode: variable.ModeStack}))
	require.NoError(t, st.PutSuite(variable.Suite{
		ID:   "s1",
		Name: "quest",
		Items: []variable.Item{
			{Type: variable.ItemPrompt, Template: "Summarize."},
			{Type: variable.ItemVariable, VariableID: "d1"},
			{Type: variable.ItemTranscript},
		},
	}))

	r := &Renderer{Store: st, Transcript: chatOf("hello")}
	fc := &fakeCompleter{reply: "Done.\n[log]met the smith[/log]"}

	out, err := Run(context.Background(), r, fc, "chat1", "quest")
	require.NoError(t, err)
	require.Equal(t, fc.gotPrompt, out.Prompt)
	require.Contains(t, out.Prompt, "Summarize.")
	require.Contains(t, out.Prompt, "user: hello")
	require.Contains(t, out.Prompt, "[log]")
	require.Len(t, out.Applied.Applied, 1)

	val, ok := st.Value("chat1", "d1")
	require.True(t, ok)
	require.Equal(t, "met the smith", val.Entries[0].Content)
	require.Equal(t, "1-1", val.Entries[0].FloorRange)
}

func TestRun_CompletionFailureMutatesNothing(t *testing.T) {
	st := testStore(t)
	require.NoError(t, st.PutDefinition(variable.Definition{ID: "d1", Name: "log", Tag: "[log]", Mode: variable.ModeStack}))
	require.NoError(t, st.PutSuite(suiteWithVars("d1")))

	r := &Renderer{Store: st, Transcript: chatOf("hello")}
	fc := &fakeCompleter{err: errors.New("backend down")}

	_, err := Run(context.Background(), r, fc, "chat1", "s1")
	require.Error(t, err)

	_, ok := st.Value("chat1", "d1")
	require.False(t, ok)
}

func TestRun_UnknownSuite(t *testing.T) {
	st := testStore(t)
	r := &Renderer{Store: st}

	_, err := Run(context.Background(), r, &fakeCompleter{}, "chat1", "nope")
	require.Error(t, err)
}
