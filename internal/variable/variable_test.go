package variable

import (
	"testing"
	"time"
)

func TestBareTag(t *testing.T) {
	tests := []struct {
		tag  string
		want string
	}{
		{"[summary]", "summary"},
		{"summary", "summary"},
		{" [log] ", "log"},
		{"[日志]", "日志"},
	}
	for _, tt := range tests {
		d := Definition{Tag: tt.tag}
		if got := d.BareTag(); got != tt.want {
			t.Errorf("BareTag(%q) = %q, want %q", tt.tag, got, tt.want)
		}
	}
}

func TestAppendEntry_MonotonicIDs(t *testing.T) {
	v := &Value{}
	now := time.Now()

	for i := 1; i <= 5; i++ {
		e := v.AppendEntry("entry", "1-2", now)
		if e.ID != int64(i) {
			t.Errorf("entry %d got id %d", i, e.ID)
		}
	}

	if len(v.Entries) != 5 {
		t.Fatalf("len(Entries) = %d, want 5", len(v.Entries))
	}
	if v.NextEntryID != 6 {
		t.Errorf("NextEntryID = %d, want 6", v.NextEntryID)
	}
	for i := 1; i < len(v.Entries); i++ {
		if v.Entries[i].ID <= v.Entries[i-1].ID {
			t.Errorf("entry ids not strictly increasing at %d", i)
		}
	}
}

func TestOverwrite_FirstValueHasNoHistory(t *testing.T) {
	v := &Value{}
	now := time.Now()

	v.Overwrite("first", "1-3", now)

	if v.CurrentValue != "first" {
		t.Errorf("CurrentValue = %q, want %q", v.CurrentValue, "first")
	}
	if len(v.History) != 0 {
		t.Errorf("History length = %d, want 0", len(v.History))
	}
	if v.HistoryIndex != -1 {
		t.Errorf("HistoryIndex = %d, want -1", v.HistoryIndex)
	}
}

func TestOverwrite_PushesOldCurrent(t *testing.T) {
	v := &Value{}
	now := time.Now()

	values := []string{"a", "b", "c", "d"}
	for _, s := range values {
		v.Overwrite(s, "", now)
	}

	// K overwrites yield K-1 history entries
	if len(v.History) != len(values)-1 {
		t.Fatalf("History length = %d, want %d", len(v.History), len(values)-1)
	}
	if v.CurrentValue != "d" {
		t.Errorf("CurrentValue = %q, want %q", v.CurrentValue, "d")
	}
	for i, want := range []string{"a", "b", "c"} {
		if v.History[i].Content != want {
			t.Errorf("History[%d] = %q, want %q", i, v.History[i].Content, want)
		}
	}
}

func TestOverwrite_ResetsHistoryIndex(t *testing.T) {
	v := &Value{}
	now := time.Now()

	v.Overwrite("a", "", now)
	v.Overwrite("b", "", now)
	v.HistoryIndex = 0 // browsing history

	v.Overwrite("c", "", now)

	if v.HistoryIndex != -1 {
		t.Errorf("HistoryIndex = %d, want -1 after overwrite", v.HistoryIndex)
	}
}

func TestOverwrite_EmptyContentCountsAsCurrent(t *testing.T) {
	v := &Value{}
	now := time.Now()

	v.Overwrite("", "", now)
	v.Overwrite("second", "", now)

	// The empty first value was still a value: it must be in history.
	if len(v.History) != 1 {
		t.Fatalf("History length = %d, want 1", len(v.History))
	}
	if v.History[0].Content != "" {
		t.Errorf("History[0] = %q, want empty", v.History[0].Content)
	}
}

func TestVisible_ExcludesHidden(t *testing.T) {
	v := &Value{}
	now := time.Now()
	v.AppendEntry("one", "", now)
	v.AppendEntry("two", "", now)
	v.AppendEntry("three", "", now)

	if !v.Hide(2) {
		t.Fatal("Hide(2) = false, want true")
	}

	vis := v.Visible()
	if len(vis) != 2 {
		t.Fatalf("len(Visible) = %d, want 2", len(vis))
	}
	if vis[0].Content != "one" || vis[1].Content != "three" {
		t.Errorf("Visible = [%q, %q], want [one, three]", vis[0].Content, vis[1].Content)
	}

	// Hiding keeps ids stable: next append continues the counter
	e := v.AppendEntry("four", "", now)
	if e.ID != 4 {
		t.Errorf("new entry id = %d, want 4", e.ID)
	}
}

func TestHide_UnknownID(t *testing.T) {
	v := &Value{}
	v.AppendEntry("one", "", time.Now())

	if v.Hide(99) {
		t.Error("Hide(99) = true, want false")
	}
}

func TestDefaultText_StackJoinsVisible(t *testing.T) {
	v := &Value{}
	now := time.Now()
	v.AppendEntry("a", "", now)
	v.AppendEntry("b", "", now)
	v.Hide(1)
	v.AppendEntry("c", "", now)

	got := v.DefaultText(ModeStack)
	if got != "b\n\nc" {
		t.Errorf("DefaultText = %q, want %q", got, "b\n\nc")
	}
}

func TestDefaultText_ReplaceIsCurrentOnly(t *testing.T) {
	v := &Value{}
	now := time.Now()
	v.Overwrite("old", "", now)
	v.Overwrite("new", "", now)

	if got := v.DefaultText(ModeReplace); got != "new" {
		t.Errorf("DefaultText = %q, want %q", got, "new")
	}
}

func TestRangeUniverse_Replace(t *testing.T) {
	v := &Value{}
	now := time.Now()
	v.Overwrite("a", "", now)
	v.Overwrite("b", "", now)
	v.Overwrite("c", "", now)

	u := v.RangeUniverse(ModeReplace)
	want := []string{"a", "b", "c"}
	if len(u) != len(want) {
		t.Fatalf("universe = %v, want %v", u, want)
	}
	for i := range want {
		if u[i] != want[i] {
			t.Errorf("universe[%d] = %q, want %q", i, u[i], want[i])
		}
	}
}

func TestNewID(t *testing.T) {
	a, err := NewID()
	if err != nil {
		t.Fatalf("NewID failed: %v", err)
	}
	b, err := NewID()
	if err != nil {
		t.Fatalf("NewID failed: %v", err)
	}
	if a == b {
		t.Error("NewID returned duplicate ids")
	}
	if len(a) != 26 {
		t.Errorf("ULID length = %d, want 26", len(a))
	}
}
