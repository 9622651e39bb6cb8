package kv

import (
	"testing"
)

// backends runs a subtest against both Store implementations.
func backends(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()

	t.Run("file", func(t *testing.T) {
		s, err := NewFileStore(t.TempDir())
		if err != nil {
			t.Fatalf("NewFileStore failed: %v", err)
		}
		defer s.Close()
		fn(t, s)
	})

	t.Run("sqlite", func(t *testing.T) {
		s, err := OpenSQLite(t.TempDir())
		if err != nil {
			t.Fatalf("OpenSQLite failed: %v", err)
		}
		defer s.Close()
		fn(t, s)
	})
}

func TestStore_GetMissing(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		data, found, err := s.Get("nope")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if found {
			t.Error("found = true for missing key")
		}
		if data != nil {
			t.Errorf("data = %q, want nil", data)
		}
	})
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		if err := s.Put("root", []byte(`{"version":2}`)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		data, found, err := s.Get("root")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !found {
			t.Fatal("found = false after Put")
		}
		if string(data) != `{"version":2}` {
			t.Errorf("data = %q", data)
		}
	})
}

func TestStore_PutOverwrites(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		if err := s.Put("k", []byte("a")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if err := s.Put("k", []byte("b")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		data, _, err := s.Get("k")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(data) != "b" {
			t.Errorf("data = %q, want %q", data, "b")
		}
	})
}

func TestStore_Delete(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		if err := s.Put("k", []byte("x")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if err := s.Delete("k"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		_, found, err := s.Get("k")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if found {
			t.Error("key still present after Delete")
		}

		// Deleting a missing key is not an error
		if err := s.Delete("k"); err != nil {
			t.Errorf("Delete of missing key failed: %v", err)
		}
	})
}

func TestStore_ListPrefix(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		docs := map[string]string{
			"root":        "r",
			"chat/alpha":  "a",
			"chat/beta":   "b",
			"other/gamma": "g",
		}
		for k, v := range docs {
			if err := s.Put(k, []byte(v)); err != nil {
				t.Fatalf("Put(%q) failed: %v", k, err)
			}
		}

		keys, err := s.List("chat/")
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(keys) != 2 || keys[0] != "chat/alpha" || keys[1] != "chat/beta" {
			t.Errorf("keys = %v, want [chat/alpha chat/beta]", keys)
		}

		all, err := s.List("")
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(all) != 4 {
			t.Errorf("len(all) = %d, want 4", len(all))
		}
	})
}

func TestOpenSQLite_Reopen(t *testing.T) {
	dir := t.TempDir()

	s, err := OpenSQLite(dir)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	if err := s.Put("k", []byte("v")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s2, err := OpenSQLite(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	data, found, err := s2.Get("k")
	if err != nil || !found {
		t.Fatalf("Get after reopen: %v, found=%v", err, found)
	}
	if string(data) != "v" {
		t.Errorf("data = %q, want %q", data, "v")
	}
}
