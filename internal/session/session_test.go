package session

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/felixgeelhaar/ask/internal/conversation"
)

func TestStore_LoadMissing(t *testing.T) {
	s := NewStore(t.TempDir())

	_, err := s.Load("123")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	state, err := s.LoadOrInitialize("123", "gpt-x")
	if err != nil {
		t.Fatalf("LoadOrInitialize failed: %v", err)
	}
	if state.Len() != 1 || state.Messages[0].Role != conversation.RoleSystem {
		t.Errorf("expected fresh primed state, got %+v", state.Messages)
	}
	if _, err := os.Stat(s.Path("123")); !os.IsNotExist(err) {
		t.Error("LoadOrInitialize should not write a record")
	}
}

func TestStore_SaveLoad(t *testing.T) {
	s := NewStore(t.TempDir())
	state := s.Initialize("o1-mini")
	state.Append(conversation.RoleUser, conversation.Text("hi"))
	state.Append(conversation.RoleAssistant, conversation.Text("hello"))
	state.Append(conversation.RoleUser, conversation.Multipart(
		conversation.TextPart("look"),
		conversation.ImagePart([]byte("png"), ""),
	))

	if err := s.Save("k1", state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Load("k1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(got, state) {
		t.Errorf("loaded state differs:\n got %+v\nwant %+v", got, state)
	}

	// Overwrite
	state.Append(conversation.RoleAssistant, conversation.Text("a png"))
	if err := s.Save("k1", state); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}
	got, _ = s.Load("k1")
	if got.Len() != 5 {
		t.Errorf("expected 5 messages after overwrite, got %d", got.Len())
	}

	entries, _ := os.ReadDir(s.Dir())
	if len(entries) != 1 {
		t.Errorf("expected only the record in the directory, found %d entries", len(entries))
	}
}

func TestStore_LoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	testCases := []struct {
		name string
		data string
	}{
		{"not json", "{{{"},
		{"wrong shape", `{"model": 3}`},
		{"no messages", `{"model":"gpt-x","messages":[]}`},
		{"null content", `{"model":"gpt-x","messages":[{"role":"system","content":null}]}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := os.WriteFile(s.Path("bad"), []byte(tc.data), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := s.Load("bad")
			if !errors.Is(err, ErrCorruptState) {
				t.Errorf("expected ErrCorruptState, got %v", err)
			}
		})
	}
}

func TestStore_Clear(t *testing.T) {
	s := NewStore(t.TempDir())

	cleared, err := s.Clear("nothing")
	if err != nil {
		t.Fatalf("Clear on missing record should not fail: %v", err)
	}
	if cleared {
		t.Error("expected nothing to clear")
	}

	if err := s.Save("k", s.Initialize("gpt-x")); err != nil {
		t.Fatal(err)
	}
	cleared, err = s.Clear("k")
	if err != nil || !cleared {
		t.Errorf("expected record cleared, got %v, %v", cleared, err)
	}
	if _, err := s.Load("k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after clear, got %v", err)
	}
}

func TestStore_InvalidKey(t *testing.T) {
	s := NewStore(t.TempDir())
	for _, k := range []Key{"", "../x", "a/b"} {
		if _, err := s.Load(k); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Load(%q): expected ErrInvalidKey, got %v", k, err)
		}
		if err := s.Save(k, s.Initialize("gpt-x")); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Save(%q): expected ErrInvalidKey, got %v", k, err)
		}
	}
}

func TestStore_SaveRejectsInvalidState(t *testing.T) {
	s := NewStore(t.TempDir())
	err := s.Save("k", &conversation.State{Model: "gpt-x"})
	if err == nil {
		t.Fatal("expected error saving an empty state")
	}
	if _, err := os.Stat(s.Path("k")); !os.IsNotExist(err) {
		t.Error("invalid state should not reach disk")
	}
}

func TestStore_ListDeleteMerge(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	a := s.Initialize("gpt-x")
	a.Append(conversation.RoleUser, conversation.Text(strings.Repeat("x", 100)+"\nsecond line"))
	a.Append(conversation.RoleAssistant, conversation.Text("ok"))
	b := s.Initialize("gpt-x")
	c := s.Initialize("o1-mini")
	c.Append(conversation.RoleUser, conversation.Text("other model"))

	for k, st := range map[Key]*conversation.State{"a": a, "b": b, "c": c} {
		if err := s.Save(k, st); err != nil {
			t.Fatal(err)
		}
	}
	os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0600)
	os.WriteFile(s.Path("broken"), []byte("nope"), 0600)

	t.Run("List", func(t *testing.T) {
		list, err := s.List()
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(list) != 4 {
			t.Fatalf("expected 4 sessions, got %d", len(list))
		}
		byKey := map[Key]Summary{}
		for _, sum := range list {
			byKey[sum.Key] = sum
		}
		if got := byKey["a"].Preview; got != strings.Repeat("x", 64) {
			t.Errorf("unexpected preview %q", got)
		}
		if byKey["b"].Preview != "" {
			t.Errorf("expected empty preview for primed-only session")
		}
		if !errors.Is(byKey["broken"].Err, ErrCorruptState) {
			t.Errorf("expected corrupt summary for broken record, got %v", byKey["broken"].Err)
		}
	})

	t.Run("Merge", func(t *testing.T) {
		dst := s.Initialize("gpt-x")
		if err := s.Merge(dst, "a"); err != nil {
			t.Fatalf("Merge failed: %v", err)
		}
		if dst.Len() != 3 {
			t.Errorf("expected priming + 2 merged messages, got %d", dst.Len())
		}
		if dst.Messages[2].Content.String() != "ok" {
			t.Errorf("merged messages out of order: %+v", dst.Messages)
		}

		if err := s.Merge(dst, "c"); !errors.Is(err, ErrModelMismatch) {
			t.Errorf("expected ErrModelMismatch, got %v", err)
		}
		if dst.Len() != 3 {
			t.Error("failed merge must not modify the destination")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := s.Delete("b"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if err := s.Delete("b"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}

		n, err := s.DeleteAll()
		if err != nil {
			t.Fatalf("DeleteAll failed: %v", err)
		}
		if n != 3 {
			t.Errorf("expected 3 deleted, got %d", n)
		}
		if _, err := os.Stat(filepath.Join(dir, "unrelated.txt")); err != nil {
			t.Error("DeleteAll removed an unrelated file")
		}
	})
}

func TestParentKey(t *testing.T) {
	k := ParentKey()
	if err := k.validate(); err != nil {
		t.Fatalf("parent key should be valid: %v", err)
	}
	s := NewStore("")
	if s.Dir() != os.TempDir() {
		t.Errorf("expected default dir %q, got %q", os.TempDir(), s.Dir())
	}
}
