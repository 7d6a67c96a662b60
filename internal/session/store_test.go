package session

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/nugget/ore-agent/internal/llm"
)

// storeFixtures builds each Store implementation against a temp
// directory, so the same contract tests run over both.
func storeFixtures(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"file":   NewFileStore(filepath.Join(t.TempDir(), "sessions")),
		"sqlite": sqlite,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, store := range storeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			s := New()
			s.Append(llm.NewMessage(llm.RoleUser, "hello"))
			s.Append(llm.NewMessage(llm.RoleAssistant, "hi back"))

			if err := store.Save(s, "morning"); err != nil {
				t.Fatalf("Save error: %v", err)
			}

			loaded, err := store.Load("morning")
			if err != nil {
				t.Fatalf("Load error: %v", err)
			}
			if loaded.ID != s.ID {
				t.Errorf("ID = %q, want %q", loaded.ID, s.ID)
			}
			if len(loaded.Messages) != 2 {
				t.Fatalf("len(Messages) = %d", len(loaded.Messages))
			}
			if loaded.Messages[0].Role != "user" || loaded.Messages[0].Content != "hello" {
				t.Errorf("first message = %+v", loaded.Messages[0])
			}
			if loaded.Messages[1].ID != s.Messages[1].ID {
				t.Errorf("message ids not preserved")
			}
		})
	}
}

func TestStoreSaveReplaces(t *testing.T) {
	for name, store := range storeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			first := New()
			first.Append(llm.NewMessage(llm.RoleUser, "one"))
			if err := store.Save(first, "work"); err != nil {
				t.Fatal(err)
			}

			second := New()
			second.Append(llm.NewMessage(llm.RoleUser, "two"))
			if err := store.Save(second, "work"); err != nil {
				t.Fatal(err)
			}

			loaded, err := store.Load("work")
			if err != nil {
				t.Fatal(err)
			}
			if loaded.ID != second.ID || len(loaded.Messages) != 1 || loaded.Messages[0].Content != "two" {
				t.Errorf("loaded = %+v, want the replacement session", loaded)
			}
		})
	}
}

func TestStoreLoadNotFound(t *testing.T) {
	for name, store := range storeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Load("missing")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Load(missing) error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStoreList(t *testing.T) {
	for name, store := range storeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			names, err := store.List()
			if err != nil {
				t.Fatalf("List on empty store: %v", err)
			}
			if len(names) != 0 {
				t.Errorf("List = %v, want empty", names)
			}

			for _, n := range []string{"zeta", "alpha", "mid"} {
				if err := store.Save(New(), n); err != nil {
					t.Fatal(err)
				}
			}

			names, err = store.List()
			if err != nil {
				t.Fatal(err)
			}
			want := []string{"alpha", "mid", "zeta"}
			if !reflect.DeepEqual(names, want) {
				t.Errorf("List = %v, want %v (sorted)", names, want)
			}
		})
	}
}

func TestStoreRejectsBadNames(t *testing.T) {
	for name, store := range storeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			for _, bad := range []string{"", "  ", "a/b", `a\b`, ".", ".."} {
				if err := store.Save(New(), bad); err == nil {
					t.Errorf("Save(%q) accepted", bad)
				}
				if _, err := store.Load(bad); err == nil {
					t.Errorf("Load(%q) accepted", bad)
				}
			}
		})
	}
}

func TestValidateName(t *testing.T) {
	if err := ValidateName("daily-standup_2"); err != nil {
		t.Errorf("valid name rejected: %v", err)
	}
}
