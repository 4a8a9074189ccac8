package history

import (
	"path/filepath"
	"reflect"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndRecent(t *testing.T) {
	s := openTestStore(t)

	for _, cmd := range []string{"status", "sv_cheats 1", "noclip"} {
		if err := s.Append(cmd); err != nil {
			t.Fatalf("Append(%q): %v", cmd, err)
		}
	}

	got, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	want := []string{"noclip", "sv_cheats 1", "status"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Recent = %v, want %v (newest first)", got, want)
	}
}

func TestAppendSkipsBlankAndRepeats(t *testing.T) {
	s := openTestStore(t)

	for _, cmd := range []string{"status", "", "status", "status", "noclip", "status"} {
		if err := s.Append(cmd); err != nil {
			t.Fatalf("Append(%q): %v", cmd, err)
		}
	}

	got, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	// Blank entries vanish; consecutive repeats collapse, but a command
	// may recur after something else ran in between.
	want := []string{"status", "noclip", "status"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Recent = %v, want %v", got, want)
	}
}

func TestRecentLimit(t *testing.T) {
	s := openTestStore(t)

	for _, cmd := range []string{"one", "two", "three", "four"} {
		if err := s.Append(cmd); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if want := []string{"four", "three"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Recent(2) = %v, want %v", got, want)
	}
}

func TestHistorySurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Append("sv_gravity 200"); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	got, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 || got[0] != "sv_gravity 200" {
		t.Errorf("Recent after reopen = %v", got)
	}
}
