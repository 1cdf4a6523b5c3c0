package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pfrederiksen/events-watch/internal/event"
)

func TestPlainStore_LoadMissing(t *testing.T) {
	store := NewPlainStore(filepath.Join(t.TempDir(), "does-not-exist.json"))

	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Len() != 0 {
		t.Errorf("Load() = %v, want empty set", got.Sorted())
	}
}

func TestPlainStore_FileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "last_events.json")
	store := NewPlainStore(path)

	if err := store.Save(context.Background(), event.NewSet("Event B", "Event A")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	want := "[\n  \"Event A\",\n  \"Event B\"\n]\n"
	if string(data) != want {
		t.Errorf("file content = %q, want %q", data, want)
	}
}

func TestPlainStore_LoadLegacyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last_events.json")
	// unsorted, with a duplicate and an empty entry
	legacy := `["Event B", "Event A", "Event B", ""]`
	if err := os.WriteFile(path, []byte(legacy), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := NewPlainStore(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !got.Equal(event.NewSet("Event A", "Event B")) {
		t.Errorf("Load() = %v", got.Sorted())
	}
}

func TestPlainStore_LoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last_events.json")
	if err := os.WriteFile(path, []byte(`{"not": "a list"`), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewPlainStore(path).Load(context.Background()); err == nil {
		t.Error("Load() of malformed state should fail")
	}
}

func TestPlainStore_SaveReplacesWholesale(t *testing.T) {
	store := NewPlainStore(filepath.Join(t.TempDir(), "state.json"))
	ctx := context.Background()

	if err := store.Save(ctx, event.NewSet("Event A", "Event B")); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, event.NewSet("Event C")); err != nil {
		t.Fatal(err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(event.NewSet("Event C")) {
		t.Errorf("Load() = %v, want only the latest save", got.Sorted())
	}
}

func TestPlainStore_SaveFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	// the parent "directory" is a regular file, so the save cannot succeed
	store := NewPlainStore(filepath.Join(blocker, "state.json"))

	err := store.Save(context.Background(), event.NewSet("Event A"))
	if !errors.Is(err, ErrPersist) {
		t.Errorf("Save() error = %v, want ErrPersist", err)
	}
}
