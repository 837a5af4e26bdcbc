package history

import (
	"path/filepath"
	"testing"
)

func TestRecordAndSearch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("unexpected error opening store: %v", err)
	}
	defer store.Close()

	entry := &Entry{
		BaseHash:    "deadbeef",
		ModFiles:    []string{"a.cso", "b.cso"},
		OutputPath:  "out.csx",
		Kind:        "patch",
		InputBytes:  100,
		OutputBytes: 120,
	}
	if err := store.Record(entry); err != nil {
		t.Fatalf("unexpected error recording entry: %v", err)
	}

	results, err := store.Search(SearchParams{BaseHash: "deadbeef"})
	if err != nil {
		t.Fatalf("unexpected error searching: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].OutputPath != "out.csx" {
		t.Errorf("expected OutputPath 'out.csx', got %s", results[0].OutputPath)
	}
	if len(results[0].ModFiles) != 2 {
		t.Errorf("expected 2 mod files, got %d", len(results[0].ModFiles))
	}
}

func TestSearchNoMatch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("unexpected error opening store: %v", err)
	}
	defer store.Close()

	results, err := store.Search(SearchParams{BaseHash: "nonexistent"})
	if err != nil {
		t.Fatalf("unexpected error searching: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestHashHex(t *testing.T) {
	got := HashHex([]byte{0xde, 0xad, 0xbe, 0xef})
	if got != "deadbeef" {
		t.Errorf("expected 'deadbeef', got %s", got)
	}
}
