package logbuffer

import (
	"testing"
	"time"
)

func TestBufferWrapsAround(t *testing.T) {
	b := New(3)
	for i, msg := range []string{"one", "two", "three", "four"} {
		b.Add(LogEntry{Message: msg, Level: "info", Timestamp: time.Unix(int64(i), 0)})
	}

	all := b.GetAll()
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	if all[0].Message != "two" || all[2].Message != "four" {
		t.Fatalf("expected oldest entry evicted, got %q..%q", all[0].Message, all[2].Message)
	}
}

func TestQueryFilters(t *testing.T) {
	b := New(10)
	b.Add(LogEntry{Message: "catalog rebuilt", Level: "info", Component: "catalog_view", SessionID: "s1"})
	b.Add(LogEntry{Message: "conflict refused", Level: "warn", Component: "selection", SessionID: "s2"})
	b.Add(LogEntry{Message: "catalog failed", Level: "error", Component: "catalog_view", SessionID: "s1"})

	if got := b.Query(QueryParams{Level: "warn"}); len(got) != 1 || got[0].Component != "selection" {
		t.Fatalf("level filter: got %v", got)
	}
	if got := b.Query(QueryParams{SessionID: "s1"}); len(got) != 2 {
		t.Fatalf("session filter: expected 2, got %d", len(got))
	}
	if got := b.Query(QueryParams{Search: "CATALOG"}); len(got) != 2 {
		t.Fatalf("search should be case-insensitive, got %d", len(got))
	}
	if got := b.Query(QueryParams{Descending: true, Limit: 1}); len(got) != 1 || got[0].Message != "catalog failed" {
		t.Fatalf("descending limit: got %v", got)
	}
}

func TestWriterParsesZerologJSON(t *testing.T) {
	b := New(10)
	w := NewWriter(b, nil)

	line := []byte(`{"level":"info","component":"api","session_id":"abc","message":"session created","active":2}` + "\n")
	if _, err := w.Write(line); err != nil {
		t.Fatalf("write: %v", err)
	}

	all := b.GetAll()
	if len(all) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(all))
	}
	entry := all[0]
	if entry.Level != "info" || entry.Message != "session created" || entry.Component != "api" || entry.SessionID != "abc" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if _, ok := entry.Fields["active"]; !ok {
		t.Fatal("expected extra fields preserved")
	}

	stats := b.Stats("abc")
	if stats.Count != 1 || stats.LevelCount["info"] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
