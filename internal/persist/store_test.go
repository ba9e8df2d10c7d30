package persist

import (
	"path/filepath"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndHistory(t *testing.T) {
	s := testStore(t)

	runs := []Run{
		{ID: "r1", SourceMessageID: "m1", AccountNumber: "12345", Organization: "Acme", Broker: "mt4", Success: true, Connected: true},
		{ID: "r2", SourceMessageID: "m2", AccountNumber: "67890", Organization: "Beta", Broker: "tradovate", Success: true, Connected: false, FailureReason: ""},
		{ID: "r3", SourceMessageID: "m3", AccountNumber: "55555", Organization: "Gamma", Broker: "mt5", Success: false, FailureReason: "submit: selector timed out"},
	}
	for _, r := range runs {
		if err := s.Record(r); err != nil {
			t.Fatalf("record %s: %v", r.ID, err)
		}
	}

	got, err := s.History(10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(got))
	}
	for _, r := range got {
		if r.ID == "r3" {
			if r.Success || r.FailureReason != "submit: selector timed out" {
				t.Fatalf("unexpected failed run: %#v", r)
			}
		}
	}
}

func TestRecentConnectedFiltersAndDeduplicates(t *testing.T) {
	s := testStore(t)

	old := time.Now().Add(-48 * time.Hour)
	entries := []Run{
		{ID: "r1", AccountNumber: "111", Connected: true, Success: true},
		{ID: "r2", AccountNumber: "222", Connected: false, Success: true},
		{ID: "r3", AccountNumber: "333", Connected: true, Success: true, CreatedAt: old},
		// Same account onboarded twice; only one entry should come back.
		{ID: "r4", AccountNumber: "111", Connected: true, Success: true},
	}
	for _, r := range entries {
		if err := s.Record(r); err != nil {
			t.Fatalf("record %s: %v", r.ID, err)
		}
	}

	got, err := s.RecentConnected(24 * time.Hour)
	if err != nil {
		t.Fatalf("recent connected: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one account, got %d: %#v", len(got), got)
	}
	if got[0].AccountNumber != "111" {
		t.Fatalf("unexpected account: %q", got[0].AccountNumber)
	}
}
