package recheck

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kayz/copydesk/internal/onboard"
	"github.com/kayz/copydesk/internal/persist"
)

type fakeStatusReader struct {
	statuses  map[string]onboard.RowStatus
	readCalls int
}

func (f *fakeStatusReader) EnsureAuthenticated(ctx context.Context) error {
	return nil
}

func (f *fakeStatusReader) RowStatus(ctx context.Context, number string) (onboard.RowStatus, error) {
	f.readCalls++
	return f.statuses[number], nil
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) NotifyChat(message string) error {
	f.messages = append(f.messages, message)
	return nil
}

func testScheduler(t *testing.T, console *fakeStatusReader, notifier *fakeNotifier, runs ...persist.Run) *Scheduler {
	t.Helper()
	store, err := persist.NewStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	for _, r := range runs {
		if err := store.Record(r); err != nil {
			t.Fatalf("record %s: %v", r.ID, err)
		}
	}
	return NewScheduler(store, console, nil, notifier, "*/30 * * * *", 24*time.Hour)
}

func TestVerifyNotifiesWhenConnectionDropped(t *testing.T) {
	console := &fakeStatusReader{statuses: map[string]onboard.RowStatus{
		"111": {Found: true, Active: true, Connected: false},
	}}
	notifier := &fakeNotifier{}
	s := testScheduler(t, console, notifier,
		persist.Run{ID: "r1", AccountNumber: "111", Organization: "Acme", Success: true, Connected: true})

	s.verify(context.Background())

	if len(notifier.messages) != 1 {
		t.Fatalf("expected one alert, got %d", len(notifier.messages))
	}
	if !strings.Contains(notifier.messages[0], "111") {
		t.Fatalf("alert must name the account: %q", notifier.messages[0])
	}
}

func TestVerifyStaysQuietWhileConnected(t *testing.T) {
	console := &fakeStatusReader{statuses: map[string]onboard.RowStatus{
		"111": {Found: true, Active: true, Connected: true},
	}}
	notifier := &fakeNotifier{}
	s := testScheduler(t, console, notifier,
		persist.Run{ID: "r1", AccountNumber: "111", Organization: "Acme", Success: true, Connected: true})

	s.verify(context.Background())

	if len(notifier.messages) != 0 {
		t.Fatalf("no alert expected, got %v", notifier.messages)
	}
}

func TestVerifyAbortsOnCancelledContext(t *testing.T) {
	console := &fakeStatusReader{}
	notifier := &fakeNotifier{}
	s := testScheduler(t, console, notifier,
		persist.Run{ID: "r1", AccountNumber: "111", Success: true, Connected: true},
		persist.Run{ID: "r2", AccountNumber: "222", Success: true, Connected: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.verify(ctx)

	if console.readCalls != 0 {
		t.Fatalf("a cancelled pass must not keep reading rows, reads=%d", console.readCalls)
	}
	if len(notifier.messages) != 0 {
		t.Fatalf("a cancelled pass must not alert, got %v", notifier.messages)
	}
}

func TestNormalizeCron(t *testing.T) {
	if got := normalizeCron("*/30 * * * *"); got != "0 */30 * * * *" {
		t.Fatalf("5-field expression not extended: %q", got)
	}
	if got := normalizeCron("0 */30 * * * *"); got != "0 */30 * * * *" {
		t.Fatalf("6-field expression must pass through: %q", got)
	}
}
