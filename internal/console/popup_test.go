package console

import (
	"fmt"
	"testing"
	"time"
)

// fakePopup records which submission strategies ran and pretends the
// popup dismissed itself after the named one.
type fakePopup struct {
	calls     []string
	goneAfter string
	gone      bool

	failKeys  bool
	failClick bool
}

func (f *fakePopup) step(name string) {
	f.calls = append(f.calls, name)
	if name == f.goneAfter {
		f.gone = true
	}
}

func (f *fakePopup) PressSubmitKeys() error {
	f.step("keys")
	if f.failKeys {
		return fmt.Errorf("no focusable element")
	}
	return nil
}

func (f *fakePopup) ClickLoginButton() error {
	f.step("click")
	if f.failClick {
		return fmt.Errorf("login button not found")
	}
	return nil
}

func (f *fakePopup) SubmitForm() error {
	f.step("form")
	return nil
}

func (f *fakePopup) Gone(wait time.Duration) bool {
	return f.gone
}

func assertCalls(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("strategies run = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("strategies run = %v, want %v", got, want)
		}
	}
}

func TestSubmitLadderRunsAllStrategiesInOrder(t *testing.T) {
	popup := &fakePopup{}

	runSubmitLadder(popup)

	assertCalls(t, popup.calls, []string{"keys", "click", "form"})
}

func TestSubmitLadderStopsWhenKeyboardDismissesPopup(t *testing.T) {
	popup := &fakePopup{goneAfter: "keys"}

	runSubmitLadder(popup)

	assertCalls(t, popup.calls, []string{"keys"})
}

func TestSubmitLadderStopsWhenButtonClickDismissesPopup(t *testing.T) {
	popup := &fakePopup{goneAfter: "click"}

	runSubmitLadder(popup)

	assertCalls(t, popup.calls, []string{"keys", "click"})
}

func TestSubmitLadderMovesOnPastFailingStrategies(t *testing.T) {
	popup := &fakePopup{failKeys: true, failClick: true}

	runSubmitLadder(popup)

	assertCalls(t, popup.calls, []string{"keys", "click", "form"})
}
