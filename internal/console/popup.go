package console

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/kayz/copydesk/internal/logger"
)

const (
	// popupAppearWait bounds the race between the broker's authorization
	// window opening and the submission having gone through silently (an
	// already-authorized account opens no popup).
	popupAppearWait = 15 * time.Second
	// popupFormWait bounds the popup's own login form render.
	popupFormWait = 10 * time.Second
	// popupCloseWait bounds waiting for the popup to navigate away or
	// close after credentials were submitted.
	popupCloseWait = 20 * time.Second
	// ladderCheckWait is how long each ladder strategy gets to take
	// effect before the next one is tried.
	ladderCheckWait = 3 * time.Second
	// ladderLookupWait bounds element lookups inside the popup; the
	// ladder exists because the popup renders unpredictably, so lookups
	// stay short.
	ladderLookupWait = 3 * time.Second
)

// loginButtonPattern matches the popup's submit control by visible text.
const loginButtonPattern = `(?i)log\s?in|sign\s?in`

// SubmitWithPopupAuth clicks the form's submit control with a new-window
// listener registered beforehand, then races that listener against a
// timer. A popup that never appears is not an error: the account may
// already be authorized, and verification is the authoritative signal.
func (c *Console) SubmitWithPopupAuth(ctx context.Context, username, password string) (bool, error) {
	page := c.page(ctx)

	// Register before clicking; the popup can open faster than a listener
	// could attach afterwards. The clone's deadline unblocks the wait
	// goroutine if the timer wins the race.
	waitPopup := page.Timeout(popupAppearWait + time.Second).WaitOpen()

	btn, err := page.Timeout(stepWait).Element(selSubmit)
	if err != nil {
		return false, fmt.Errorf("submit button not found: %w", err)
	}
	if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return false, fmt.Errorf("failed to click submit: %w", err)
	}

	type opened struct {
		page *rod.Page
		err  error
	}
	ch := make(chan opened, 1)
	go func() {
		p, err := waitPopup()
		ch <- opened{page: p, err: err}
	}()

	select {
	case o := <-ch:
		if o.err != nil {
			// The wait's own deadline fired; same branch as the timer.
			return false, nil
		}
		logger.Info("[Console] Authorization popup appeared")
		return true, c.authorizePopup(ctx, o.page, username, password)
	case <-time.After(popupAppearWait):
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// authorizePopup fills the broker's login popup and walks the submit
// ladder, closing the window explicitly if it will not go away.
func (c *Console) authorizePopup(ctx context.Context, popup *rod.Page, username, password string) error {
	popup = popup.Context(ctx)
	if err := popup.WaitLoad(); err != nil {
		return fmt.Errorf("authorization popup did not load: %w", err)
	}

	// Third-party form; inputs are located by type rather than id.
	user, err := popup.Timeout(popupFormWait).Element(`input[type="email"], input[name*="user"], input[type="text"]`)
	if err != nil {
		return fmt.Errorf("popup username input not found: %w", err)
	}
	if err := fillInput(user, username); err != nil {
		return fmt.Errorf("failed to fill popup username: %w", err)
	}

	pw, err := popup.Timeout(popupFormWait).Element(`input[type="password"]`)
	if err != nil {
		return fmt.Errorf("popup password input not found: %w", err)
	}
	if err := fillInput(pw, password); err != nil {
		return fmt.Errorf("failed to fill popup password: %w", err)
	}

	loginURL := ""
	if info, err := popup.Info(); err == nil {
		loginURL = info.URL
	}

	controls := &rodPopup{page: popup, loginURL: loginURL}
	runSubmitLadder(controls)

	if !controls.Gone(popupCloseWait) {
		logger.Warn("[Console] Popup still open after authorization, closing it")
		if err := popup.Close(); err != nil {
			logger.Debug("[Console] Popup close: %v", err)
		}
	}
	return nil
}

// popupControls is the slice of popup behavior the submit ladder drives,
// separated from the page it runs against.
type popupControls interface {
	// PressSubmitKeys tabs onto the submit control and presses Enter.
	PressSubmitKeys() error
	// ClickLoginButton clicks the login button at its on-screen
	// coordinates.
	ClickLoginButton() error
	// SubmitForm submits the first form element directly.
	SubmitForm() error
	// Gone reports whether the popup closed or navigated away within the
	// wait.
	Gone(wait time.Duration) bool
}

// runSubmitLadder tries the three submission strategies in order, stopping
// as soon as one dismisses the popup. The popup is third-party UI; no
// single strategy lands across its rendering states, and a strategy that
// errors just hands over to the next one.
func runSubmitLadder(p popupControls) {
	if err := p.PressSubmitKeys(); err != nil {
		logger.Debug("[Console] Popup keyboard submit: %v", err)
	}
	if p.Gone(ladderCheckWait) {
		return
	}

	if err := p.ClickLoginButton(); err != nil {
		logger.Debug("[Console] Popup coordinate click: %v", err)
	}
	if p.Gone(ladderCheckWait) {
		return
	}

	if err := p.SubmitForm(); err != nil {
		logger.Debug("[Console] Popup form submit: %v", err)
	}
}

// rodPopup drives the live popup page.
type rodPopup struct {
	page     *rod.Page
	loginURL string
}

func (r *rodPopup) PressSubmitKeys() error {
	if err := r.page.Keyboard.Press(input.Tab); err != nil {
		return err
	}
	return r.page.Keyboard.Press(input.Enter)
}

func (r *rodPopup) ClickLoginButton() error {
	btn, err := r.page.Timeout(ladderLookupWait).ElementR(`button, input[type="submit"]`, loginButtonPattern)
	if err != nil {
		return err
	}
	return clickAtCoordinates(r.page, btn)
}

func (r *rodPopup) SubmitForm() error {
	form, err := r.page.Timeout(ladderLookupWait).Element(`form`)
	if err != nil {
		return err
	}
	_, err = form.Eval(`() => this.submit()`)
	return err
}

func (r *rodPopup) Gone(wait time.Duration) bool {
	return waitPopupGone(r.page, r.loginURL, wait)
}

// popupGone reports whether the popup closed or navigated away from its
// login view.
func popupGone(popup *rod.Page, loginURL string) bool {
	info, err := popup.Info()
	if err != nil {
		return true
	}
	return loginURL != "" && info.URL != loginURL
}

func waitPopupGone(popup *rod.Page, loginURL string, limit time.Duration) bool {
	deadline := time.Now().Add(limit)
	for time.Now().Before(deadline) {
		if popupGone(popup, loginURL) {
			return true
		}
		time.Sleep(500 * time.Millisecond)
	}
	return popupGone(popup, loginURL)
}
