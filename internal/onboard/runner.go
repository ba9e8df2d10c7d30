package onboard

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kayz/copydesk/internal/logger"
)

// RowStatus is the console's view of one managed-account row.
type RowStatus struct {
	Found  bool
	Active bool
	// Connected and WrongAccount are substring reads of the row's status
	// text; both must be consulted because the console shows "connected"
	// even on rows it also flags as the wrong account.
	Connected    bool
	WrongAccount bool
}

// Console is the typed capability the state machine drives. The real
// implementation wraps a live browser page; tests substitute a fake.
type Console interface {
	// EnsureAuthenticated brings the session to the dashboard, logging in
	// again if the console bounced it to the login view.
	EnsureAuthenticated(ctx context.Context) error

	OpenAddAccountDialog(ctx context.Context) error
	// SelectPlatform sets the platform-family selector and waits for the
	// reactive form to settle, since the selection decides which fields
	// exist for the fill steps.
	SelectPlatform(ctx context.Context, value string) error
	FillDirectCredentials(ctx context.Context, login, password string) error
	FillAccountNumber(ctx context.Context, number string) error

	TemplateOptions(ctx context.Context) ([]TemplateOption, error)
	SelectTemplate(ctx context.Context, value string) error

	Submit(ctx context.Context) error
	// SubmitWithPopupAuth clicks submit with a new-window listener already
	// registered, then completes the broker's popup login if one appears
	// within the wait window. popupSeen is false on timeout, not an
	// error, since the account may already be authorized.
	SubmitWithPopupAuth(ctx context.Context, username, password string) (popupSeen bool, err error)

	AccountListed(ctx context.Context, number string) (bool, error)
	// ActivateAccount turns the row's status toggle on if it is off and
	// waits for the connection to establish.
	ActivateAccount(ctx context.Context, number string) error
	RowStatus(ctx context.Context, number string) (RowStatus, error)
}

// Runner executes the onboarding workflow for one request at a time.
type Runner struct {
	console Console
}

func NewRunner(c Console) *Runner {
	return &Runner{console: c}
}

// Process walks the console through registration, template assignment,
// authorization, verification and activation for one request. All step
// errors are converted into the returned Outcome; nothing escapes.
func (r *Runner) Process(ctx context.Context, item QueueItem) Outcome {
	req := item.Request
	account := NormalizeAccountNumber(req.AccountNumber)
	out := Outcome{
		RunID:         uuid.NewString(),
		AccountNumber: account,
	}
	fail := func(step string, err error) Outcome {
		out.Success = false
		out.FailureReason = fmt.Sprintf("%s: %v", step, err)
		logger.Error("[Onboard] Run %s failed at %s: %v", out.RunID, step, err)
		return out
	}

	logger.Info("[Onboard] Run %s: %s account %s (%s)", out.RunID, req.Organization, account, req.BrokerKind)

	if err := r.console.EnsureAuthenticated(ctx); err != nil {
		return fail("session", err)
	}
	if err := r.console.OpenAddAccountDialog(ctx); err != nil {
		return fail("open add-account dialog", err)
	}
	if err := r.console.SelectPlatform(ctx, req.BrokerKind.SelectValue()); err != nil {
		return fail("select platform", err)
	}

	switch req.BrokerKind.AuthMode() {
	case AuthPopup:
		if err := r.console.FillAccountNumber(ctx, account); err != nil {
			return fail("fill account number", err)
		}
	default:
		// The normalized number is what verification searches the listing
		// for, so it is also what gets submitted as the login.
		if err := r.console.FillDirectCredentials(ctx, account, req.LoginPassword); err != nil {
			return fail("fill credentials", err)
		}
	}

	options, err := r.console.TemplateOptions(ctx)
	if err != nil {
		return fail("read templates", err)
	}
	if match := MatchTemplate(req.Organization, options); match != nil {
		if err := r.console.SelectTemplate(ctx, match.Value); err != nil {
			return fail("select template", err)
		}
		out.MatchedTemplate = match.Text
		logger.Info("[Onboard] Run %s: template %q", out.RunID, match.Text)
	} else {
		// Not fatal: an account can be registered without a template and
		// assigned one by hand later.
		logger.Warn("[Onboard] Run %s: no template matches %q", out.RunID, req.Organization)
	}

	if req.BrokerKind.AuthMode() == AuthPopup {
		popupSeen, err := r.console.SubmitWithPopupAuth(ctx, req.LoginUsername, req.LoginPassword)
		if err != nil {
			return fail("submit with popup auth", err)
		}
		if !popupSeen {
			logger.Warn("[Onboard] Run %s: no authorization popup appeared; relying on verification", out.RunID)
			out.Note = "authorization popup did not appear"
		}
	} else {
		if err := r.console.Submit(ctx); err != nil {
			return fail("submit", err)
		}
	}

	listed, err := r.console.AccountListed(ctx, account)
	if err != nil {
		return fail("verify listing", err)
	}
	if !listed {
		// Registration went through but the console does not show the
		// account yet, most often because a popup authorization never
		// completed. Surfaced for manual follow-up, not as a failure.
		out.Success = true
		out.Connected = false
		out.Note = "account not visible on dashboard yet; authorization may not have completed"
		logger.Warn("[Onboard] Run %s: account %s not listed after submit", out.RunID, account)
		return out
	}

	if err := r.console.ActivateAccount(ctx, account); err != nil {
		return fail("activate", err)
	}

	status, err := r.console.RowStatus(ctx, account)
	if err != nil {
		return fail("read status", err)
	}
	out.Success = true
	out.Connected = status.Connected && !status.WrongAccount
	if status.WrongAccount {
		out.Note = "console flags the row as a wrong account"
	}
	logger.Info("[Onboard] Run %s: done (connected=%v)", out.RunID, out.Connected)
	return out
}
