package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/kayz/copydesk/internal/logger"
	"github.com/kayz/copydesk/internal/notify"
	"github.com/kayz/copydesk/internal/onboard"
)

// Reporter translates onboarding outcomes into chat-visible signals on
// the originating notification: a working marker while the run is in
// flight, replaced by a terminal marker plus a threaded summary.
type Reporter struct {
	router *notify.Router
}

func New(router *notify.Router) *Reporter {
	return &Reporter{router: router}
}

func (r *Reporter) Started(ctx context.Context, item onboard.QueueItem) {
	r.addMarker(ctx, item, notify.MarkerWorking)
}

func (r *Reporter) Finished(ctx context.Context, item onboard.QueueItem, out onboard.Outcome) {
	r.removeMarker(ctx, item, notify.MarkerWorking)
	if out.Success {
		r.addMarker(ctx, item, notify.MarkerSuccess)
	} else {
		r.addMarker(ctx, item, notify.MarkerFailure)
	}
	r.reply(ctx, item, summarize(out))
}

// Errored reports an automation error, distinct from an onboarding
// failure, so an operator knows the run needs manual intervention.
func (r *Reporter) Errored(ctx context.Context, item onboard.QueueItem, err error) {
	r.removeMarker(ctx, item, notify.MarkerWorking)
	r.addMarker(ctx, item, notify.MarkerError)
	r.reply(ctx, item, fmt.Sprintf("Automation error while onboarding account %s: %v. Please handle this one manually.",
		item.Request.AccountNumber, err))
}

func summarize(out onboard.Outcome) string {
	if !out.Success {
		return fmt.Sprintf("Onboarding failed for account %s: %s", out.AccountNumber, out.FailureReason)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Account %s registered", out.AccountNumber)
	if out.MatchedTemplate != "" {
		fmt.Fprintf(&b, " with template %q", out.MatchedTemplate)
	} else {
		b.WriteString(" (no matching template, assign one manually)")
	}
	if out.Connected {
		b.WriteString(". Connection verified.")
	} else {
		b.WriteString(". Not connected yet.")
	}
	if out.Note != "" {
		fmt.Fprintf(&b, " Note: %s.", out.Note)
	}
	return b.String()
}

// Marker application failures are swallowed: a marker someone already
// removed, or a platform hiccup, is not part of the onboarding contract.
func (r *Reporter) addMarker(ctx context.Context, item onboard.QueueItem, m notify.Marker) {
	p, ok := r.router.Platform(item.Platform)
	if !ok {
		return
	}
	if err := p.AddMarker(ctx, item.ChannelID, item.SourceMessageID, m); err != nil {
		logger.Debug("[Report] Add marker %s: %v", m, err)
	}
}

func (r *Reporter) removeMarker(ctx context.Context, item onboard.QueueItem, m notify.Marker) {
	p, ok := r.router.Platform(item.Platform)
	if !ok {
		return
	}
	if err := p.RemoveMarker(ctx, item.ChannelID, item.SourceMessageID, m); err != nil {
		logger.Debug("[Report] Remove marker %s: %v", m, err)
	}
}

func (r *Reporter) reply(ctx context.Context, item onboard.QueueItem, text string) {
	p, ok := r.router.Platform(item.Platform)
	if !ok {
		logger.Warn("[Report] No platform %q registered for reply", item.Platform)
		return
	}
	if err := p.Reply(ctx, item.ChannelID, item.SourceMessageID, text); err != nil {
		logger.Warn("[Report] Reply failed: %v", err)
	}
}
