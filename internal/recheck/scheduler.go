package recheck

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kayz/copydesk/internal/logger"
	"github.com/kayz/copydesk/internal/onboard"
	"github.com/kayz/copydesk/internal/persist"
)

// StatusReader reads a managed account's live status off the console.
type StatusReader interface {
	EnsureAuthenticated(ctx context.Context) error
	RowStatus(ctx context.Context, number string) (onboard.RowStatus, error)
}

// IdleRunner gates work on the onboarding queue being idle, so a recheck
// can never overlap an onboarding run on the shared browser session.
type IdleRunner interface {
	RunWhenIdle(ctx context.Context, f func(ctx context.Context)) bool
}

// ChatNotifier sends operator-facing alerts to the configured channel.
type ChatNotifier interface {
	NotifyChat(message string) error
}

// Scheduler periodically re-verifies that recently onboarded accounts are
// still connected and alerts the channel when one dropped.
type Scheduler struct {
	cron     *cron.Cron
	store    *persist.Store
	console  StatusReader
	queue    IdleRunner
	notifier ChatNotifier
	schedule string
	window   time.Duration
	// ctx is the process context; cancelling it aborts a pass that is
	// mid-flight so shutdown does not wait out the browser timeouts.
	ctx context.Context
}

func NewScheduler(store *persist.Store, console StatusReader, queue IdleRunner, notifier ChatNotifier, schedule string, window time.Duration) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()), // Support second-level precision
		store:    store,
		console:  console,
		queue:    queue,
		notifier: notifier,
		schedule: schedule,
		window:   window,
	}
}

// normalizeCron prepends "0 " to standard 5-field cron expressions
// so they work with the 6-field (with seconds) parser.
func normalizeCron(schedule string) string {
	if len(strings.Fields(schedule)) == 5 {
		return "0 " + schedule
	}
	return schedule
}

// Start registers the recheck job and starts the scheduler. Passes run
// under ctx, so cancelling it unblocks shutdown.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx
	if _, err := s.cron.AddFunc(normalizeCron(s.schedule), s.tick); err != nil {
		return fmt.Errorf("failed to schedule recheck: %w", err)
	}
	s.cron.Start()
	logger.Info("[Recheck] Scheduler started (schedule: %s, window: %s)", s.schedule, s.window)
	return nil
}

// Stop stops the scheduler and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("[Recheck] Scheduler stopped")
}

// tick runs one recheck pass if the queue is idle, and skips silently
// otherwise; an onboarding run owns the session.
func (s *Scheduler) tick() {
	ran := s.queue.RunWhenIdle(s.ctx, s.verify)
	if !ran {
		logger.Debug("[Recheck] Queue busy, skipping pass")
	}
}

func (s *Scheduler) verify(ctx context.Context) {
	runs, err := s.store.RecentConnected(s.window)
	if err != nil {
		logger.Warn("[Recheck] Failed to load recent runs: %v", err)
		return
	}
	if len(runs) == 0 {
		return
	}

	if err := s.console.EnsureAuthenticated(ctx); err != nil {
		logger.Warn("[Recheck] Session unavailable: %v", err)
		return
	}

	for _, run := range runs {
		if ctx.Err() != nil {
			logger.Debug("[Recheck] Pass aborted: %v", ctx.Err())
			return
		}
		status, err := s.console.RowStatus(ctx, run.AccountNumber)
		if err != nil {
			logger.Warn("[Recheck] Failed to read %s: %v", run.AccountNumber, err)
			continue
		}
		if status.Found && status.Connected && !status.WrongAccount {
			logger.Debug("[Recheck] Account %s still connected", run.AccountNumber)
			continue
		}

		reason := "no longer connected"
		if !status.Found {
			reason = "no longer listed on the dashboard"
		} else if status.WrongAccount {
			reason = "flagged as a wrong account"
		}
		msg := fmt.Sprintf("Account %s (%s) was connected on %s but is %s.",
			run.AccountNumber, run.Organization, run.CreatedAt.Format("Jan 2 15:04"), reason)
		logger.Warn("[Recheck] %s", msg)
		if s.notifier != nil {
			if err := s.notifier.NotifyChat(msg); err != nil {
				logger.Warn("[Recheck] Failed to notify: %v", err)
			}
		}
	}
}
