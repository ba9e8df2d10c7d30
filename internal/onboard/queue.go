package onboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kayz/copydesk/internal/logger"
)

// Processor runs one onboarding request to completion. The browser session
// behind it is a single shared resource, so the queue guarantees only one
// Process call is ever in flight.
type Processor interface {
	Process(ctx context.Context, item QueueItem) Outcome
}

// Reporter receives lifecycle signals for each queue item.
type Reporter interface {
	Started(ctx context.Context, item QueueItem)
	Finished(ctx context.Context, item QueueItem, out Outcome)
	// Errored reports an automation error: the run itself blew up rather
	// than producing an outcome. Distinct from an onboarding failure so a
	// human can tell the two apart on the notification.
	Errored(ctx context.Context, item QueueItem, err error)
}

// defaultCooldown separates consecutive runs so the console's dashboard
// settles between workflows.
const defaultCooldown = 3 * time.Second

// Queue is a strictly sequential onboarding dispatcher. Items are
// processed in arrival order, one at a time, and a source message is never
// processed twice within the process lifetime.
type Queue struct {
	mu         sync.Mutex
	items      []QueueItem
	processing bool
	seen       map[string]bool

	proc     Processor
	rep      Reporter
	cooldown time.Duration
	ctx      context.Context
}

// NewQueue creates a queue. A cooldown of zero selects the default.
func NewQueue(proc Processor, rep Reporter, cooldown time.Duration) *Queue {
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	return &Queue{
		seen:     make(map[string]bool),
		proc:     proc,
		rep:      rep,
		cooldown: cooldown,
		ctx:      context.Background(),
	}
}

// Start sets the context under which queued work runs. Work enqueued
// before Start uses the background context.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ctx = ctx
}

// Enqueue appends an item and kicks off draining if the queue is idle.
// Returns false when the item's source message was seen before.
func (q *Queue) Enqueue(item QueueItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.seen[item.SourceMessageID] {
		logger.Debug("[Queue] Duplicate notification ignored: %s", item.SourceMessageID)
		return false
	}
	q.seen[item.SourceMessageID] = true
	q.items = append(q.items, item)
	logger.Info("[Queue] Enqueued account %s (%d waiting)", item.Request.AccountNumber, len(q.items))

	if !q.processing {
		q.processing = true
		go q.drain()
	}
	return true
}

// Pending returns the number of items waiting (not counting one in flight).
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// RunWhenIdle executes f under the queue's processing flag if, and only
// if, no item is queued or in flight. Used by periodic maintenance so it
// can never overlap an onboarding run. Returns false when the queue was
// busy and f did not run.
func (q *Queue) RunWhenIdle(ctx context.Context, f func(ctx context.Context)) bool {
	q.mu.Lock()
	if q.processing || len(q.items) > 0 {
		q.mu.Unlock()
		return false
	}
	q.processing = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.processing = false
		if len(q.items) > 0 {
			// Items arrived while f held the flag; resume draining.
			q.processing = true
			go q.drain()
		}
		q.mu.Unlock()
	}()

	f(ctx)
	return true
}

func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.processing = false
			q.mu.Unlock()
			return
		}
		item := q.items[0]
		q.items = q.items[1:]
		ctx := q.ctx
		q.mu.Unlock()

		q.runItem(ctx, item)
		time.Sleep(q.cooldown)
	}
}

// runItem processes a single item. Panics are contained here so one bad
// run can never stop the loop.
func (q *Queue) runItem(ctx context.Context, item QueueItem) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("[Queue] Automation panic for account %s: %v", item.Request.AccountNumber, r)
			q.rep.Errored(ctx, item, fmt.Errorf("automation panic: %v", r))
		}
	}()

	q.rep.Started(ctx, item)
	out := q.proc.Process(ctx, item)
	q.rep.Finished(ctx, item, out)
}
