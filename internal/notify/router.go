package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/kayz/copydesk/internal/logger"
)

// Router fans messages from registered platforms into a single handler.
type Router struct {
	mu        sync.RWMutex
	platforms map[string]Platform
	handler   func(msg Message)
	started   []Platform
}

// New creates a router delivering every inbound message to handler.
func New(handler func(msg Message)) *Router {
	return &Router{
		platforms: make(map[string]Platform),
		handler:   handler,
	}
}

// Register adds a platform to the router. Must be called before Start.
func (r *Router) Register(p Platform) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.platforms[p.Name()] = p
	p.SetMessageHandler(r.dispatch)
}

// Platform returns the registered platform with the given name.
func (r *Router) Platform(name string) (Platform, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.platforms[name]
	return p, ok
}

// Start starts all registered platforms. Platforms already started are
// stopped again if a later one fails.
func (r *Router) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, p := range r.platforms {
		if err := p.Start(ctx); err != nil {
			for _, s := range r.started {
				s.Stop()
			}
			r.started = nil
			return fmt.Errorf("failed to start platform %s: %w", name, err)
		}
		r.started = append(r.started, p)
		logger.Info("[Router] Platform started: %s", name)
	}
	return nil
}

// Stop stops all started platforms.
func (r *Router) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.started {
		if err := p.Stop(); err != nil {
			logger.Warn("[Router] Failed to stop platform %s: %v", p.Name(), err)
		}
	}
	r.started = nil
}

func (r *Router) dispatch(msg Message) {
	r.mu.RLock()
	handler := r.handler
	r.mu.RUnlock()
	if handler != nil {
		handler(msg)
	}
}
