package services

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/JEECE-SI/the-glitch-kitchen/internal/models"
)

type evaluationCall struct {
	done   chan struct{}
	result *models.EvaluationResult
	err    error
}

// inflightGuard collapses concurrent evaluations of the same team into one.
// A successful call stays visible for the grace delay so a double submit right
// after completion gets the same outcome instead of a second attempt. A failed
// call is forgotten as soon as it settles so the next submit runs again.
type inflightGuard struct {
	clock clockwork.Clock
	grace time.Duration

	mu    sync.Mutex
	calls map[string]*evaluationCall
}

func newInflightGuard(clock clockwork.Clock, grace time.Duration) *inflightGuard {
	return &inflightGuard{
		clock: clock,
		grace: grace,
		calls: make(map[string]*evaluationCall),
	}
}

// do runs fn for key unless a call for key is in flight or within its grace
// delay, in which case the caller waits for that call instead. fn runs on its
// own goroutine, so a caller whose ctx ends stops waiting without cancelling
// the shared work. shared reports whether the caller joined an existing call.
func (g *inflightGuard) do(ctx context.Context, key string, fn func() (*models.EvaluationResult, error)) (result *models.EvaluationResult, shared bool, err error) {
	g.mu.Lock()
	c, shared := g.calls[key]
	if !shared {
		c = &evaluationCall{done: make(chan struct{})}
		g.calls[key] = c
		go g.run(key, c, fn)
	}
	g.mu.Unlock()

	select {
	case <-c.done:
		return c.result, shared, c.err
	case <-ctx.Done():
		return nil, shared, ctx.Err()
	}
}

func (g *inflightGuard) run(key string, c *evaluationCall, fn func() (*models.EvaluationResult, error)) {
	c.result, c.err = fn()

	if g.grace <= 0 || c.err != nil {
		g.evict(key, c)
		close(c.done)
		return
	}
	close(c.done)
	g.clock.AfterFunc(g.grace, func() { g.evict(key, c) })
}

func (g *inflightGuard) evict(key string, c *evaluationCall) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.calls[key] == c {
		delete(g.calls, key)
	}
}

func (g *inflightGuard) size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}
