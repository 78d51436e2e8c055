package browser

import (
	"container/list"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/use-agent/sitelens/config"
)

// ErrPoolExhausted is returned when no session becomes free within the
// acquire timeout. It signals a capacity problem, not a scan failure, and
// is safe for the caller to retry.
var ErrPoolExhausted = errors.New("session pool exhausted")

// ErrPoolClosed is returned when acquiring from a closed pool.
var ErrPoolClosed = errors.New("session pool closed")

// Factory creates a new session. The pool owns the returned session.
type Factory func() (*Session, error)

// Destroyer closes a session's underlying resources.
type Destroyer func(*Session)

// Validator reports whether a flagged session is still usable.
type Validator func(*Session) bool

// Pool hands out browser sessions under a fixed concurrency ceiling.
// Sessions are created lazily up to the ceiling and reused across requests
// to amortize browser startup cost. Waiters are served in strict FIFO
// arrival order so sustained load cannot starve early arrivals.
//
// Sessions flagged for a health check are validated on acquire; a session
// that fails validation is discarded and replaced (respawn-on-next-acquire
// rather than eager background respawn).
type Pool struct {
	cfg       config.PoolConfig
	factory   Factory
	destroyer Destroyer
	validate  Validator

	mu      sync.Mutex
	idle    []*Session
	waiters list.List // of chan *Session, front = oldest
	live    int
	busy    int
	closed  bool
}

// NewPool creates a session pool. No sessions are created up front.
func NewPool(cfg config.PoolConfig, factory Factory, destroyer Destroyer, validate Validator) *Pool {
	if cfg.Size < 1 {
		cfg.Size = 1
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = 10 * time.Second
	}
	return &Pool{
		cfg:       cfg,
		factory:   factory,
		destroyer: destroyer,
		validate:  validate,
	}
}

// Acquire returns a free session, blocking in FIFO order until one is
// available. It fails with ErrPoolExhausted after the configured acquire
// timeout, or with the context error if ctx is done first.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	// Serve from the idle set, discarding flagged sessions that fail
	// health validation.
	for len(p.idle) > 0 {
		s := p.idle[0]
		p.idle = p.idle[1:]
		if s.NeedsCheck() {
			if !p.validate(s) {
				p.live--
				p.mu.Unlock()
				slog.Info("pool: discarding unhealthy session", "id", s.ID)
				p.destroyer(s)
				p.mu.Lock()
				continue
			}
			s.ClearCheck()
		}
		p.busy++
		p.mu.Unlock()
		s.Touch()
		return s, nil
	}

	// Create lazily while under the ceiling. Arrivals behind queued
	// waiters must not jump the line: when a retirement has left the pool
	// below its ceiling with waiters still queued, the spare slot is
	// filled for the oldest waiter and this request joins the queue.
	if p.live < p.cfg.Size {
		if p.waiters.Len() == 0 {
			p.live++
			p.mu.Unlock()
			s, err := p.factory()
			if err != nil {
				p.mu.Lock()
				p.live--
				p.mu.Unlock()
				return nil, err
			}
			p.mu.Lock()
			p.busy++
			p.mu.Unlock()
			s.Touch()
			return s, nil
		}
		go p.replaceForWaiter()
	}

	// Join the FIFO wait queue.
	ch := make(chan *Session, 1)
	el := p.waiters.PushBack(ch)
	p.mu.Unlock()

	timer := time.NewTimer(p.cfg.AcquireTimeout)
	defer timer.Stop()

	select {
	case s, ok := <-ch:
		if !ok || s == nil {
			return nil, ErrPoolClosed
		}
		s.Touch()
		return s, nil
	case <-ctx.Done():
		p.abandonWaiter(el, ch)
		return nil, ctx.Err()
	case <-timer.C:
		p.abandonWaiter(el, ch)
		return nil, ErrPoolExhausted
	}
}

// Release returns a session to the pool. It never fails. Unhealthy
// sessions are flagged for validation before reuse; retired sessions are
// destroyed and, when waiters are queued, replaced.
func (p *Pool) Release(s *Session, healthy bool) {
	if s == nil {
		return
	}
	if healthy {
		s.RecordSuccess()
	} else {
		s.RecordFailure()
		s.MarkForCheck()
	}

	p.mu.Lock()
	p.busy--

	if p.closed {
		p.live--
		p.mu.Unlock()
		p.destroyer(s)
		return
	}

	if s.ShouldRetire() {
		p.live--
		waiting := p.waiters.Len() > 0
		p.mu.Unlock()
		slog.Debug("pool: retiring session", "id", s.ID)
		p.destroyer(s)
		if waiting {
			go p.replaceForWaiter()
		}
		return
	}

	// A flagged session must pass validation before it can serve a queued
	// waiter, same as on the idle-acquire path. Without waiters the flag
	// keeps the check deferred to the next acquire.
	if s.NeedsCheck() && p.waiters.Len() > 0 {
		if !p.validate(s) {
			p.live--
			p.mu.Unlock()
			slog.Info("pool: discarding unhealthy session", "id", s.ID)
			p.destroyer(s)
			go p.replaceForWaiter()
			return
		}
		s.ClearCheck()
	}

	p.handoffLocked(s)
	p.mu.Unlock()
}

// Stats returns a snapshot of the pool's current state.
func (p *Pool) Stats() (maxSize, live, busy, waiting int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.Size, p.live, p.busy, p.waiters.Len()
}

// Close destroys all idle sessions and wakes every waiter with
// ErrPoolClosed. Busy sessions are destroyed as they are released.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.live -= len(idle)
	for p.waiters.Len() > 0 {
		el := p.waiters.Front()
		p.waiters.Remove(el)
		close(el.Value.(chan *Session))
	}
	p.mu.Unlock()

	for _, s := range idle {
		p.destroyer(s)
	}
}

// handoffLocked gives a session to the oldest waiter, or parks it in the
// idle set. Caller must hold p.mu.
func (p *Pool) handoffLocked(s *Session) {
	if el := p.waiters.Front(); el != nil {
		p.waiters.Remove(el)
		p.busy++
		el.Value.(chan *Session) <- s
		return
	}
	p.idle = append(p.idle, s)
}

// abandonWaiter removes a waiter that timed out or was cancelled. If a
// session was handed to it concurrently, the session is re-dispatched so
// capacity is not leaked.
func (p *Pool) abandonWaiter(el *list.Element, ch chan *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.waiters.Remove(el)
	select {
	case s := <-ch:
		if s != nil {
			p.busy--
			p.handoffLocked(s)
		}
	default:
	}
}

// replaceForWaiter fills a spare slot with a new session for the oldest
// queued waiter. Runs as its own goroutine so a slow browser spawn never
// blocks the caller.
func (p *Pool) replaceForWaiter() {
	p.mu.Lock()
	if p.closed || p.live >= p.cfg.Size || p.waiters.Len() == 0 {
		p.mu.Unlock()
		return
	}
	p.live++
	p.mu.Unlock()

	s, err := p.factory()
	if err != nil {
		slog.Warn("pool: failed to create replacement session", "error", err)
		p.mu.Lock()
		p.live--
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	if p.closed {
		p.live--
		p.mu.Unlock()
		p.destroyer(s)
		return
	}
	p.handoffLocked(s)
	p.mu.Unlock()
}
