package browser

import (
	"math"
	"sync"
	"time"

	"github.com/go-rod/rod"
)

// Session is one reusable browser execution context (a Chrome tab) with
// health-tracking metadata. It is owned exclusively by the Pool and
// borrowed by the Navigator for the duration of a single fetch; the
// underlying page handle must never be stored beyond that call.
type Session struct {
	ID   int64
	page *rod.Page

	created time.Time

	mu         sync.Mutex
	lastUsed   time.Time
	profile    string // viewport profile applied by the last fetch
	errScore   float64
	useCount   int
	needsCheck bool
}

// NewSession wraps a browser page in a pool-managed session.
func NewSession(id int64, page *rod.Page) *Session {
	now := time.Now()
	return &Session{
		ID:       id,
		page:     page,
		created:  now,
		lastUsed: now,
	}
}

// Page returns the borrowed page handle. Valid only while the session is
// checked out.
func (s *Session) Page() *rod.Page { return s.page }

// Touch updates the last-used timestamp.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

// SetProfile records the viewport profile applied by the current fetch.
func (s *Session) SetProfile(name string) {
	s.mu.Lock()
	s.profile = name
	s.mu.Unlock()
}

// Profile returns the last applied viewport profile name.
func (s *Session) Profile() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// RecordSuccess decreases the error score (min 0).
func (s *Session) RecordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.useCount++
	s.errScore = math.Max(0, s.errScore-0.5)
}

// RecordFailure increases the error score.
func (s *Session) RecordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.useCount++
	s.errScore += 1.0
}

// MarkForCheck flags the session for health validation before its next
// reuse. Set after failed or cancelled navigations, since the engine may
// have crashed mid-flight.
func (s *Session) MarkForCheck() {
	s.mu.Lock()
	s.needsCheck = true
	s.mu.Unlock()
}

// ClearCheck resets the health-check flag after a successful validation.
func (s *Session) ClearCheck() {
	s.mu.Lock()
	s.needsCheck = false
	s.mu.Unlock()
}

// NeedsCheck reports whether the session must pass health validation
// before being handed out again.
func (s *Session) NeedsCheck() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.needsCheck
}

// ShouldRetire returns true if the session should be discarded based on
// health metrics rather than returned to the idle set.
func (s *Session) ShouldRetire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errScore >= 3.0 {
		return true
	}
	if s.useCount >= 50 {
		return true
	}
	if time.Since(s.created) >= 50*time.Minute {
		return true
	}
	return false
}
