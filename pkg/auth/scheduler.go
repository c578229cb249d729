package auth

import (
	"sync"
	"time"
)

// RefreshScheduler arms a single one-shot timer that runs a provider's
// credential refresh ahead of expiry. A provider owns at most one live timer:
// Schedule cancels any pending timer before arming the next, so two refresh
// tasks can never be scheduled concurrently for the same owner.
//
// The scheduled function re-arms itself on success by calling Schedule again;
// on failure it simply returns, leaving reacquisition to the next caller that
// misses the cache.
type RefreshScheduler struct {
	mu    sync.Mutex
	timer *time.Timer
}

// NewRefreshScheduler returns a scheduler with no timer armed.
func NewRefreshScheduler() *RefreshScheduler {
	return &RefreshScheduler{}
}

// Schedule cancels any pending task and arms fn to run after delay. A
// non-positive delay disables scheduling entirely (used when the cache
// duration is too short for a refresh-ahead window).
func (s *RefreshScheduler) Schedule(delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if delay <= 0 {
		return
	}
	s.timer = time.AfterFunc(delay, fn)
}

// Armed reports whether a task has been scheduled and not cancelled.
func (s *RefreshScheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Cancel stops the pending task, if any. Safe to call repeatedly and
// concurrently with Schedule.
func (s *RefreshScheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// RefreshInterval computes the delay before a proactive refresh: refreshAhead
// before the cached credential expires. If the cache lifetime does not leave
// room for the refresh-ahead window the result is 0, which Schedule treats as
// "never auto-refresh".
func RefreshInterval(cacheDuration, refreshAhead time.Duration) time.Duration {
	if cacheDuration <= refreshAhead {
		return 0
	}
	return cacheDuration - refreshAhead
}
