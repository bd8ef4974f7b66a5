// Package resilience holds small policies for recovering from transient
// failures: bounded restart tracking for the recognition engine and retry
// with backoff for persistence writes.
package resilience

import "time"

// RestartPolicy bounds how often a supervised connection may be restarted.
// A run shorter than MinRunDuration counts as a rapid failure; after MaxRapid
// consecutive rapid failures restarting is refused, which keeps a backend
// that dies immediately on every start from being restarted in a tight loop.
type RestartPolicy struct {
	MinRunDuration time.Duration
	MaxRapid       int
}

// DefaultRestartPolicy returns the default restart bounds.
func DefaultRestartPolicy() RestartPolicy {
	return RestartPolicy{
		MinRunDuration: 1 * time.Second,
		MaxRapid:       5,
	}
}

// RestartTracker applies a RestartPolicy across consecutive runs.
// Not safe for concurrent use; callers serialize access.
type RestartTracker struct {
	policy RestartPolicy
	rapid  int
}

// NewRestartTracker returns a tracker for the given policy. Zero policy
// fields fall back to the defaults.
func NewRestartTracker(policy RestartPolicy) *RestartTracker {
	def := DefaultRestartPolicy()
	if policy.MinRunDuration <= 0 {
		policy.MinRunDuration = def.MinRunDuration
	}
	if policy.MaxRapid <= 0 {
		policy.MaxRapid = def.MaxRapid
	}
	return &RestartTracker{policy: policy}
}

// Allow records that a run lasted runDuration and reports whether another
// restart is permitted. A run at least MinRunDuration long resets the rapid
// counter.
func (t *RestartTracker) Allow(runDuration time.Duration) bool {
	if runDuration >= t.policy.MinRunDuration {
		t.rapid = 0
		return true
	}
	t.rapid++
	return t.rapid <= t.policy.MaxRapid
}

// Reset clears the rapid-failure counter. Called when a fresh session starts.
func (t *RestartTracker) Reset() {
	t.rapid = 0
}

// Rapid returns the current consecutive rapid-failure count.
func (t *RestartTracker) Rapid() int {
	return t.rapid
}
