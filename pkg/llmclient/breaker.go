package llmclient

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// DefaultBreakerThreshold is the number of consecutive Complete failures
// for a single backend+model pair before it is marked degraded,
// mirroring the teacher's MaxConsecutiveTimeouts threshold
// (pkg/agent/iteration.go's IterationState.ShouldAbortOnTimeouts), but
// generalized from a single counter that aborts iteration to a per-tier
// map that recovers after a cooldown instead of giving up outright.
const DefaultBreakerThreshold = 3

// DefaultBreakerCooldown is how long a tripped tier stays degraded
// before Complete is allowed to try it again (SPEC_FULL.md §5).
const DefaultBreakerCooldown = 2 * time.Minute

// circuitBreaker tracks consecutive completion failures per tier key
// (backendURL+model) and skips calls to a tier that has failed
// DefaultBreakerThreshold times in a row until its cooldown elapses.
type circuitBreaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	tiers     map[string]*tierState
}

type tierState struct {
	consecutiveFailures int
	degradedUntil       time.Time
}

func newCircuitBreaker(threshold int, cooldown time.Duration) *circuitBreaker {
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultBreakerCooldown
	}
	return &circuitBreaker{threshold: threshold, cooldown: cooldown, tiers: make(map[string]*tierState)}
}

// allow reports whether a call for key may proceed, and the remaining
// cooldown when it may not.
func (b *circuitBreaker) allow(key string) (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.tiers[key]
	if !ok || s.degradedUntil.IsZero() {
		return true, 0
	}
	if remaining := time.Until(s.degradedUntil); remaining > 0 {
		return false, remaining
	}
	return true, 0
}

// recordResult updates key's consecutive-failure count, tripping the
// breaker once threshold consecutive failures have been recorded.
func (b *circuitBreaker) recordResult(key string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.tiers[key]
	if !ok {
		s = &tierState{}
		b.tiers[key] = s
	}

	if err == nil {
		s.consecutiveFailures = 0
		s.degradedUntil = time.Time{}
		return
	}

	s.consecutiveFailures++
	if s.consecutiveFailures >= b.threshold {
		now := time.Now()
		if s.degradedUntil.IsZero() || !now.Before(s.degradedUntil) {
			s.degradedUntil = now.Add(b.cooldown)
			slog.Warn("llm tier marked degraded after consecutive failures",
				"tier", key, "consecutive_failures", s.consecutiveFailures, "cooldown", b.cooldown)
		}
	}
}

// degraded returns every tier key currently inside its cooldown window,
// for the health endpoint (SPEC_FULL.md §5).
func (b *circuitBreaker) degraded() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	var out []string
	for key, s := range b.tiers {
		if !s.degradedUntil.IsZero() && now.Before(s.degradedUntil) {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}
