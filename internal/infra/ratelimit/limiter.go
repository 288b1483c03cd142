package ratelimit

import (
	"sync"
	"time"

	"saas-billing-backend/internal/domain"
)

// Rule is the budget for one route category.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Limiter is an in-process sliding-window counter keyed by
// (client identity, route category). Counters are ephemeral: they reset on
// process restart and are not shared across instances, which only degrades
// toward more permissive behavior under horizontal scaling.
type Limiter struct {
	mu        sync.Mutex
	rules     map[string]Rule
	calls     map[key][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// idleSweepInterval bounds how often Allow scans the whole map for clients
// whose every timestamp has aged out.
const idleSweepInterval = time.Minute

type key struct {
	client   string
	category string
}

func New(rules map[string]Rule) *Limiter {
	return &Limiter{
		rules: rules,
		calls: make(map[key][]time.Time),
		now:   time.Now,
	}
}

// Allow prunes timestamps older than the category's window, rejects with a
// *domain.RateLimitError when the remaining count has reached the limit,
// and records this call otherwise. Categories without a rule are allowed.
func (l *Limiter) Allow(client, category string) error {
	rule, ok := l.rules[category]
	if !ok || rule.Limit <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)
	k := key{client: client, category: category}
	cutoff := now.Add(-rule.Window)

	stamps := l.calls[k]
	kept := stamps[:0]
	for _, t := range stamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= rule.Limit {
		l.calls[k] = kept
		retryAfter := rule.Window - now.Sub(kept[0])
		if retryAfter < 0 {
			retryAfter = 0
		}
		return &domain.RateLimitError{ClientID: client, Category: category, RetryAfter: retryAfter}
	}

	l.calls[k] = append(kept, now)
	return nil
}

// sweep drops keys whose newest timestamp has aged out of its window, so
// one-off clients do not accumulate entries forever. Piggybacks on Allow,
// at most once per idleSweepInterval. Caller holds the lock.
func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < idleSweepInterval {
		return
	}
	l.lastSweep = now
	for k, stamps := range l.calls {
		rule, ok := l.rules[k.category]
		if !ok || len(stamps) == 0 {
			delete(l.calls, k)
			continue
		}
		if !stamps[len(stamps)-1].After(now.Add(-rule.Window)) {
			delete(l.calls, k)
		}
	}
}
