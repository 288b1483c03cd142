//go:build !integration

package ratelimit

import (
	"errors"
	"testing"
	"time"

	"saas-billing-backend/internal/domain"
)

func TestLimiter_Allow(t *testing.T) {
	rules := map[string]Rule{"webhook": {Limit: 5, Window: time.Minute}}

	t.Run("should allow up to the limit and then reject", func(t *testing.T) {
		l := New(rules)
		now := time.Unix(1_700_000_000, 0)
		l.now = func() time.Time { return now }

		for i := 0; i < 5; i++ {
			if err := l.Allow("stripe", "webhook"); err != nil {
				t.Fatalf("call %d: expected allow, got: %v", i+1, err)
			}
		}
		err := l.Allow("stripe", "webhook")
		var rlErr *domain.RateLimitError
		if !errors.As(err, &rlErr) {
			t.Fatalf("expected RateLimitError on call 6, got: %v", err)
		}
		if rlErr.RetryAfter <= 0 || rlErr.RetryAfter > time.Minute {
			t.Errorf("expected retry-after within the window, got %v", rlErr.RetryAfter)
		}
	})

	t.Run("should free capacity once old calls slide out of the window", func(t *testing.T) {
		l := New(rules)
		now := time.Unix(1_700_000_000, 0)
		l.now = func() time.Time { return now }

		for i := 0; i < 5; i++ {
			if err := l.Allow("stripe", "webhook"); err != nil {
				t.Fatalf("seed call %d failed: %v", i+1, err)
			}
			now = now.Add(time.Second)
		}
		if err := l.Allow("stripe", "webhook"); err == nil {
			t.Fatal("expected rejection at the limit")
		}

		// The first call ages out 60s after it was made.
		now = now.Add(56 * time.Second)
		if err := l.Allow("stripe", "webhook"); err != nil {
			t.Fatalf("expected allow after the window slid, got: %v", err)
		}
	})

	t.Run("should keep client and category budgets independent", func(t *testing.T) {
		l := New(rules)
		now := time.Unix(1_700_000_000, 0)
		l.now = func() time.Time { return now }

		for i := 0; i < 5; i++ {
			if err := l.Allow("stripe", "webhook"); err != nil {
				t.Fatalf("seed call %d failed: %v", i+1, err)
			}
		}
		if err := l.Allow("stripe", "webhook"); err == nil {
			t.Fatal("expected stripe to be limited")
		}
		if err := l.Allow("lemonsqueezy", "webhook"); err != nil {
			t.Errorf("expected an unrelated client to pass, got: %v", err)
		}
	})

	t.Run("should evict clients whose calls have all aged out", func(t *testing.T) {
		l := New(rules)
		now := time.Unix(1_700_000_000, 0)
		l.now = func() time.Time { return now }

		for _, client := range []string{"a", "b", "c"} {
			if err := l.Allow(client, "webhook"); err != nil {
				t.Fatalf("seed for %s failed: %v", client, err)
			}
		}
		if got := len(l.calls); got != 3 {
			t.Fatalf("expected 3 tracked clients, got %d", got)
		}

		// Past the window and the sweep interval, a new caller triggers the
		// sweep and the idle entries go away.
		now = now.Add(time.Minute + idleSweepInterval)
		if err := l.Allow("fresh", "webhook"); err != nil {
			t.Fatalf("expected allow for the new client, got: %v", err)
		}
		if got := len(l.calls); got != 1 {
			t.Errorf("expected only the active client tracked, got %d", got)
		}
	})

	t.Run("should allow categories without a rule", func(t *testing.T) {
		l := New(rules)
		for i := 0; i < 100; i++ {
			if err := l.Allow("anyone", "unmetered"); err != nil {
				t.Fatalf("expected unmetered category to pass, got: %v", err)
			}
		}
	})
}
