package sources

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	lowQuotaThreshold = 10
	lowQuotaPause     = 30 * time.Second
	minRateLimitWait  = 60 * time.Second
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RateLimitState tracks upstream quota for one client. Remaining is -1 until
// the upstream reports it.
type RateLimitState struct {
	mu            sync.Mutex
	remaining     int
	resetAt       time.Time
	lastRequestAt time.Time

	pacer *rate.Limiter
	now   func() time.Time
	sleep SleepFunc
}

// NewRateLimitState paces requests at least floor apart.
func NewRateLimitState(floor time.Duration, now func() time.Time, sleep SleepFunc) *RateLimitState {
	if now == nil {
		now = time.Now
	}
	if sleep == nil {
		sleep = sleepCtx
	}
	limit := rate.Inf
	if floor > 0 {
		limit = rate.Every(floor)
	}
	return &RateLimitState{
		remaining: -1,
		pacer:     rate.NewLimiter(limit, 1),
		now:       now,
		sleep:     sleep,
	}
}

// Snapshot returns the current quota view.
func (s *RateLimitState) Snapshot() (remaining int, resetAt, lastRequestAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining, s.resetAt, s.lastRequestAt
}

// Wait blocks until a request may be issued: past any recorded reset time,
// after the low-quota pause, and after the pacing floor.
func (s *RateLimitState) Wait(ctx context.Context) error {
	s.mu.Lock()
	resetAt := s.resetAt
	remaining := s.remaining
	s.mu.Unlock()

	if !resetAt.IsZero() {
		if d := resetAt.Sub(s.now()); d > 0 {
			if err := s.sleep(ctx, d); err != nil {
				return err
			}
		}
		s.mu.Lock()
		if !s.resetAt.After(resetAt) {
			s.resetAt = time.Time{}
			s.remaining = -1
			remaining = -1
		}
		s.mu.Unlock()
	}

	if remaining >= 0 && remaining <= lowQuotaThreshold {
		if err := s.sleep(ctx, lowQuotaPause); err != nil {
			return err
		}
	}

	if err := s.pacer.Wait(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.lastRequestAt = s.now()
	s.mu.Unlock()
	return nil
}

// Observe records the quota reported by a successful response. A
// negative remaining leaves the known value unchanged.
func (s *RateLimitState) Observe(remaining int) {
	if remaining < 0 {
		return
	}
	s.mu.Lock()
	s.remaining = remaining
	s.mu.Unlock()
}

// Exhausted records a rate-limit response. The next Wait blocks until at least
// minRateLimitWait from now, or until resetAt when that is later.
func (s *RateLimitState) Exhausted(resetAt time.Time) time.Time {
	now := s.now()
	until := now.Add(minRateLimitWait)
	if resetAt.After(until) {
		until = resetAt
	}
	s.mu.Lock()
	s.resetAt = until
	s.remaining = 0
	s.mu.Unlock()
	return until
}

// parseRemaining reads an integer or float quota header; -1 when absent.
func parseRemaining(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return -1
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return -1
	}
	return int(f)
}

// parseResetEpoch reads a unix-seconds header.
func parseResetEpoch(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(secs, 0), true
}

// parseResetAfter reads a seconds-until-reset header relative to now.
func parseResetAfter(raw string, now time.Time) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return time.Time{}, false
	}
	return now.Add(time.Duration(secs * float64(time.Second))), true
}

// tokenCache holds a bearer credential. A zero expiry never expires.
type tokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

const tokenRefreshMargin = 60 * time.Second

func (c *tokenCache) get(now time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" {
		return "", false
	}
	if !c.expiresAt.IsZero() && !now.Before(c.expiresAt) {
		return "", false
	}
	return c.token, true
}

// set stores token, refreshing tokenRefreshMargin before expiresIn elapses.
func (c *tokenCache) set(token string, now time.Time, expiresIn time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	if expiresIn <= 0 {
		c.expiresAt = time.Time{}
		return
	}
	c.expiresAt = now.Add(expiresIn - tokenRefreshMargin)
}

func (c *tokenCache) clear() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

// banList is the process-lifetime set of inaccessible scopes.
type banList struct {
	mu     sync.RWMutex
	scopes map[string]struct{}
}

func newBanList() *banList {
	return &banList{scopes: make(map[string]struct{})}
}

func (b *banList) ban(scope string) {
	b.mu.Lock()
	b.scopes[strings.ToLower(scope)] = struct{}{}
	b.mu.Unlock()
}

func (b *banList) banned(scope string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.scopes[strings.ToLower(scope)]
	return ok
}

func (b *banList) list() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.scopes))
	for s := range b.scopes {
		out = append(out, s)
	}
	return out
}
