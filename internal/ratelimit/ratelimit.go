package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrLimited is returned when a caller has exhausted its window allowance.
var ErrLimited = errors.New("rate limit exceeded")

// Record is the per-IP usage counter.
type Record struct {
	RequestCount int       `json:"request_count"`
	LastRequest  time.Time `json:"last_request"`
}

// RecordStore persists Records keyed by caller IP. Get returns (nil, nil)
// when no record exists.
type RecordStore interface {
	Get(ctx context.Context, ip string) (*Record, error)
	Put(ctx context.Context, ip string, rec Record) error
}

// Limiter enforces a fixed request allowance per IP within a rolling window.
// The read-then-write here can race between concurrent calls from one IP;
// that slack is accepted for an abuse-deterrence limiter.
type Limiter struct {
	store  RecordStore
	limit  int
	window time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewLimiter builds a limiter allowing limit requests per window.
func NewLimiter(store RecordStore, limit int, window time.Duration, logger *slog.Logger) *Limiter {
	return &Limiter{store: store, limit: limit, window: window, logger: logger, now: time.Now}
}

// Allow records one request from ip and returns ErrLimited when the caller is
// over its allowance. An empty ip or a record-store failure fails open:
// identity we cannot resolve is not grounds to refuse service.
func (l *Limiter) Allow(ctx context.Context, ip string) error {
	if ip == "" {
		return nil
	}

	rec, err := l.store.Get(ctx, ip)
	if err != nil {
		l.logger.Warn("rate limit lookup failed, allowing request", "ip", ip, "error", err)
		return nil
	}

	now := l.now()
	if rec == nil {
		l.put(ctx, ip, Record{RequestCount: 1, LastRequest: now})
		return nil
	}

	if now.Sub(rec.LastRequest) < l.window {
		if rec.RequestCount >= l.limit {
			return ErrLimited
		}
		// Increments keep LastRequest, so the window runs from the first
		// request of the current burst.
		l.put(ctx, ip, Record{RequestCount: rec.RequestCount + 1, LastRequest: rec.LastRequest})
		return nil
	}

	l.put(ctx, ip, Record{RequestCount: 1, LastRequest: now})
	return nil
}

func (l *Limiter) put(ctx context.Context, ip string, rec Record) {
	if err := l.store.Put(ctx, ip, rec); err != nil {
		l.logger.Warn("rate limit update failed", "ip", ip, "error", err)
	}
}
