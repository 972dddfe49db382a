package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"guest-relay-bot/internal/models"
	"guest-relay-bot/internal/store"
)

// RateLimiter is a fixed-window request counter per guest. A window is
// valid only while now - windowStart <= window; once invalid it is treated
// as absent and a new window starts with the triggering request counted as
// request #1. Windows self-expire via store TTL as a backstop against
// stuck state.
type RateLimiter struct {
	store  store.Store
	max    int
	window time.Duration

	now func() time.Time
}

// NewRateLimiter creates a limiter allowing max requests per window.
func NewRateLimiter(s store.Store, max int, window time.Duration) *RateLimiter {
	return &RateLimiter{store: s, max: max, window: window, now: time.Now}
}

// Check records one request for the guest and reports whether it is
// allowed. Every branch persists the updated window with a TTL slightly
// longer than the window itself.
func (r *RateLimiter) Check(ctx context.Context, guestID string) (models.RateLimitResult, error) {
	key := prefixRateLimit + guestID
	nowMs := r.now().UnixMilli()
	windowMs := r.window.Milliseconds()

	win, err := r.read(ctx, key)
	if err != nil {
		return models.RateLimitResult{}, err
	}

	if win == nil || nowMs-win.WindowStart > windowMs {
		fresh := models.RateLimitWindow{WindowStart: nowMs, Count: 1}
		if err := r.write(ctx, key, fresh); err != nil {
			return models.RateLimitResult{}, err
		}
		return models.RateLimitResult{Allowed: true, Remaining: r.max - 1}, nil
	}

	if win.Count < r.max {
		win.Count++
		if err := r.write(ctx, key, *win); err != nil {
			return models.RateLimitResult{}, err
		}
		return models.RateLimitResult{Allowed: true, Remaining: r.max - win.Count}, nil
	}

	// Limit reached: persist unchanged to refresh the TTL backstop.
	if err := r.write(ctx, key, *win); err != nil {
		return models.RateLimitResult{}, err
	}
	remainingMs := win.WindowStart + windowMs - nowMs
	reset := int((remainingMs + 999) / 1000)
	return models.RateLimitResult{Allowed: false, ResetInSeconds: reset}, nil
}

func (r *RateLimiter) read(ctx context.Context, key string) (*models.RateLimitWindow, error) {
	raw, err := r.store.Get(ctx, key)
	if err == store.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rate-limit window: %w", err)
	}
	var win models.RateLimitWindow
	if err := json.Unmarshal([]byte(raw), &win); err != nil {
		// Corrupt windows are discarded; a fresh one starts on this request.
		return nil, nil
	}
	return &win, nil
}

func (r *RateLimiter) write(ctx context.Context, key string, win models.RateLimitWindow) error {
	data, err := json.Marshal(win)
	if err != nil {
		return fmt.Errorf("failed to marshal rate-limit window: %w", err)
	}
	if err := r.store.Put(ctx, key, string(data), r.window+30*time.Second); err != nil {
		return fmt.Errorf("failed to persist rate-limit window: %w", err)
	}
	return nil
}
