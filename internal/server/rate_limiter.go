package server

// Per-connection throttling of inbound frames. A frame over the limit is not
// routed; the client answers the sender with ErrMsgRateLimited instead.

import (
	"sync"
	"time"

	"github.com/Tyrowin/collabchat/internal/config"
)

// rateLimiter is a token bucket holding up to Burst frames and refilled
// continuously so that a full bucket takes RefillInterval to recover.
type rateLimiter struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	perToken time.Duration
	last     time.Time
	now      func() time.Time
}

func newRateLimiter(cfg config.RateLimitConfig, now func() time.Time) *rateLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	if now == nil {
		now = time.Now
	}

	return &rateLimiter{
		tokens:   float64(cfg.Burst),
		capacity: float64(cfg.Burst),
		perToken: cfg.RefillInterval / time.Duration(cfg.Burst),
		last:     now(),
		now:      now,
	}
}

// take consumes one token. When the bucket is empty it reports how long the
// caller would have to wait for the next one.
func (rl *rateLimiter) take() (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if elapsed := now.Sub(rl.last); elapsed > 0 {
		rl.tokens = min(rl.capacity, rl.tokens+float64(elapsed)/float64(rl.perToken))
	}
	rl.last = now

	if rl.tokens < 1 {
		return false, time.Duration((1 - rl.tokens) * float64(rl.perToken))
	}
	rl.tokens--
	return true, 0
}
