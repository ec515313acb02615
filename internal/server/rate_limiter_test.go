package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Tyrowin/collabchat/internal/config"
)

func TestRateLimiterBurstAndRefill(t *testing.T) {
	now := time.Unix(0, 0)
	rl := newRateLimiter(config.RateLimitConfig{Burst: 4, RefillInterval: time.Second}, func() time.Time { return now })

	for i := 0; i < 4; i++ {
		ok, _ := rl.take()
		assert.True(t, ok, "token %d", i)
	}
	ok, wait := rl.take()
	assert.False(t, ok, "bucket is empty")
	assert.InDelta(t, float64(250*time.Millisecond), float64(wait), float64(time.Microsecond))

	now = now.Add(100 * time.Millisecond)
	ok, wait = rl.take()
	assert.False(t, ok)
	assert.InDelta(t, float64(150*time.Millisecond), float64(wait), float64(time.Microsecond))

	now = now.Add(200 * time.Millisecond)
	ok, _ = rl.take()
	assert.True(t, ok, "one token refilled")

	now = now.Add(10 * time.Second)
	for i := 0; i < 4; i++ {
		ok, _ = rl.take()
		assert.True(t, ok)
	}
	ok, _ = rl.take()
	assert.False(t, ok, "refill is capped at the burst")
}

func TestRateLimiterSanitizesConfig(t *testing.T) {
	rl := newRateLimiter(config.RateLimitConfig{}, nil)
	assert.Equal(t, 1.0, rl.capacity)
	assert.Equal(t, time.Second, rl.perToken)
	assert.NotNil(t, rl.now)
}
