package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedRateLimiter(t *testing.T) {
	t.Parallel()

	limiter := NewKeyedRateLimiter(2, time.Hour)

	assert.True(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("a"))
	assert.False(t, limiter.Allow("a"))

	// separate bucket per key
	assert.True(t, limiter.Allow("b"))
	assert.Equal(t, 1, limiter.Remaining("b"))
}

func TestRateLimiterRefills(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(1, 20*time.Millisecond)

	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow())

	assert.Eventually(t, limiter.Allow, time.Second, 5*time.Millisecond)
}
