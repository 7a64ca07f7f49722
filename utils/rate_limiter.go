package utils

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// RateLimiter implements a token bucket rate limiter
type RateLimiter struct {
	rate       int           // requests per period
	period     time.Duration // time period
	tokens     int           // current available tokens
	lastRefill time.Time
	mutex      sync.Mutex
}

func NewRateLimiter(rate int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		rate:       rate,
		period:     period,
		tokens:     rate,
		lastRefill: time.Now(),
	}
}

// Allow consumes one token if available
func (rl *RateLimiter) Allow() bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()

	tokensToAdd := int(now.Sub(rl.lastRefill).Nanoseconds() * int64(rl.rate) / rl.period.Nanoseconds())
	if tokensToAdd > 0 {
		rl.tokens += tokensToAdd
		if rl.tokens > rl.rate {
			rl.tokens = rl.rate
		}
		rl.lastRefill = now
	}

	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}

func (rl *RateLimiter) Remaining() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	return rl.tokens
}

// KeyedRateLimiter keeps one token bucket per key. Idle buckets expire after
// a few periods so the map does not grow with every client ever seen.
type KeyedRateLimiter struct {
	rate    int
	period  time.Duration
	buckets *cache.Cache
	mutex   sync.Mutex
}

func NewKeyedRateLimiter(rate int, period time.Duration) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		rate:    rate,
		period:  period,
		buckets: cache.New(3*period, 10*period),
	}
}

func (k *KeyedRateLimiter) Allow(key string) bool {
	return k.limiterFor(key).Allow()
}

func (k *KeyedRateLimiter) Remaining(key string) int {
	return k.limiterFor(key).Remaining()
}

func (k *KeyedRateLimiter) limiterFor(key string) *RateLimiter {
	k.mutex.Lock()
	defer k.mutex.Unlock()

	if cached, ok := k.buckets.Get(key); ok {
		limiter := cached.(*RateLimiter)
		k.buckets.SetDefault(key, limiter)
		return limiter
	}

	limiter := NewRateLimiter(k.rate, k.period)
	k.buckets.SetDefault(key, limiter)
	return limiter
}
