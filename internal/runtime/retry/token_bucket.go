package retry

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws/ratelimit"
)

const (
	DefaultBucketCapacity  = 500
	DefaultRetryCost       = 1
	DefaultSuccessRefill   = 1
	DefaultRefillPerSecond = 1.0
)

// TokenBucketConfig tunes a TokenBucket. Zero values fall back to defaults;
// a negative RefillPerSecond disables time-based refill.
type TokenBucketConfig struct {
	Capacity        int
	RetryCost       int
	SuccessRefill   int
	RefillPerSecond float64
	Now             func() time.Time
}

func (cfg TokenBucketConfig) withDefaults() TokenBucketConfig {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultBucketCapacity
	}
	if cfg.RetryCost <= 0 {
		cfg.RetryCost = DefaultRetryCost
	}
	if cfg.SuccessRefill <= 0 {
		cfg.SuccessRefill = DefaultSuccessRefill
	}
	if cfg.RefillPerSecond == 0 {
		cfg.RefillPerSecond = DefaultRefillPerSecond
	}
	if cfg.RefillPerSecond < 0 {
		cfg.RefillPerSecond = 0
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return cfg
}

// BucketStats is a point-in-time view of a TokenBucket.
type BucketStats struct {
	Capacity  int    `json:"capacity"`
	Available int    `json:"available"`
	Acquired  uint64 `json:"acquired"`
	Rejected  uint64 `json:"rejected"`
	Refunded  uint64 `json:"refunded"`
}

// TokenBucket is the retry quota. Every retry costs tokens; an empty bucket
// forbids further retries regardless of the remaining time budget. It may be
// shared between calls. The quota itself is an aws-sdk-go-v2 TokenRateLimit;
// the bucket adds time-based refill and counters on top.
type TokenBucket struct {
	limiter *ratelimit.TokenRateLimit

	mu       sync.Mutex
	cfg      TokenBucketConfig
	carry    float64
	last     time.Time
	acquired uint64
	rejected uint64
	refunded uint64
}

// NewTokenBucket returns a full bucket.
func NewTokenBucket(cfg TokenBucketConfig) *TokenBucket {
	cfg = cfg.withDefaults()
	return &TokenBucket{
		limiter: ratelimit.NewTokenRateLimit(uint(cfg.Capacity)),
		cfg:     cfg,
		last:    cfg.Now(),
	}
}

// Acquire takes the cost of one retry. It reports false when the bucket
// cannot cover it.
func (b *TokenBucket) Acquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	// Tokens are returned through RecordSuccess, so the release func is unused.
	if _, err := b.limiter.GetToken(context.Background(), uint(b.cfg.RetryCost)); err != nil {
		b.rejected++
		return false
	}
	b.acquired++
	return true
}

// RecordSuccess returns tokens after a successful attempt.
func (b *TokenBucket) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	if b.remainingLocked() >= b.cfg.Capacity {
		return
	}
	_ = b.limiter.AddTokens(uint(b.cfg.SuccessRefill))
	b.refunded++
}

// Available returns the whole tokens currently in the bucket.
func (b *TokenBucket) Available() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	return b.remainingLocked()
}

func (b *TokenBucket) Stats() BucketStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	return BucketStats{
		Capacity:  b.cfg.Capacity,
		Available: b.remainingLocked(),
		Acquired:  b.acquired,
		Rejected:  b.rejected,
		Refunded:  b.refunded,
	}
}

func (b *TokenBucket) remainingLocked() int {
	return int(b.limiter.Remaining())
}

// refillLocked adds the tokens earned since the last call. Fractions carry
// over until they make up a whole token.
func (b *TokenBucket) refillLocked() {
	now := b.cfg.Now()
	elapsed := now.Sub(b.last)
	b.last = now
	if elapsed <= 0 || b.cfg.RefillPerSecond == 0 {
		return
	}
	if b.remainingLocked() >= b.cfg.Capacity {
		b.carry = 0
		return
	}
	b.carry += elapsed.Seconds() * b.cfg.RefillPerSecond
	if whole := math.Floor(b.carry); whole >= 1 {
		b.carry -= whole
		_ = b.limiter.AddTokens(uint(min(whole, float64(b.cfg.Capacity))))
	}
}
