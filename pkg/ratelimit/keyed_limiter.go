package ratelimit

import (
	"sync"
	"time"
)

// KeyedLimiter keeps one token bucket per key, such as a caller id or client IP
type KeyedLimiter struct {
	limiters   map[string]*keyedEntry
	mu         sync.Mutex
	maxTokens  float64
	refillRate float64
	idleTTL    time.Duration
	now        func() time.Time
	stopChan   chan struct{}
	stopOnce   sync.Once
}

type keyedEntry struct {
	bucket   *TokenBucket
	lastSeen time.Time
}

// KeyedLimiterConfig configures a KeyedLimiter
type KeyedLimiterConfig struct {
	MaxTokens       float64
	RefillRate      float64
	IdleTTL         time.Duration
	CleanupInterval time.Duration
	Now             func() time.Time
}

// NewKeyedLimiter creates a KeyedLimiter. A cleanup goroutine evicts buckets
// idle for longer than IdleTTL until Stop is called.
func NewKeyedLimiter(cfg KeyedLimiterConfig) *KeyedLimiter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = cfg.IdleTTL
	}

	limiter := &KeyedLimiter{
		limiters:   make(map[string]*keyedEntry),
		maxTokens:  cfg.MaxTokens,
		refillRate: cfg.RefillRate,
		idleTTL:    cfg.IdleTTL,
		now:        cfg.Now,
		stopChan:   make(chan struct{}),
	}

	go limiter.cleanupLoop(cfg.CleanupInterval)

	return limiter
}

// Allow checks if a request for key can proceed
func (kl *KeyedLimiter) Allow(key string) bool {
	return kl.getLimiter(key).Allow()
}

func (kl *KeyedLimiter) getLimiter(key string) *TokenBucket {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	entry, exists := kl.limiters[key]

	if !exists {
		entry = &keyedEntry{bucket: newTokenBucket(kl.maxTokens, kl.refillRate, kl.now)}
		kl.limiters[key] = entry
	}
	entry.lastSeen = kl.now()

	return entry.bucket
}

// Len returns the number of tracked keys
func (kl *KeyedLimiter) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	return len(kl.limiters)
}

// Evict drops buckets idle for longer than the configured TTL
func (kl *KeyedLimiter) Evict() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	cutoff := kl.now().Add(-kl.idleTTL)
	evicted := 0

	for key, entry := range kl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(kl.limiters, key)
			evicted++
		}
	}
	return evicted
}

func (kl *KeyedLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			kl.Evict()
		case <-kl.stopChan:
			return
		}
	}
}

// Stop stops the cleanup goroutine
func (kl *KeyedLimiter) Stop() {
	kl.stopOnce.Do(func() { close(kl.stopChan) })
}

// GetMetrics returns the limiter settings and the number of tracked keys
func (kl *KeyedLimiter) GetMetrics() map[string]interface{} {
	return map[string]interface{}{
		"max_tokens":   kl.maxTokens,
		"refill_rate":  kl.refillRate,
		"tracked_keys": kl.Len(),
	}
}
