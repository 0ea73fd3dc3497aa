// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package ratelimit provides keyed token buckets for abuse-sensitive actions.

Each key ("login:<ip>", "forgot:<email>") owns a classic token bucket that
starts full with `capacity` tokens and refills greedily at capacity/window, so
after `window` of inactivity the bucket is full again.

Buckets live in process memory. A restart forgets all history.
*/
package ratelimit

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

const shardCount = 16

// bucket pairs a token bucket with its policy and last touch time.
type bucket struct {
	limiter  *rate.Limiter
	capacity int
	window   time.Duration
	lastSeen time.Time
}

type shard struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// Limiter is a concurrency-safe set of keyed token buckets.
type Limiter struct {
	shards   [shardCount]*shard
	idleTTL  time.Duration
	clock    func() time.Time
	rejected *prometheus.CounterVec
}

// Option customises a [Limiter].
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(limiter *Limiter) { limiter.clock = clock }
}

// WithRejectionCounter records rejected acquisitions, labelled by key prefix.
func WithRejectionCounter(counter *prometheus.CounterVec) Option {
	return func(limiter *Limiter) { limiter.rejected = counter }
}

// New creates a Limiter whose idle buckets are dropped after idleTTL.
//
// idleTTL must be at least the longest window in use; a dropped bucket is
// recreated full, which is only correct once it would have refilled anyway.
func New(idleTTL time.Duration, options ...Option) *Limiter {
	limiter := &Limiter{idleTTL: idleTTL, clock: time.Now}
	for index := range limiter.shards {
		limiter.shards[index] = &shard{buckets: make(map[string]*bucket)}
	}
	for _, option := range options {
		option(limiter)
	}
	return limiter
}

/*
Acquire consumes one token from the bucket identified by key.

Parameters:
  - key: Bucket identity, conventionally "<action>:<subject>"
  - capacity: Maximum tokens (and burst size) of the bucket
  - window: Time to refill a fully drained bucket

Returns:
  - bool: true if a token was consumed, false if the bucket is empty
*/
func (limiter *Limiter) Acquire(key string, capacity int, window time.Duration) bool {
	if capacity <= 0 || window <= 0 {
		return false
	}

	now := limiter.clock()
	part := limiter.shardFor(key)

	part.mu.Lock()
	entry, found := part.buckets[key]

	// A policy change for an existing key starts a fresh bucket.
	if !found || entry.capacity != capacity || entry.window != window {
		entry = &bucket{
			limiter:  rate.NewLimiter(rate.Limit(float64(capacity)/window.Seconds()), capacity),
			capacity: capacity,
			window:   window,
		}
		part.buckets[key] = entry
	}
	entry.lastSeen = now
	allowed := entry.limiter.AllowN(now, 1)
	part.mu.Unlock()

	if !allowed && limiter.rejected != nil {
		limiter.rejected.WithLabelValues(action(key)).Inc()
	}

	return allowed
}

// Len returns the number of live buckets.
func (limiter *Limiter) Len() int {
	total := 0
	for _, part := range limiter.shards {
		part.mu.Lock()
		total += len(part.buckets)
		part.mu.Unlock()
	}
	return total
}

// Sweep removes buckets idle for longer than the configured TTL.
func (limiter *Limiter) Sweep() int {
	now := limiter.clock()
	removed := 0

	for _, part := range limiter.shards {
		part.mu.Lock()
		for key, entry := range part.buckets {
			if now.Sub(entry.lastSeen) > limiter.idleTTL {
				delete(part.buckets, key)
				removed++
			}
		}
		part.mu.Unlock()
	}

	return removed
}

// Run sweeps idle buckets every interval until the context is cancelled.
func (limiter *Limiter) Run(context context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			limiter.Sweep()
		case <-context.Done():
			return
		}
	}
}

func (limiter *Limiter) shardFor(key string) *shard {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(key))
	return limiter.shards[hasher.Sum32()%shardCount]
}

// action returns the key prefix before the first colon.
func action(key string) string {
	if prefix, _, found := strings.Cut(key, ":"); found {
		return prefix
	}
	return "other"
}
