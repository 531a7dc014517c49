package ratelimit

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/pedidopro/pedidopro/internal/pkg/cache"
	"github.com/pedidopro/pedidopro/internal/pkg/env"
)

// Store is the backing capability for rate limit counters. Implementations
// must expire entries after the given TTL.
type Store interface {
	// Get returns the stored value for key, with ok=false when the key is
	// absent or expired.
	Get(key string) (value string, ok bool, err error)
	Set(key, value string, ttl time.Duration) error
}

// Result describes the outcome of a single admission attempt.
type Result struct {
	Allowed   bool
	Limit     int
	Current   int
	Remaining int
	ResetAt   time.Time
}

// record is the persisted counter state for one window.
type record struct {
	Count   int   `json:"count"`
	ResetAt int64 `json:"reset_at"`
}

// Limiter implements a fixed-window counter on top of a Store.
//
// The get/increment/set sequence is not atomic, so two concurrent requests
// can both observe the same count and one extra request may slip through.
// That approximation is accepted for the in-process backend; strictness is
// traded for availability either way, since any store failure fails open.
type Limiter struct {
	store Store
	now   func() time.Time
}

// NewLimiter creates a limiter over the given backing store.
func NewLimiter(store Store) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// Admit records one attempt for identity under namespace and reports whether
// it fits inside the current fixed window of `limit` attempts per `window`.
//
// Fail-open: if the backing store errors, the attempt is allowed and the
// error is logged. A throttling outage must never block payment verification.
func (l *Limiter) Admit(identity string, limit int, window time.Duration, namespace string) Result {
	key := fmt.Sprintf("%s:%s", namespace, identity)
	now := l.now()

	failOpen := func(err error) Result {
		log.Printf("ratelimit: store error for %s, allowing request: %v", key, err)
		return Result{Allowed: true, Limit: limit, Current: 0, Remaining: limit, ResetAt: now.Add(window)}
	}

	raw, ok, err := l.store.Get(key)
	if err != nil {
		return failOpen(err)
	}

	var rec record
	if ok {
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			// Treat a corrupt entry like a missing one.
			ok = false
		}
	}
	if !ok || rec.ResetAt <= now.Unix() {
		rec = record{Count: 0, ResetAt: now.Add(window).Unix()}
	}

	rec.Count++
	ttl := time.Until(time.Unix(rec.ResetAt, 0))
	if ttl < time.Second {
		ttl = time.Second
	}

	buf, _ := json.Marshal(rec)
	if err := l.store.Set(key, string(buf), ttl); err != nil {
		return failOpen(err)
	}

	remaining := limit - rec.Count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   rec.Count <= limit,
		Limit:     limit,
		Current:   rec.Count,
		Remaining: remaining,
		ResetAt:   time.Unix(rec.ResetAt, 0),
	}
}

var defaultLimiter *Limiter

// Setup selects the backing store once at boot. RATE_LIMIT_BACKEND=redis
// uses the shared cache server so counters are enforced across instances;
// anything else falls back to the in-process store.
func Setup() {
	switch env.GetEnv("RATE_LIMIT_BACKEND", "memory") {
	case "redis":
		defaultLimiter = NewLimiter(NewRedisStore(cache.GetClient()))
		log.Print("ratelimit: using redis backing store")
	default:
		defaultLimiter = NewLimiter(NewMemoryStore(time.Minute))
		log.Print("ratelimit: using in-memory backing store")
	}
}

// Default returns the limiter selected by Setup.
func Default() *Limiter {
	if defaultLimiter == nil {
		Setup()
	}
	return defaultLimiter
}
