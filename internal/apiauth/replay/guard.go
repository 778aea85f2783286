// Package replay refuses a request signature that was already accepted
// inside the freshness window.
//
// Redis is the primary store (SET NX PX). After consecutive Redis errors a
// circuit breaker opens and an in-memory store answers instead; Redis keeps
// being probed and the breaker closes after consecutive successes.
package replay

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"healthlink/pkg/platform/circuit"
)

const keyPrefix = "healthlink:replay:"

// DegradedObserver is notified when the guard switches stores.
type DegradedObserver interface {
	SetReplayDegraded(degraded bool)
}

// Guard is safe for concurrent use.
type Guard struct {
	client   redis.Cmdable
	breaker  *circuit.Breaker
	memory   *memoryStore
	logger   *slog.Logger
	observer DegradedObserver
}

// Option configures a Guard.
type Option func(*Guard)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func WithObserver(o DegradedObserver) Option {
	return func(g *Guard) {
		g.observer = o
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(g *Guard) {
		if b != nil {
			g.breaker = b
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		if now != nil {
			g.memory.now = now
		}
	}
}

// New builds a guard. A nil client keeps every check in memory.
func New(client redis.Cmdable, opts ...Option) *Guard {
	g := &Guard{
		client:  client,
		breaker: circuit.New("replay-redis"),
		memory:  newMemoryStore(time.Now),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Seen records signature for ttl and reports whether it had already been
// recorded. It never fails: Redis errors route to the in-memory store.
func (g *Guard) Seen(ctx context.Context, signature string, ttl time.Duration) bool {
	key := keyPrefix + signature
	if g.client == nil {
		return !g.memory.setNX(key, ttl)
	}

	stored, err := g.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		_, change := g.breaker.RecordFailure()
		if change.Opened {
			g.logger.WarnContext(ctx, "replay guard degraded to memory", "breaker", g.breaker.Name(), "error", err)
			g.notify(true)
		}
		return !g.memory.setNX(key, ttl)
	}

	usePrimary, change := g.breaker.RecordSuccess()
	if change.Closed {
		g.logger.InfoContext(ctx, "replay guard restored to redis", "breaker", g.breaker.Name())
		g.notify(false)
	}
	if usePrimary {
		return !stored
	}
	// still open: keys may only exist in memory, so both stores must agree it is new
	fresh := g.memory.setNX(key, ttl)
	return !stored || !fresh
}

// Degraded reports whether the in-memory store is answering.
func (g *Guard) Degraded() bool {
	return g.client == nil || g.breaker.IsOpen()
}

func (g *Guard) notify(degraded bool) {
	if g.observer != nil {
		g.observer.SetReplayDegraded(degraded)
	}
}
