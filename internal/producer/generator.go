// Package producer generates synthetic user-activity events and submits
// them to a streaming channel.
package producer

import (
	"fmt"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/activitysink/activitysink/pkg/types"
)

// Generator builds random events from a fixed user pool and action set.
type Generator struct {
	mu       sync.Mutex
	faker    *gofakeit.Faker
	poolSize int
	actions  []string
	now      func() time.Time
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithClock replaces the wall clock used for timestamps.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) {
		g.now = now
	}
}

// WithSeed makes the random sequence reproducible. A seed of 0 keeps a random seed.
func WithSeed(seed int64) GeneratorOption {
	return func(g *Generator) {
		g.faker = gofakeit.New(seed)
	}
}

// NewGenerator creates a generator picking users user_1..user_<poolSize>
// and one of actions per event.
func NewGenerator(poolSize int, actions []string, opts ...GeneratorOption) (*Generator, error) {
	if poolSize < 1 {
		return nil, fmt.Errorf("producer: user pool size must be at least 1, got %d", poolSize)
	}
	if len(actions) == 0 {
		return nil, fmt.Errorf("producer: at least one action is required")
	}

	g := &Generator{
		faker:    gofakeit.New(0),
		poolSize: poolSize,
		actions:  append([]string(nil), actions...),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate returns a new event stamped with the current time in whole seconds.
func (g *Generator) Generate() types.Event {
	g.mu.Lock()
	n := g.faker.Number(1, g.poolSize)
	action := g.faker.RandomString(g.actions)
	g.mu.Unlock()

	return types.Event{
		UserID:    fmt.Sprintf("user_%d", n),
		Event:     action,
		Timestamp: g.now().Unix(),
	}
}
