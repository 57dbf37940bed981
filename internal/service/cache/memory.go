package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type entry struct {
	raw []byte
	exp time.Time
}

// Memory is an in-process TTL cache. Values are stored as JSON so the
// backend is interchangeable with Redis.
type Memory struct {
	mu    sync.RWMutex
	m     map[string]entry
	clock func() time.Time
}

type MemoryOption func(*Memory)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *Memory) { c.clock = now }
}

func NewMemory(opts ...MemoryOption) *Memory {
	c := &Memory{m: make(map[string]entry), clock: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Memory) Get(_ context.Context, key string, dest any) error {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return ErrMiss
	}
	if !e.exp.IsZero() && c.clock().After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return ErrMiss
	}
	return json.Unmarshal(e.raw, dest)
}

func (c *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	var exp time.Time
	if ttl > 0 {
		exp = c.clock().Add(ttl)
	}
	c.mu.Lock()
	c.m[key] = entry{raw: raw, exp: exp}
	c.mu.Unlock()
	return nil
}

func (c *Memory) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.m, k)
	}
	c.mu.Unlock()
	return nil
}

func (c *Memory) Close() error { return nil }
