package compendium

import (
	"context"
	"fmt"
	"sync"
	"time"

	"effectcraft/internal/world"
)

// Scheduler defers work to the next turn. The real implementation fires
// on a zero timer; tests inject a manual one to control flush timing.
type Scheduler interface {
	Defer(fn func())
}

type tickScheduler struct{}

func (tickScheduler) Defer(fn func()) {
	time.AfterFunc(0, fn)
}

// NextTick is the production scheduler.
func NextTick() Scheduler {
	return tickScheduler{}
}

type result struct {
	item *world.Item
	err  error
}

type waiter struct {
	entryID string
	ch      chan result
}

// Cache coalesces lookups: every request for a pack issued before its
// flush runs is answered by one bulk load. Loaded packs are kept for the
// cache's lifetime.
type Cache struct {
	lib   *Library
	sched Scheduler

	mu      sync.Mutex
	loaded  map[string]map[string]world.Item
	pending map[string][]waiter
}

func NewCache(lib *Library, sched Scheduler) *Cache {
	if sched == nil {
		sched = NextTick()
	}
	return &Cache{
		lib:     lib,
		sched:   sched,
		loaded:  make(map[string]map[string]world.Item),
		pending: make(map[string][]waiter),
	}
}

// Item looks up one entry, waiting for the coalesced load when the pack
// is not cached yet.
func (c *Cache) Item(ctx context.Context, packID, entryID string) (*world.Item, error) {
	c.mu.Lock()
	if items, ok := c.loaded[packID]; ok {
		c.mu.Unlock()
		return pick(items, packID, entryID)
	}

	w := waiter{entryID: entryID, ch: make(chan result, 1)}
	first := len(c.pending[packID]) == 0
	c.pending[packID] = append(c.pending[packID], w)
	c.mu.Unlock()

	if first {
		c.sched.Defer(func() { c.flush(packID) })
	}

	select {
	case res := <-w.ch:
		return res.item, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// waiting reports how many requests are queued for a pack.
func (c *Cache) waiting(packID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending[packID])
}

// flush performs the bulk load and fans results out to every waiter that
// accumulated since the first request.
func (c *Cache) flush(packID string) {
	items, err := c.lib.LoadPack(packID)

	c.mu.Lock()
	waiters := c.pending[packID]
	delete(c.pending, packID)
	if err == nil {
		c.loaded[packID] = items
	}
	c.mu.Unlock()

	for _, w := range waiters {
		if err != nil {
			w.ch <- result{err: err}
			continue
		}
		item, perr := pick(items, packID, w.entryID)
		w.ch <- result{item: item, err: perr}
	}
}

func pick(items map[string]world.Item, packID, entryID string) (*world.Item, error) {
	item, ok := items[entryID]
	if !ok {
		return nil, fmt.Errorf("pack %s has no entry %s", packID, entryID)
	}
	clone := item.Clone()
	return &clone, nil
}
