// Package client is the consumer side of the notification API: an HTTP and
// SSE client plus the in-memory cache a UI keeps of the member's list.
package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mtlprog/teamtask/internal/domain"
	"github.com/mtlprog/teamtask/internal/live"
	"golang.org/x/sync/singleflight"
)

// refreshTimeout bounds one shared list fetch.
const refreshTimeout = 30 * time.Second

// Fetcher is the part of the API the cache needs.
type Fetcher interface {
	ListNotifications(ctx context.Context) ([]domain.Notification, error)
	MarkAllRead(ctx context.Context) error
}

// Cache holds the member's notification list. It never patches the list
// from a signal; every invalidation triggers a full re-fetch.
type Cache struct {
	fetcher Fetcher
	group   singleflight.Group

	// requested counts refresh requests; fetched is the highest request
	// number a completed fetch is known to cover.
	requested atomic.Uint64
	fetched   atomic.Uint64

	mu     sync.RWMutex
	items  []domain.Notification
	loaded bool
}

// NewCache creates an empty cache backed by fetcher.
func NewCache(fetcher Fetcher) *Cache {
	return &Cache{fetcher: fetcher}
}

// Refresh re-fetches the full list. Concurrent refreshes share one request,
// but a refresh never returns data fetched before it was called. Cancelling
// ctx abandons the wait without failing other callers of the shared fetch.
func (c *Cache) Refresh(ctx context.Context) error {
	want := c.requested.Add(1)

	for c.fetched.Load() < want {
		// The shared fetch must outlive any single caller; each caller
		// stops waiting on its own ctx instead.
		ch := c.group.DoChan("list", func() (any, error) {
			fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
			defer cancel()
			return nil, c.fetch(fetchCtx)
		})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				return res.Err
			}
		}
	}
	return nil
}

func (c *Cache) fetch(ctx context.Context) error {
	covers := c.requested.Load()

	items, err := c.fetcher.ListNotifications(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.items = items
	c.loaded = true
	c.mu.Unlock()

	for {
		prev := c.fetched.Load()
		if prev >= covers || c.fetched.CompareAndSwap(prev, covers) {
			return nil
		}
	}
}

// HandleSignal reacts to a live signal for this member.
func (c *Cache) HandleSignal(ctx context.Context, signal live.Signal) error {
	if signal != live.SignalNotificationsChanged {
		return nil
	}
	return c.Refresh(ctx)
}

// Watch refreshes on every signal until signals is closed or ctx is done.
// Failed refreshes are logged; the next signal retries.
func (c *Cache) Watch(ctx context.Context, signals <-chan live.Signal) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case signal, ok := <-signals:
			if !ok {
				return nil
			}
			if err := c.HandleSignal(ctx, signal); err != nil {
				slog.Warn("notification refresh failed", "error", err)
			}
		}
	}
}

// Loaded reports whether at least one fetch has completed.
func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Notifications returns a copy of the cached list, newest first.
func (c *Cache) Notifications() []domain.Notification {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Notification(nil), c.items...)
}

// UnreadCount is the number of cached notifications with the unread flag.
func (c *Cache) UnreadCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	count := 0
	for _, n := range c.items {
		if n.IsUnread {
			count++
		}
	}
	return count
}

// MarkAllRead flips every cached notification to read right away, then
// asks the server. If the server call fails the cache re-fetches so it does
// not keep showing a state the server never accepted; the server error is
// returned either way.
func (c *Cache) MarkAllRead(ctx context.Context) error {
	c.mu.Lock()
	for i := range c.items {
		c.items[i].IsUnread = false
	}
	c.mu.Unlock()

	err := c.fetcher.MarkAllRead(ctx)
	if err == nil {
		return nil
	}

	if refreshErr := c.Refresh(ctx); refreshErr != nil {
		return errors.Join(err, refreshErr)
	}
	return err
}
