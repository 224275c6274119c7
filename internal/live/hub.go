// Package live pushes invalidation signals to the connected sessions of a
// member. Signals carry no payload; a client that receives one re-fetches its
// notifications. Delivery is best-effort: nothing is queued for members
// without an open connection.
package live

import (
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
)

// Signal is the kind of invalidation pushed to a connection.
type Signal string

// SignalNotificationsChanged tells the client to re-fetch its notifications.
const SignalNotificationsChanged Signal = "notifications-changed"

// ErrHubClosed is returned by Subscribe after Close.
var ErrHubClosed = errors.New("live hub is closed")

const shardCount = 32

// Publisher sends a signal to every connection of a member without blocking.
type Publisher interface {
	Publish(memberID string, signal Signal)
}

// Subscription is one open connection of a member.
type Subscription struct {
	memberID string
	signals  chan Signal

	mu     sync.Mutex
	closed bool
}

// MemberID returns the member the subscription belongs to.
func (s *Subscription) MemberID() string {
	return s.memberID
}

// Signals returns the channel signals arrive on. It is closed when the
// subscription is removed or the hub shuts down.
func (s *Subscription) Signals() <-chan Signal {
	return s.signals
}

// offer hands the signal over without blocking. A full buffer already holds
// a pending invalidation, so the new one is dropped.
func (s *Subscription) offer(signal Signal) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	select {
	case s.signals <- signal:
		return true
	default:
		return false
	}
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.signals)
}

type shard struct {
	mu      sync.RWMutex
	members map[string]map[*Subscription]struct{}
}

// Hub is the per-instance subscription table. Members are spread over
// independently locked shards so publishes to unrelated members do not
// contend on one lock.
type Hub struct {
	shards [shardCount]*shard

	closeMu sync.RWMutex
	closed  bool
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	h := &Hub{}
	for i := range h.shards {
		h.shards[i] = &shard{members: make(map[string]map[*Subscription]struct{})}
	}
	return h
}

func (h *Hub) shardFor(memberID string) *shard {
	f := fnv.New32a()
	_, _ = f.Write([]byte(memberID))
	return h.shards[f.Sum32()%shardCount]
}

// Subscribe registers a new connection for the member.
func (h *Hub) Subscribe(memberID string) (*Subscription, error) {
	h.closeMu.RLock()
	defer h.closeMu.RUnlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	sub := &Subscription{
		memberID: memberID,
		signals:  make(chan Signal, 1),
	}

	s := h.shardFor(memberID)
	s.mu.Lock()
	conns, ok := s.members[memberID]
	if !ok {
		conns = make(map[*Subscription]struct{})
		s.members[memberID] = conns
	}
	conns[sub] = struct{}{}
	s.mu.Unlock()

	slog.Debug("live subscription opened", "member_id", memberID)
	return sub, nil
}

// Unsubscribe removes a single connection and closes its signal channel.
// Removing an unknown or already removed subscription is a no-op.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	s := h.shardFor(sub.memberID)
	s.mu.Lock()
	if conns, ok := s.members[sub.memberID]; ok {
		delete(conns, sub)
		if len(conns) == 0 {
			delete(s.members, sub.memberID)
		}
	}
	s.mu.Unlock()

	sub.close()
	slog.Debug("live subscription closed", "member_id", sub.memberID)
}

// Publish offers the signal to every connection of the member. It never
// blocks and is a silent no-op when the member has no connection.
func (h *Hub) Publish(memberID string, signal Signal) {
	s := h.shardFor(memberID)

	s.mu.RLock()
	conns := make([]*Subscription, 0, len(s.members[memberID]))
	for sub := range s.members[memberID] {
		conns = append(conns, sub)
	}
	s.mu.RUnlock()

	delivered := 0
	for _, sub := range conns {
		if sub.offer(signal) {
			delivered++
		}
	}

	if len(conns) > 0 {
		slog.Debug("live signal published",
			"member_id", memberID,
			"signal", signal,
			"connections", len(conns),
			"delivered", delivered,
		)
	}
}

// Connections returns the number of open connections of the member.
func (h *Hub) Connections(memberID string) int {
	s := h.shardFor(memberID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members[memberID])
}

// Close closes every open subscription and rejects new ones.
func (h *Hub) Close() {
	h.closeMu.Lock()
	if h.closed {
		h.closeMu.Unlock()
		return
	}
	h.closed = true
	h.closeMu.Unlock()

	total := 0
	for _, s := range h.shards {
		s.mu.Lock()
		for memberID, conns := range s.members {
			for sub := range conns {
				sub.close()
				total++
			}
			delete(s.members, memberID)
		}
		s.mu.Unlock()
	}

	slog.Info("live hub closed", "connections", total)
}
