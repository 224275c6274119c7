package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultRedisChannel is the Redis pub/sub channel shared by all instances.
	DefaultRedisChannel = "teamtask:live"

	redisQueueSize      = 256
	redisPublishTimeout = 2 * time.Second
)

// ErrBridgeClosed is returned by Start after Close.
var ErrBridgeClosed = errors.New("redis bridge is closed")

type redisMessage struct {
	Origin   string `json:"origin"`
	MemberID string `json:"member_id"`
	Signal   Signal `json:"signal"`
}

// RedisBridge relays signals between server instances over Redis pub/sub.
// Publish delivers to the local hub right away and forwards the signal to
// Redis; signals from other instances are relayed into the local hub.
type RedisBridge struct {
	rdb     *redis.Client
	hub     *Hub
	channel string
	origin  string

	mu     sync.RWMutex
	closed bool
	queue  chan redisMessage

	pubsub *redis.PubSub
	wg     sync.WaitGroup
}

// NewRedisBridge creates a bridge for hub. Call Start before publishing
// across instances.
func NewRedisBridge(rdb *redis.Client, hub *Hub, channel string) *RedisBridge {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisBridge{
		rdb:     rdb,
		hub:     hub,
		channel: channel,
		origin:  uuid.NewString(),
		queue:   make(chan redisMessage, redisQueueSize),
	}
}

// Start subscribes to the Redis channel and launches the relay and
// publisher goroutines. It returns once the subscription is confirmed.
func (b *RedisBridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBridgeClosed
	}
	if b.pubsub != nil {
		return nil
	}

	pubsub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe to %s: %w", b.channel, err)
	}
	b.pubsub = pubsub

	b.wg.Add(2)
	go b.relay(pubsub.Channel())
	go b.forward()

	slog.Info("redis live bridge started", "channel", b.channel, "origin", b.origin)
	return nil
}

// Publish implements Publisher.
func (b *RedisBridge) Publish(memberID string, signal Signal) {
	b.hub.Publish(memberID, signal)

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	select {
	case b.queue <- redisMessage{Origin: b.origin, MemberID: memberID, Signal: signal}:
	default:
		slog.Warn("redis live queue full, signal dropped", "member_id", memberID)
	}
}

// Close stops relaying, flushes queued signals and waits for the goroutines.
func (b *RedisBridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.queue)
	pubsub := b.pubsub
	b.mu.Unlock()

	var err error
	if pubsub != nil {
		err = pubsub.Close()
	}
	b.wg.Wait()

	slog.Info("redis live bridge stopped")
	return err
}

// forward drains the publish queue until Close.
func (b *RedisBridge) forward() {
	defer b.wg.Done()

	for msg := range b.queue {
		payload, err := json.Marshal(msg)
		if err != nil {
			slog.Error("encode live signal", "error", err)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), redisPublishTimeout)
		err = b.rdb.Publish(ctx, b.channel, payload).Err()
		cancel()
		if err != nil {
			slog.Warn("publish live signal to redis failed",
				"member_id", msg.MemberID,
				"error", err,
			)
		}
	}
}

// relay hands signals from other instances to the local hub.
func (b *RedisBridge) relay(messages <-chan *redis.Message) {
	defer b.wg.Done()

	for m := range messages {
		var msg redisMessage
		if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
			slog.Warn("malformed live signal from redis", "error", err)
			continue
		}
		if msg.Origin == b.origin || msg.MemberID == "" {
			continue
		}
		b.hub.Publish(msg.MemberID, msg.Signal)
	}
}
