package live

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscription) Signal {
	t.Helper()

	select {
	case sig, ok := <-sub.Signals():
		require.True(t, ok, "signal channel closed")
		return sig
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for signal for member %s", sub.MemberID())
		return ""
	}
}

func assertNoSignal(t *testing.T, sub *Subscription) {
	t.Helper()

	select {
	case sig, ok := <-sub.Signals():
		if ok {
			t.Fatalf("unexpected signal %q for member %s", sig, sub.MemberID())
		}
	case <-time.After(20 * time.Millisecond):
	}
}

func TestHub_PublishReachesEveryConnectionOfMember(t *testing.T) {
	hub := NewHub()
	t.Cleanup(hub.Close)

	first, err := hub.Subscribe("member-b")
	require.NoError(t, err)
	second, err := hub.Subscribe("member-b")
	require.NoError(t, err)
	other, err := hub.Subscribe("member-a")
	require.NoError(t, err)

	hub.Publish("member-b", SignalNotificationsChanged)

	assert.Equal(t, SignalNotificationsChanged, receive(t, first))
	assert.Equal(t, SignalNotificationsChanged, receive(t, second))
	assertNoSignal(t, other)

	hub.Unsubscribe(first)
	assert.Equal(t, 1, hub.Connections("member-b"))

	hub.Publish("member-b", SignalNotificationsChanged)
	assert.Equal(t, SignalNotificationsChanged, receive(t, second))

	_, ok := <-first.Signals()
	assert.False(t, ok, "unsubscribed connection must be closed")
}

func TestHub_PublishWithoutSubscribersIsNoop(t *testing.T) {
	hub := NewHub()
	t.Cleanup(hub.Close)

	assert.NotPanics(t, func() {
		hub.Publish("nobody", SignalNotificationsChanged)
	})
	assert.Equal(t, 0, hub.Connections("nobody"))

	// A later subscriber does not see signals published before it connected.
	sub, err := hub.Subscribe("nobody")
	require.NoError(t, err)
	assertNoSignal(t, sub)
}

func TestHub_UnsubscribeLastConnection(t *testing.T) {
	hub := NewHub()
	t.Cleanup(hub.Close)

	sub, err := hub.Subscribe("member-a")
	require.NoError(t, err)

	hub.Unsubscribe(sub)
	hub.Unsubscribe(sub)
	hub.Unsubscribe(nil)

	assert.Equal(t, 0, hub.Connections("member-a"))
	assert.NotPanics(t, func() {
		hub.Publish("member-a", SignalNotificationsChanged)
	})
}

func TestHub_PublishNeverBlocksOnSlowConnection(t *testing.T) {
	hub := NewHub()
	t.Cleanup(hub.Close)

	sub, err := hub.Subscribe("member-a")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Publish("member-a", SignalNotificationsChanged)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a connection that is not reading")
	}

	// Pending signals coalesce into one.
	assert.Equal(t, SignalNotificationsChanged, receive(t, sub))
	assertNoSignal(t, sub)
}

func TestHub_CloseDrainsConnections(t *testing.T) {
	hub := NewHub()

	a, err := hub.Subscribe("member-a")
	require.NoError(t, err)
	b, err := hub.Subscribe("member-b")
	require.NoError(t, err)

	hub.Close()
	hub.Close()

	_, ok := <-a.Signals()
	assert.False(t, ok)
	_, ok = <-b.Signals()
	assert.False(t, ok)

	_, err = hub.Subscribe("member-a")
	assert.ErrorIs(t, err, ErrHubClosed)

	assert.NotPanics(t, func() {
		hub.Publish("member-a", SignalNotificationsChanged)
		hub.Unsubscribe(a)
	})
}

func TestHub_ConcurrentSubscribePublishUnsubscribe(t *testing.T) {
	hub := NewHub()
	t.Cleanup(hub.Close)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		memberID := fmt.Sprintf("member-%d", i%5)

		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				sub, err := hub.Subscribe(memberID)
				if !assert.NoError(t, err) {
					return
				}
				hub.Publish(memberID, SignalNotificationsChanged)
				hub.Unsubscribe(sub)
			}
		}()
	}
	wg.Wait()

	for i := 0; i < 5; i++ {
		assert.Equal(t, 0, hub.Connections(fmt.Sprintf("member-%d", i)))
	}
}
