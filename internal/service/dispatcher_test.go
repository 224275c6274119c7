package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mtlprog/teamtask/internal/domain"
	"github.com/mtlprog/teamtask/internal/live"
	"github.com/mtlprog/teamtask/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory NotificationCreator that enforces one record
// per (recipient, event).
type fakeStore struct {
	mu      sync.Mutex
	records map[string]*domain.Notification // key: recipient/event
	fail    map[string]error                // recipient -> error
	calls   map[string]int

	// onCreate runs after a record is stored.
	onCreate func(recipientID string)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[string]*domain.Notification),
		fail:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

func (s *fakeStore) Create(_ context.Context, recipientID string, ref domain.EventRef) (*domain.Notification, error) {
	s.mu.Lock()
	s.calls[recipientID]++
	if recipientID == "" {
		s.mu.Unlock()
		return nil, domain.ErrMissingRecipient
	}
	if err, ok := s.fail[recipientID]; ok {
		s.mu.Unlock()
		return nil, err
	}
	key := recipientID + "/" + ref.EventID
	n, ok := s.records[key]
	if !ok {
		n = &domain.Notification{
			ID:          fmt.Sprintf("n-%d", len(s.records)+1),
			RecipientID: recipientID,
			Event:       ref,
			IsUnread:    true,
			CreatedAt:   time.Now(),
		}
		s.records[key] = n
	}
	onCreate := s.onCreate
	s.mu.Unlock()

	if onCreate != nil {
		onCreate(recipientID)
	}
	return n, nil
}

func (s *fakeStore) owners() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int)
	for _, n := range s.records {
		out[n.RecipientID]++
	}
	return out
}

func (s *fakeStore) has(recipientID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.records {
		if n.RecipientID == recipientID {
			return true
		}
	}
	return false
}

// recordingPublisher records every publish.
type recordingPublisher struct {
	mu        sync.Mutex
	published []string
	before    func(recipientID string)
	panicFor  string
}

func (p *recordingPublisher) Publish(memberID string, signal live.Signal) {
	if p.before != nil {
		p.before(memberID)
	}
	if memberID == p.panicFor {
		panic("connection gone")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, memberID+":"+string(signal))
}

func (p *recordingPublisher) list() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.published...)
}

func taskEvent(recipients ...string) domain.TaskEvent {
	return domain.TaskEvent{
		ID:           "event-1",
		Kind:         domain.NotificationKindTaskAssigned,
		TaskID:       "task-1",
		TaskTitle:    "Write report",
		RecipientIDs: recipients,
	}
}

func TestDispatch_DuplicateRecipientsCollapse(t *testing.T) {
	store := newFakeStore()
	pub := &recordingPublisher{}
	d := service.NewDispatcher(store, pub, 4)

	report := d.Dispatch(context.Background(), taskEvent("A", "B", "A"))

	require.Len(t, report.Results, 2)
	assert.Equal(t, "A", report.Results[0].RecipientID)
	assert.Equal(t, "B", report.Results[1].RecipientID)
	assert.Empty(t, report.Failed())

	assert.Equal(t, map[string]int{"A": 1, "B": 1}, store.owners())
	assert.Equal(t, 1, store.calls["A"], "store is called once per unique recipient")
	assert.ElementsMatch(t, []string{
		"A:" + string(live.SignalNotificationsChanged),
		"B:" + string(live.SignalNotificationsChanged),
	}, pub.list())
}

func TestDispatch_EmptyRecipientsIsNoop(t *testing.T) {
	store := newFakeStore()
	pub := &recordingPublisher{}
	d := service.NewDispatcher(store, pub, 4)

	report := d.Dispatch(context.Background(), taskEvent())

	assert.Empty(t, report.Results)
	assert.Empty(t, report.Failed())
	assert.Empty(t, store.owners())
	assert.Empty(t, pub.list())
}

func TestDispatch_RecordCountEqualsUniqueRecipients(t *testing.T) {
	for n := 1; n <= 20; n++ {
		ids := make([]string, 0, n*2)
		for i := 0; i < n; i++ {
			ids = append(ids, fmt.Sprintf("m-%d", i))
		}
		ids = append(ids, ids[:n/2]...)

		store := newFakeStore()
		d := service.NewDispatcher(store, &recordingPublisher{}, 3)
		report := d.Dispatch(context.Background(), taskEvent(ids...))

		assert.Len(t, report.Results, n)
		assert.Len(t, store.owners(), n)
		for _, count := range store.owners() {
			assert.Equal(t, 1, count)
		}
	}
}

func TestDispatch_StoreFailureDoesNotAbortOthers(t *testing.T) {
	store := newFakeStore()
	store.fail["B"] = fmt.Errorf("insert: %w", domain.ErrTransientStore)
	pub := &recordingPublisher{}
	d := service.NewDispatcher(store, pub, 1)

	report := d.Dispatch(context.Background(), taskEvent("A", "B", "", "C"))

	failed := report.Failed()
	require.Len(t, failed, 2)
	assert.Equal(t, "B", failed[0].RecipientID)
	assert.ErrorIs(t, failed[0].Err, domain.ErrTransientStore)
	assert.Equal(t, "", failed[1].RecipientID)
	assert.ErrorIs(t, failed[1].Err, domain.ErrValidation)

	assert.True(t, store.has("A"))
	assert.True(t, store.has("C"))

	// No live push for a recipient without a stored record.
	assert.ElementsMatch(t, []string{
		"A:" + string(live.SignalNotificationsChanged),
		"C:" + string(live.SignalNotificationsChanged),
	}, pub.list())
}

func TestDispatch_PublishedOnlyAfterRecordExists(t *testing.T) {
	store := newFakeStore()
	pub := &recordingPublisher{}
	pub.before = func(recipientID string) {
		assert.True(t, store.has(recipientID), "publish for %s before its record was stored", recipientID)
	}
	d := service.NewDispatcher(store, pub, 8)

	report := d.Dispatch(context.Background(), taskEvent("A", "B", "C", "D"))

	assert.Empty(t, report.Failed())
	assert.Len(t, pub.list(), 4)
}

func TestDispatch_PublishFailureKeepsNotification(t *testing.T) {
	store := newFakeStore()
	pub := &recordingPublisher{panicFor: "B"}
	d := service.NewDispatcher(store, pub, 2)

	report := d.Dispatch(context.Background(), taskEvent("A", "B", "C"))

	assert.Empty(t, report.Failed())
	assert.True(t, store.has("B"))
	assert.NotEmpty(t, report.Results[1].NotificationID)
	assert.ElementsMatch(t, []string{
		"A:" + string(live.SignalNotificationsChanged),
		"C:" + string(live.SignalNotificationsChanged),
	}, pub.list())
}

func TestDispatch_NotCancelledByCaller(t *testing.T) {
	store := newFakeStore()
	ctx, cancel := context.WithCancel(context.Background())

	var once sync.Once
	store.onCreate = func(string) { once.Do(cancel) }

	d := service.NewDispatcher(creatorHonouringContext{store}, &recordingPublisher{}, 1)
	report := d.Dispatch(ctx, taskEvent("A", "B", "C"))

	assert.Empty(t, report.Failed())
	assert.Len(t, store.owners(), 3)
}

// creatorHonouringContext fails like a real store would on a cancelled context.
type creatorHonouringContext struct {
	*fakeStore
}

func (c creatorHonouringContext) Create(ctx context.Context, recipientID string, ref domain.EventRef) (*domain.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.fakeStore.Create(ctx, recipientID, ref)
}

func TestDispatch_RecipientsRunConcurrently(t *testing.T) {
	store := newFakeStore()
	release := make(chan struct{})
	var arrived sync.WaitGroup
	arrived.Add(3)
	store.onCreate = func(string) {
		arrived.Done()
		<-release
	}

	d := service.NewDispatcher(store, &recordingPublisher{}, 3)
	done := make(chan service.DispatchReport, 1)
	go func() { done <- d.Dispatch(context.Background(), taskEvent("A", "B", "C")) }()

	waited := make(chan struct{})
	go func() { arrived.Wait(); close(waited) }()
	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatal("recipients were not processed concurrently")
	}
	close(release)

	select {
	case report := <-done:
		assert.Empty(t, report.Failed())
	case <-time.After(time.Second):
		t.Fatal("dispatch did not finish")
	}
}

func TestDispatch_NilPublisher(t *testing.T) {
	store := newFakeStore()
	d := service.NewDispatcher(store, nil, 0)

	report := d.Dispatch(context.Background(), taskEvent("A"))

	assert.Empty(t, report.Failed())
	assert.True(t, store.has("A"))
}

func TestDispatchReport_Failed(t *testing.T) {
	boom := errors.New("boom")
	report := service.DispatchReport{Results: []service.RecipientResult{
		{RecipientID: "A", NotificationID: "1"},
		{RecipientID: "B", Err: boom},
	}}

	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "B", failed[0].RecipientID)
}
