package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/mtlprog/teamtask/internal/domain"
	"github.com/mtlprog/teamtask/internal/live"
	"golang.org/x/sync/errgroup"
)

// NotificationCreator persists one notification per (recipient, event).
type NotificationCreator interface {
	Create(ctx context.Context, recipientID string, ref domain.EventRef) (*domain.Notification, error)
}

// RecipientResult is the outcome of fan-out for a single recipient.
type RecipientResult struct {
	RecipientID    string
	NotificationID string
	Err            error
}

// DispatchReport lists the per-recipient outcomes of one dispatch in the
// order recipients first appeared in the event.
type DispatchReport struct {
	EventID string
	Results []RecipientResult
}

// Failed returns the results whose notification could not be stored.
func (r DispatchReport) Failed() []RecipientResult {
	var failed []RecipientResult
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// Dispatcher fans one task event out into per-recipient notifications and
// live signals.
type Dispatcher struct {
	store       NotificationCreator
	publisher   live.Publisher
	concurrency int
}

// NewDispatcher creates a Dispatcher. concurrency bounds the recipients served
// at once; values below 1 mean one at a time.
func NewDispatcher(store NotificationCreator, publisher live.Publisher, concurrency int) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Dispatcher{
		store:       store,
		publisher:   publisher,
		concurrency: concurrency,
	}
}

// Dispatch creates a notification for each unique recipient and, once it is
// stored, signals that recipient's live connections. Recipients are handled
// independently: a failure is recorded in the report and does not stop the
// others. Dispatch is not cancelled with ctx.
func (d *Dispatcher) Dispatch(ctx context.Context, event domain.TaskEvent) DispatchReport {
	recipients := uniqueRecipients(event.RecipientIDs)
	report := DispatchReport{
		EventID: event.ID,
		Results: make([]RecipientResult, len(recipients)),
	}
	if len(recipients) == 0 {
		return report
	}

	ctx = context.WithoutCancel(ctx)
	ref := event.Ref()
	started := time.Now()

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, recipientID := range recipients {
		g.Go(func() error {
			report.Results[i] = d.deliver(ctx, recipientID, ref)
			return nil
		})
	}
	_ = g.Wait()

	failed := report.Failed()
	for _, res := range failed {
		slog.Error("notification fan-out failed for recipient",
			"event_id", event.ID,
			"task_id", event.TaskID,
			"recipient_id", res.RecipientID,
			"error", res.Err,
		)
	}

	slog.Info("notification fan-out finished",
		"event_id", event.ID,
		"task_id", event.TaskID,
		"kind", event.Kind,
		"recipients", len(recipients),
		"failed", len(failed),
		"duration", time.Since(started),
	)

	return report
}

// deliver is one recipient's unit of work: persist, then push.
func (d *Dispatcher) deliver(ctx context.Context, recipientID string, ref domain.EventRef) RecipientResult {
	res := RecipientResult{RecipientID: recipientID}

	n, err := d.store.Create(ctx, recipientID, ref)
	if err != nil {
		res.Err = err
		return res
	}
	res.NotificationID = n.ID

	d.publish(recipientID)
	return res
}

// publish is best-effort and never fails the dispatch.
func (d *Dispatcher) publish(recipientID string) {
	if d.publisher == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("live publish panicked", "recipient_id", recipientID, "panic", r)
		}
	}()
	d.publisher.Publish(recipientID, live.SignalNotificationsChanged)
}

// uniqueRecipients drops duplicates, keeping the first occurrence. Empty ids
// are kept so the store can reject them per recipient.
func uniqueRecipients(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
