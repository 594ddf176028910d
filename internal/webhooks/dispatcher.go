package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// SubscriberStore is the subset of Repository the dispatcher needs.
type SubscriberStore interface {
	ActiveSubscribers(ctx context.Context, tenantID, event string) ([]Subscriber, error)
	InsertLog(ctx context.Context, log DispatchLog) (string, error)
}

// Enqueuer submits tasks to the queue. Satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher fans a finished report payload out to every active
// subscriber of the event. Each delivery gets its own pending log row
// and its own queue task so retries stay independent.
type Dispatcher struct {
	store  SubscriberStore
	queue  Enqueuer
	logger *slog.Logger
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(store SubscriberStore, queue Enqueuer, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{store: store, queue: queue, logger: logger}
}

// Dispatch enqueues a delivery per subscriber. The payload is
// serialised once; per-subscriber failures are collected so one bad
// endpoint never blocks the rest.
func (d *Dispatcher) Dispatch(ctx context.Context, tenantID, event string, payload any) error {
	if d == nil || d.store == nil || d.queue == nil {
		return errors.New("webhooks: dispatcher not configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}
	subs, err := d.store.ActiveSubscribers(ctx, tenantID, event)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return nil
	}

	var errs []error
	for _, sub := range subs {
		if err := d.enqueueOne(ctx, sub, event, body); err != nil {
			errs = append(errs, fmt.Errorf("subscriber %s: %w", sub.ID, err))
			d.log().Error("enqueue webhook delivery",
				slog.String("subscriber_id", sub.ID),
				slog.String("event", event),
				slog.Any("error", err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) enqueueOne(ctx context.Context, sub Subscriber, event string, body []byte) error {
	logID, err := d.store.InsertLog(ctx, DispatchLog{
		TenantID:     sub.TenantID,
		SubscriberID: sub.ID,
		Event:        event,
		URL:          sub.URL,
		Status:       StatusPending,
	})
	if err != nil {
		return err
	}
	task, err := NewDeliveryTask(DeliveryPayload{
		LogID:        logID,
		TenantID:     sub.TenantID,
		SubscriberID: sub.ID,
		Event:        event,
		URL:          sub.URL,
		Secret:       sub.Secret,
		Body:         body,
	})
	if err != nil {
		return err
	}
	_, err = d.queue.EnqueueContext(ctx, task)
	return err
}

func (d *Dispatcher) log() *slog.Logger {
	if d != nil && d.logger != nil {
		return d.logger
	}
	return slog.Default()
}
