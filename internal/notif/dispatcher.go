package notif

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"revline/internal/queue"
)

// TaskDeliver is the queue task type carrying one encoded Event.
const TaskDeliver = "notif:deliver"

// Dispatcher hands an event to the delivery pipeline without waiting for it to be delivered.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event) error
}

// ManagerDispatcher delivers through the in-process worker pool.
type ManagerDispatcher struct {
	manager *NotificationManager
}

func NewManagerDispatcher(manager *NotificationManager) *ManagerDispatcher {
	return &ManagerDispatcher{manager: manager}
}

func (d *ManagerDispatcher) Dispatch(_ context.Context, event Event) error {
	if !d.manager.NotifyAsync(event) {
		return fmt.Errorf("notification %s dropped", event.ID)
	}
	return nil
}

// DiscardDispatcher drops every event. Used when notifications are switched off.
type DiscardDispatcher struct{}

func (DiscardDispatcher) Dispatch(_ context.Context, event Event) error {
	log.Debug().Str("type", string(event.Type())).Msg("notifications disabled, event discarded")
	return nil
}

// AsynqDispatcher defers delivery to the notification worker through the task queue.
type AsynqDispatcher struct {
	client     queue.Client
	queueName  string
	maxRetries int
}

func NewAsynqDispatcher(client queue.Client, queueName string, maxRetries int) *AsynqDispatcher {
	return &AsynqDispatcher{client: client, queueName: queueName, maxRetries: maxRetries}
}

func (d *AsynqDispatcher) Dispatch(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	id, err := d.client.Enqueue(ctx, queue.Task{Type: TaskDeliver, Payload: payload}, queue.EnqueueOption{
		Queue:     d.queueName,
		MaxRetry:  d.maxRetries,
		TaskID:    event.ID,
		Timeout:   30 * time.Second,
		Retention: time.Hour,
	})
	if err != nil {
		return fmt.Errorf("enqueue notification %s: %w", event.ID, err)
	}

	log.Debug().Str("task_id", id).Str("type", string(event.Type())).Msg("notification enqueued")
	return nil
}

// NewDeliveryHandler runs queued events through manager's observers synchronously so failures are retried.
func NewDeliveryHandler(manager *NotificationManager) queue.Handler {
	return func(ctx context.Context, task queue.Task) error {
		var event Event
		if err := json.Unmarshal(task.Payload, &event); err != nil {
			// A payload that will never decode is not worth retrying.
			log.Error().Err(err).Str("task_type", task.Type).Msg("discarding undecodable notification")
			return nil
		}
		return manager.Notify(ctx, event)
	}
}
