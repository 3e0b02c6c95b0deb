// Package queue moves background work through a Redis-backed task queue.
package queue

import (
	"context"
	"time"
)

// Task is a background job: a stable type name and an opaque payload.
type Task struct {
	Type    string
	Payload []byte
}

// Handler processes a Task. A non-nil error schedules a retry. Handlers must be idempotent.
type Handler func(ctx context.Context, task Task) error

// EnqueueOption controls enqueue behavior. Zero values mean unspecified.
type EnqueueOption struct {
	Queue     string
	ProcessIn time.Duration
	MaxRetry  int
	TaskID    string
	Timeout   time.Duration
	Retention time.Duration
}

type Client interface {
	Enqueue(ctx context.Context, t Task, opts ...EnqueueOption) (id string, err error)
	Close() error
}

// Server blocks in Run until its context is cancelled.
type Server interface {
	Register(taskType string, h Handler)
	Run(ctx context.Context) error
}
