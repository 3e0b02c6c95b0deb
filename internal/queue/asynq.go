package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// AsynqClient implements Client using github.com/hibiken/asynq.
type AsynqClient struct {
	client *asynq.Client
}

var _ Client = (*AsynqClient)(nil)

// NewAsynqClient connects to the Redis instance at redisURL.
func NewAsynqClient(redisURL string) (*AsynqClient, error) {
	opt, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &AsynqClient{client: asynq.NewClient(opt)}, nil
}

func (a *AsynqClient) Enqueue(ctx context.Context, t Task, opts ...EnqueueOption) (string, error) {
	if t.Type == "" {
		return "", errors.New("asynq: task type is required")
	}

	at := asynq.NewTask(t.Type, t.Payload)
	info, err := a.client.EnqueueContext(ctx, at, enqueueOptions(opts)...)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

func (a *AsynqClient) Close() error {
	return a.client.Close()
}

// enqueueOptions maps the first option onto asynq options.
func enqueueOptions(opts []EnqueueOption) []asynq.Option {
	if len(opts) == 0 {
		return nil
	}

	op := opts[0]
	var asynqOpts []asynq.Option
	if op.Queue != "" {
		asynqOpts = append(asynqOpts, asynq.Queue(op.Queue))
	}
	if op.ProcessIn > 0 {
		asynqOpts = append(asynqOpts, asynq.ProcessIn(op.ProcessIn))
	}
	if op.MaxRetry > 0 {
		asynqOpts = append(asynqOpts, asynq.MaxRetry(op.MaxRetry))
	}
	if op.TaskID != "" {
		asynqOpts = append(asynqOpts, asynq.TaskID(op.TaskID))
	}
	if op.Timeout > 0 {
		asynqOpts = append(asynqOpts, asynq.Timeout(op.Timeout))
	}
	if op.Retention > 0 {
		asynqOpts = append(asynqOpts, asynq.Retention(op.Retention))
	}
	return asynqOpts
}

// AsynqServer implements Server using github.com/hibiken/asynq.
type AsynqServer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

var _ Server = (*AsynqServer)(nil)

// NewAsynqServer consumes the given queues with equal weight.
func NewAsynqServer(redisURL string, concurrency int, queues ...string) (*AsynqServer, error) {
	opt, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = 10
	}

	weights := map[string]int{"default": 1}
	for _, q := range queues {
		if q != "" {
			weights[q] = 1
		}
	}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      weights,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			log.Warn().Err(err).Str("task", task.Type()).Int("retried", retried).Int("max_retry", maxRetry).Msg("task failed")
		}),
	})
	return &AsynqServer{server: srv, mux: asynq.NewServeMux()}, nil
}

func (s *AsynqServer) Register(taskType string, h Handler) {
	s.mux.HandleFunc(taskType, func(ctx context.Context, t *asynq.Task) error {
		return h(ctx, Task{Type: t.Type(), Payload: t.Payload()})
	})
}

// Run starts the workers and blocks until ctx is cancelled, then shuts down gracefully.
func (s *AsynqServer) Run(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return err
	}
	<-ctx.Done()
	s.server.Shutdown()
	return nil
}

func parseRedisURL(redisURL string) (asynq.RedisConnOpt, error) {
	if redisURL == "" {
		return nil, errors.New("asynq: redis url is not set")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse redis url: %w", err)
	}
	return opt, nil
}
