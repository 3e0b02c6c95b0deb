package notif

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Observer is one delivery channel for notifications.
type Observer interface {
	Name() string
	Update(ctx context.Context, event Event) error
}

// NotificationManager fans events out to its observers, either inline or through a worker pool.
type NotificationManager struct {
	observers    map[string]Observer
	eventChannel chan Event
	workerPool   int
	ctx          context.Context
	cancel       context.CancelFunc
	mu           sync.RWMutex
	wg           sync.WaitGroup
	once         sync.Once
}

func NewNotificationManager(workerPoolSize, bufferSize int) *NotificationManager {
	if workerPoolSize <= 0 {
		workerPoolSize = 1
	}
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	ctx, cancel := context.WithCancel(context.Background())

	nm := &NotificationManager{
		observers:    make(map[string]Observer),
		eventChannel: make(chan Event, bufferSize),
		workerPool:   workerPoolSize,
		ctx:          ctx,
		cancel:       cancel,
	}

	for i := 0; i < workerPoolSize; i++ {
		nm.wg.Add(1)
		go nm.processEvents()
	}

	return nm
}

func (nm *NotificationManager) Subscribe(observer Observer) {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.observers[observer.Name()] = observer
	log.Debug().Str("observer", observer.Name()).Msg("observer subscribed")
}

func (nm *NotificationManager) Unsubscribe(observer Observer) {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	delete(nm.observers, observer.Name())
	log.Debug().Str("observer", observer.Name()).Msg("observer unsubscribed")
}

// Observers lists subscribed observer names in sorted order.
func (nm *NotificationManager) Observers() []string {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	names := make([]string, 0, len(nm.observers))
	for name := range nm.observers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Notify runs every observer and joins their failures. One failing observer does not stop the others.
func (nm *NotificationManager) Notify(ctx context.Context, event Event) error {
	nm.mu.RLock()
	observers := make([]Observer, 0, len(nm.observers))
	for _, obs := range nm.observers {
		observers = append(observers, obs)
	}
	nm.mu.RUnlock()

	var errs []error
	for _, observer := range observers {
		if err := observer.Update(ctx, event); err != nil {
			log.Warn().Err(err).
				Str("observer", observer.Name()).
				Str("notification_id", event.ID).
				Msg("observer update failed")
			errs = append(errs, fmt.Errorf("%s: %w", observer.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// NotifyAsync queues event for the worker pool. It reports false when the event was dropped.
func (nm *NotificationManager) NotifyAsync(event Event) bool {
	select {
	case <-nm.ctx.Done():
		return false
	default:
	}

	select {
	case nm.eventChannel <- event:
		return true
	default:
		log.Warn().Str("type", string(event.Type())).Str("notification_id", event.ID).
			Msg("notification channel full, dropping event")
		return false
	}
}

func (nm *NotificationManager) processEvents() {
	defer nm.wg.Done()

	for {
		select {
		case event := <-nm.eventChannel:
			_ = nm.Notify(nm.ctx, event)
		case <-nm.ctx.Done():
			return
		}
	}
}

// Shutdown stops the workers. Events still buffered are discarded.
func (nm *NotificationManager) Shutdown() {
	nm.once.Do(func() {
		nm.cancel()
		nm.wg.Wait()
		log.Info().Msg("notification manager shutdown complete")
	})
}
