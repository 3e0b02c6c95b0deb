package realtime

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// State of a listener's subscription.
type State int32

const (
	StateUnsubscribed State = iota
	StateSubscribed
	StateDispatching
)

func (s State) String() string {
	switch s {
	case StateSubscribed:
		return "subscribed"
	case StateDispatching:
		return "dispatching"
	default:
		return "unsubscribed"
	}
}

// Handler reacts to one change event. Handlers must tolerate duplicates.
type Handler func(ctx context.Context, event ChangeEvent) error

// Listener owns one feed subscription and dispatches its events to a handler, one at a time.
// It ends in StateUnsubscribed when Close is called, its context is cancelled or the feed
// closes the subscription. The subscription is released on every one of those paths.
type Listener struct {
	scope   Scope
	sub     *Subscription
	handler Handler

	state     atomic.Int32
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// Listen subscribes to scope and starts dispatching in the background.
func Listen(ctx context.Context, feed Feed, scope Scope, handler Handler) (*Listener, error) {
	if handler == nil {
		return nil, fmt.Errorf("realtime: listener for %s has no handler", scope.Key())
	}

	sub, err := feed.Subscribe(ctx, scope)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	l := &Listener{
		scope:   scope,
		sub:     sub,
		handler: handler,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	l.state.Store(int32(StateSubscribed))

	go l.run(ctx)
	return l, nil
}

func (l *Listener) run(ctx context.Context) {
	defer func() {
		l.sub.Close()
		l.state.Store(int32(StateUnsubscribed))
		close(l.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-l.sub.C:
			if !ok {
				return
			}
			l.handle(ctx, event)
		case <-l.sub.Resync:
			l.handle(ctx, NewResyncEvent(l.scope))
		}
	}
}

func (l *Listener) handle(ctx context.Context, event ChangeEvent) {
	l.state.Store(int32(StateDispatching))
	l.dispatch(ctx, event)
	l.state.CompareAndSwap(int32(StateDispatching), int32(StateSubscribed))
}

func (l *Listener) dispatch(ctx context.Context, event ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("scope", l.scope.Key()).Msg("realtime handler panicked")
		}
	}()

	if err := l.handler(ctx, event); err != nil {
		log.Warn().Err(err).Str("scope", l.scope.Key()).Str("operation", string(event.Operation)).Msg("realtime handler failed")
	}
}

func (l *Listener) Scope() Scope {
	return l.scope
}

func (l *Listener) State() State {
	return State(l.state.Load())
}

// Done is closed once the listener has released its subscription.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// Close stops dispatching and waits for the subscription to be released.
func (l *Listener) Close() {
	l.closeOnce.Do(l.cancel)
	<-l.done
}
