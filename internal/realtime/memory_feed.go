package realtime

import (
	"context"
	"sync"
)

const defaultBuffer = 64

// MemoryFeed fans events out to subscribers inside one process.
type MemoryFeed struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*memorySub
	buffer int
}

type memorySub struct {
	scope  Scope
	ch     chan ChangeEvent
	resync chan struct{}
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[int]*memorySub), buffer: defaultBuffer}
}

func (f *MemoryFeed) Subscribe(ctx context.Context, scope Scope) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	sub := &memorySub{scope: scope, ch: make(chan ChangeEvent, f.buffer), resync: make(chan struct{}, 1)}
	f.subs[id] = sub
	f.mu.Unlock()

	return newSubscription(scope, sub.ch, sub.resync, func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
		close(sub.ch)
	}), nil
}

// Publish never blocks. A subscriber whose buffer is full loses the event and is
// signalled to resync instead.
func (f *MemoryFeed) Publish(ctx context.Context, event ChangeEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, sub := range f.subs {
		if !event.Matches(sub.scope) {
			continue
		}
		deliver(sub.scope, sub.ch, sub.resync, event)
	}
	return nil
}

// Subscribers returns the number of open subscriptions.
func (f *MemoryFeed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}
