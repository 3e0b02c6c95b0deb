package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const channelPrefix = "realtime:"

// DefaultFilterColumns are the columns a RedisFeed publishes per-value channels for.
var DefaultFilterColumns = map[string][]string{
	TableMessages: {"conversation_id"},
}

// RedisFeed carries change events across nodes over Redis pub/sub.
// Every event goes to realtime:{table}, and to realtime:{table}:{column}={value}
// for each configured filter column present in the row.
type RedisFeed struct {
	client        redis.UniversalClient
	filterColumns map[string][]string
	buffer        int
}

var _ Feed = (*RedisFeed)(nil)

func NewRedisFeed(client redis.UniversalClient, filterColumns map[string][]string) *RedisFeed {
	if filterColumns == nil {
		filterColumns = DefaultFilterColumns
	}
	return &RedisFeed{client: client, filterColumns: filterColumns, buffer: defaultBuffer}
}

// Channel returns the pub/sub channel that carries scope.
func Channel(scope Scope) string {
	return channelPrefix + scope.Key()
}

// channelsFor lists every channel event must be published on.
func (f *RedisFeed) channelsFor(event ChangeEvent) []string {
	channels := []string{Channel(TableScope(event.Table))}
	for _, column := range f.filterColumns[event.Table] {
		if v, ok := event.Column(column); ok && v != "" {
			channels = append(channels, Channel(Scope{Table: event.Table, Filter: &Filter{Column: column, Value: v}}))
		}
	}
	return channels
}

func (f *RedisFeed) Publish(ctx context.Context, event ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("realtime: encode event: %w", err)
	}

	pipe := f.client.Pipeline()
	for _, ch := range f.channelsFor(event) {
		pipe.Publish(ctx, ch, payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("realtime: publish: %w", err)
	}
	return nil
}

func (f *RedisFeed) Subscribe(ctx context.Context, scope Scope) (*Subscription, error) {
	ps := f.client.Subscribe(ctx, Channel(scope))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("realtime: subscribe %s: %w", scope.Key(), err)
	}

	out := make(chan ChangeEvent, f.buffer)
	resync := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		defer close(out)
		in := ps.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				var event ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed realtime payload")
					continue
				}
				deliver(scope, out, resync, event)
			}
		}
	}()

	return newSubscription(scope, out, resync, func() {
		close(done)
		if err := ps.Close(); err != nil {
			log.Warn().Err(err).Str("scope", scope.Key()).Msg("realtime unsubscribe failed")
		}
	}), nil
}
