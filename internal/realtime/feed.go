// Package realtime carries row-level change events from writers to subscribed listeners.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

type Operation string

const (
	OperationInsert Operation = "INSERT"
	OperationUpdate Operation = "UPDATE"
	OperationDelete Operation = "DELETE"

	// OperationResync is raised by the listener itself after the feed dropped events for its
	// subscription. Handlers recompute whatever the lost events would have changed.
	OperationResync Operation = "RESYNC"
)

// TableMessages is the only table the messaging core subscribes to.
const TableMessages = "messages"

// Filter narrows a scope to rows whose Column equals Value.
type Filter struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

// Scope selects the events a subscription receives. A nil Filter means every row of Table.
type Scope struct {
	Table  string  `json:"table"`
	Filter *Filter `json:"filter,omitempty"`
}

func TableScope(table string) Scope {
	return Scope{Table: table}
}

func ConversationScope(conversationID string) Scope {
	return Scope{Table: TableMessages, Filter: &Filter{Column: "conversation_id", Value: conversationID}}
}

// Key identifies the scope. Two scopes with the same key deliver the same events.
func (s Scope) Key() string {
	if s.Filter == nil {
		return s.Table
	}
	return fmt.Sprintf("%s:%s=%s", s.Table, s.Filter.Column, s.Filter.Value)
}

// ChangeEvent is one row-level change. NewRow holds the row as written, JSON encoded.
type ChangeEvent struct {
	Operation Operation       `json:"operation"`
	Table     string          `json:"table"`
	NewRow    json.RawMessage `json:"new_row"`
}

// NewChangeEvent encodes row into a change event for table.
func NewChangeEvent(op Operation, table string, row interface{}) (ChangeEvent, error) {
	raw, err := json.Marshal(row)
	if err != nil {
		return ChangeEvent{}, fmt.Errorf("encode %s row: %w", table, err)
	}
	return ChangeEvent{Operation: op, Table: table, NewRow: raw}, nil
}

// NewResyncEvent describes a gap in scope. Its row carries the scope's filter column, if any.
func NewResyncEvent(scope Scope) ChangeEvent {
	row := map[string]string{}
	if scope.Filter != nil {
		row[scope.Filter.Column] = scope.Filter.Value
	}
	raw, _ := json.Marshal(row)
	return ChangeEvent{Operation: OperationResync, Table: scope.Table, NewRow: raw}
}

// Decode unmarshals NewRow into dst.
func (e ChangeEvent) Decode(dst interface{}) error {
	if len(e.NewRow) == 0 {
		return fmt.Errorf("%s event has no row", e.Table)
	}
	return json.Unmarshal(e.NewRow, dst)
}

// Column returns the string value of a top-level column of NewRow.
func (e ChangeEvent) Column(name string) (string, bool) {
	var row map[string]interface{}
	if err := json.Unmarshal(e.NewRow, &row); err != nil {
		return "", false
	}
	v, ok := row[name].(string)
	return v, ok
}

// Matches reports whether the event falls inside scope.
func (e ChangeEvent) Matches(scope Scope) bool {
	if e.Table != scope.Table {
		return false
	}
	if scope.Filter == nil {
		return true
	}
	v, ok := e.Column(scope.Filter.Column)
	return ok && v == scope.Filter.Value
}

// Publisher writes change events onto the feed.
type Publisher interface {
	Publish(ctx context.Context, event ChangeEvent) error
}

// Feed is the realtime change feed consumed by listeners.
type Feed interface {
	Publisher
	Subscribe(ctx context.Context, scope Scope) (*Subscription, error)
}

// Subscription is one open slot on the feed. Close releases it and may be called more than once.
// Resync fires after the feed dropped at least one event because C was full; repeated drops
// before it is drained coalesce into one signal.
type Subscription struct {
	Scope  Scope
	C      <-chan ChangeEvent
	Resync <-chan struct{}

	once    sync.Once
	release func()
}

func newSubscription(scope Scope, c <-chan ChangeEvent, resync <-chan struct{}, release func()) *Subscription {
	return &Subscription{Scope: scope, C: c, Resync: resync, release: release}
}

// deliver hands event to ch without blocking. When ch is full the event is dropped and
// resync is signalled instead.
func deliver(scope Scope, ch chan<- ChangeEvent, resync chan<- struct{}, event ChangeEvent) {
	select {
	case ch <- event:
		return
	default:
	}
	select {
	case resync <- struct{}{}:
		log.Warn().Str("scope", scope.Key()).Msg("realtime subscriber buffer full, resync scheduled")
	default:
	}
}

func (s *Subscription) Close() {
	s.once.Do(s.release)
}
