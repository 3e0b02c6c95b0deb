package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messageEvent(t *testing.T, op Operation, row MessageRow) ChangeEvent {
	t.Helper()
	event, err := NewChangeEvent(op, TableMessages, row)
	require.NoError(t, err)
	return event
}

func TestScopeKey(t *testing.T) {
	assert.Equal(t, "messages", TableScope(TableMessages).Key())
	assert.Equal(t, "messages:conversation_id=c1", ConversationScope("c1").Key())
	assert.Equal(t, "realtime:messages:conversation_id=c1", Channel(ConversationScope("c1")))
}

func TestChangeEventMatches(t *testing.T) {
	event := messageEvent(t, OperationInsert, MessageRow{ID: "m1", ConversationID: "c1", SenderID: "u1"})

	tests := []struct {
		name  string
		scope Scope
		want  bool
	}{
		{"global", TableScope(TableMessages), true},
		{"same conversation", ConversationScope("c1"), true},
		{"other conversation", ConversationScope("c2"), false},
		{"other table", TableScope("notifications"), false},
		{"unknown column", Scope{Table: TableMessages, Filter: &Filter{Column: "title", Value: "x"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, event.Matches(tt.scope))
		})
	}
}

func TestChangeEventDecode(t *testing.T) {
	event := messageEvent(t, OperationUpdate, MessageRow{ID: "m1", ConversationID: "c1", SenderID: "u1", Read: true})

	var row MessageRow
	require.NoError(t, event.Decode(&row))
	assert.Equal(t, "m1", row.ID)
	assert.True(t, row.Read)

	assert.Error(t, ChangeEvent{Table: TableMessages}.Decode(&row))
}

func TestMemoryFeed_FanOutByScope(t *testing.T) {
	feed := NewMemoryFeed()
	ctx := context.Background()

	global, err := feed.Subscribe(ctx, TableScope(TableMessages))
	require.NoError(t, err)
	defer global.Close()
	c1, err := feed.Subscribe(ctx, ConversationScope("c1"))
	require.NoError(t, err)
	defer c1.Close()
	c2, err := feed.Subscribe(ctx, ConversationScope("c2"))
	require.NoError(t, err)
	defer c2.Close()

	require.NoError(t, feed.Publish(ctx, messageEvent(t, OperationInsert, MessageRow{ID: "m1", ConversationID: "c1"})))

	assert.Equal(t, "m1", receive(t, global.C).mustRow(t).ID)
	assert.Equal(t, "m1", receive(t, c1.C).mustRow(t).ID)
	select {
	case <-c2.C:
		t.Fatal("c2 received an event for c1")
	default:
	}
}

func TestMemoryFeed_CloseReleasesSlot(t *testing.T) {
	feed := NewMemoryFeed()

	sub, err := feed.Subscribe(context.Background(), ConversationScope("c1"))
	require.NoError(t, err)
	assert.Equal(t, 1, feed.Subscribers())

	sub.Close()
	sub.Close()

	assert.Equal(t, 0, feed.Subscribers())
	_, open := <-sub.C
	assert.False(t, open)
}

func TestMemoryFeed_FullBufferSignalsResync(t *testing.T) {
	feed := NewMemoryFeed()
	ctx := context.Background()

	sub, err := feed.Subscribe(ctx, TableScope(TableMessages))
	require.NoError(t, err)
	defer sub.Close()

	for i := 0; i < defaultBuffer; i++ {
		require.NoError(t, feed.Publish(ctx, messageEvent(t, OperationInsert, MessageRow{ID: "m", ConversationID: "c1"})))
	}
	assert.Len(t, sub.Resync, 0)

	for i := 0; i < 10; i++ {
		require.NoError(t, feed.Publish(ctx, messageEvent(t, OperationInsert, MessageRow{ID: "m", ConversationID: "c1"})))
	}
	assert.Len(t, sub.C, defaultBuffer)
	assert.Len(t, sub.Resync, 1)
}

func TestNewResyncEvent(t *testing.T) {
	event := NewResyncEvent(ConversationScope("c1"))
	assert.Equal(t, OperationResync, event.Operation)
	assert.True(t, event.Matches(ConversationScope("c1")))
	id, ok := event.Column("conversation_id")
	assert.True(t, ok)
	assert.Equal(t, "c1", id)

	_, ok = NewResyncEvent(TableScope(TableMessages)).Column("conversation_id")
	assert.False(t, ok)
}

func TestMemoryFeed_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryFeed().Subscribe(ctx, TableScope(TableMessages))
	assert.ErrorIs(t, err, context.Canceled)
}

type received ChangeEvent

func (r received) mustRow(t *testing.T) MessageRow {
	t.Helper()
	var row MessageRow
	require.NoError(t, ChangeEvent(r).Decode(&row))
	return row
}

func receive(t *testing.T, c <-chan ChangeEvent) received {
	t.Helper()
	select {
	case event := <-c:
		return received(event)
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return received{}
	}
}
