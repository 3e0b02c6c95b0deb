package realtime

import (
	"context"
	"errors"
	"fmt"
)

// MessageRow is the subset of a messages row the listeners act on.
type MessageRow struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Read           bool   `json:"read"`

	// ParticipantIDs lists every member of the conversation when the publisher knew them.
	ParticipantIDs []string `json:"participant_ids,omitempty"`
}

// MessageReader marks messages read on behalf of a view.
type MessageReader interface {
	MarkMessageRead(ctx context.Context, messageID string) error
	// MarkIncomingRead marks every message in conversationID not sent by viewerID read.
	MarkIncomingRead(ctx context.Context, conversationID, viewerID string) error
}

// ConversationView is held by whoever is displaying a conversation. While it is open,
// messages inserted by anyone but the viewer are marked read as they arrive. After a
// resync the whole conversation is marked read for the viewer.
type ConversationView struct {
	ConversationID string
	ViewerID       string

	listener *Listener
}

// OpenConversationView subscribes to conversationID. next, when set, receives every event
// after read-marking. The caller must Close the view on every exit path.
func OpenConversationView(
	ctx context.Context,
	feed Feed,
	conversationID, viewerID string,
	reader MessageReader,
	next Handler,
) (*ConversationView, error) {
	if conversationID == "" {
		return nil, errors.New("realtime: conversation view needs a conversation id")
	}

	v := &ConversationView{ConversationID: conversationID, ViewerID: viewerID}
	listener, err := Listen(ctx, feed, ConversationScope(conversationID), func(ctx context.Context, event ChangeEvent) error {
		if err := v.markIfUnseen(ctx, reader, event); err != nil {
			return err
		}
		if next != nil {
			return next(ctx, event)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	v.listener = listener
	return v, nil
}

func (v *ConversationView) markIfUnseen(ctx context.Context, reader MessageReader, event ChangeEvent) error {
	if reader == nil {
		return nil
	}
	switch event.Operation {
	case OperationInsert:
	case OperationResync:
		return reader.MarkIncomingRead(ctx, v.ConversationID, v.ViewerID)
	default:
		return nil
	}

	var row MessageRow
	if err := event.Decode(&row); err != nil {
		return fmt.Errorf("decode message row: %w", err)
	}
	if row.ConversationID != v.ConversationID || row.SenderID == v.ViewerID || row.Read {
		return nil
	}
	return reader.MarkMessageRead(ctx, row.ID)
}

func (v *ConversationView) State() State {
	return v.listener.State()
}

func (v *ConversationView) Close() {
	v.listener.Close()
}
