package realtime

import (
	"context"
	"sync"
)

// Session holds the realtime subscriptions of one connected client: a global listener
// over all message changes and at most one open ConversationView. It never holds two
// subscriptions for the same scope.
type Session struct {
	feed     Feed
	userID   string
	reader   MessageReader
	onGlobal Handler
	onView   Handler

	mu     sync.Mutex
	ctx    context.Context
	global *Listener
	view   *ConversationView
	closed bool
}

// NewSession builds a session for userID. onGlobal receives every message change,
// onView the changes of the conversation in view after read-marking. Either may be nil.
func NewSession(feed Feed, userID string, reader MessageReader, onGlobal, onView Handler) *Session {
	return &Session{feed: feed, userID: userID, reader: reader, onGlobal: onGlobal, onView: onView}
}

// Start opens the global listener. Calling it again is a no-op.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return context.Canceled
	}
	if s.global != nil {
		return nil
	}

	handler := s.onGlobal
	if handler == nil {
		handler = func(context.Context, ChangeEvent) error { return nil }
	}
	global, err := Listen(ctx, s.feed, TableScope(TableMessages), handler)
	if err != nil {
		return err
	}
	s.ctx = ctx
	s.global = global
	return nil
}

// SetViewedConversation moves the session's view to conversationID. An empty id closes the
// current view. Setting the id already in view keeps the existing subscription.
func (s *Session) SetViewedConversation(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return context.Canceled
	}
	if s.view != nil && s.view.ConversationID == conversationID {
		return nil
	}
	if s.view != nil {
		s.view.Close()
		s.view = nil
	}
	if conversationID == "" {
		return nil
	}

	parent := ctx
	if s.ctx != nil {
		parent = s.ctx
	}
	view, err := OpenConversationView(parent, s.feed, conversationID, s.userID, s.reader, s.onView)
	if err != nil {
		return err
	}
	s.view = view
	return nil
}

// ViewedConversation returns the conversation currently in view, or "".
func (s *Session) ViewedConversation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view == nil {
		return ""
	}
	return s.view.ConversationID
}

// Close releases every subscription. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	if s.view != nil {
		s.view.Close()
		s.view = nil
	}
	if s.global != nil {
		s.global.Close()
		s.global = nil
	}
}
