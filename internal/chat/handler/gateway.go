package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"revline/internal/cache"
	"revline/internal/chat/service"
	"revline/internal/common"
	"revline/internal/realtime"
)

const (
	FrameConnected   = "connected"
	FrameViewOpen    = "view.open"
	FrameViewClose   = "view.close"
	FrameViewOpened  = "view.opened"
	FrameViewClosed  = "view.closed"
	FrameMessageNew  = "message.new"
	FrameMessageRead = "message.read"
	FrameInvalidate  = "invalidate"
	FrameResync      = "resync"
	FrameError       = "error"

	maxFrameBytes = 64 << 10

	// Conversations the user is not part of are remembered for this long, up to
	// maxNonMembers entries per connection.
	nonMemberTTL  = time.Minute
	maxNonMembers = 1024
)

type inboundFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type outboundFrame struct {
	Type           string               `json:"type"`
	ConversationID string               `json:"conversation_id,omitempty"`
	MessageID      string               `json:"message_id,omitempty"`
	Message        *realtime.MessageRow `json:"message,omitempty"`
	Keys           []string             `json:"keys,omitempty"`
	Code           string               `json:"code,omitempty"`
	Error          string               `json:"error,omitempty"`
}

// Gateway upgrades authenticated requests to websockets and bridges each one to a
// realtime.Session. A user may hold several connections at once.
type Gateway struct {
	chatService service.ChatService
	feed        realtime.Feed
	upgrader    websocket.Upgrader
	timeout     time.Duration

	mu    sync.Mutex
	conns map[string]*Connection
}

func NewGateway(chatService service.ChatService, feed realtime.Feed) *Gateway {
	return &Gateway{
		chatService: chatService,
		feed:        feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		timeout: 5 * time.Second,
		conns:   make(map[string]*Connection),
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := common.UserIDFromContext(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		log.Debug().Err(err).Str("user_id", userID).Msg("websocket upgrade failed")
		return
	}

	conn := NewConnection(userID, ws)
	g.attach(conn)
	conn.Start()

	ctx, cancel := context.WithCancel(r.Context())
	c := &client{gateway: g, conn: conn, members: make(map[string]bool), nonMembers: make(map[string]time.Time)}
	c.session = realtime.NewSession(g.feed, userID, g.chatService, c.onGlobal, c.onView)

	defer func() {
		c.session.Close()
		cancel()
		g.detach(conn)
		conn.Close(websocket.CloseNormalClosure, "session closed")
	}()

	if err := c.session.Start(ctx); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("realtime session start failed")
		c.reply(outboundFrame{Type: FrameError, Code: "unavailable", Error: "realtime feed unavailable"})
		return
	}
	c.reply(outboundFrame{Type: FrameConnected})

	ws.SetReadLimit(maxFrameBytes)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) &&
				!errors.Is(err, websocket.ErrCloseSent) {
				log.Debug().Err(err).Str("user_id", userID).Msg("websocket read ended")
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.reply(outboundFrame{Type: FrameError, Code: "bad_request", Error: "invalid payload"})
			continue
		}

		switch frame.Type {
		case FrameViewOpen:
			c.openView(ctx, frame.ConversationID)
		case FrameViewClose:
			c.closeView(ctx)
		default:
			c.reply(outboundFrame{Type: FrameError, Code: "unsupported_type", Error: "unknown frame type"})
		}
	}
}

// Close disconnects every client. Used on shutdown.
func (g *Gateway) Close() {
	g.mu.Lock()
	conns := make([]*Connection, 0, len(g.conns))
	for _, conn := range g.conns {
		conns = append(conns, conn)
	}
	g.conns = make(map[string]*Connection)
	g.mu.Unlock()

	for _, conn := range conns {
		conn.Close(websocket.CloseGoingAway, "server shutdown")
	}
}

// Connections returns the number of open websocket connections.
func (g *Gateway) Connections() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

func (g *Gateway) attach(conn *Connection) {
	g.mu.Lock()
	g.conns[conn.ID] = conn
	g.mu.Unlock()
}

func (g *Gateway) detach(conn *Connection) {
	g.mu.Lock()
	delete(g.conns, conn.ID)
	g.mu.Unlock()
}

type client struct {
	gateway *Gateway
	conn    *Connection
	session *realtime.Session

	mu         sync.Mutex
	members    map[string]bool
	nonMembers map[string]time.Time
}

func (c *client) openView(ctx context.Context, conversationID string) {
	if conversationID == "" {
		c.reply(outboundFrame{Type: FrameError, Code: "bad_request", Error: "conversation_id is required"})
		return
	}

	ok, err := c.isMember(ctx, conversationID)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", conversationID).Msg("membership check failed")
		c.reply(outboundFrame{Type: FrameError, Code: "internal_error", Error: "membership check failed"})
		return
	}
	if !ok {
		c.reply(outboundFrame{Type: FrameError, Code: "forbidden", Error: common.ErrNotParticipant.Error(), ConversationID: conversationID})
		return
	}

	if err := c.session.SetViewedConversation(ctx, conversationID); err != nil {
		log.Warn().Err(err).Str("conversation_id", conversationID).Msg("open conversation view failed")
		c.reply(outboundFrame{Type: FrameError, Code: "internal_error", Error: "could not open conversation"})
		return
	}
	c.reply(outboundFrame{Type: FrameViewOpened, ConversationID: conversationID})
}

func (c *client) closeView(ctx context.Context) {
	_ = c.session.SetViewedConversation(ctx, "")
	c.reply(outboundFrame{Type: FrameViewClosed})
}

// onGlobal tells the client which of its queries went stale. Events of conversations
// the user is not part of are dropped. A resync means events were lost and every
// query is stale.
func (c *client) onGlobal(ctx context.Context, event realtime.ChangeEvent) error {
	if event.Operation == realtime.OperationResync {
		return c.send(outboundFrame{Type: FrameResync})
	}

	var row realtime.MessageRow
	if err := event.Decode(&row); err != nil || row.ConversationID == "" {
		return nil
	}
	conversationID := row.ConversationID

	member, err := c.inAudience(ctx, row)
	if err != nil || !member {
		return err
	}

	userID := c.conn.UserID
	return c.send(outboundFrame{
		Type:           FrameInvalidate,
		ConversationID: conversationID,
		Keys: []string{
			cache.MessageListKey(conversationID),
			cache.ConversationListKey(userID),
			cache.UnreadAnyKey(userID),
			cache.UnreadCountKey(userID, conversationID),
		},
	})
}

// onView forwards the changes of the conversation in view. Inserts have already been
// marked read by the view when they reach this handler.
func (c *client) onView(ctx context.Context, event realtime.ChangeEvent) error {
	if event.Operation == realtime.OperationResync {
		conversationID, _ := event.Column("conversation_id")
		return c.send(outboundFrame{Type: FrameResync, ConversationID: conversationID})
	}

	var row realtime.MessageRow
	if err := event.Decode(&row); err != nil {
		return err
	}

	switch event.Operation {
	case realtime.OperationInsert:
		if row.SenderID != c.conn.UserID {
			row.Read = true
		}
		return c.send(outboundFrame{Type: FrameMessageNew, ConversationID: row.ConversationID, Message: &row})
	case realtime.OperationUpdate:
		return c.send(outboundFrame{Type: FrameMessageRead, ConversationID: row.ConversationID, MessageID: row.ID})
	default:
		return nil
	}
}

// inAudience answers from the participant list the event carries and falls back to
// the service for events published without one.
func (c *client) inAudience(ctx context.Context, row realtime.MessageRow) (bool, error) {
	if len(row.ParticipantIDs) == 0 {
		return c.isMember(ctx, row.ConversationID)
	}
	for _, id := range row.ParticipantIDs {
		if id == c.conn.UserID {
			c.remember(row.ConversationID, true)
			return true, nil
		}
	}
	c.remember(row.ConversationID, false)
	return false, nil
}

func (c *client) isMember(ctx context.Context, conversationID string) (bool, error) {
	c.mu.Lock()
	known := c.members[conversationID]
	until, denied := c.nonMembers[conversationID]
	c.mu.Unlock()
	if known {
		return true, nil
	}
	if denied && time.Now().Before(until) {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.gateway.timeout)
	defer cancel()

	ok, err := c.gateway.chatService.IsParticipant(ctx, conversationID, c.conn.UserID)
	if err != nil {
		return false, err
	}
	c.remember(conversationID, ok)
	return ok, nil
}

// remember records a membership answer. Memberships are fixed when a conversation is
// created. Negative answers still expire and are capped per connection.
func (c *client) remember(conversationID string, member bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if member {
		c.members[conversationID] = true
		delete(c.nonMembers, conversationID)
		return
	}
	if len(c.nonMembers) >= maxNonMembers {
		c.nonMembers = make(map[string]time.Time)
	}
	c.nonMembers[conversationID] = time.Now().Add(nonMemberTTL)
}

func (c *client) send(frame outboundFrame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return c.conn.Send(payload)
}

func (c *client) reply(frame outboundFrame) {
	if err := c.send(frame); err != nil {
		log.Debug().Err(err).Str("type", frame.Type).Msg("websocket reply dropped")
	}
}
