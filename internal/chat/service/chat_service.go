package service

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"revline/internal/cache"
	"revline/internal/chat/repository"
	"revline/internal/common"
	"revline/internal/dbmysql"
	"revline/internal/notif"
	"revline/internal/realtime"
	"revline/internal/user"
)

// ChatService is the messaging core consumed by the HTTP and websocket handlers.
type ChatService interface {
	CreateOrGetConversation(ctx context.Context, requester string, title *string, participantIDs []string) (*Conversation, error)
	ArchiveConversation(ctx context.Context, conversationID, userID string) error
	ListConversations(ctx context.Context, userID string) ([]ConversationSummary, error)

	SendMessage(ctx context.Context, conversationID, senderID, content string, attachment *Attachment) (*Message, error)
	ListMessages(ctx context.Context, conversationID, viewerID string) ([]Message, error)
	MarkConversationRead(ctx context.Context, conversationID, userID string) error
	MarkMessageRead(ctx context.Context, messageID string) error
	// MarkIncomingRead marks read every message in the conversation sent by someone other than viewerID.
	MarkIncomingRead(ctx context.Context, conversationID, viewerID string) error

	GlobalUnreadExists(ctx context.Context, userID string) (bool, error)
	PerConversationUnreadCount(ctx context.Context, userID string, conversationIDs []string) (map[string]int64, error)

	// IsParticipant reports whether userID holds any membership, archived or not, in conversationID.
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
	ParticipantIDs(ctx context.Context, conversationID string) ([]string, error)
}

// AttachmentStore is the object storage the service uploads attachments to.
type AttachmentStore interface {
	Upload(ctx context.Context, path, contentType string, r io.Reader) (string, error)
	PublicURL(path string) string
}

// ChatNotifier dispatches best-effort chat notifications.
type ChatNotifier interface {
	SendChatNotification(ctx context.Context, recipients []string, payload notif.ChatPayload)
}

type Options struct {
	Timeout              time.Duration
	ScopeReadToRecipient bool
	MaxContentLength     int
	MaxAttachmentBytes   int64
}

type Deps struct {
	Conversations repository.ConversationRepository
	Messages      repository.MessageRepository
	Profiles      user.ProfileRepository
	Storage       AttachmentStore
	Publisher     realtime.Publisher
	Cache         *cache.Coordinator
	Notifier      ChatNotifier
	Locker        Locker
}

type chatService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	profiles      user.ProfileRepository
	storage       AttachmentStore
	publisher     realtime.Publisher
	cache         *cache.Coordinator
	notifier      ChatNotifier
	locker        Locker
	resolver      *Resolver
	opts          Options
	now           func() time.Time
}

func NewChatService(deps Deps, opts Options) ChatService {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if deps.Locker == nil {
		deps.Locker = NewKeyedMutex()
	}
	return &chatService{
		conversations: deps.Conversations,
		messages:      deps.Messages,
		profiles:      deps.Profiles,
		storage:       deps.Storage,
		publisher:     deps.Publisher,
		cache:         deps.Cache,
		notifier:      deps.Notifier,
		locker:        deps.Locker,
		resolver:      NewResolver(deps.Conversations),
		opts:          opts,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// ParticipantProfile is the public part of a user profile shown next to conversations and messages.
type ParticipantProfile struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	AvatarPath  *string `json:"avatar_path,omitempty"`
}

type Conversation struct {
	ID             string    `json:"id"`
	Title          *string   `json:"title,omitempty"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	ParticipantIDs []string  `json:"participant_ids"`
	Created        bool      `json:"created"`
}

type ConversationSummary struct {
	ID          string               `json:"id"`
	Title       *string              `json:"title,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	Others      []ParticipantProfile `json:"participants"`
	UnreadCount int64                `json:"unread_count"`
}

type Attachment struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type Message struct {
	ID             string              `json:"id"`
	ConversationID string              `json:"conversation_id"`
	SenderID       string              `json:"sender_id"`
	Content        string              `json:"content"`
	AttachmentType *string             `json:"attachment_type,omitempty"`
	AttachmentPath *string             `json:"attachment_path,omitempty"`
	AttachmentURL  string              `json:"attachment_url,omitempty"`
	Read           bool                `json:"read"`
	CreatedAt      time.Time           `json:"created_at"`
	Sender         *ParticipantProfile `json:"sender,omitempty"`
}

func (s *chatService) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.Timeout)
}

func (s *chatService) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	_, err := s.conversations.Membership(ctx, conversationID, userID)
	switch {
	case err == nil:
		return true, nil
	case isNotParticipant(err):
		return false, nil
	default:
		return false, err
	}
}

func (s *chatService) ParticipantIDs(ctx context.Context, conversationID string) ([]string, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	members, err := s.conversations.Participants(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	return ids, nil
}

// publish and invalidate run after the primary write has succeeded, so their failures are logged only.
func (s *chatService) publish(ctx context.Context, op realtime.Operation, row realtime.MessageRow) {
	event, err := realtime.NewChangeEvent(op, realtime.TableMessages, row)
	if err == nil {
		err = s.publisher.Publish(ctx, event)
	}
	if err != nil {
		log.Warn().Err(err).
			Str("conversation_id", row.ConversationID).
			Str("operation", string(op)).
			Msg("realtime publish failed")
	}
}

func (s *chatService) invalidate(ctx context.Context, keys ...string) {
	_ = s.cache.Invalidate(ctx, keys...)
}

// audience returns every member of conversationID. A failed lookup is logged and reported
// as !ok; the write it follows has already succeeded.
func (s *chatService) audience(ctx context.Context, conversationID string) ([]string, bool) {
	participants, err := s.ParticipantIDs(ctx, conversationID)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", conversationID).Msg("participant lookup after write failed")
		return nil, false
	}
	return participants, true
}

// messageChanged drops the cache keys of row's conversation, then publishes row, so a
// subscriber refetching on the event never reads the dropped entries.
func (s *chatService) messageChanged(ctx context.Context, op realtime.Operation, row realtime.MessageRow) ([]string, bool) {
	participants, ok := s.audience(ctx, row.ConversationID)
	if ok {
		s.invalidate(ctx, cache.MessageChangeKeys(row.ConversationID, participants)...)
	}
	row.ParticipantIDs = participants
	s.publish(ctx, op, row)
	return participants, ok
}

func requireUser(userID string) error {
	if userID == "" {
		return common.ErrAuthenticationRequired
	}
	return nil
}

func toProfile(p dbmysql.UserProfile) ParticipantProfile {
	return ParticipantProfile{ID: p.ID, DisplayName: p.DisplayName, AvatarPath: p.AvatarPath}
}
