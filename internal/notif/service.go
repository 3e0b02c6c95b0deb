package notif

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"revline/internal/common"
	"revline/internal/dbmysql"
)

const previewLength = 80

type NotificationService struct {
	dispatcher Dispatcher
	repo       NotificationStore
	deviceRepo DeviceStore
	now        func() time.Time
}

func NewNotificationService(
	dispatcher Dispatcher,
	repo NotificationStore,
	deviceRepo DeviceStore,
) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		repo:       repo,
		deviceRepo: deviceRepo,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Send validates and dispatches one notification to recipient.
func (s *NotificationService) Send(
	ctx context.Context,
	recipient, title, body string,
	payload Payload,
) (Event, error) {
	if recipient == "" {
		return Event{}, common.Invalid("recipient is required")
	}
	if payload == nil || !payload.Type().IsValid() {
		return Event{}, common.Invalid("unsupported notification payload")
	}

	event := Event{
		ID:        uuid.NewString(),
		Recipient: recipient,
		Title:     title,
		Body:      body,
		Payload:   payload,
		CreatedAt: s.now(),
	}

	if err := s.dispatcher.Dispatch(ctx, event); err != nil {
		return Event{}, fmt.Errorf("dispatch notification: %w", err)
	}
	return event, nil
}

func (s *NotificationService) SendFollowNotification(
	ctx context.Context,
	followerID, followerName, followeeID string,
) error {
	_, err := s.Send(ctx, followeeID, "New follower",
		fmt.Sprintf("%s started following you", followerName),
		FollowPayload{FollowerID: followerID, FollowerName: followerName})
	return err
}

func (s *NotificationService) SendCommentNotification(
	ctx context.Context,
	recipient string,
	payload CommentPayload,
) error {
	payload.Excerpt = preview(payload.Excerpt)
	_, err := s.Send(ctx, recipient, "New comment",
		fmt.Sprintf("%s commented on your post", payload.CommenterName), payload)
	return err
}

func (s *NotificationService) SendRatingNotification(
	ctx context.Context,
	recipient string,
	payload RatingPayload,
) error {
	if payload.Score < 1 || payload.Score > 5 {
		return common.Invalid("rating score %d out of range", payload.Score)
	}
	_, err := s.Send(ctx, recipient, "New rating",
		fmt.Sprintf("%s rated your vehicle %d/5", payload.RaterName, payload.Score), payload)
	return err
}

// SendChatNotification notifies every recipient except the sender. Failures are logged per
// recipient and never returned, since a message is already stored when this runs.
func (s *NotificationService) SendChatNotification(
	ctx context.Context,
	recipients []string,
	payload ChatPayload,
) {
	payload.Preview = preview(payload.Preview)
	body := payload.Preview
	if body == "" {
		body = "sent an attachment"
	}

	for _, recipient := range recipients {
		if recipient == payload.SenderID {
			continue
		}
		if _, err := s.Send(ctx, recipient, payload.SenderName, body, payload); err != nil {
			log.Warn().Err(err).
				Str("recipient", recipient).
				Str("conversation_id", payload.ConversationID).
				Msg("chat notification not dispatched")
		}
	}
}

// Notification is the API view of a stored notification with its payload decoded.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Body      string           `json:"body"`
	Payload   Payload          `json:"payload"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

func (s *NotificationService) ListNotifications(
	ctx context.Context,
	userID string,
	limit, offset int,
) ([]Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.repo.ByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	out := make([]Notification, 0, len(rows))
	for _, row := range rows {
		n, err := fromRow(row)
		if err != nil {
			log.Warn().Err(err).Str("notification_id", row.ID).Msg("skipping undecodable notification")
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *NotificationService) MarkAsRead(ctx context.Context, id, userID string) error {
	if id == "" {
		return common.Invalid("notification id is required")
	}
	return s.repo.MarkAsRead(ctx, id, userID)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.repo.UnreadCount(ctx, userID)
}

func (s *NotificationService) RegisterDeviceToken(ctx context.Context, userID, token, platform string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return common.Invalid("device token is required")
	}

	platform = strings.ToLower(strings.TrimSpace(platform))
	switch platform {
	case "ios", "android", "web":
	default:
		return common.Invalid("unsupported platform %q", platform)
	}

	return s.deviceRepo.CreateOrUpdate(ctx, userID, token, platform)
}

func fromRow(row dbmysql.Notification) (Notification, error) {
	t := NotificationType(row.Type)
	payload, err := DecodePayload(t, row.Payload)
	if err != nil {
		return Notification{}, err
	}
	return Notification{
		ID:        row.ID,
		Type:      t,
		Body:      row.Body,
		Payload:   payload,
		Read:      row.IsRead,
		CreatedAt: row.CreatedAt,
	}, nil
}

func preview(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= previewLength {
		return s
	}
	return string([]rune(s)[:previewLength]) + "…"
}
