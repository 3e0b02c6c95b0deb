package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"revline/internal/cache"
	"revline/internal/common"
	"revline/internal/dbmysql"
	"revline/internal/notif"
	"revline/internal/realtime"
)

var errAttachmentTooLarge = errors.New("attachment exceeds size limit")

// AttachmentPath is the storage path of an attachment: {conversationID}/{unixMillis}_{filename}.
func AttachmentPath(conversationID string, unixMillis int64, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "attachment"
	}
	return fmt.Sprintf("%s/%d_%s", conversationID, unixMillis, name)
}

// SendMessage stores a message from senderID. An attachment is uploaded first and no row is
// written when the upload fails.
func (s *chatService) SendMessage(
	ctx context.Context,
	conversationID, senderID, content string,
	attachment *Attachment,
) (*Message, error) {
	if err := requireUser(senderID); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" && attachment == nil {
		return nil, common.Invalid("message needs content or an attachment")
	}
	if s.opts.MaxContentLength > 0 && utf8.RuneCountInString(content) > s.opts.MaxContentLength {
		return nil, common.Invalid("message longer than %d characters", s.opts.MaxContentLength)
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	if _, err := s.conversations.Membership(ctx, conversationID, senderID); err != nil {
		return nil, err
	}

	now := s.now()
	row := &dbmysql.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		IsRead:         false,
		CreatedAt:      now,
	}

	if attachment != nil {
		storagePath, kind, err := s.upload(ctx, conversationID, now.UnixMilli(), attachment)
		if err != nil {
			log.Error().Err(err).Str("conversation_id", conversationID).Msg("attachment upload failed")
			return nil, err
		}
		row.AttachmentPath = &storagePath
		row.AttachmentType = &kind
	}

	if err := s.messages.Insert(ctx, row); err != nil {
		log.Error().Err(err).Str("conversation_id", conversationID).Msg("message insert failed")
		return nil, err
	}

	participants, ok := s.messageChanged(ctx, realtime.OperationInsert, realtime.MessageRow{
		ID:             row.ID,
		ConversationID: row.ConversationID,
		SenderID:       row.SenderID,
		Read:           false,
	})
	if ok {
		s.notifyRecipients(ctx, row, participants)
	}

	msg := s.toMessage(*row)
	return &msg, nil
}

func (s *chatService) upload(ctx context.Context, conversationID string, unixMillis int64, a *Attachment) (string, string, error) {
	storagePath := AttachmentPath(conversationID, unixMillis, a.Filename)
	if a.Body == nil {
		return "", "", common.Invalid("attachment has no content")
	}

	body := a.Body
	if s.opts.MaxAttachmentBytes > 0 {
		body = &capReader{r: a.Body, remaining: s.opts.MaxAttachmentBytes}
	}

	stored, err := s.storage.Upload(ctx, storagePath, a.ContentType, body)
	if err != nil {
		if errors.Is(err, errAttachmentTooLarge) {
			return "", "", common.Invalid("attachment larger than %d bytes", s.opts.MaxAttachmentBytes)
		}
		return "", "", common.Upload(storagePath, err)
	}
	return stored, common.DetectAttachmentType(a.ContentType).String(), nil
}

// capReader fails once more than remaining bytes have been read.
type capReader struct {
	r         io.Reader
	remaining int64
}

func (c *capReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		return n, errAttachmentTooLarge
	}
	return n, err
}

func (s *chatService) notifyRecipients(ctx context.Context, row *dbmysql.Message, recipients []string) {
	if s.notifier == nil {
		return
	}

	var senderName string
	if profile, err := s.profiles.ByID(ctx, row.SenderID); err == nil {
		senderName = profile.DisplayName
	}

	s.notifier.SendChatNotification(ctx, recipients, notif.ChatPayload{
		ConversationID: row.ConversationID,
		MessageID:      row.ID,
		SenderID:       row.SenderID,
		SenderName:     senderName,
		Preview:        row.Content,
	})
}

// ListMessages returns the conversation's messages oldest first. viewerID must be a participant.
func (s *chatService) ListMessages(ctx context.Context, conversationID, viewerID string) ([]Message, error) {
	if err := requireUser(viewerID); err != nil {
		return nil, err
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	if _, err := s.conversations.Membership(ctx, conversationID, viewerID); err != nil {
		return nil, err
	}

	return cache.Fetch(ctx, s.cache, cache.MessageListKey(conversationID), func(ctx context.Context) ([]Message, error) {
		rows, err := s.messages.ListByConversation(ctx, conversationID)
		if err != nil {
			log.Error().Err(err).Str("conversation_id", conversationID).Msg("list messages failed")
			return nil, err
		}
		out := make([]Message, len(rows))
		for i, row := range rows {
			out[i] = s.toMessage(row)
		}
		return out, nil
	})
}

// MarkConversationRead flags the conversation's unread messages read. userID must be a participant.
func (s *chatService) MarkConversationRead(ctx context.Context, conversationID, userID string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	if _, err := s.conversations.Membership(ctx, conversationID, userID); err != nil {
		return err
	}

	var exceptSender string
	if s.opts.ScopeReadToRecipient {
		exceptSender = userID
	}
	return s.markConversation(ctx, conversationID, exceptSender)
}

// MarkIncomingRead always leaves the viewer's own messages alone, whatever the read scope.
func (s *chatService) MarkIncomingRead(ctx context.Context, conversationID, viewerID string) error {
	if err := requireUser(viewerID); err != nil {
		return err
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	if _, err := s.conversations.Membership(ctx, conversationID, viewerID); err != nil {
		return err
	}
	return s.markConversation(ctx, conversationID, viewerID)
}

func (s *chatService) markConversation(ctx context.Context, conversationID, exceptSender string) error {
	changed, err := s.messages.MarkConversationRead(ctx, conversationID, exceptSender)
	if err != nil {
		log.Error().Err(err).Str("conversation_id", conversationID).Msg("mark conversation read failed")
		return err
	}

	if changed > 0 {
		s.messageChanged(ctx, realtime.OperationUpdate, realtime.MessageRow{ConversationID: conversationID, Read: true})
	} else if participants, ok := s.audience(ctx, conversationID); ok {
		s.invalidate(ctx, cache.MessageChangeKeys(conversationID, participants)...)
	}
	return nil
}

func (s *chatService) MarkMessageRead(ctx context.Context, messageID string) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	row, err := s.messages.ByID(ctx, messageID)
	if err != nil {
		return err
	}
	if row.IsRead {
		return nil
	}

	if _, err := s.messages.MarkRead(ctx, messageID); err != nil {
		log.Error().Err(err).Str("message_id", messageID).Msg("mark message read failed")
		return err
	}

	s.messageChanged(ctx, realtime.OperationUpdate, realtime.MessageRow{
		ID:             row.ID,
		ConversationID: row.ConversationID,
		SenderID:       row.SenderID,
		Read:           true,
	})
	return nil
}

func (s *chatService) toMessage(row dbmysql.Message) Message {
	msg := Message{
		ID:             row.ID,
		ConversationID: row.ConversationID,
		SenderID:       row.SenderID,
		Content:        row.Content,
		AttachmentType: row.AttachmentType,
		AttachmentPath: row.AttachmentPath,
		Read:           row.IsRead,
		CreatedAt:      row.CreatedAt,
	}
	if row.AttachmentPath != nil && s.storage != nil {
		msg.AttachmentURL = s.storage.PublicURL(*row.AttachmentPath)
	}
	if row.Sender != nil {
		profile := toProfile(*row.Sender)
		msg.Sender = &profile
	}
	return msg
}
