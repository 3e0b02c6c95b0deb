package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"revline/internal/common"
	"revline/internal/dbmysql"
)

type MessageRepository interface {
	Insert(ctx context.Context, msg *dbmysql.Message) error
	ByID(ctx context.Context, messageID string) (*dbmysql.Message, error)
	// ListByConversation returns messages oldest first with the sender profile joined.
	ListByConversation(ctx context.Context, conversationID string) ([]dbmysql.Message, error)
	// MarkConversationRead flags every unread message of the conversation.
	// A non-empty exceptSender leaves that sender's messages untouched.
	MarkConversationRead(ctx context.Context, conversationID, exceptSender string) (int64, error)
	MarkRead(ctx context.Context, messageID string) (int64, error)
	UnreadExists(ctx context.Context, userID string) (bool, error)
	UnreadCounts(ctx context.Context, userID string, conversationIDs []string) (map[string]int64, error)
}

type messageRepo struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) Insert(ctx context.Context, msg *dbmysql.Message) error {
	if err := r.db.WithContext(ctx).Omit("Sender").Create(msg).Error; err != nil {
		return common.Backend("failed to insert message", err)
	}
	return nil
}

func (r *messageRepo) ByID(ctx context.Context, messageID string) (*dbmysql.Message, error) {
	var msg dbmysql.Message
	err := r.db.WithContext(ctx).Where("id = ?", messageID).First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NotFound("message", messageID)
	}
	if err != nil {
		return nil, common.Backend("failed to get message", err)
	}
	return &msg, nil
}

func (r *messageRepo) ListByConversation(ctx context.Context, conversationID string) ([]dbmysql.Message, error) {
	var messages []dbmysql.Message
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, common.Backend("failed to list messages", err)
	}
	return messages, nil
}

func (r *messageRepo) MarkConversationRead(ctx context.Context, conversationID, exceptSender string) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&dbmysql.Message{}).
		Where("conversation_id = ? AND is_read = ?", conversationID, false)
	if exceptSender != "" {
		query = query.Where("sender_id <> ?", exceptSender)
	}

	result := query.Update("is_read", true)
	if result.Error != nil {
		return 0, common.Backend("failed to mark conversation read", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *messageRepo) MarkRead(ctx context.Context, messageID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&dbmysql.Message{}).
		Where("id = ?", messageID).
		Update("is_read", true)
	if result.Error != nil {
		return 0, common.Backend("failed to mark message read", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *messageRepo) UnreadExists(ctx context.Context, userID string) (bool, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Table("messages").
		Joins("JOIN conversation_participants ON conversation_participants.conversation_id = messages.conversation_id").
		Where("conversation_participants.user_id = ? AND conversation_participants.archived = ?", userID, false).
		Where("messages.is_read = ? AND messages.sender_id <> ?", false, userID).
		Limit(1).
		Pluck("messages.id", &ids).Error
	if err != nil {
		return false, common.Backend("failed to check unread messages", err)
	}
	return len(ids) > 0, nil
}

type unreadRow struct {
	ConversationID string
	Unread         int64
}

func (r *messageRepo) UnreadCounts(ctx context.Context, userID string, conversationIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return counts, nil
	}
	for _, id := range conversationIDs {
		counts[id] = 0
	}

	var rows []unreadRow
	err := r.db.WithContext(ctx).
		Model(&dbmysql.Message{}).
		Select("conversation_id, COUNT(*) AS unread").
		Where("conversation_id IN ? AND is_read = ? AND sender_id <> ?", conversationIDs, false, userID).
		Group("conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, common.Backend("failed to count unread messages", err)
	}

	for _, row := range rows {
		counts[row.ConversationID] = row.Unread
	}
	return counts, nil
}
