package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"revline/internal/common"
	"revline/internal/dbmysql"
)

type ConversationRepository interface {
	// ActiveConversationIDs returns the user's non-archived conversations in creation order.
	ActiveConversationIDs(ctx context.Context, userID string) ([]string, error)
	// ActiveParticipants returns the non-archived participant ids of every requested conversation.
	ActiveParticipants(ctx context.Context, conversationIDs []string) (map[string][]string, error)
	Create(ctx context.Context, conv *dbmysql.Conversation, participantIDs []string) error
	ByID(ctx context.Context, conversationID string) (*dbmysql.Conversation, error)
	Membership(ctx context.Context, conversationID, userID string) (*dbmysql.Participant, error)
	Participants(ctx context.Context, conversationID string) ([]dbmysql.Participant, error)
	Archive(ctx context.Context, conversationID, userID string) error
	ListForUser(ctx context.Context, userID string) ([]dbmysql.Conversation, error)
}

type conversationRepo struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) ActiveConversationIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Table("conversation_participants").
		Joins("JOIN conversations ON conversations.id = conversation_participants.conversation_id").
		Where("conversation_participants.user_id = ? AND conversation_participants.archived = ?", userID, false).
		Order("conversations.created_at ASC, conversations.id ASC").
		Pluck("conversation_participants.conversation_id", &ids).Error
	if err != nil {
		return nil, common.Backend("failed to list memberships", err)
	}
	return ids, nil
}

func (r *conversationRepo) ActiveParticipants(ctx context.Context, conversationIDs []string) (map[string][]string, error) {
	result := make(map[string][]string, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return result, nil
	}

	var rows []dbmysql.Participant
	err := r.db.WithContext(ctx).
		Where("conversation_id IN ? AND archived = ?", conversationIDs, false).
		Find(&rows).Error
	if err != nil {
		return nil, common.Backend("failed to fetch participants", err)
	}

	for _, p := range rows {
		result[p.ConversationID] = append(result[p.ConversationID], p.UserID)
	}
	return result, nil
}

func (r *conversationRepo) Create(ctx context.Context, conv *dbmysql.Conversation, participantIDs []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(conv).Error; err != nil {
			return err
		}

		members := make([]dbmysql.Participant, 0, len(participantIDs))
		for _, id := range participantIDs {
			members = append(members, dbmysql.Participant{
				ConversationID: conv.ID,
				UserID:         id,
				JoinedAt:       conv.CreatedAt,
			})
		}
		if err := tx.Create(&members).Error; err != nil {
			return err
		}

		conv.Participants = members
		return nil
	})
	if err != nil {
		return common.Backend("failed to create conversation", err)
	}
	return nil
}

func (r *conversationRepo) ByID(ctx context.Context, conversationID string) (*dbmysql.Conversation, error) {
	var conv dbmysql.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", conversationID).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NotFound("conversation", conversationID)
	}
	if err != nil {
		return nil, common.Backend("failed to get conversation", err)
	}
	return &conv, nil
}

func (r *conversationRepo) Membership(ctx context.Context, conversationID, userID string) (*dbmysql.Participant, error) {
	var p dbmysql.Participant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrNotParticipant
	}
	if err != nil {
		return nil, common.Backend("failed to get membership", err)
	}
	return &p, nil
}

func (r *conversationRepo) Participants(ctx context.Context, conversationID string) ([]dbmysql.Participant, error) {
	var rows []dbmysql.Participant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("joined_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, common.Backend("failed to list participants", err)
	}
	return rows, nil
}

// Archive sets only the caller's membership flag. Archiving twice is a no-op.
func (r *conversationRepo) Archive(ctx context.Context, conversationID, userID string) error {
	result := r.db.WithContext(ctx).
		Model(&dbmysql.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("archived", true)
	if result.Error != nil {
		return common.Backend("failed to archive conversation", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// MySQL reports zero affected rows when the flag was already set.
	if _, err := r.Membership(ctx, conversationID, userID); err != nil {
		return err
	}
	return nil
}

func (r *conversationRepo) ListForUser(ctx context.Context, userID string) ([]dbmysql.Conversation, error) {
	var convs []dbmysql.Conversation
	err := r.db.WithContext(ctx).
		Joins("JOIN conversation_participants ON conversation_participants.conversation_id = conversations.id").
		Where("conversation_participants.user_id = ? AND conversation_participants.archived = ?", userID, false).
		Order("conversations.created_at DESC").
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC")
		}).
		Find(&convs).Error
	if err != nil {
		return nil, common.Backend("failed to list conversations", err)
	}
	return convs, nil
}
