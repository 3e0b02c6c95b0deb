package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"revline/internal/cache"
	"revline/internal/common"
	"revline/internal/dbmysql"
)

func isNotParticipant(err error) bool {
	return errors.Is(err, common.ErrNotParticipant)
}

// CreateOrGetConversation returns the requester's conversation with exactly these participants,
// creating it when none exists. An existing conversation is returned unchanged.
func (s *chatService) CreateOrGetConversation(
	ctx context.Context,
	requester string,
	title *string,
	participantIDs []string,
) (*Conversation, error) {
	if err := requireUser(requester); err != nil {
		return nil, err
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	set := NewParticipantSet(requester, participantIDs...)

	if conv, err := s.existing(ctx, requester, set); conv != nil || err != nil {
		return conv, err
	}

	unlock, err := s.locker.Lock(ctx, set.Key())
	if err != nil {
		return nil, common.Backend("failed to lock conversation creation", err)
	}
	defer unlock()

	// another creator may have won the race while we waited
	if conv, err := s.existing(ctx, requester, set); conv != nil || err != nil {
		return conv, err
	}

	row := &dbmysql.Conversation{
		ID:        uuid.NewString(),
		Title:     normalizeTitle(title),
		CreatedBy: requester,
		CreatedAt: s.now(),
	}
	if err := s.conversations.Create(ctx, row, set.IDs()); err != nil {
		log.Error().Err(err).Str("requester", requester).Msg("conversation create failed")
		return nil, err
	}

	s.invalidate(ctx, cache.ConversationCreatedKeys(set.IDs())...)
	log.Info().Str("conversation_id", row.ID).Int("participants", set.Len()).Msg("conversation created")

	return &Conversation{
		ID:             row.ID,
		Title:          row.Title,
		CreatedBy:      row.CreatedBy,
		CreatedAt:      row.CreatedAt,
		ParticipantIDs: set.IDs(),
		Created:        true,
	}, nil
}

func (s *chatService) existing(ctx context.Context, requester string, set ParticipantSet) (*Conversation, error) {
	id, err := s.resolver.Resolve(ctx, requester, set)
	if errors.Is(err, ErrNoMatch) {
		return nil, nil
	}
	if err != nil {
		log.Error().Err(err).Str("requester", requester).Msg("participant set lookup failed")
		return nil, err
	}

	row, err := s.conversations.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Conversation{
		ID:             row.ID,
		Title:          row.Title,
		CreatedBy:      row.CreatedBy,
		CreatedAt:      row.CreatedAt,
		ParticipantIDs: set.IDs(),
	}, nil
}

func normalizeTitle(title *string) *string {
	if title == nil {
		return nil
	}
	t := strings.TrimSpace(*title)
	if t == "" {
		return nil
	}
	return &t
}

func (s *chatService) ArchiveConversation(ctx context.Context, conversationID, userID string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	if err := s.conversations.Archive(ctx, conversationID, userID); err != nil {
		if !isNotParticipant(err) {
			log.Error().Err(err).Str("conversation_id", conversationID).Msg("archive failed")
		}
		return err
	}

	s.invalidate(ctx, cache.ConversationArchivedKeys(userID, conversationID)...)
	return nil
}

// ListConversations returns the caller's non-archived conversations, newest first, with the other
// participants' profiles and the caller's unread count for each.
func (s *chatService) ListConversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	return cache.Fetch(ctx, s.cache, cache.ConversationListKey(userID), func(ctx context.Context) ([]ConversationSummary, error) {
		return s.loadConversations(ctx, userID)
	})
}

func (s *chatService) loadConversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	rows, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("list conversations failed")
		return nil, err
	}

	ids := make([]string, 0, len(rows))
	var others []string
	for _, row := range rows {
		ids = append(ids, row.ID)
		for _, p := range row.Participants {
			if p.UserID != userID {
				others = append(others, p.UserID)
			}
		}
	}

	profiles, err := s.profiles.ByIDs(ctx, others)
	if err != nil {
		return nil, err
	}

	unread, err := s.messages.UnreadCounts(ctx, userID, ids)
	if err != nil {
		return nil, err
	}

	out := make([]ConversationSummary, 0, len(rows))
	for _, row := range rows {
		summary := ConversationSummary{
			ID:          row.ID,
			Title:       row.Title,
			CreatedAt:   row.CreatedAt,
			Others:      []ParticipantProfile{},
			UnreadCount: unread[row.ID],
		}
		for _, p := range row.Participants {
			if p.UserID == userID {
				continue
			}
			profile, ok := profiles[p.UserID]
			if !ok {
				profile = dbmysql.UserProfile{ID: p.UserID}
			}
			summary.Others = append(summary.Others, toProfile(profile))
		}
		out = append(out, summary)
	}
	return out, nil
}
