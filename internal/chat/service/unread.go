package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"revline/internal/cache"
)

// GlobalUnreadExists reports whether any non-archived conversation of userID holds a message
// from someone else that is still unread.
func (s *chatService) GlobalUnreadExists(ctx context.Context, userID string) (bool, error) {
	if err := requireUser(userID); err != nil {
		return false, err
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	return cache.Fetch(ctx, s.cache, cache.UnreadAnyKey(userID), func(ctx context.Context) (bool, error) {
		exists, err := s.messages.UnreadExists(ctx, userID)
		if err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("unread check failed")
		}
		return exists, err
	})
}

// PerConversationUnreadCount returns a count for every requested id in one batched query.
// Conversations the user is not an active member of count 0.
func (s *chatService) PerConversationUnreadCount(
	ctx context.Context,
	userID string,
	conversationIDs []string,
) (map[string]int64, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	keyOf := func(conversationID string) string {
		return cache.UnreadCountKey(userID, conversationID)
	}

	return cache.FetchMany(ctx, s.cache, conversationIDs, keyOf, func(ctx context.Context, missing []string) (map[string]int64, error) {
		active, err := s.conversations.ActiveConversationIDs(ctx, userID)
		if err != nil {
			return nil, err
		}
		member := make(map[string]struct{}, len(active))
		for _, id := range active {
			member[id] = struct{}{}
		}

		ids := make([]string, 0, len(missing))
		for _, id := range missing {
			if _, ok := member[id]; ok {
				ids = append(ids, id)
			}
		}

		counts, err := s.messages.UnreadCounts(ctx, userID, ids)
		if err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("unread count failed")
		}
		return counts, err
	})
}
