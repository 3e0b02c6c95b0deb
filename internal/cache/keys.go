package cache

import "fmt"

func ConversationListKey(userID string) string {
	return fmt.Sprintf("conv:list:%s", userID)
}

func MessageListKey(conversationID string) string {
	return fmt.Sprintf("msg:list:%s", conversationID)
}

func UnreadAnyKey(userID string) string {
	return fmt.Sprintf("unread:any:%s", userID)
}

func UnreadCountKey(userID, conversationID string) string {
	return fmt.Sprintf("unread:count:%s:%s", userID, conversationID)
}

// MessageKeyPatterns match every key a message change can make stale, in any conversation.
func MessageKeyPatterns() []string {
	return []string{"msg:list:*", "conv:list:*", "unread:*"}
}

// MessageChangeKeys are the keys stale after a message in conversationID is
// inserted or changes read state.
func MessageChangeKeys(conversationID string, participantIDs []string) []string {
	keys := make([]string, 0, 1+3*len(participantIDs))
	keys = append(keys, MessageListKey(conversationID))
	for _, p := range participantIDs {
		keys = append(keys,
			ConversationListKey(p),
			UnreadAnyKey(p),
			UnreadCountKey(p, conversationID),
		)
	}
	return keys
}

// ConversationCreatedKeys are the keys stale after a conversation is created.
func ConversationCreatedKeys(participantIDs []string) []string {
	keys := make([]string, 0, len(participantIDs))
	for _, p := range participantIDs {
		keys = append(keys, ConversationListKey(p))
	}
	return keys
}

// ConversationArchivedKeys are the keys stale after userID archives conversationID.
func ConversationArchivedKeys(userID, conversationID string) []string {
	return []string{
		ConversationListKey(userID),
		UnreadAnyKey(userID),
		UnreadCountKey(userID, conversationID),
	}
}
