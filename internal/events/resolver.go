package events

import "github.com/google/uuid"

// UserChannel is the per-user route; everything addressed to a specific
// participant goes here.
func UserChannel(userID uuid.UUID) string {
	return ChannelPrefixUser + userID.String()
}

// ConversationChannel is the per-room route used for typing indicators and
// anything both participants should hear while they have the thread open.
func ConversationChannel(conversationID uuid.UUID) string {
	return ChannelPrefixConversation + conversationID.String()
}
