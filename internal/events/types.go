package events

// Event names on the realtime surface. These are the contract with the UI:
// the name says what happened, the channel says who hears about it.

// Message events
const (
	EventNewMessage         = "newMessage"
	EventPendingMessage     = "pendingMessage"
	EventMessageAccepted    = "messageAccepted"
	EventMessageRejected    = "messageRejected"
	EventMessageRead        = "messageRead"
	EventMessageRecalled    = "messageRecalled"
	EventMessageEdited      = "messageEdited"
	EventMessageDeleted     = "messageDeleted"
	EventAllMessagesDeleted = "allMessagesDeleted"
)

// Conversation events
const (
	EventConversationUpdate = "conversationUpdate"
	EventConversationRead   = "conversationRead"
)

// Presence and typing events
const (
	EventUserOnline  = "userOnline"
	EventUserOffline = "userOffline"
	EventUserTyping  = "userTyping"
)

// Aggregate types
const (
	AggregateMessage      = "message"
	AggregateConversation = "conversation"
	AggregatePresence     = "presence"
)

// Redis channel prefixes
const (
	ChannelPrefixUser         = "channel:user:"
	ChannelPrefixConversation = "channel:conversation:"
	// ChannelPresence carries online/offline transitions; every connected
	// client is subscribed to it.
	ChannelPresence = "channel:presence"
	ChannelPattern  = "channel:*"
)
