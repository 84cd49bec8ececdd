package httpdto

// CreateConversationRequest is used for POST /api/conversations
type CreateConversationRequest struct {
	ParticipantID string `json:"participant_id" binding:"required"`
}

// AcceptanceSettingsRequest is used for PUT /api/conversations/:id/acceptance-settings
type AcceptanceSettingsRequest struct {
	RequireAcceptance bool `json:"require_acceptance"`
	AutoAcceptKnown   bool `json:"auto_accept_known"`
}

// ConversationStatusRequest is used for PUT /api/conversations/:id/status
type ConversationStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// NotificationSettingsRequest is used for PUT /api/conversations/:id/notification-settings
type NotificationSettingsRequest struct {
	NotifyEnabled bool    `json:"notify_enabled"`
	MutedUntil    *string `json:"muted_until,omitempty"`
}

// PagedResponse wraps list endpoints that support page/page_size.
type PagedResponse[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}
