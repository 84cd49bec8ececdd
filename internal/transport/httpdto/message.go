package httpdto

// SendMessageRequest is used for POST /api/messages
type SendMessageRequest struct {
	ReceiverID  string          `json:"receiver_id" binding:"required"`
	Content     string          `json:"content"`
	Type        string          `json:"type,omitempty"`
	Attachments []AttachmentDTO `json:"attachments,omitempty"`
}

// AttachmentDTO describes one file attached to a message.
type AttachmentDTO struct {
	Name string `json:"name"`
	URL  string `json:"url" binding:"required"`
	Size int64  `json:"size,omitempty"`
	Mime string `json:"mime,omitempty"`
}

// EditMessageRequest is used for PUT /api/messages/:id
type EditMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// MarkedCountResponse reports how many messages a bulk operation touched.
type MarkedCountResponse struct {
	Count int64 `json:"count"`
}

// PendingCountResponse is returned by GET /api/messages/pending/count
type PendingCountResponse struct {
	PendingCount int64 `json:"pending_count"`
}

// UnreadCountResponse is returned by GET /api/messages/unread/count
type UnreadCountResponse struct {
	UnreadCount int64 `json:"unread_count"`
}
