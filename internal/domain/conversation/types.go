package conversation

type Type string

const (
	TypeDirect Type = "DIRECT"
	// TypeGroup is reserved; the delivery layer only creates direct
	// conversations.
	TypeGroup Type = "GROUP"
)

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusArchived Status = "ARCHIVED"
	StatusBlocked  Status = "BLOCKED"
)
