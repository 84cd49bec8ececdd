package message

type Type string

const (
	TypeText   Type = "TEXT"
	TypeImage  Type = "IMAGE"
	TypeFile   Type = "FILE"
	TypeSystem Type = "SYSTEM"
)

type Status string

const (
	StatusSent      Status = "SENT"
	StatusDelivered Status = "DELIVERED"
	StatusRead      Status = "READ"
)

type AcceptanceStatus string

const (
	AcceptancePending      AcceptanceStatus = "PENDING"
	AcceptanceAccepted     AcceptanceStatus = "ACCEPTED"
	AcceptanceRejected     AcceptanceStatus = "REJECTED"
	AcceptanceAutoAccepted AcceptanceStatus = "AUTO_ACCEPTED"
)

// IsVisibleAcceptance reports whether the acceptance state lets the receiver
// see the message.
func IsVisibleAcceptance(s AcceptanceStatus) bool {
	return s == AcceptanceAccepted || s == AcceptanceAutoAccepted
}
