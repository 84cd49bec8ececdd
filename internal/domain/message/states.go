package message

import (
	"time"

	"github.com/google/uuid"
)

// statusRank orders the delivery states. Transitions only ever move forward;
// an attempt to move backward is a no-op, not an error, so retries stay safe.
var statusRank = map[Status]int{
	StatusSent:      0,
	StatusDelivered: 1,
	StatusRead:      2,
}

// CanAdvance reports whether moving from to next is a forward transition.
func CanAdvance(from, next Status) bool {
	return statusRank[next] > statusRank[from]
}

// VisibleTo implements the single visibility rule for a message: a user sees
// it iff it is not hard-deleted, not recalled, the user has not deleted it for
// themselves, and it either cleared acceptance or the user is the sender.
func (m Message) VisibleTo(userID uuid.UUID) bool {
	if m.IsDeleted || m.IsRecalled {
		return false
	}
	for _, d := range m.Deletions {
		if d.UserID == userID {
			return false
		}
	}
	if IsVisibleAcceptance(m.AcceptanceStatus) {
		return true
	}
	return m.SenderID == userID
}

// RecallWindowOpen reports whether a message created at createdAt can still be
// recalled at now.
func RecallWindowOpen(createdAt, now time.Time, window time.Duration) bool {
	return now.Sub(createdAt) <= window
}
