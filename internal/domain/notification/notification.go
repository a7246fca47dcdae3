// internal/domain/notification/notification.go
package notification

import "time"

// Medium is the delivery channel of a notification.
type Medium string

const (
	MediumSMS   Medium = "SMS"
	MediumInApp Medium = "IN_APP"
)

// Notification is a message addressed to a user. It is stored for the
// in-app inbox whatever the medium; SMS notifications are also texted.
type Notification struct {
	ID        string
	UserID    string
	Title     string
	Message   string
	Medium    Medium
	IsRead    bool
	CreatedAt time.Time
}
