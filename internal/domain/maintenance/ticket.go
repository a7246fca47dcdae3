package maintenance

import (
	"database/sql"
	"time"
)

// Status of a maintenance ticket. Only staff move a ticket past PENDING.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusResolved   Status = "RESOLVED"
	StatusCancelled  Status = "CANCELLED"
)

// MinDescriptionLength is the shortest accepted trimmed description.
const MinDescriptionLength = 5

// Ticket is a maintenance request raised against a unit.
type Ticket struct {
	ID           string
	UnitID       string
	Description  string
	Status       Status
	CreatedByID  string
	AssignedToID sql.NullString
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
