// Package ussd holds the USSD session record and the gateway request/reply shapes.
package ussd

import (
	"time"

	"rentara/internal/domain/user"
)

// State is the menu screen a session is positioned on.
type State string

const (
	StateMainMenu              State = "MAIN_MENU"
	StatePayRentSelectUnit     State = "PAY_RENT_SELECT_UNIT"
	StatePayRentSelectMonth    State = "PAY_RENT_SELECT_MONTH"
	StateMaintenanceSelectUnit State = "MAINTENANCE_SELECT_UNIT"
	StateMaintenanceEnterDesc  State = "MAINTENANCE_ENTER_DESC"
)

// Identity is the user resolved from the caller's phone when the session was created.
type Identity struct {
	UserID string    `json:"userId"`
	Role   user.Role `json:"role"`
}

// Session is one interactive USSD dialog. Identity is written once on
// creation; Version increments on every save.
type Session struct {
	ID           string // gateway session id
	PhoneNumber  string
	State        State
	Identity     *Identity
	LastInput    string // last token of the path
	LastText     string // full path answered by LastResponse
	LastResponse string
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewSession returns a session positioned on the main menu.
func NewSession(id, phone string, identity *Identity) *Session {
	return &Session{
		ID:          id,
		PhoneNumber: phone,
		State:       StateMainMenu,
		Identity:    identity,
	}
}
