// Package payment holds rent payment records and the push-payment provider contract.
package payment

import (
	"database/sql"
	"fmt"
	"time"
)

// Status is the lifecycle state of a rent payment.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Payment is one tenant's rent for one unit and one month.
// (TenantID, UnitID, Month, Year) is unique.
type Payment struct {
	ID             string
	TenantID       string
	UnitID         string
	Amount         int64
	Month          int // 1..12
	Year           int
	Status         Status
	TransactionRef sql.NullString // provider checkout id, set after initiation
	Receipt        sql.NullString
	FailureReason  sql.NullString
	PaidAt         sql.NullTime
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsTerminal reports whether the payment can no longer change status.
func (p *Payment) IsTerminal() bool {
	return p.Status == StatusCompleted || p.Status == StatusFailed
}

// AccountReference is the reference shown on the payer's statement.
func AccountReference(unitID string, month, year int) string {
	return fmt.Sprintf("RENT-%s-%d-%d", unitID, month, year)
}
