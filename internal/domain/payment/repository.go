package payment

import (
	"context"
	"time"
)

// Repository persists rent payments. Status transitions are conditional
// updates so that concurrent writers cannot both move the same payment.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Payment, error)
	GetByTransactionRef(ctx context.Context, ref string) (*Payment, error)

	// EnsurePending inserts p as PENDING or, if the period already exists and
	// is not COMPLETED, resets it to PENDING with p.Amount. A COMPLETED row is
	// returned untouched. p is overwritten with the stored row.
	EnsurePending(ctx context.Context, p *Payment) error
	SetTransactionRef(ctx context.Context, id, ref string) error

	// CompletePending and FailPending only affect rows still PENDING and
	// return ErrPaymentNotPending otherwise.
	CompletePending(ctx context.Context, id, receipt string, paidAt time.Time) (*Payment, error)
	FailPending(ctx context.Context, id, reason string) (*Payment, error)

	ListCompletedByTenantYear(ctx context.Context, tenantID string, year int) ([]*Payment, error)
	ListStalePending(ctx context.Context, updatedBefore time.Time) ([]*Payment, error)
}
