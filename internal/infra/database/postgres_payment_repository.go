// internal/infra/database/postgres_payment_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rentara/internal/domain/payment"
)

type PostgresPaymentRepository struct {
	db *sql.DB
}

func NewPostgresPaymentRepository(db *sql.DB) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{db: db}
}

const paymentColumns = `id, tenant_id, unit_id, amount, month, year, status, transaction_ref,
                        receipt, failure_reason, paid_at, created_at, updated_at`

func scanPayment(row rowScanner) (*payment.Payment, error) {
	p := &payment.Payment{}
	err := row.Scan(&p.ID, &p.TenantID, &p.UnitID, &p.Amount, &p.Month, &p.Year, &p.Status,
		&p.TransactionRef, &p.Receipt, &p.FailureReason, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func scanPayments(rows *sql.Rows) ([]*payment.Payment, error) {
	payments := make([]*payment.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning payment row: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment rows: %w", err)
	}
	return payments, nil
}

func (r *PostgresPaymentRepository) getOne(ctx context.Context, what, where string, args ...any) (*payment.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE `+where, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("error getting payment by %s: %w", what, err)
	}
	return p, nil
}

func (r *PostgresPaymentRepository) GetByID(ctx context.Context, id string) (*payment.Payment, error) {
	return r.getOne(ctx, "ID", `id = $1`, id)
}

func (r *PostgresPaymentRepository) GetByTransactionRef(ctx context.Context, ref string) (*payment.Payment, error) {
	return r.getOne(ctx, "transaction ref", `transaction_ref = $1`, ref)
}

// EnsurePending is a single upsert: two initiations for the same period
// cannot both insert, and a COMPLETED row is never reopened. Reopening a
// FAILED row drops its old transaction ref.
func (r *PostgresPaymentRepository) EnsurePending(ctx context.Context, p *payment.Payment) error {
	query := `INSERT INTO payments (id, tenant_id, unit_id, amount, month, year, status)
               VALUES ($1, $2, $3, $4, $5, $6, $7)
               ON CONFLICT (tenant_id, unit_id, month, year) DO UPDATE
               SET status         = CASE WHEN payments.status = $8 THEN payments.status ELSE EXCLUDED.status END,
                   amount         = CASE WHEN payments.status = $8 THEN payments.amount ELSE EXCLUDED.amount END,
                   failure_reason = CASE WHEN payments.status = $8 THEN payments.failure_reason ELSE NULL END,
                   transaction_ref = CASE WHEN payments.status = $9 THEN NULL ELSE payments.transaction_ref END,
                   updated_at     = CASE WHEN payments.status = $8 THEN payments.updated_at ELSE NOW() END
               RETURNING ` + paymentColumns
	stored, err := scanPayment(r.db.QueryRowContext(ctx, query,
		p.ID, p.TenantID, p.UnitID, p.Amount, p.Month, p.Year,
		payment.StatusPending, payment.StatusCompleted, payment.StatusFailed))
	if err != nil {
		return fmt.Errorf("error upserting pending payment: %w", err)
	}
	*p = *stored
	return nil
}

func (r *PostgresPaymentRepository) SetTransactionRef(ctx context.Context, id, ref string) error {
	query := `UPDATE payments SET transaction_ref = $1, updated_at = NOW() WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, ref, id)
	if err != nil {
		return fmt.Errorf("error setting payment transaction ref: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *PostgresPaymentRepository) CompletePending(ctx context.Context, id, receipt string, paidAt time.Time) (*payment.Payment, error) {
	query := `UPDATE payments
               SET status = $1, receipt = NULLIF($2, ''), paid_at = $3, updated_at = NOW()
               WHERE id = $4 AND status = $5
               RETURNING ` + paymentColumns
	p, err := scanPayment(r.db.QueryRowContext(ctx, query, payment.StatusCompleted, receipt, paidAt, id, payment.StatusPending))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotPending
		}
		return nil, fmt.Errorf("error completing payment: %w", err)
	}
	return p, nil
}

func (r *PostgresPaymentRepository) FailPending(ctx context.Context, id, reason string) (*payment.Payment, error) {
	query := `UPDATE payments
               SET status = $1, failure_reason = NULLIF($2, ''), updated_at = NOW()
               WHERE id = $3 AND status = $4
               RETURNING ` + paymentColumns
	p, err := scanPayment(r.db.QueryRowContext(ctx, query, payment.StatusFailed, reason, id, payment.StatusPending))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotPending
		}
		return nil, fmt.Errorf("error failing payment: %w", err)
	}
	return p, nil
}

func (r *PostgresPaymentRepository) ListCompletedByTenantYear(ctx context.Context, tenantID string, year int) ([]*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
               WHERE tenant_id = $1 AND year = $2 AND status = $3
               ORDER BY unit_id, month`
	rows, err := r.db.QueryContext(ctx, query, tenantID, year, payment.StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("error querying completed payments: %w", err)
	}
	defer rows.Close()
	return scanPayments(rows)
}

func (r *PostgresPaymentRepository) ListStalePending(ctx context.Context, updatedBefore time.Time) ([]*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
               WHERE status = $1 AND updated_at < $2
               ORDER BY updated_at ASC` // Process older ones first
	rows, err := r.db.QueryContext(ctx, query, payment.StatusPending, updatedBefore)
	if err != nil {
		return nil, fmt.Errorf("error querying stale pending payments: %w", err)
	}
	defer rows.Close()
	return scanPayments(rows)
}
