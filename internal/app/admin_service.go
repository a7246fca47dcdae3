package app

import (
	"context"
	"fmt"

	"rentara/internal/domain/payment"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")

// AdminService backs the operator commands of the Telegram bot.
type AdminService struct {
	payments        *PaymentService
	adminTelegramID int64
}

func NewAdminService(payments *PaymentService, adminID int64) *AdminService {
	return &AdminService{
		payments:        payments,
		adminTelegramID: adminID,
	}
}

// ListStalePayments returns PENDING payments older than the reconcile grace period.
func (s *AdminService) ListStalePayments(ctx context.Context, performingAdminID int64) ([]*payment.Payment, error) {
	if performingAdminID != s.adminTelegramID {
		return nil, ErrAdminNotAuthorized
	}
	stale, err := s.payments.ListStalePending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale payments: %w", err)
	}
	return stale, nil
}

// RunReconciliation runs the pending payment sweep immediately.
func (s *AdminService) RunReconciliation(ctx context.Context, performingAdminID int64) (ReconcileReport, error) {
	if performingAdminID != s.adminTelegramID {
		return ReconcileReport{}, ErrAdminNotAuthorized
	}
	return s.payments.ReconcilePending(ctx)
}
