package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rentara/internal/domain/notification"
	"rentara/internal/domain/payment"
	"rentara/internal/domain/property"
	idb "rentara/internal/infra/database"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrAlreadyPaid           = errors.New("rent for this period is already paid")
	ErrPaymentProviderFailed = errors.New("payment provider did not accept the request")
)

// AbandonedReason is recorded on PENDING payments the provider never acknowledged.
const AbandonedReason = "initiation not confirmed by provider"

// CallbackOutcome says what a provider callback did to the matched payment.
type CallbackOutcome string

const (
	CallbackCompleted CallbackOutcome = "completed"
	CallbackFailed    CallbackOutcome = "failed"
	CallbackDuplicate CallbackOutcome = "duplicate" // payment was already terminal
	CallbackUnmatched CallbackOutcome = "unmatched" // no payment carries the reference
)

// RentPaymentRequest asks for one month of rent on one unit.
type RentPaymentRequest struct {
	TenantID    string
	Phone       string
	Unit        *property.Unit
	Month       int
	Year        int
	Description string
}

// UnitArrears is the unpaid rent of one unit for the current year.
type UnitArrears struct {
	Unit         *property.Unit
	UnpaidMonths []int
	Total        int64
}

// ReconcileReport summarises one sweep over stale PENDING payments.
type ReconcileReport struct {
	Checked      int
	Completed    int
	Failed       int
	Abandoned    int
	StillPending int
	Errors       int
}

func (r ReconcileReport) String() string {
	return fmt.Sprintf("checked=%d completed=%d failed=%d abandoned=%d still_pending=%d errors=%d",
		r.Checked, r.Completed, r.Failed, r.Abandoned, r.StillPending, r.Errors)
}

// ReconcileOptions bound the sweep. Payments idle for less than Grace are
// left to the callback; unacknowledged ones idle for AbandonAfter are failed.
type ReconcileOptions struct {
	Grace        time.Duration
	AbandonAfter time.Duration
}

type PaymentService struct {
	paymentRepo payment.Repository
	unitRepo    property.UnitRepository
	gateway     payment.Gateway
	notifier    NotificationService
	alerter     Alerter
	opts        ReconcileOptions
	logger      *logrus.Entry
	now         func() time.Time
}

func NewPaymentService(
	pr payment.Repository,
	ur property.UnitRepository,
	gateway payment.Gateway, // nil when M-Pesa is not configured
	notifier NotificationService,
	alerter Alerter,
	opts ReconcileOptions,
	logger *logrus.Entry,
) *PaymentService {
	return &PaymentService{
		paymentRepo: pr,
		unitRepo:    ur,
		gateway:     gateway,
		notifier:    notifier,
		alerter:     alerter,
		opts:        opts,
		logger:      logger,
		now:         time.Now,
	}
}

// RentArrears counts, per unit, the months 1..now.Month() of the current
// year without a COMPLETED payment.
func (s *PaymentService) RentArrears(ctx context.Context, tenantID string, units []*property.Unit) ([]UnitArrears, error) {
	now := s.now()
	completed, err := s.paymentRepo.ListCompletedByTenantYear(ctx, tenantID, now.Year())
	if err != nil {
		return nil, fmt.Errorf("failed to list completed payments: %w", err)
	}

	paid := make(map[string]map[int]bool, len(units))
	for _, p := range completed {
		if paid[p.UnitID] == nil {
			paid[p.UnitID] = make(map[int]bool)
		}
		paid[p.UnitID][p.Month] = true
	}

	arrears := make([]UnitArrears, 0, len(units))
	for _, u := range units {
		a := UnitArrears{Unit: u, UnpaidMonths: []int{}}
		for m := 1; m <= int(now.Month()); m++ {
			if !paid[u.ID][m] {
				a.UnpaidMonths = append(a.UnpaidMonths, m)
			}
		}
		a.Total = int64(len(a.UnpaidMonths)) * u.RentAmount
		arrears = append(arrears, a)
	}
	return arrears, nil
}

// InitiateRentPayment finds or creates the PENDING payment for the period and
// prompts the tenant's phone. A COMPLETED period returns ErrAlreadyPaid
// without calling the provider. On provider failure the payment stays PENDING
// and the error wraps ErrPaymentProviderFailed.
func (s *PaymentService) InitiateRentPayment(ctx context.Context, req RentPaymentRequest) (*payment.Payment, error) {
	p := &payment.Payment{
		ID:       uuid.NewString(),
		TenantID: req.TenantID,
		UnitID:   req.Unit.ID,
		Amount:   req.Unit.RentAmount,
		Month:    req.Month,
		Year:     req.Year,
	}
	if err := s.paymentRepo.EnsurePending(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to open pending payment: %w", err)
	}

	log := s.logger.WithFields(logrus.Fields{
		"payment_id": p.ID,
		"tenant_id":  p.TenantID,
		"unit_id":    p.UnitID,
		"period":     fmt.Sprintf("%d-%02d", p.Year, p.Month),
	})
	if p.Status == payment.StatusCompleted {
		log.Info("Period already paid, not initiating")
		return p, ErrAlreadyPaid
	}
	if s.gateway == nil {
		log.Error("No payment gateway configured")
		return p, fmt.Errorf("%w: gateway not configured", ErrPaymentProviderFailed)
	}

	res, err := s.gateway.Initiate(ctx, payment.PushRequest{
		Phone:       req.Phone,
		Amount:      p.Amount,
		Reference:   payment.AccountReference(p.UnitID, p.Month, p.Year),
		Description: req.Description,
	})
	if err != nil {
		log.WithError(err).Error("Push payment initiation failed, payment left PENDING")
		return p, fmt.Errorf("%w: %w", ErrPaymentProviderFailed, err)
	}

	if err := s.paymentRepo.SetTransactionRef(ctx, p.ID, res.TransactionRef); err != nil {
		log.WithError(err).WithField("transaction_ref", res.TransactionRef).Error("Payer prompted but transaction ref not stored")
		return p, fmt.Errorf("failed to store transaction ref: %w", err)
	}
	p.TransactionRef = sql.NullString{String: res.TransactionRef, Valid: true}
	log.WithField("transaction_ref", res.TransactionRef).Info("Push payment initiated")
	return p, nil
}

// HandleCallback applies a provider callback to the payment carrying its
// reference. Only persistence failures are returned as errors.
func (s *PaymentService) HandleCallback(ctx context.Context, res payment.CallbackResult) (CallbackOutcome, error) {
	log := s.logger.WithFields(logrus.Fields{
		"transaction_ref": res.TransactionRef,
		"result_code":     res.ResultCode,
	})

	p, err := s.paymentRepo.GetByTransactionRef(ctx, res.TransactionRef)
	if err != nil {
		if errors.Is(err, idb.ErrPaymentNotFound) {
			log.WithField("result_desc", res.ResultDesc).Warn("Callback does not match any payment")
			s.alerter.Alert(ctx, fmt.Sprintf("Unmatched M-Pesa callback: ref=%s code=%d receipt=%s phone=%s desc=%q",
				res.TransactionRef, res.ResultCode, res.Receipt, res.Phone, res.ResultDesc))
			return CallbackUnmatched, nil
		}
		return "", fmt.Errorf("failed to look up payment by ref: %w", err)
	}
	log = log.WithField("payment_id", p.ID)

	if p.IsTerminal() {
		log.WithField("status", p.Status).Info("Payment already settled, callback ignored")
		return CallbackDuplicate, nil
	}

	if res.Succeeded() {
		// The charge stands; a mismatch is only flagged.
		if res.Amount > 0 && res.Amount != p.Amount {
			log.WithFields(logrus.Fields{"expected": p.Amount, "paid": res.Amount}).Warn("Callback amount differs from payment")
			s.alerter.Alert(ctx, fmt.Sprintf("M-Pesa amount mismatch: payment=%s ref=%s expected=KES %d paid=KES %d receipt=%s",
				p.ID, res.TransactionRef, p.Amount, res.Amount, res.Receipt))
		}
		ok, err := s.complete(ctx, p, res.Receipt, log)
		if err != nil {
			return "", err
		}
		if !ok {
			return CallbackDuplicate, nil
		}
		return CallbackCompleted, nil
	}

	ok, err := s.fail(ctx, p, res.ResultDesc, true, log)
	if err != nil {
		return "", err
	}
	if !ok {
		return CallbackDuplicate, nil
	}
	return CallbackFailed, nil
}

// ReconcilePending resolves PENDING payments the callback never settled by
// asking the provider, and fails those the provider never acknowledged.
func (s *PaymentService) ReconcilePending(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	now := s.now()

	stale, err := s.paymentRepo.ListStalePending(ctx, now.Add(-s.opts.Grace))
	if err != nil {
		return report, fmt.Errorf("failed to list stale payments: %w", err)
	}

	for _, p := range stale {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++
		log := s.logger.WithFields(logrus.Fields{"payment_id": p.ID, "sweep": true})

		if !p.TransactionRef.Valid {
			if now.Sub(p.UpdatedAt) < s.opts.AbandonAfter {
				report.StillPending++
				continue
			}
			ok, err := s.fail(ctx, p, AbandonedReason, false, log)
			switch {
			case err != nil:
				log.WithError(err).Error("Failed to abandon payment")
				report.Errors++
			case ok:
				report.Abandoned++
			}
			continue
		}

		if s.gateway == nil {
			report.StillPending++
			continue
		}
		log = log.WithField("transaction_ref", p.TransactionRef.String)
		st, err := s.gateway.QueryStatus(ctx, p.TransactionRef.String)
		if err != nil {
			log.WithError(err).Warn("Provider status query failed")
			report.Errors++
			continue
		}
		if st.Pending {
			report.StillPending++
			continue
		}

		var ok bool
		if st.ResultCode == 0 {
			ok, err = s.complete(ctx, p, "", log)
			if ok {
				report.Completed++
			}
		} else {
			ok, err = s.fail(ctx, p, st.ResultDesc, true, log)
			if ok {
				report.Failed++
			}
		}
		if err != nil {
			log.WithError(err).Error("Failed to settle payment during sweep")
			report.Errors++
		}
	}

	s.logger.WithField("report", report.String()).Info("Pending payment sweep finished")
	if report.Abandoned > 0 || report.Errors > 0 {
		s.alerter.Alert(ctx, "Payment reconciliation needs attention: "+report.String())
	}
	return report, nil
}

// ListStalePending returns PENDING payments idle for longer than the grace period.
func (s *PaymentService) ListStalePending(ctx context.Context) ([]*payment.Payment, error) {
	return s.paymentRepo.ListStalePending(ctx, s.now().Add(-s.opts.Grace))
}

// complete moves p to COMPLETED and texts the tenant. It reports false when
// another writer settled p first.
func (s *PaymentService) complete(ctx context.Context, p *payment.Payment, receipt string, log *logrus.Entry) (bool, error) {
	updated, err := s.paymentRepo.CompletePending(ctx, p.ID, receipt, s.now())
	if err != nil {
		if errors.Is(err, idb.ErrPaymentNotPending) {
			log.Info("Payment settled concurrently, nothing to do")
			return false, nil
		}
		return false, fmt.Errorf("failed to complete payment: %w", err)
	}
	log.WithField("receipt", receipt).Info("Payment completed")

	msg := fmt.Sprintf("Your rent payment of KES %d for %s has been confirmed.", updated.Amount, s.unitName(ctx, updated.UnitID))
	if receipt != "" {
		msg += " Receipt: " + receipt
	}
	s.notifyTenant(ctx, updated, "Payment Confirmed", msg, log)
	return true, nil
}

func (s *PaymentService) fail(ctx context.Context, p *payment.Payment, reason string, notify bool, log *logrus.Entry) (bool, error) {
	updated, err := s.paymentRepo.FailPending(ctx, p.ID, reason)
	if err != nil {
		if errors.Is(err, idb.ErrPaymentNotPending) {
			log.Info("Payment settled concurrently, nothing to do")
			return false, nil
		}
		return false, fmt.Errorf("failed to fail payment: %w", err)
	}
	log.WithField("reason", reason).Info("Payment failed")

	if notify {
		msg := fmt.Sprintf("Your rent payment for %s failed. Please try again.", s.unitName(ctx, updated.UnitID))
		s.notifyTenant(ctx, updated, "Payment Failed", msg, log)
	}
	return true, nil
}

func (s *PaymentService) notifyTenant(ctx context.Context, p *payment.Payment, title, msg string, log *logrus.Entry) {
	if _, err := s.notifier.Notify(ctx, p.TenantID, title, msg, notification.MediumSMS); err != nil {
		log.WithError(err).Error("Failed to notify tenant")
	}
}

func (s *PaymentService) unitName(ctx context.Context, unitID string) string {
	u, err := s.unitRepo.GetByID(ctx, unitID)
	if err != nil {
		s.logger.WithError(err).WithField("unit_id", unitID).Warn("Unit lookup failed, using id in message")
		return unitID
	}
	return u.Name
}
