package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rentara/internal/domain/property"
	"rentara/internal/domain/ussd"
)

// menuWalk carries one request through the menu. Units are queried at most
// once per request; nothing survives between requests.
type menuWalk struct {
	text        *MenuText
	unitRepo    property.UnitRepository
	payments    *PaymentService
	maintenance *MaintenanceService

	tenantID string
	phone    string
	now      time.Time

	units       []*property.Unit
	unitsLoaded bool
	unit        *property.Unit // current selection
}

func (w *menuWalk) reset() {
	w.unit = nil
}

func (w *menuWalk) tenantUnits(ctx context.Context) ([]*property.Unit, error) {
	if w.unitsLoaded {
		return w.units, nil
	}
	units, err := w.unitRepo.ListByTenant(ctx, w.tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenant units: %w", err)
	}
	w.units, w.unitsLoaded = units, true
	return units, nil
}

// pick resolves a 1-based list position.
func (w *menuWalk) pick(ctx context.Context, input string) (*property.Unit, bool, error) {
	units, err := w.tenantUnits(ctx)
	if err != nil {
		return nil, false, err
	}
	idx, err := strconv.Atoi(input)
	if err != nil || idx < 1 || idx > len(units) {
		return nil, false, nil
	}
	return units[idx-1], true, nil
}

func (w *menuWalk) endText(id string, data map[string]any) ussd.Reply {
	return ussd.End(w.text.T(id, data))
}

func (w *menuWalk) checkBalance(ctx context.Context, _ string) (ussd.Reply, error) {
	units, err := w.tenantUnits(ctx)
	if err != nil {
		return ussd.Reply{}, err
	}
	if len(units) == 0 {
		return w.endText("no_units", nil), nil
	}

	arrears, err := w.payments.RentArrears(ctx, w.tenantID, units)
	if err != nil {
		return ussd.Reply{}, err
	}
	blocks := make([]string, 0, len(arrears)+1)
	blocks = append(blocks, w.text.T("balance_header", nil))
	for _, a := range arrears {
		blocks = append(blocks, w.text.T("balance_unit", map[string]any{
			"Unit":   a.Unit.Name,
			"Rent":   a.Unit.RentAmount,
			"Months": len(a.UnpaidMonths),
			"Total":  a.Total,
		}))
	}
	return ussd.End(strings.Join(blocks, "\n\n")), nil
}

func (w *menuWalk) listPayUnits(ctx context.Context, _ string) (ussd.Reply, error) {
	return w.unitMenu(ctx, "pay_unit_option")
}

func (w *menuWalk) listMaintenanceUnits(ctx context.Context, _ string) (ussd.Reply, error) {
	return w.unitMenu(ctx, "unit_option")
}

func (w *menuWalk) unitMenu(ctx context.Context, lineID string) (ussd.Reply, error) {
	units, err := w.tenantUnits(ctx)
	if err != nil {
		return ussd.Reply{}, err
	}
	if len(units) == 0 {
		return w.endText("no_units", nil), nil
	}

	lines := []string{w.text.T("select_unit", nil)}
	for i, u := range units {
		lines = append(lines, w.text.T(lineID, map[string]any{"Index": i + 1, "Unit": u.Name, "Rent": u.RentAmount}))
	}
	lines = append(lines, w.text.T("back", nil))
	return ussd.Continue(strings.Join(lines, "\n")), nil
}

func (w *menuWalk) selectPayUnit(ctx context.Context, input string) (ussd.Reply, error) {
	u, ok, err := w.pick(ctx, input)
	if err != nil {
		return ussd.Reply{}, err
	}
	if !ok {
		return w.endText("invalid_unit", nil), nil
	}
	w.unit = u

	lines := []string{w.text.T("select_month", nil)}
	for m := 1; m <= int(w.now.Month()); m++ {
		lines = append(lines, w.text.T("month_option", map[string]any{"Index": m, "Month": w.text.Month(m)}))
	}
	lines = append(lines, w.text.T("back", nil))
	return ussd.Continue(strings.Join(lines, "\n")), nil
}

func (w *menuWalk) confirmPayment(ctx context.Context, input string) (ussd.Reply, error) {
	month, err := strconv.Atoi(input)
	if err != nil || month < 1 || month > int(w.now.Month()) {
		return w.endText("invalid_month", nil), nil
	}

	_, err = w.payments.InitiateRentPayment(ctx, RentPaymentRequest{
		TenantID: w.tenantID,
		Phone:    w.phone,
		Unit:     w.unit,
		Month:    month,
		Year:     w.now.Year(),
		Description: w.text.T("payment_description", map[string]any{
			"Unit": w.unit.Name, "Month": w.text.Month(month), "Year": w.now.Year(),
		}),
	})
	switch {
	case errors.Is(err, ErrAlreadyPaid):
		return w.endText("already_paid", map[string]any{"Month": w.text.Month(month)}), nil
	case errors.Is(err, ErrPaymentProviderFailed):
		return w.endText("payment_failed", nil), nil
	case err != nil:
		return ussd.Reply{}, err
	}
	return w.endText("payment_initiated", nil), nil
}

func (w *menuWalk) selectMaintenanceUnit(ctx context.Context, input string) (ussd.Reply, error) {
	u, ok, err := w.pick(ctx, input)
	if err != nil {
		return ussd.Reply{}, err
	}
	if !ok {
		return w.endText("invalid_unit", nil), nil
	}
	w.unit = u
	return ussd.Continue(w.text.T("enter_description", nil)), nil
}

func (w *menuWalk) submitMaintenance(ctx context.Context, description string) (ussd.Reply, error) {
	_, err := w.maintenance.Submit(ctx, w.tenantID, w.unit, description)
	if errors.Is(err, ErrDescriptionTooShort) {
		return w.endText("description_too_short", nil), nil
	}
	if err != nil {
		return ussd.Reply{}, err
	}
	return w.endText("ticket_submitted", nil), nil
}

func (w *menuWalk) leaseInfo(ctx context.Context, _ string) (ussd.Reply, error) {
	units, err := w.tenantUnits(ctx)
	if err != nil {
		return ussd.Reply{}, err
	}
	if len(units) == 0 {
		return w.endText("no_units", nil), nil
	}

	blocks := []string{w.text.T("lease_header", nil)}
	for i, u := range units {
		blocks = append(blocks, w.text.T("lease_unit", map[string]any{
			"Index":    i + 1,
			"Unit":     u.Name,
			"Property": u.Property.Name,
			"Location": u.Property.Location,
			"Rent":     u.RentAmount,
		}))
	}
	return ussd.End(strings.Join(blocks, "\n\n")), nil
}
