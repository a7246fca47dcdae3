package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rentara/internal/app"
	"rentara/internal/domain/payment"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const maxListedPayments = 20

// RegisterAdminHandlers registers handlers for admin commands.
// It requires the bot instance, admin service, and the configured admin Telegram ID.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, adminService *app.AdminService, adminTelegramID int64, baseLogger *logrus.Entry) {
	b.Handle("/pending", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/pending",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("Error: you are not allowed to run this command.")
		}

		stale, err := adminService.ListStalePayments(ctx, c.Sender().ID)
		if err != nil {
			logWithError := handlerLogger.WithError(err)
			if errors.Is(err, app.ErrAdminNotAuthorized) {
				logWithError.Warn("Admin not authorized (service level)")
				return c.Send("Error: you are not allowed to run this command.")
			}
			logWithError.Error("Failed to list stale payments")
			return c.Send(fmt.Sprintf("Could not list pending payments: %s", err.Error()))
		}

		handlerLogger.WithField("payments_count", len(stale)).Info("Stale payments listed")
		return c.Send(formatStalePayments(stale, time.Now()))
	})

	b.Handle("/reconcile", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/reconcile",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("Error: you are not allowed to run this command.")
		}

		runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		report, err := adminService.RunReconciliation(runCtx, c.Sender().ID)
		if err != nil {
			handlerLogger.WithError(err).Error("Manual reconciliation failed")
			return c.Send(fmt.Sprintf("Reconciliation failed: %s", err.Error()))
		}

		handlerLogger.WithField("report", report.String()).Info("Manual reconciliation finished")
		return c.Send(formatReport(report))
	})
}

func formatStalePayments(stale []*payment.Payment, now time.Time) string {
	if len(stale) == 0 {
		return "No stale pending payments."
	}

	var response strings.Builder
	fmt.Fprintf(&response, "Stale pending payments (%d):\n\n", len(stale))
	for i, p := range stale {
		if i == maxListedPayments {
			fmt.Fprintf(&response, "... and %d more", len(stale)-maxListedPayments)
			break
		}
		ref := "no ref"
		if p.TransactionRef.Valid {
			ref = p.TransactionRef.String
		}
		fmt.Fprintf(&response, "%d. %s unit %s %d-%02d KES %d (%s, idle %s)\n",
			i+1, p.ID, p.UnitID, p.Year, p.Month, p.Amount, ref, now.Sub(p.UpdatedAt).Truncate(time.Minute))
	}
	return strings.TrimRight(response.String(), "\n")
}

func formatReport(r app.ReconcileReport) string {
	return fmt.Sprintf("Reconciliation finished.\nChecked: %d\nCompleted: %d\nFailed: %d\nAbandoned: %d\nStill pending: %d\nErrors: %d",
		r.Checked, r.Completed, r.Failed, r.Abandoned, r.StillPending, r.Errors)
}
