package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"rentara/internal/domain/maintenance"
	"rentara/internal/domain/notification"
	"rentara/internal/domain/property"
	"rentara/internal/domain/user"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var ErrDescriptionTooShort = errors.New("maintenance description is too short")

type MaintenanceService struct {
	ticketRepo maintenance.Repository
	userRepo   user.Repository
	notifier   NotificationService
	logger     *logrus.Entry
}

func NewMaintenanceService(tr maintenance.Repository, ur user.Repository, notifier NotificationService, logger *logrus.Entry) *MaintenanceService {
	return &MaintenanceService{
		ticketRepo: tr,
		userRepo:   ur,
		notifier:   notifier,
		logger:     logger,
	}
}

// Submit opens a PENDING ticket on unit raised by tenantID and tells every admin about it.
func (s *MaintenanceService) Submit(ctx context.Context, tenantID string, unit *property.Unit, description string) (*maintenance.Ticket, error) {
	description = strings.TrimSpace(description)
	if utf8.RuneCountInString(description) < maintenance.MinDescriptionLength {
		return nil, ErrDescriptionTooShort
	}

	t := &maintenance.Ticket{
		ID:          uuid.NewString(),
		UnitID:      unit.ID,
		Description: description,
		Status:      maintenance.StatusPending,
		CreatedByID: tenantID,
	}
	if err := s.ticketRepo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create maintenance ticket: %w", err)
	}

	log := s.logger.WithFields(logrus.Fields{"ticket_id": t.ID, "unit_id": unit.ID, "tenant_id": tenantID})
	log.Info("Maintenance ticket created")

	admins, err := s.userRepo.ListByRole(ctx, user.RoleAdmin)
	if err != nil {
		log.WithError(err).Error("Failed to list admins for ticket notification")
		return t, nil
	}
	msg := fmt.Sprintf("New maintenance request for %s: %s", unit.Name, description)
	for _, a := range admins {
		if _, err := s.notifier.Notify(ctx, a.ID, "New Maintenance Request", msg, notification.MediumInApp); err != nil {
			log.WithError(err).WithField("admin_id", a.ID).Error("Failed to notify admin of new ticket")
		}
	}
	return t, nil
}
