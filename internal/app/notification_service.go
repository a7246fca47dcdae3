// internal/app/notification_service.go
package app

import (
	"context"
	"errors"
	"fmt"

	"rentara/internal/domain/notification"
	"rentara/internal/domain/user"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// NotificationService records a notification for a user and delivers it over its medium.
type NotificationService interface {
	// Notify always stores the notification first. Delivery problems are
	// logged and never returned; only a storage failure is an error.
	Notify(ctx context.Context, userID, title, message string, medium notification.Medium) (*notification.Notification, error)
}

// NotificationServiceImpl implements the NotificationService interface.
type NotificationServiceImpl struct {
	userRepo  user.Repository
	notifRepo notification.Repository
	sms       notification.SMSSender
	logger    *logrus.Entry
}

func NewNotificationServiceImpl(
	ur user.Repository,
	nr notification.Repository,
	sms notification.SMSSender,
	logger *logrus.Entry,
) *NotificationServiceImpl {
	return &NotificationServiceImpl{
		userRepo:  ur,
		notifRepo: nr,
		sms:       sms,
		logger:    logger,
	}
}

func (s *NotificationServiceImpl) Notify(ctx context.Context, userID, title, message string, medium notification.Medium) (*notification.Notification, error) {
	n := &notification.Notification{
		ID:      uuid.NewString(),
		UserID:  userID,
		Title:   title,
		Message: message,
		Medium:  medium,
	}
	if err := s.notifRepo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to store notification: %w", err)
	}

	if medium != notification.MediumSMS {
		return n, nil
	}

	log := s.logger.WithFields(logrus.Fields{"notification_id": n.ID, "user_id": userID})
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		log.WithError(err).Warn("Could not load recipient, SMS not sent")
		return n, nil
	}

	if err := s.sms.Send(ctx, u.Phone, title+"\n\n"+message); err != nil {
		if errors.Is(err, notification.ErrNoCarrier) {
			log.Warn("No SMS carrier configured, notification stored only")
		} else {
			log.WithError(err).Error("Failed to send SMS notification")
		}
		return n, nil
	}
	log.Info("SMS notification sent")
	return n, nil
}
