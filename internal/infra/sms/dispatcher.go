package sms

import (
	"context"
	"errors"
	"fmt"

	"rentara/internal/domain/notification"
	"rentara/internal/infra/config"

	"github.com/sirupsen/logrus"
)

// Carrier is one SMS provider.
type Carrier interface {
	Name() string
	Send(ctx context.Context, phone, message string) error
}

// Dispatcher tries carriers in order until one accepts the message.
type Dispatcher struct {
	carriers []Carrier
	logger   *logrus.Entry
}

func NewDispatcher(logger *logrus.Entry, carriers ...Carrier) *Dispatcher {
	return &Dispatcher{carriers: carriers, logger: logger}
}

// NewDispatcherFromConfig enables Twilio first and Africa's Talking second,
// each only when its credentials are present.
func NewDispatcherFromConfig(twilio config.TwilioConfig, at config.AfricasTalkingConfig, logger *logrus.Entry) *Dispatcher {
	var carriers []Carrier
	if twilio.AccountSID != "" && twilio.AuthToken != "" && twilio.FromNumber != "" {
		carriers = append(carriers, NewTwilio(twilio))
	}
	if at.APIKey != "" && at.Username != "" {
		carriers = append(carriers, NewAfricasTalking(at))
	}
	if len(carriers) == 0 {
		logger.Warn("No SMS carrier configured, SMS notifications will only be stored")
	}
	return NewDispatcher(logger, carriers...)
}

func (d *Dispatcher) Send(ctx context.Context, phone, message string) error {
	if len(d.carriers) == 0 {
		return notification.ErrNoCarrier
	}

	var errs []error
	for _, c := range d.carriers {
		err := c.Send(ctx, phone, message)
		if err == nil {
			d.logger.WithFields(logrus.Fields{"carrier": c.Name(), "phone": phone}).Debug("SMS sent")
			return nil
		}
		d.logger.WithError(err).WithField("carrier", c.Name()).Warn("SMS carrier failed, trying next")
		errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return errors.Join(errs...)
}
