package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rentara/internal/domain/property"
	"rentara/internal/domain/user"
	"rentara/internal/domain/ussd"
	idb "rentara/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// USSDService answers gateway steps. It is the only writer of session state.
type USSDService struct {
	sessionRepo ussd.Repository
	locker      ussd.Locker
	userRepo    user.Repository
	unitRepo    property.UnitRepository
	payments    *PaymentService
	maintenance *MaintenanceService
	text        *MenuText
	lockTTL     time.Duration
	logger      *logrus.Entry
	now         func() time.Time
}

func NewUSSDService(
	sr ussd.Repository,
	locker ussd.Locker,
	ur user.Repository,
	unr property.UnitRepository,
	payments *PaymentService,
	maintenance *MaintenanceService,
	text *MenuText,
	lockTTL time.Duration,
	logger *logrus.Entry,
) *USSDService {
	return &USSDService{
		sessionRepo: sr,
		locker:      locker,
		userRepo:    ur,
		unitRepo:    unr,
		payments:    payments,
		maintenance: maintenance,
		text:        text,
		lockTTL:     lockTTL,
		logger:      logger,
		now:         time.Now,
	}
}

// Handle never fails: unexpected errors become the generic END reply.
func (s *USSDService) Handle(ctx context.Context, req ussd.Request) ussd.Reply {
	log := s.logger.WithFields(logrus.Fields{
		"session_id": req.SessionID,
		"text":       req.Text,
	})
	reply, err := s.handle(ctx, req, log)
	if err != nil {
		log.WithError(err).Error("USSD step failed")
		return ussd.End(s.text.T("generic_error", nil))
	}
	return reply
}

func (s *USSDService) handle(ctx context.Context, req ussd.Request, log *logrus.Entry) (ussd.Reply, error) {
	release, err := s.locker.Acquire(ctx, "ussd:session:"+req.SessionID, s.lockTTL)
	if err != nil {
		return ussd.Reply{}, fmt.Errorf("failed to lock session: %w", err)
	}
	defer release()

	sess, err := s.loadSession(ctx, req.SessionID, ussd.NormalizePhone(req.PhoneNumber))
	if err != nil {
		return ussd.Reply{}, err
	}

	// A gateway retry of the step we already answered.
	if sess.Version > 0 && sess.LastResponse != "" && sess.LastText == req.Text {
		log.Info("Replaying previous response")
		return ussd.ParseReply(sess.LastResponse), nil
	}

	reply, state, err := s.resolve(ctx, sess, req.Tokens(), log)
	if err != nil {
		return ussd.Reply{}, err
	}

	tokens := req.Tokens()
	sess.LastInput = ""
	if len(tokens) > 0 {
		sess.LastInput = tokens[len(tokens)-1]
	}
	sess.State = state
	sess.LastText = req.Text
	sess.LastResponse = reply.String()
	if err := s.sessionRepo.Save(ctx, sess); err != nil {
		if errors.Is(err, idb.ErrSessionVersionConflict) {
			log.Warn("Session changed underneath this step")
		}
		return ussd.Reply{}, fmt.Errorf("failed to save session: %w", err)
	}
	return reply, nil
}

func (s *USSDService) loadSession(ctx context.Context, id, phone string) (*ussd.Session, error) {
	sess, err := s.sessionRepo.Get(ctx, id)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, idb.ErrSessionNotFound) {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var identity *ussd.Identity
	u, err := s.userRepo.GetByPhone(ctx, phone)
	switch {
	case err == nil:
		identity = &ussd.Identity{UserID: u.ID, Role: u.Role}
	case errors.Is(err, idb.ErrUserNotFound):
		s.logger.WithField("phone", phone).Info("USSD session from unregistered phone")
	default:
		return nil, fmt.Errorf("failed to look up caller: %w", err)
	}

	sess = ussd.NewSession(id, phone, identity)
	if err := s.sessionRepo.Create(ctx, sess); err != nil {
		if errors.Is(err, idb.ErrDuplicateSession) {
			return s.sessionRepo.Get(ctx, id)
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

// resolve returns the reply for the whole path and the state to store.
func (s *USSDService) resolve(ctx context.Context, sess *ussd.Session, tokens []string, log *logrus.Entry) (ussd.Reply, ussd.State, error) {
	if sess.Identity == nil {
		return ussd.End(s.text.T("not_registered", nil)), ussd.StateMainMenu, nil
	}
	if sess.Identity.Role != user.RoleTenant {
		log.WithField("role", sess.Identity.Role).Info("Non-tenant tried the USSD menu")
		return ussd.End(s.text.T("tenants_only", nil)), ussd.StateMainMenu, nil
	}

	w := &menuWalk{
		text:        s.text,
		unitRepo:    s.unitRepo,
		payments:    s.payments,
		maintenance: s.maintenance,
		tenantID:    sess.Identity.UserID,
		phone:       sess.PhoneNumber,
		now:         s.now(),
	}
	res, err := w.walk(ctx, tokens)
	if err != nil {
		return ussd.Reply{}, "", err
	}
	if sess.Version > 0 && len(tokens) > 0 && sess.State != res.prev {
		log.WithFields(logrus.Fields{"stored": sess.State, "derived": res.prev}).Debug("Stored session state differs from path")
	}
	return res.reply, res.state, nil
}
