package app

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"rentara/internal/domain/maintenance"
	"rentara/internal/domain/notification"
	"rentara/internal/domain/payment"
	"rentara/internal/domain/property"
	"rentara/internal/domain/user"
	"rentara/internal/domain/ussd"
	"rentara/internal/infra/cache"
	idb "rentara/internal/infra/database"
	"rentara/internal/infra/logger"
)

var testNow = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

type fakeUsers struct {
	users []*user.User
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, idb.ErrUserNotFound
}

func (f *fakeUsers) GetByPhone(_ context.Context, phone string) (*user.User, error) {
	for _, u := range f.users {
		if u.Phone == phone {
			return u, nil
		}
	}
	return nil, idb.ErrUserNotFound
}

func (f *fakeUsers) ListByRole(_ context.Context, role user.Role) ([]*user.User, error) {
	var out []*user.User
	for _, u := range f.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

type fakeUnits struct {
	units []*property.Unit
	err   error
}

func (f *fakeUnits) GetByID(_ context.Context, id string) (*property.Unit, error) {
	for _, u := range f.units {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, idb.ErrUnitNotFound
}

func (f *fakeUnits) ListByTenant(_ context.Context, tenantID string) ([]*property.Unit, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []*property.Unit{}
	for _, u := range f.units {
		if u.TenantID.Valid && u.TenantID.String == tenantID {
			out = append(out, u)
		}
	}
	return out, nil
}

// fakePayments mimics the conditional updates of the Postgres repository.
type fakePayments struct {
	mu     sync.Mutex
	rows   map[string]payment.Payment
	writes int
}

func newFakePayments(rows ...payment.Payment) *fakePayments {
	f := &fakePayments{rows: map[string]payment.Payment{}}
	for _, r := range rows {
		f.rows[r.ID] = r
	}
	return f
}

func (f *fakePayments) get(pred func(payment.Payment) bool) (*payment.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if pred(r) {
			cp := r
			return &cp, nil
		}
	}
	return nil, idb.ErrPaymentNotFound
}

func (f *fakePayments) GetByID(_ context.Context, id string) (*payment.Payment, error) {
	return f.get(func(p payment.Payment) bool { return p.ID == id })
}

func (f *fakePayments) GetByTransactionRef(_ context.Context, ref string) (*payment.Payment, error) {
	return f.get(func(p payment.Payment) bool { return p.TransactionRef.Valid && p.TransactionRef.String == ref })
}

func (f *fakePayments) EnsurePending(_ context.Context, p *payment.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, r := range f.rows {
		if r.TenantID == p.TenantID && r.UnitID == p.UnitID && r.Month == p.Month && r.Year == p.Year {
			if r.Status != payment.StatusCompleted {
				if r.Status == payment.StatusFailed {
					r.TransactionRef = sql.NullString{}
				}
				r.Status = payment.StatusPending
				r.Amount = p.Amount
				r.FailureReason = sql.NullString{}
				r.UpdatedAt = testNow
				f.rows[id] = r
				f.writes++
			}
			*p = r
			return nil
		}
	}
	p.Status = payment.StatusPending
	p.CreatedAt, p.UpdatedAt = testNow, testNow
	f.rows[p.ID] = *p
	f.writes++
	return nil
}

func (f *fakePayments) SetTransactionRef(_ context.Context, id, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return idb.ErrPaymentNotFound
	}
	r.TransactionRef = sql.NullString{String: ref, Valid: true}
	f.rows[id] = r
	f.writes++
	return nil
}

func (f *fakePayments) CompletePending(_ context.Context, id, receipt string, paidAt time.Time) (*payment.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok || r.Status != payment.StatusPending {
		return nil, idb.ErrPaymentNotPending
	}
	r.Status = payment.StatusCompleted
	r.Receipt = sql.NullString{String: receipt, Valid: receipt != ""}
	r.PaidAt = sql.NullTime{Time: paidAt, Valid: true}
	f.rows[id] = r
	f.writes++
	return &r, nil
}

func (f *fakePayments) FailPending(_ context.Context, id, reason string) (*payment.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok || r.Status != payment.StatusPending {
		return nil, idb.ErrPaymentNotPending
	}
	r.Status = payment.StatusFailed
	r.FailureReason = sql.NullString{String: reason, Valid: reason != ""}
	f.rows[id] = r
	f.writes++
	return &r, nil
}

func (f *fakePayments) list(pred func(payment.Payment) bool) []*payment.Payment {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*payment.Payment{}
	for _, r := range f.rows {
		if pred(r) {
			cp := r
			out = append(out, &cp)
		}
	}
	return out
}

func (f *fakePayments) ListCompletedByTenantYear(_ context.Context, tenantID string, year int) ([]*payment.Payment, error) {
	return f.list(func(p payment.Payment) bool {
		return p.TenantID == tenantID && p.Year == year && p.Status == payment.StatusCompleted
	}), nil
}

func (f *fakePayments) ListStalePending(_ context.Context, updatedBefore time.Time) ([]*payment.Payment, error) {
	return f.list(func(p payment.Payment) bool {
		return p.Status == payment.StatusPending && p.UpdatedAt.Before(updatedBefore)
	}), nil
}

func (f *fakePayments) snapshot() []payment.Payment {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]payment.Payment, 0, len(f.rows))
	for _, r := range f.rows {
		out = append(out, r)
	}
	return out
}

type fakeTickets struct {
	mu      sync.Mutex
	created []*maintenance.Ticket
}

func (f *fakeTickets) Create(_ context.Context, t *maintenance.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.CreatedAt, t.UpdatedAt = testNow, testNow
	f.created = append(f.created, t)
	return nil
}

type fakeNotifications struct {
	mu      sync.Mutex
	created []*notification.Notification
	err     error
}

func (f *fakeNotifications) Create(_ context.Context, n *notification.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	n.CreatedAt = testNow
	f.created = append(f.created, n)
	return nil
}

func (f *fakeNotifications) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

type sentSMS struct {
	phone, message string
}

type fakeSMS struct {
	mu   sync.Mutex
	sent []sentSMS
	err  error
}

func (f *fakeSMS) Send(_ context.Context, phone, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentSMS{phone, message})
	return nil
}

func (f *fakeSMS) messages() []sentSMS {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentSMS(nil), f.sent...)
}

type fakeGateway struct {
	mu       sync.Mutex
	calls    []payment.PushRequest
	ref      string
	err      error
	statuses map[string]*payment.PushStatus
	queryErr error

	// during runs inside Initiate, after the call is recorded.
	during func()
}

func (f *fakeGateway) Initiate(_ context.Context, req payment.PushRequest) (*payment.PushResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	during := f.during
	f.mu.Unlock()
	if during != nil {
		during()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &payment.PushResult{TransactionRef: f.ref, ProviderMessage: "Success"}, nil
}

func (f *fakeGateway) QueryStatus(_ context.Context, ref string) (*payment.PushStatus, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	st, ok := f.statuses[ref]
	if !ok {
		return &payment.PushStatus{Pending: true}, nil
	}
	return st, nil
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeSessions struct {
	mu   sync.Mutex
	rows map[string]ussd.Session
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{rows: map[string]ussd.Session{}}
}

func (f *fakeSessions) Get(_ context.Context, id string) (*ussd.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[id]
	if !ok {
		return nil, idb.ErrSessionNotFound
	}
	return &s, nil
}

func (f *fakeSessions) Create(_ context.Context, s *ussd.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[s.ID]; ok {
		return idb.ErrDuplicateSession
	}
	s.Version = 0
	f.rows[s.ID] = *s
	return nil
}

func (f *fakeSessions) Save(_ context.Context, s *ussd.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.rows[s.ID]
	if !ok || cur.Version != s.Version {
		return idb.ErrSessionVersionConflict
	}
	s.Version++
	s.Identity = cur.Identity
	f.rows[s.ID] = *s
	return nil
}

type fakeAlerter struct {
	mu   sync.Mutex
	msgs []string
}

func (f *fakeAlerter) Alert(_ context.Context, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
}

func (f *fakeAlerter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

// testEnv is a fully wired service graph over fakes. The tenant t1
// (+254712345678) rents unit A1 at 5000.
type testEnv struct {
	users    *fakeUsers
	units    *fakeUnits
	payments *fakePayments
	tickets  *fakeTickets
	notifs   *fakeNotifications
	sms      *fakeSMS
	gateway  *fakeGateway
	sessions *fakeSessions
	alerter  *fakeAlerter

	paymentSvc *PaymentService
	ussdSvc    *USSDService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithLocker(t, cache.NewMemoryLocker(), time.Second)
}

func newTestEnvWithLocker(t *testing.T, locker ussd.Locker, lockTTL time.Duration) *testEnv {
	t.Helper()
	env := &testEnv{
		users: &fakeUsers{users: []*user.User{
			{ID: "t1", Name: "Jane Tenant", Phone: "+254712345678", Role: user.RoleTenant},
			{ID: "a1", Name: "Admin", Phone: "+254700000001", Role: user.RoleAdmin},
			{ID: "c1", Name: "Caretaker", Phone: "+254700000002", Role: user.RoleCaretaker},
		}},
		units: &fakeUnits{units: []*property.Unit{
			{
				ID: "u1", PropertyID: "p1", Name: "A1", RentAmount: 5000, Status: property.UnitOccupied,
				TenantID: sql.NullString{String: "t1", Valid: true},
				Property: property.Property{ID: "p1", Name: "Sunrise Apartments", Location: "Kilimani"},
			},
		}},
		payments: newFakePayments(),
		tickets:  &fakeTickets{},
		notifs:   &fakeNotifications{},
		sms:      &fakeSMS{},
		gateway:  &fakeGateway{ref: "ws_CO_1", statuses: map[string]*payment.PushStatus{}},
		sessions: newFakeSessions(),
		alerter:  &fakeAlerter{},
	}

	text, err := NewMenuText("en")
	if err != nil {
		t.Fatalf("NewMenuText: %v", err)
	}
	log := logger.Discard()
	notifier := NewNotificationServiceImpl(env.users, env.notifs, env.sms, log)
	env.paymentSvc = NewPaymentService(env.payments, env.units, env.gateway, notifier, env.alerter,
		ReconcileOptions{Grace: 10 * time.Minute, AbandonAfter: 24 * time.Hour}, log)
	env.paymentSvc.now = func() time.Time { return testNow }
	maint := NewMaintenanceService(env.tickets, env.users, notifier, log)
	env.ussdSvc = NewUSSDService(env.sessions, locker, env.users, env.units,
		env.paymentSvc, maint, text, lockTTL, log)
	env.ussdSvc.now = func() time.Time { return testNow }
	return env
}
