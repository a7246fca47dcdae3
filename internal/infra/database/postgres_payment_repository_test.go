package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rentara/internal/domain/payment"
)

func openPending(t *testing.T, repo *PostgresPaymentRepository, id string, amount int64) *payment.Payment {
	t.Helper()
	p := &payment.Payment{ID: id, TenantID: "t1", UnitID: "u1", Amount: amount, Month: 2, Year: 2024}
	if err := repo.EnsurePending(context.Background(), p); err != nil {
		t.Fatalf("EnsurePending: %v", err)
	}
	return p
}

func TestEnsurePendingNeverDowngradesCompleted(t *testing.T) {
	repo := NewPostgresPaymentRepository(openTestDB(t))
	ctx := context.Background()

	p := openPending(t, repo, "pay1", 5000)
	if p.Status != payment.StatusPending {
		t.Fatalf("status = %s, want PENDING", p.Status)
	}
	if _, err := repo.CompletePending(ctx, p.ID, "QWE123", time.Now()); err != nil {
		t.Fatalf("CompletePending: %v", err)
	}

	again := openPending(t, repo, "pay2", 6000)
	if again.ID != "pay1" || again.Status != payment.StatusCompleted || again.Amount != 5000 || again.Receipt.String != "QWE123" {
		t.Fatalf("second EnsurePending = %+v", again)
	}
}

func TestEnsurePendingReopensFailedWithoutRef(t *testing.T) {
	repo := NewPostgresPaymentRepository(openTestDB(t))
	ctx := context.Background()

	p := openPending(t, repo, "pay1", 5000)
	if err := repo.SetTransactionRef(ctx, p.ID, "ws_CO_1"); err != nil {
		t.Fatalf("SetTransactionRef: %v", err)
	}
	if _, err := repo.FailPending(ctx, p.ID, "Request cancelled by user"); err != nil {
		t.Fatalf("FailPending: %v", err)
	}

	reopened := openPending(t, repo, "pay2", 5500)
	if reopened.ID != "pay1" || reopened.Status != payment.StatusPending || reopened.Amount != 5500 {
		t.Fatalf("reopened = %+v", reopened)
	}
	if reopened.TransactionRef.Valid || reopened.FailureReason.Valid {
		t.Fatalf("reopened kept ref %v / reason %v", reopened.TransactionRef, reopened.FailureReason)
	}
	if _, err := repo.GetByTransactionRef(ctx, "ws_CO_1"); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("old ref lookup err = %v, want ErrPaymentNotFound", err)
	}
}

func TestEnsurePendingKeepsRefOfOpenPayment(t *testing.T) {
	repo := NewPostgresPaymentRepository(openTestDB(t))
	ctx := context.Background()

	p := openPending(t, repo, "pay1", 5000)
	if err := repo.SetTransactionRef(ctx, p.ID, "ws_CO_1"); err != nil {
		t.Fatal(err)
	}
	again := openPending(t, repo, "pay2", 5000)
	if again.ID != "pay1" || again.TransactionRef.String != "ws_CO_1" {
		t.Fatalf("second EnsurePending = %+v", again)
	}
}

func TestConcurrentCompletePendingHasOneWinner(t *testing.T) {
	repo := NewPostgresPaymentRepository(openTestDB(t))
	p := openPending(t, repo, "pay1", 5000)

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		won, stale int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CompletePending(context.Background(), p.ID, "QWE123", time.Now())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				won++
			case errors.Is(err, ErrPaymentNotPending):
				stale++
			default:
				t.Errorf("CompletePending: %v", err)
			}
		}()
	}
	wg.Wait()
	if won != 1 || stale != 1 {
		t.Fatalf("won = %d, not pending = %d; want 1 and 1", won, stale)
	}

	if _, err := repo.FailPending(context.Background(), p.ID, "late failure"); !errors.Is(err, ErrPaymentNotPending) {
		t.Fatalf("FailPending after completion err = %v", err)
	}
	got, err := repo.GetByID(context.Background(), p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != payment.StatusCompleted || !got.PaidAt.Valid || got.FailureReason.Valid {
		t.Fatalf("payment = %+v", got)
	}
}

func TestListStalePending(t *testing.T) {
	repo := NewPostgresPaymentRepository(openTestDB(t))
	ctx := context.Background()
	openPending(t, repo, "pay1", 5000)

	stale, err := repo.ListStalePending(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 1 || stale[0].ID != "pay1" {
		t.Fatalf("stale = %+v", stale)
	}
	if fresh, err := repo.ListStalePending(ctx, time.Now().Add(-time.Hour)); err != nil || len(fresh) != 0 {
		t.Fatalf("recent payment listed as stale: %+v, %v", fresh, err)
	}
}
