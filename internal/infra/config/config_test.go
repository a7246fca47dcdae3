package config

import (
	"testing"
	"time"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is empty")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/rentara")
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("MPESA_CALLBACK_URL", "")
	t.Setenv("APP_URL", "https://rentara.example/")
	t.Setenv("USSD_LOCK_TTL", "")
	t.Setenv("MPESA_TIMEOUT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.USSDLockTTL != 30*time.Second {
		t.Errorf("USSDLockTTL = %v", cfg.USSDLockTTL)
	}
	if cfg.Mpesa.Timeout != 15*time.Second {
		t.Errorf("Mpesa.Timeout = %v", cfg.Mpesa.Timeout)
	}
	if want := "https://rentara.example/api/payments/mpesa-callback"; cfg.Mpesa.CallbackURL != want {
		t.Errorf("CallbackURL = %q, want %q", cfg.Mpesa.CallbackURL, want)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/rentara")
	t.Setenv("RECONCILE_GRACE", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid RECONCILE_GRACE")
	}
}

func TestLoadRejectsLockShorterThanPushTimeout(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/rentara")
	t.Setenv("TELEGRAM_TOKEN", "")
	for _, ttl := range []string{"10s", "15s"} {
		t.Setenv("USSD_LOCK_TTL", ttl)
		t.Setenv("MPESA_TIMEOUT", "15s")
		if _, err := Load(); err == nil {
			t.Errorf("USSD_LOCK_TTL=%s with MPESA_TIMEOUT=15s: expected error", ttl)
		}
	}

	t.Setenv("USSD_LOCK_TTL", "16s")
	if _, err := Load(); err != nil {
		t.Fatalf("USSD_LOCK_TTL=16s: %v", err)
	}
}

func TestLoadTelegramNeedsAdmin(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/rentara")
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("ADMIN_TELEGRAM_ID", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when ADMIN_TELEGRAM_ID is missing")
	}
}

func TestMpesaBaseURL(t *testing.T) {
	if got := (MpesaConfig{Environment: "production"}).BaseURL(); got != "https://api.safaricom.co.ke" {
		t.Errorf("production BaseURL = %q", got)
	}
	if got := (MpesaConfig{}).BaseURL(); got != "https://sandbox.safaricom.co.ke" {
		t.Errorf("sandbox BaseURL = %q", got)
	}
}
