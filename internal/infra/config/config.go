package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// MpesaConfig holds Daraja API credentials.
type MpesaConfig struct {
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	PassKey        string
	Environment    string // sandbox or production
	CallbackURL    string
	Timeout        time.Duration
}

// BaseURL returns the Daraja host for the configured environment.
func (m MpesaConfig) BaseURL() string {
	if m.Environment == "production" {
		return "https://api.safaricom.co.ke"
	}
	return "https://sandbox.safaricom.co.ke"
}

// Enabled reports whether enough credentials are present to call Daraja.
func (m MpesaConfig) Enabled() bool {
	return m.ConsumerKey != "" && m.ConsumerSecret != "" && m.ShortCode != "" && m.PassKey != ""
}

// TwilioConfig holds Twilio SMS credentials. Empty SID disables the carrier.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// AfricasTalkingConfig holds Africa's Talking SMS credentials.
type AfricasTalkingConfig struct {
	APIKey    string
	Username  string
	ShortCode string
}

// AppConfig holds all configuration for the application
type AppConfig struct {
	HTTPAddr        string
	DatabaseURL     string
	RedisURL        string // optional; in-process locks and caches when empty
	LogLevel        string
	Environment     string
	USSDLanguage    string
	USSDLockTTL     time.Duration
	TelegramToken   string // optional; ops alerts are only logged when empty
	AdminTelegramID int64

	Mpesa          MpesaConfig
	Twilio         TwilioConfig
	AfricasTalking AfricasTalkingConfig

	CronSpecReconcile     string
	ReconcileGrace        time.Duration
	ReconcileAbandonAfter time.Duration
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.HTTPAddr = envOr("HTTP_ADDR", ":8080")
	cfg.RedisURL = os.Getenv("REDIS_URL")

	cfg.LogLevel = strings.ToLower(envOr("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(envOr("ENVIRONMENT", "development"))
	cfg.USSDLanguage = strings.ToLower(envOr("USSD_LANGUAGE", "en"))

	if cfg.USSDLockTTL, err = durationEnv("USSD_LOCK_TTL", 30*time.Second); err != nil {
		return nil, err
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID"); adminIDStr != "" {
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}
	if cfg.TelegramToken != "" && cfg.AdminTelegramID == 0 {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is required when TELEGRAM_TOKEN is set")
	}

	cfg.Mpesa = MpesaConfig{
		ConsumerKey:    os.Getenv("MPESA_CONSUMER_KEY"),
		ConsumerSecret: os.Getenv("MPESA_CONSUMER_SECRET"),
		ShortCode:      os.Getenv("MPESA_SHORTCODE"),
		PassKey:        os.Getenv("MPESA_PASSKEY"),
		Environment:    strings.ToLower(envOr("MPESA_ENVIRONMENT", "sandbox")),
		CallbackURL:    os.Getenv("MPESA_CALLBACK_URL"),
	}
	if cfg.Mpesa.CallbackURL == "" {
		cfg.Mpesa.CallbackURL = strings.TrimRight(envOr("APP_URL", "http://localhost:8080"), "/") + "/api/payments/mpesa-callback"
	}
	if cfg.Mpesa.Timeout, err = durationEnv("MPESA_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	// A USSD step holds the session lock across the push call.
	if cfg.USSDLockTTL <= cfg.Mpesa.Timeout {
		return nil, fmt.Errorf("USSD_LOCK_TTL (%s) must be longer than MPESA_TIMEOUT (%s)", cfg.USSDLockTTL, cfg.Mpesa.Timeout)
	}

	cfg.Twilio = TwilioConfig{
		AccountSID: strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID")),
		AuthToken:  strings.TrimSpace(os.Getenv("TWILIO_AUTH_TOKEN")),
		FromNumber: os.Getenv("TWILIO_PHONE_NUMBER"),
	}
	cfg.AfricasTalking = AfricasTalkingConfig{
		APIKey:    strings.TrimSpace(os.Getenv("AT_API_KEY")),
		Username:  strings.TrimSpace(os.Getenv("AT_USERNAME")),
		ShortCode: os.Getenv("AT_SMS_SHORTCODE"),
	}

	cfg.CronSpecReconcile = envOr("CRON_SPEC_RECONCILE", "*/10 * * * *") // every 10 minutes
	if cfg.ReconcileGrace, err = durationEnv("RECONCILE_GRACE", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ReconcileAbandonAfter, err = durationEnv("RECONCILE_ABANDON_AFTER", 24*time.Hour); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
