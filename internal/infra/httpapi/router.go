// Package httpapi exposes the USSD gateway endpoint, the M-Pesa callback and health checks.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"rentara/internal/app"
	"rentara/internal/domain/payment"
	"rentara/internal/domain/ussd"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// USSDResponder answers one gateway step.
type USSDResponder interface {
	Handle(ctx context.Context, req ussd.Request) ussd.Reply
}

// CallbackProcessor applies a provider payment callback.
type CallbackProcessor interface {
	HandleCallback(ctx context.Context, res payment.CallbackResult) (app.CallbackOutcome, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handlers groups the HTTP endpoints and their dependencies.
type Handlers struct {
	USSD     USSDResponder
	Payments CallbackProcessor
	DB       Pinger
	validate *validator.Validate
	logger   *logrus.Entry
}

func NewHandlers(ussdSvc USSDResponder, payments CallbackProcessor, db Pinger, logger *logrus.Entry) *Handlers {
	return &Handlers{
		USSD:     ussdSvc,
		Payments: payments,
		DB:       db,
		validate: validator.New(),
		logger:   logger,
	}
}

// NewRouter mounts every route with request id, panic recovery and access logging.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", h.Health)
	r.Route("/api", func(r chi.Router) {
		r.Post("/ussd", h.USSDStep)
		r.Post("/payments/mpesa-callback", h.MpesaCallback)
	})
	return r
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.PingContext(ctx); err != nil {
			h.logger.WithError(err).Warn("Health check: database unreachable")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func requestLogger(logger *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.WithFields(logrus.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"duration":   time.Since(start).String(),
			}).Info("HTTP request")
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
