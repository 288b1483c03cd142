package webhook

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"saas-billing-backend/internal/config"
	"saas-billing-backend/internal/domain"
	"saas-billing-backend/internal/domain/model"
	mongodb "saas-billing-backend/internal/infra/db/mongo"
	"saas-billing-backend/internal/infra/logging"
	"saas-billing-backend/internal/infra/metrics"
	"saas-billing-backend/internal/infra/providers"
	"saas-billing-backend/internal/infra/ratelimit"
	"saas-billing-backend/internal/usecase"
)

const (
	maxBodyBytes = 1 << 20 // 1MiB cap on webhook bodies

	categoryWebhook  = "webhook"
	categoryIdentity = "identity"
	categoryAPI      = "api"
)

// Server hosts the webhook endpoints plus the operational surface
// (health, setup status, metrics).
type Server struct {
	billing  usecase.BillingUseCase
	users    usecase.UserUseCase
	limiter  *ratelimit.Limiter
	registry *providers.Registry

	identitySecret string
	health         func() mongodb.HealthStatus
	setup          func() config.Report

	log *zerolog.Logger
}

func NewServer(
	billing usecase.BillingUseCase,
	users usecase.UserUseCase,
	limiter *ratelimit.Limiter,
	registry *providers.Registry,
	identitySecret string,
	health func() mongodb.HealthStatus,
	setup func() config.Report,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		billing:        billing,
		users:          users,
		limiter:        limiter,
		registry:       registry,
		identitySecret: identitySecret,
		health:         health,
		setup:          setup,
		log:            logger,
	}
}

// Routes builds the chi router with the shared middleware chain.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log), Timeout(15*time.Second))

	r.Group(func(r chi.Router) {
		r.Use(s.setupGate)
		r.Post("/webhooks/stripe", s.handleStripe)
		r.Post("/webhooks/lemonsqueezy", s.handleLemonSqueezy)
		r.Post("/webhooks/webxpay", s.handleWebXPay)
		r.Post("/webhooks/clerk", s.handleClerk)
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/setup/status", s.handleSetupStatus)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

// setupGate holds inbound traffic while required configuration entries are
// unsatisfied. Providers retry on 503, so deliveries are not lost while an
// operator finishes setup.
func (s *Server) setupGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rep := s.setup(); !rep.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"error": "setup incomplete",
				"see":   "/setup/status",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey reduces a request's remote address to a stable limiter key.
// Keying the raw ip:port would hand every connection a fresh budget.
func clientKey(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, clientKey(r.RemoteAddr), categoryAPI) {
		return
	}
	h := s.health()
	code := http.StatusOK
	if h.State != mongodb.StateConnected {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, h)
}

func (s *Server) handleSetupStatus(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, clientKey(r.RemoteAddr), categoryAPI) {
		return
	}
	rep := s.setup()
	code := http.StatusOK
	if !rep.Ready {
		// Signals the operator-facing frontend to redirect to setup.
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, rep)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// allow runs the rate-limit gate. It answers 429 itself and reports
// whether the caller may proceed.
func (s *Server) allow(w http.ResponseWriter, client, category string) bool {
	if err := s.limiter.Allow(client, category); err != nil {
		var rlErr *domain.RateLimitError
		if errors.As(err, &rlErr) && rlErr.RetryAfter > 0 {
			w.Header().Set("Retry-After", rlErr.RetryAfter.Round(time.Second).String())
		}
		metrics.IncRateLimited(category)
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return false
	}
	return true
}

// applyPayment runs the canonical action through the orchestrator and
// translates the error taxonomy into the acknowledgment policy: once the
// event is durably recorded (or classified ignorable) the provider gets a
// 2xx, reconciliation failures included.
func (s *Server) applyPayment(w http.ResponseWriter, r *http.Request, ev *model.ProviderEvent, start time.Time) {
	provider := string(ev.Provider)
	ctx := logging.WithProvider(logging.WithEventID(r.Context(), ev.EventID), provider)
	l := logging.With(ctx, s.log)

	if ev.Action == model.ActionIgnore {
		l.Debug().Msg("webhook event type ignored")
		s.ack(w, provider, "ignored", start)
		return
	}

	var err error
	switch ev.Action {
	case model.ActionPaymentSucceeded, model.ActionPaymentFailed, model.ActionPaymentRefunded:
		_, err = s.billing.ApplyPaymentEvent(ctx, ev)
	default:
		_, err = s.billing.ApplySubscriptionEvent(ctx, ev)
	}

	switch {
	case err == nil:
		s.ack(w, provider, "applied", start)
	case isReconciliation(err):
		// Committed; never make the provider retry an applied event.
		l.Error().Err(err).Msg("post-commit sync failed, flagged for reconciliation")
		s.ack(w, provider, "applied", start)
	case errors.Is(err, domain.ErrNotFound):
		l.Warn().Msg("webhook references unknown customer, acknowledged without action")
		s.ack(w, provider, "ignored", start)
	default:
		l.Error().Err(err).Msg("webhook apply failed")
		metrics.IncWebhookEvent(provider, "error")
		http.Error(w, "processing failed", http.StatusInternalServerError)
	}
}

func isReconciliation(err error) bool {
	var recErr *domain.ReconciliationError
	return errors.As(err, &recErr)
}

func (s *Server) ack(w http.ResponseWriter, provider, outcome string, start time.Time) {
	metrics.IncWebhookEvent(provider, outcome)
	metrics.ObserveWebhookLatency(provider, float64(time.Since(start).Milliseconds()))
	writeJSON(w, http.StatusOK, map[string]any{"received": true, "status": outcome})
}

func (s *Server) reject(w http.ResponseWriter, provider string, err error) {
	s.log.Warn().Err(err).Str("provider", provider).Msg("webhook rejected")
	metrics.IncWebhookEvent(provider, "rejected")
	http.Error(w, "invalid signature", http.StatusBadRequest)
}
