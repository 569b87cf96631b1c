package main

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trustmesh/native/intake"
	"trustmesh/observability/logging"
)

const (
	headerAPIKey         = "X-Api-Key"
	headerIdempotencyKey = "Idempotency-Key"
)

var (
	errMissingAPIKey     = errors.New("trustmeshd: missing X-Api-Key header")
	errUnknownEventRoute = errors.New("trustmeshd: unknown event route")
)

func (s *service) now() time.Time {
	return time.Now()
}

// intakeKindFromPath maps the four POST routes onto their intake.Kind the
// way services/escrow-gateway/server.go maps one route per escrow
// transition; here one kind per event shape instead.
var intakeKindFromPath = map[string]intake.Kind{
	"payment-events": intake.KindPaymentEvent,
	"facilitators":   intake.KindFacilitatorHealth,
	"endorsements":   intake.KindEndorsementSubmit,
	"votes":          intake.KindVoteSubmit,
}

// buildRouter assembles the chi.Router exposing both the inbound intake
// front door and the outbound query surface, mirroring the way
// gateway/routes.New and services/otc-gateway/server.go build their router
// with chi middleware, a health route, and grouped sub-routes.
func (s *service) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/events", func(ev chi.Router) {
		for name := range intakeKindFromPath {
			ev.Post("/"+name, s.handleIntake)
		}
	})

	r.Route("/v1/agents", func(ag chi.Router) {
		ag.Get("/", s.handleSearchAgents)
		ag.Get("/{address}", s.handleGetAgent)
	})
	r.Get("/v1/authority/top", s.handleTopByAuthority)
	r.Get("/v1/sybil", s.handleSybilRisk)
	r.Get("/v1/trust-path", s.handleTrustPath)
	r.Get("/v1/transitive-trust", s.handleTransitiveTrust)
	r.Get("/v1/alerts", s.handleRecentAlerts)
	r.Post("/v1/webhooks", s.handleRegisterWebhook)

	r.Route("/v1/control", func(ctl chi.Router) {
		ctl.Post("/pause", s.handleSetModulePause)
		ctl.Get("/paused", s.handleListPausedModules)
	})

	return r
}

// handleIntake adapts an inbound HTTP request into an intake.Request and
// dispatches it through the processor, the same API-key/Idempotency-Key
// contract services/escrow-gateway/server.go enforces per route.
func (s *service) handleIntake(w http.ResponseWriter, r *http.Request) {
	kind, ok := intakeKindFromPath[strings.TrimPrefix(r.URL.Path, "/v1/events/")]
	if !ok {
		writeError(w, http.StatusNotFound, errUnknownEventRoute)
		return
	}
	apiKey := strings.TrimSpace(r.Header.Get(headerAPIKey))
	if apiKey == "" {
		writeError(w, http.StatusUnauthorized, errMissingAPIKey)
		return
	}
	idempotencyKey := strings.TrimSpace(r.Header.Get(headerIdempotencyKey))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.intakeProc.Process(r.Context(), intake.Request{
		Kind:           kind,
		APIKey:         apiKey,
		IdempotencyKey: idempotencyKey,
		Body:           body,
		ReceivedAt:     s.now(),
	})
	if err != nil {
		s.logger.Warn("intake: request rejected",
			logging.MaskField("api_key", apiKey),
			"kind", string(kind),
			"err", err,
		)
		writeError(w, intakeErrorStatus(err), err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.Status)
	_, _ = w.Write(result.Payload)
}

func intakeErrorStatus(err error) int {
	switch {
	case errors.Is(err, intake.ErrMissingIdempotencyKey), errors.Is(err, intake.ErrIdempotencyMismatch):
		return http.StatusBadRequest
	case errors.Is(err, intake.ErrRateLimited), errors.Is(err, intake.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, intake.ErrModulePaused):
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}
