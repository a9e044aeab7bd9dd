package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"eventplace/internal/config"
	"eventplace/internal/database"
	"eventplace/internal/logging"
	"eventplace/internal/metrics"
	"eventplace/internal/models"
	"eventplace/internal/service"
	"eventplace/internal/worker"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Confirmer is the confirmation handler as seen by the transports.
type Confirmer interface {
	ConfirmDirect(ctx context.Context, bookingID string) (*service.ConfirmationResult, error)
	ConfirmWithPayment(ctx context.Context, bookingID string, evidence models.PaymentEvidence) (*service.ConfirmationResult, error)
	Retry(ctx context.Context, bookingID string) (*service.ConfirmationResult, error)
}

// TaskQueue hands work to the recovery worker.
type TaskQueue interface {
	EnqueueTask(ctx context.Context, taskType, bookingID string, payload any) error
	EnqueueConfirmPayment(ctx context.Context, bookingID string, evidence models.PaymentEvidence) error
}

type WorkflowReader interface {
	GetWorkflowByBooking(ctx context.Context, bookingID string) (*models.BookingWorkflow, error)
}

// Handlers groups what the HTTP and gRPC transports call into.
type Handlers struct {
	Confirmer Confirmer
	Tasks     TaskQueue
	Workflows WorkflowReader
}

// HTTPServer exposes the confirmation API, the Stripe webhook and a health probe.
type HTTPServer struct {
	cfg      config.APIConfig
	handlers Handlers
	webhook  *StripeWebhook
	auth     *HTTPAuth
	validate *validator.Validate
	server   *http.Server
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewHTTPServer(cfg config.APIConfig, handlers Handlers, webhook *StripeWebhook, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:      cfg,
		handlers: handlers,
		webhook:  webhook,
		auth:     NewHTTPAuth(cfg),
		validate: validator.New(),
		logger:   logging.Component(logger, "http"),
		now:      time.Now,
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
	}
	return srv
}

// Routes builds the router. Exposed for tests.
func (s *HTTPServer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.loggingMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(api chi.Router) {
		if s.webhook != nil {
			api.Post("/webhooks/stripe", s.webhook.ServeHTTP)
		}

		api.Route("/bookings/{id}", func(b chi.Router) {
			b.With(s.auth.Require(permWriteConfirmations)).Post("/confirm", s.handleConfirm)
			b.With(s.auth.Require(permWriteConfirmations)).Post("/retry", s.handleRetry)
			b.With(s.auth.Require(permReadWorkflows)).Get("/workflow", s.handleWorkflow)
		})
	})
	return r
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return errors.New("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type confirmRequest struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"omitempty,min=3,max=255"`
	AmountCents     int64  `json:"amount_cents" validate:"gte=0"`
	Currency        string `json:"currency" validate:"omitempty,len=3,alpha"`
}

func (s *HTTPServer) handleConfirm(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("confirm")
	bookingID := strings.TrimSpace(chi.URLParam(r, "id"))

	var req confirmRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		res *service.ConfirmationResult
		err error
	)
	if req.PaymentIntentID != "" {
		res, err = s.handlers.Confirmer.ConfirmWithPayment(r.Context(), bookingID, models.PaymentEvidence{
			PaymentIntentID: req.PaymentIntentID,
			Provider:        "api",
			AmountCents:     req.AmountCents,
			Currency:        strings.ToUpper(req.Currency),
			ReceivedAt:      s.now().UTC(),
		})
	} else {
		res, err = s.handlers.Confirmer.ConfirmDirect(r.Context(), bookingID)
	}
	if err != nil {
		s.writeServiceError(w, bookingID, err)
		return
	}
	writeJSON(w, http.StatusOK, confirmationResponse(res))
}

func (s *HTTPServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("retry")
	bookingID := strings.TrimSpace(chi.URLParam(r, "id"))

	if r.URL.Query().Get("async") == "true" {
		if s.handlers.Tasks == nil {
			writeError(w, http.StatusServiceUnavailable, "recovery queue is not configured")
			return
		}
		if err := s.handlers.Tasks.EnqueueTask(r.Context(), worker.TaskRetrySaga, bookingID, nil); err != nil {
			s.writeServiceError(w, bookingID, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"booking_id": bookingID, "queued": true})
		return
	}

	res, err := s.handlers.Confirmer.Retry(r.Context(), bookingID)
	if err != nil {
		s.writeServiceError(w, bookingID, err)
		return
	}
	writeJSON(w, http.StatusOK, confirmationResponse(res))
}

func (s *HTTPServer) handleWorkflow(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("workflow")
	bookingID := strings.TrimSpace(chi.URLParam(r, "id"))

	wf, err := s.handlers.Workflows.GetWorkflowByBooking(r.Context(), bookingID)
	if err != nil {
		s.writeServiceError(w, bookingID, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, bookingID string, err error) {
	code := httpStatus(err)
	if code == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("booking_id", bookingID).Msg("request failed")
		writeError(w, code, "internal error")
		return
	}
	writeError(w, code, err.Error())
}

type confirmationBody struct {
	*service.ConfirmationResult
	HasPartialFailures bool     `json:"has_partial_failures"`
	FailedSteps        []string `json:"failed_steps,omitempty"`
}

func confirmationResponse(res *service.ConfirmationResult) confirmationBody {
	return confirmationBody{
		ConfirmationResult: res,
		HasPartialFailures: res.HasPartialFailures(),
		FailedSteps:        res.ABEResult.FailedSteps(),
	}
}

// decodeOptionalJSON accepts an empty body.
func decodeOptionalJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// HTTPAuth guards HTTP routes with the shared API-key authenticator.
type HTTPAuth struct {
	auth *authenticator
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	return &HTTPAuth{auth: newAuthenticator(cfg)}
}

// Require authenticates the caller and checks it holds permission.
func (a *HTTPAuth) Require(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := a.auth.authorize(
				r.Header.Get(a.auth.keyHeader),
				r.Header.Get(a.auth.extraHeader),
				permission,
				remoteHost(r),
			)
			if err != nil {
				writeError(w, authHTTPStatus(err), err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func authHTTPStatus(err error) int {
	switch {
	case errors.Is(err, errPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusUnauthorized
	}
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return clientKeyUnknown
	}
	return host
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

var _ WorkflowReader = (*database.DB)(nil)
