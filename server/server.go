// Package server wires the HTTP API: member submissions, admin
// moderation, ledger reads, and the public promotion listing boundary.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"ecoledger/activity"
	"ecoledger/auth"
	"ecoledger/filestore"
	"ecoledger/ledger"
	ecomw "ecoledger/middleware"
	"ecoledger/moderation"
	"ecoledger/notify"
	"ecoledger/observability/metrics"
	"ecoledger/payment"
	"ecoledger/promotion"
	"ecoledger/validate"
)

// Config captures the dependencies required to construct the server.
type Config struct {
	DB       *gorm.DB
	Payments payment.Confirmer
	Notifier notify.Notifier
	Files    filestore.Store
	Log      *slog.Logger

	EvidenceMinFiles int
	EvidenceMaxFiles int
	ProductImagesMin int
	ProductImagesMax int

	Auth auth.Options
	Now  func() time.Time
}

// Server encapsulates dependencies for the HTTP API.
type Server struct {
	DB         *gorm.DB
	Activities *activity.Service
	Promotions *promotion.Service
	Files      filestore.Store
	Log        *slog.Logger
	Now        func() time.Time

	authOpts auth.Options
	router   http.Handler
}

// New constructs a configured HTTP router with authentication and
// idempotency support.
func New(cfg Config) *Server {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	m := metrics.Platform()
	srv := &Server{
		DB: cfg.DB,
		Activities: activity.New(activity.Config{
			DB:          cfg.DB,
			Notifier:    cfg.Notifier,
			Files:       cfg.Files,
			Metrics:     m,
			Log:         cfg.Log,
			MinEvidence: cfg.EvidenceMinFiles,
			MaxEvidence: cfg.EvidenceMaxFiles,
			Now:         cfg.Now,
		}),
		Promotions: promotion.New(promotion.Config{
			DB:        cfg.DB,
			Payments:  cfg.Payments,
			Notifier:  cfg.Notifier,
			Metrics:   m,
			Log:       cfg.Log,
			MinImages: cfg.ProductImagesMin,
			MaxImages: cfg.ProductImagesMax,
			Now:       cfg.Now,
		}),
		Files:    cfg.Files,
		Log:      cfg.Log,
		Now:      cfg.Now,
		authOpts: cfg.Auth,
	}
	srv.router = srv.buildRouter()
	return srv
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Public read boundary: approved listings only.
	r.Get("/public/promotions", s.PublicPromotions)

	r.Route("/api/v1", func(api chi.Router) {
		// Authentication runs first so a stored idempotent response is
		// never replayed to a caller who only knows the key.
		api.Use(auth.Authenticate(s.authOpts))
		api.Use(func(next http.Handler) http.Handler { return ecomw.WithIdempotency(s.DB, next) })

		api.Group(func(protected chi.Router) {
			member := protected.With(auth.RequireRole(auth.RoleMember, auth.RoleAdmin))
			member.Post("/activities", s.CreateActivity)
			member.Get("/activities/{id}", s.GetActivity)
			member.Get("/users/{id}/activities", s.ListUserActivities)
			member.Get("/users/{id}/balance", s.GetBalance)
			member.Post("/promotions", s.CreatePromotion)
			member.Get("/promotions/{id}", s.GetPromotion)

			admin := protected.With(auth.RequireRole(auth.RoleAdmin))
			admin.Post("/activities/{id}/award", s.AwardActivity)
			admin.Put("/activities/{id}", s.UpdateActivity)
			admin.Delete("/activities/{id}", s.DeleteActivity)
			admin.Post("/activities/{id}/notify", s.NotifyActivity)
			admin.Post("/promotions/{id}/review", s.ReviewPromotion)
			admin.Get("/promotions", s.ListPendingPromotions)
		})
	})

	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error  string                `json:"error"`
	Fields []validate.FieldError `json:"fields,omitempty"`
}

// writeError maps domain errors onto HTTP statuses with enough detail
// for the caller to act.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	if verr, ok := validate.As(err); ok {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: verr.Fields})
		return
	}
	var transition *moderation.InvalidTransitionError
	switch {
	case errors.Is(err, activity.ErrNotFound),
		errors.Is(err, activity.ErrUserNotFound),
		errors.Is(err, promotion.ErrNotFound),
		errors.Is(err, promotion.ErrUserNotFound),
		errors.Is(err, ledger.ErrUserNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, promotion.ErrPaymentNotConfirmed):
		s.writeJSON(w, http.StatusPaymentRequired, errorResponse{Error: err.Error()})
	case errors.As(err, &transition):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, activity.ErrConflict):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		s.Log.Error("request failed", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
