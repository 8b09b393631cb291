// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/aura/internal/adapters/repository"
	"github.com/okian/aura/internal/domain/feature"
	"github.com/okian/aura/internal/domain/intervene"
	"github.com/okian/aura/internal/domain/model"
	"github.com/okian/aura/pkg/metrics"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	CreateUser(ctx context.Context, profile model.UserProfile) (model.UserProfile, error)
	User(ctx context.Context, userID string) (model.UserProfile, error)
	SubmitRecord(ctx context.Context, userID string, record model.DailyRecord) (feature.IngestResult, error)
	Vulnerability(ctx context.Context, userID string) (model.VulnerabilityState, error)
	Simulate(ctx context.Context, userID string, baseline []model.DailyRecord, overrides map[string]float64) (model.SimulationResult, error)
	Interventions(ctx context.Context, userID string, constraints intervene.Constraints) ([]model.InterventionCandidate, error)
	Personalize(ctx context.Context, userID string, epochs int) (model.FitResult, error)
	EnqueuePersonalize(ctx context.Context, userID string, epochs int) (jobID string, ok bool)
}

// StatsProvider exposes service statistics for /stats.
type StatsProvider interface {
	Stats(ctx context.Context) map[string]any
}

// Server wires HTTP routes for the business API.
type Server struct {
	usersHandler         *UsersHandler
	recordsHandler       *RecordsHandler
	riskHandler          *RiskHandler
	simulateHandler      *SimulateHandler
	interventionsHandler *InterventionsHandler
	personalizeHandler   *PersonalizeHandler
	statsHandler         *StatsHandler
	healthHandler        *HealthHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, stats StatsProvider) *Server {
	return &Server{
		usersHandler:         NewUsersHandler(deps),
		recordsHandler:       NewRecordsHandler(deps),
		riskHandler:          NewRiskHandler(deps),
		simulateHandler:      NewSimulateHandler(deps),
		interventionsHandler: NewInterventionsHandler(deps),
		personalizeHandler:   NewPersonalizeHandler(deps),
		statsHandler:         NewStatsHandler(stats),
		healthHandler:        NewHealthHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/users", MetricsMiddleware(s.usersHandler.HandleCreateUser, "users"))
	mux.HandleFunc("/users/", MetricsMiddleware(s.usersHandler.HandleGetUser, "users"))
	mux.HandleFunc("/logs/", MetricsMiddleware(s.recordsHandler.HandleSubmitRecord, "logs"))
	mux.HandleFunc("/vulnerability/", MetricsMiddleware(s.riskHandler.HandleGetVulnerability, "vulnerability"))
	mux.HandleFunc("/simulate/", MetricsMiddleware(s.simulateHandler.HandleSimulate, "simulate"))
	mux.HandleFunc("/interventions/", MetricsMiddleware(s.interventionsHandler.HandleInterventions, "interventions"))
	mux.HandleFunc("/personalize/", MetricsMiddleware(s.personalizeHandler.HandlePersonalize, "personalize"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError translates store errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, repository.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "conflict", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
