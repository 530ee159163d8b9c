// Package rest serves normalized stats.ncaa.org tables over HTTP.
package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/fortuna/collegebaseball/internal/monitoring"
	"github.com/fortuna/collegebaseball/internal/reconciliation"
	"github.com/fortuna/collegebaseball/internal/schema"
)

// Deps are the collaborators the handlers need. Archive, Backfill, Results
// and Cache may be nil; their routes then answer 503 or skip caching.
type Deps struct {
	Scraper    Scraper
	Registry   *schema.Registry
	Results    ResultsSource
	Reconciler *reconciliation.Engine
	Archive    Archive
	Backfill   Backfiller
	Cache      TableCache
	CacheTTL   time.Duration
	Health     map[string]HealthChecker
	Metrics    *monitoring.Metrics
	Logger     *zap.Logger
}

// Server represents the REST API server
type Server struct {
	port   string
	server *http.Server
}

// NewServer creates a new REST API server
func NewServer(port string, deps Deps) *Server {
	return &Server{
		port: port,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%s", port),
			Handler:           NewRouter(deps),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// NewRouter builds every route.
func NewRouter(deps Deps) *mux.Router {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	handler := NewHandler(deps)
	backfillHandler := NewBackfillHandler(deps.Backfill)

	router := mux.NewRouter()

	router.Use(RecoveryMiddleware(deps.Logger))
	router.Use(LoggingMiddleware(deps.Logger))
	router.Use(CORSMiddleware)
	if deps.Metrics != nil {
		router.Use(monitoring.Middleware(deps.Metrics))
		router.Handle("/metrics", deps.Metrics.Handler()).Methods("GET")
	}

	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()

	// Reference
	api.HandleFunc("/seasons", handler.GetSeasons).Methods("GET")
	api.HandleFunc("/schools", handler.GetSchools).Methods("GET")
	api.HandleFunc("/schools/{school}", handler.GetSchool).Methods("GET")
	api.HandleFunc("/splits", handler.GetSplits).Methods("GET")

	// Teams
	api.HandleFunc("/teams/{school}/stats", handler.GetTeamStats).Methods("GET")
	api.HandleFunc("/teams/{school}/totals", handler.GetTeamTotals).Methods("GET")
	api.HandleFunc("/teams/{school}/gamelogs", handler.GetTeamGameLogs).Methods("GET")
	api.HandleFunc("/teams/{school}/results", handler.GetTeamResults).Methods("GET")
	api.HandleFunc("/teams/{school}/roster", handler.GetTeamRoster).Methods("GET")
	api.HandleFunc("/teams/{school}/winpct", handler.GetWinPct).Methods("GET")
	api.HandleFunc("/teams/{school}/boydsworld", handler.GetBoydsworldResults).Methods("GET")
	api.HandleFunc("/teams/{school}/reconcile", handler.GetReconciliation).Methods("GET")

	// Players
	api.HandleFunc("/players/{player}/gamelogs", handler.GetPlayerGameLogs).Methods("GET")
	api.HandleFunc("/players/{player}/career", handler.GetPlayerCareer).Methods("GET")

	// Stored tables
	api.HandleFunc("/stored/teams/{school}/tables", handler.ListStoredTables).Methods("GET")
	api.HandleFunc("/stored/teams/{school}/tables/{kind}", handler.GetStoredTable).Methods("GET")
	api.HandleFunc("/stored/teams/{school}/roster", handler.GetStoredRoster).Methods("GET")
	api.HandleFunc("/stored/teams/{school}/results", handler.GetStoredResults).Methods("GET")

	// Backfill operations
	api.HandleFunc("/backfill", backfillHandler.HandleBackfillRequest).Methods("POST")
	api.HandleFunc("/backfill/status", backfillHandler.HandleBackfillStatus).Methods("GET")
	api.HandleFunc("/backfill/jobs/{jobID}", backfillHandler.HandleGetJob).Methods("GET")

	return router
}

// Start starts the REST API server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
