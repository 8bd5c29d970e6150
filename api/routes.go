package api

import (
	"net/http"
	"time"

	"github.com/garnizeh/evalassign/internal/matching"
	"github.com/garnizeh/evalassign/internal/metrics"
	"github.com/garnizeh/evalassign/pkg/repository"
	"github.com/gorilla/mux"
)

// Deps carries everything the router needs. Queue, Metrics, MetricsHandler
// and DB are optional.
type Deps struct {
	Engine         *matching.Engine
	Evaluators     repository.EvaluatorRepo
	Establishments repository.EstablishmentRepo
	Admins         repository.AdminRepo
	Counter        repository.Counter
	Queue          Enqueuer
	Metrics        metrics.Collector
	MetricsHandler http.Handler
	DB             Pinger

	JWTSecret      string
	TokenDuration  time.Duration
	JobMaxAttempts int
	Version        string
	BuildTime      string
}

func SetupRoutes(d Deps) *mux.Router {
	r := mux.NewRouter()

	if d.Metrics == nil {
		d.Metrics = metrics.NewNop()
	}

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(MetricsMiddleware(d.Metrics))
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	// Create handlers
	systemHandler := NewSystemHandler(d.DB)
	authHandler := NewAuthHandler(d.Admins, d.JWTSecret, d.TokenDuration)
	assignmentsHandler := NewAssignmentsHandler(d.Engine, d.Queue, d.JobMaxAttempts)
	evaluatorsHandler := NewEvaluatorsHandler(d.Evaluators, d.Counter, d.Engine)
	establishmentsHandler := NewEstablishmentsHandler(d.Establishments, d.Counter, d.Engine)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(d.Version, d.BuildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")
	if d.MetricsHandler != nil {
		r.Handle("/metrics", d.MetricsHandler).Methods("GET")
	}
	r.HandleFunc("/v1/auth/signin", authHandler.Signin).Methods("POST")

	// API v1 Protected routes
	apiV1 := r.PathPrefix("/v1").Subrouter()
	apiV1.Use(JWTAuthMiddlewareWithSecret(d.JWTSecret))

	apiV1.HandleFunc("/auth/signout", authHandler.Signout).Methods("POST")

	// Assignments
	apiV1.HandleFunc("/assignments/auto-match", assignmentsHandler.AutoMatch).Methods("POST")
	apiV1.HandleFunc("/assignments", assignmentsHandler.Create).Methods("POST")
	apiV1.HandleFunc("/assignments", assignmentsHandler.List).Methods("GET")
	apiV1.HandleFunc("/assignments/{id}", assignmentsHandler.Get).Methods("GET")
	apiV1.HandleFunc("/assignments/{id}", assignmentsHandler.Update).Methods("PATCH")
	apiV1.HandleFunc("/assignments/{id}", assignmentsHandler.Delete).Methods("DELETE")

	// Evaluators
	apiV1.HandleFunc("/evaluators", evaluatorsHandler.Create).Methods("POST")
	apiV1.HandleFunc("/evaluators", evaluatorsHandler.List).Methods("GET")
	apiV1.HandleFunc("/evaluators/{id}", evaluatorsHandler.Get).Methods("GET")
	apiV1.HandleFunc("/evaluators/{id}", evaluatorsHandler.Update).Methods("PUT")
	apiV1.HandleFunc("/evaluators/{id}", evaluatorsHandler.Delete).Methods("DELETE")
	apiV1.HandleFunc("/evaluators/{id}/nda", evaluatorsHandler.SetNDA).Methods("PATCH")

	// Establishments
	apiV1.HandleFunc("/establishments", establishmentsHandler.Create).Methods("POST")
	apiV1.HandleFunc("/establishments", establishmentsHandler.List).Methods("GET")
	apiV1.HandleFunc("/establishments/{id}", establishmentsHandler.Get).Methods("GET")
	apiV1.HandleFunc("/establishments/{id}", establishmentsHandler.Update).Methods("PUT")
	apiV1.HandleFunc("/establishments/{id}", establishmentsHandler.Delete).Methods("DELETE")

	return r
}
