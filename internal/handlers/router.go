package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/maneesh/fasttranscribe/internal/dashboard"
	"github.com/maneesh/fasttranscribe/internal/drivesync"
	"github.com/maneesh/fasttranscribe/internal/events"
	"github.com/maneesh/fasttranscribe/internal/folders"
	"github.com/maneesh/fasttranscribe/internal/intake"
	"github.com/maneesh/fasttranscribe/internal/jobs"
	"github.com/maneesh/fasttranscribe/internal/logging"
	"github.com/maneesh/fasttranscribe/internal/metrics"
	"github.com/maneesh/fasttranscribe/internal/preview"
	"github.com/maneesh/fasttranscribe/internal/session"
)

var tracer = otel.Tracer("fasttranscribe-handlers")

// ObjectDeleter removes stored objects that belong to deleted items
type ObjectDeleter interface {
	DeleteObject(ctx context.Context, key string) error
}

// Deps holds everything the API needs. Objects may be nil.
type Deps struct {
	Sessions    *session.Manager
	Queue       *jobs.Queue
	Intake      *intake.Intake
	Folders     *folders.Service
	Preview     *preview.Service
	Sync        *drivesync.Manager
	Views       *dashboard.Registry
	Broadcaster *events.Broadcaster
	Objects     ObjectDeleter
}

// NewRouter wires every route of the dashboard API
func NewRouter(d Deps) *mux.Router {
	authHandler := NewAuthHandler(d.Sessions)
	jobsHandler := NewJobsHandler(d.Queue, d.Intake, d.Folders, d.Broadcaster, d.Objects)
	treeHandler := NewTreeHandler(d.Folders, d.Views, d.Objects)
	previewHandler := NewPreviewHandler(d.Folders, d.Preview, d.Views)
	syncHandler := NewSyncHandler(d.Sync, d.Broadcaster)
	eventsHandler := NewEventsHandler(d.Broadcaster)

	router := mux.NewRouter()
	router.Use(logging.Middleware, metrics.Middleware)

	// Health check endpoint (no tracing needed)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	router.Handle("/api/auth/login", traced("POST /api/auth/login", authHandler.Login)).Methods("POST")
	router.Handle("/api/auth/register", traced("POST /api/auth/register", authHandler.Register)).Methods("POST")

	api := router.PathPrefix("/api").Subrouter()
	api.Use(d.Sessions.Middleware)

	api.Handle("/auth/logout", traced("POST /api/auth/logout", authHandler.Logout)).Methods("POST")
	api.Handle("/profile", traced("GET /api/profile", authHandler.Profile)).Methods("GET")
	api.Handle("/profile", traced("PUT /api/profile", authHandler.UpdateProfile)).Methods("PUT")

	api.Handle("/jobs", traced("GET /api/jobs", jobsHandler.List)).Methods("GET")
	api.Handle("/jobs/{id}", traced("DELETE /api/jobs/{id}", jobsHandler.Remove)).Methods("DELETE")
	api.Handle("/uploads", traced("POST /api/uploads", jobsHandler.Upload)).Methods("POST")

	api.Handle("/tree", traced("GET /api/tree", treeHandler.Tree)).Methods("GET")
	api.Handle("/tree/{id}/toggle", traced("POST /api/tree/{id}/toggle", treeHandler.Toggle)).Methods("POST")
	api.Handle("/folders", traced("GET /api/folders", treeHandler.Folders)).Methods("GET")
	api.Handle("/folders", traced("POST /api/folders", treeHandler.CreateFolder)).Methods("POST")
	api.Handle("/items/{id}", traced("PUT /api/items/{id}", treeHandler.Rename)).Methods("PUT")
	api.Handle("/items/{id}", traced("DELETE /api/items/{id}", treeHandler.Delete)).Methods("DELETE")

	api.Handle("/preview", traced("GET /api/preview", previewHandler.Get)).Methods("GET")
	api.Handle("/preview/download", traced("GET /api/preview/download", previewHandler.Download)).Methods("GET")
	api.Handle("/preview/{id}", traced("POST /api/preview/{id}", previewHandler.Select)).Methods("POST")

	api.Handle("/sync", session.RequireAdmin(traced("GET /api/sync", syncHandler.List))).Methods("GET")
	api.Handle("/sync", session.RequireAdmin(traced("POST /api/sync", syncHandler.Start))).Methods("POST")

	api.Handle("/events", eventsHandler).Methods("GET")

	return router
}

func traced(operation string, h http.HandlerFunc) http.Handler {
	return otelhttp.NewHandler(h, operation)
}
