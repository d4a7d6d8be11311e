package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/openshelf/openshelf/internal/authz"
	"github.com/openshelf/openshelf/internal/faq"
	"github.com/openshelf/openshelf/internal/files"
	"github.com/openshelf/openshelf/internal/identity"
	"github.com/openshelf/openshelf/internal/observability"
	"github.com/openshelf/openshelf/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	GateMiddleware  authz.Middleware
	FilesHandler    *files.Handler
	IdentityHandler *identity.Handler
	FAQHandler      *faq.Handler
	JobsHandler     *jobs.Handler
	Metrics         *observability.Metrics

	// BlobHandler serves stored binaries in the local setup. Optional; a
	// real deployment points file URLs at the external hosting service.
	BlobHandler http.Handler
}

// NewRouter constructs the chi.Router. Every API route passes through the
// gate middleware; the action name is the final path segment.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(params.GateMiddleware.Authorize)
		params.FilesHandler.MountRoutes(api)
		params.IdentityHandler.MountRoutes(api)
		params.FAQHandler.MountRoutes(api)
	})

	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.BlobHandler != nil {
		r.Handle("/blobs/*", http.StripPrefix("/blobs/", params.BlobHandler))
	}

	return r
}
