package admin

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/getmockd/protomock/pkg/logging"
	"github.com/getmockd/protomock/pkg/metrics"
	"github.com/getmockd/protomock/pkg/stub"
)

// Prefix is the path every admin route lives under.
const Prefix = "/__admin"

// MappingLoader returns the stubs a reset restores.
type MappingLoader func() ([]*stub.Stub, error)

// API serves the admin routes.
type API struct {
	store     *stub.Store
	journal   *stub.Journal
	loader    MappingLoader
	log       *slog.Logger
	startTime time.Time
	mux       *http.ServeMux
}

// Option configures an API.
type Option func(*API)

// WithJournal exposes j under /__admin/requests.
func WithJournal(j *stub.Journal) Option {
	return func(a *API) {
		a.journal = j
	}
}

// WithMappingLoader makes a mappings reset reload stubs from loader
// instead of leaving the store empty.
func WithMappingLoader(loader MappingLoader) Option {
	return func(a *API) {
		a.loader = loader
	}
}

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *API) {
		a.log = logging.Component(log, "admin")
	}
}

// New creates an API managing store.
func New(store *stub.Store, opts ...Option) *API {
	a := &API{
		store:     store,
		log:       logging.Nop(),
		startTime: time.Now(),
		mux:       http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.registerRoutes(a.mux)
	return a
}

// ServeHTTP implements http.Handler.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

// Uptime returns the time since the API was created, in whole seconds.
func (a *API) Uptime() int {
	return int(time.Since(a.startTime).Seconds())
}

func (a *API) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET "+Prefix+"/health", a.handleHealth)

	mux.HandleFunc("GET "+Prefix+"/mappings", a.handleListMappings)
	mux.HandleFunc("POST "+Prefix+"/mappings", a.handleCreateMapping)
	mux.HandleFunc("POST "+Prefix+"/mappings/reset", a.handleResetMappings)
	mux.HandleFunc("GET "+Prefix+"/mappings/{id}", a.handleGetMapping)
	mux.HandleFunc("DELETE "+Prefix+"/mappings/{id}", a.handleDeleteMapping)

	mux.HandleFunc("GET "+Prefix+"/requests", a.handleListRequests)
	mux.HandleFunc("DELETE "+Prefix+"/requests", a.handleClearRequests)

	mux.Handle("GET "+Prefix+"/metrics", metrics.Handler())
}
