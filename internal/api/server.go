// Package api exposes the matrix over HTTP: scenario listing, run
// execution, and report retrieval. It exists for dashboards and CI
// glue; the command line remains the primary interface.
package api

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gopkg.in/op/go-logging.v1"

	"github.com/securerpc/tlsmatrix/internal/config"
	"github.com/securerpc/tlsmatrix/internal/runner"
)

// Server serves the matrix API. Runs execute synchronously inside the
// request; one run at a time.
type Server struct {
	profile *config.Profile
	version string
	log     *logging.Logger

	mu         sync.Mutex
	running    bool
	lastReport *runner.Report
}

// NewServer creates a server executing runs under the given profile.
func NewServer(profile *config.Profile, version string, log *logging.Logger) *Server {
	return &Server{profile: profile, version: version, log: log}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/scenarios", s.handleScenarios)
		r.Post("/run", s.handleRun)
		r.Get("/report", s.handleReport)
	})

	return r
}
