package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/securerpc/tlsmatrix/internal/runner"
	"github.com/securerpc/tlsmatrix/internal/scenario"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type scenarioEntry struct {
	ID       string           `json:"id"`
	Config   scenario.Config  `json:"config"`
	Expected scenario.Verdict `json:"expected"`
}

type scenariosResponse struct {
	Total     int             `json:"total"`
	Scenarios []scenarioEntry `json:"scenarios"`
}

// runRequest optionally narrows the profile for one run.
type runRequest struct {
	Workers int             `json:"workers,omitempty"`
	Timeout string          `json:"timeout,omitempty"`
	Filter  scenario.Filter `json:"filter,omitempty"`
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, healthResponse{Status: "ok", Version: s.version})
}

// handleScenarios handles GET /api/v1/scenarios: every legal scenario
// under the server profile's filter, with its predicted verdict.
func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	var entries []scenarioEntry
	for _, cfg := range scenario.EnumerateLegal() {
		if !s.profile.Filter.Match(cfg) {
			continue
		}
		entries = append(entries, scenarioEntry{
			ID:       cfg.ID(),
			Config:   cfg,
			Expected: cfg.Expected(),
		})
	}
	respondJSON(w, http.StatusOK, scenariosResponse{Total: len(entries), Scenarios: entries})
}

// handleRun handles POST /api/v1/run. The body may narrow the run; an
// empty body runs the profile as configured.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, apiError{
				Code:    "INVALID_REQUEST",
				Message: "invalid JSON request body: " + err.Error(),
			})
			return
		}
	}

	opts, err := s.runOptions(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, apiError{Code: "INVALID_REQUEST", Message: err.Error()})
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		respondError(w, http.StatusConflict, apiError{
			Code:    "RUN_IN_PROGRESS",
			Message: "a matrix run is already executing",
		})
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if s.log != nil {
		s.log.Infof("api: starting matrix run with %d workers", opts.Workers)
	}
	report, err := runner.New(opts).Run(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, apiError{Code: "RUN_FAILED", Message: err.Error()})
		return
	}

	s.mu.Lock()
	s.lastReport = report
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, report)
}

// handleReport handles GET /api/v1/report: the last completed run.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	report := s.lastReport
	s.mu.Unlock()

	if report == nil {
		respondError(w, http.StatusNotFound, apiError{
			Code:    "NO_REPORT",
			Message: "no matrix run has completed yet",
		})
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// runOptions merges a run request over the server profile.
func (s *Server) runOptions(req runRequest) (runner.Options, error) {
	opts := runner.Options{
		Algorithm:    s.profile.AlgorithmID(),
		Organization: s.profile.Organization,
		Names:        s.profile.IdentityNames(),
		Workers:      s.profile.Workers,
		Timeout:      s.profile.TimeoutDuration(),
		Filter:       s.profile.Filter,
		Log:          s.log,
	}
	if req.Workers > 0 {
		opts.Workers = req.Workers
	}
	if req.Timeout != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil || d <= 0 {
			return opts, errInvalidTimeout
		}
		opts.Timeout = d
	}
	if !isZeroFilter(req.Filter) {
		if err := req.Filter.Validate(); err != nil {
			return opts, err
		}
		opts.Filter = req.Filter
	}
	return opts, nil
}

func isZeroFilter(f scenario.Filter) bool {
	return len(f.Parties) == 0 && len(f.Signers) == 0 && len(f.Namings) == 0 &&
		len(f.ClientCheck) == 0 && len(f.Corruptions) == 0 && len(f.Mismatches) == 0
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, e apiError) {
	respondJSON(w, status, map[string]apiError{"error": e})
}
