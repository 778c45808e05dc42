package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"automl/domain/core"
	"automl/domain/run"
	"automl/internal"
	"automl/internal/errors"
	"automl/internal/report"
	"automl/ports"
)

// TrackingAPI is a read-only HTTP view over recorded runs and the registry.
type TrackingAPI struct {
	router       *chi.Mux
	runs         ports.RunLogReaderPort
	registry     ports.ModelRegistry
	productionAs string
	logger       *internal.Logger
}

// NewTrackingAPI builds the router. productionName is the registered name
// highlighted on leaderboards.
func NewTrackingAPI(runs ports.RunLogReaderPort, registry ports.ModelRegistry, productionName string, logger *internal.Logger) *TrackingAPI {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	a := &TrackingAPI{
		router:       chi.NewRouter(),
		runs:         runs,
		registry:     registry,
		productionAs: productionName,
		logger:       logger,
	}
	a.setupMiddleware()
	a.setupRoutes()
	return a
}

func (a *TrackingAPI) setupMiddleware() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

func (a *TrackingAPI) setupRoutes() {
	a.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	a.router.Route("/api", func(r chi.Router) {
		r.Get("/runs", a.handleListRuns)
		r.Get("/runs/{id}", a.handleGetRun)
		r.Get("/experiments/{experiment}/leaderboard", a.handleLeaderboard)
		r.Get("/registry/{name}", a.handleGetRegistered)
		r.Get("/registry/{name}/versions", a.handleListVersions)
	})
}

func (a *TrackingAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// handleListRuns lists runs filtered by query parameters
func (a *TrackingAPI) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	runs, err := a.runs.ListRuns(r.Context(), filters)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if runs == nil {
		runs = []run.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs, "count": len(runs)})
}

func (a *TrackingAPI) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseRunID(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, errors.InvalidInput(err.Error()))
		return
	}
	found, err := a.runs.GetRun(r.Context(), id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

// handleLeaderboard renders json (default), md or html per ?format=
func (a *TrackingAPI) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	experiment := chi.URLParam(r, "experiment")
	runs, err := a.runs.ListRuns(r.Context(), ports.RunFilters{Experiment: experiment})
	if err != nil {
		a.writeError(w, err)
		return
	}

	var production *run.RegisteredModel
	if a.registry != nil && a.productionAs != "" {
		if rm, err := a.registry.GetRegisteredModel(r.Context(), a.productionAs); err == nil {
			production = rm
		}
	}
	lb := report.NewLeaderboard(experiment, runs, production)

	switch r.URL.Query().Get("format") {
	case "md", "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(lb.Markdown()))
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(lb.HTML())
	case "", "json":
		writeJSON(w, http.StatusOK, lb)
	default:
		a.writeError(w, errors.InvalidInput("format must be json, md or html"))
	}
}

func (a *TrackingAPI) handleGetRegistered(w http.ResponseWriter, r *http.Request) {
	if a.registry == nil {
		a.writeError(w, errors.NotFound("registry"))
		return
	}
	rm, err := a.registry.GetRegisteredModel(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rm)
}

func (a *TrackingAPI) handleListVersions(w http.ResponseWriter, r *http.Request) {
	if a.registry == nil {
		a.writeError(w, errors.NotFound("registry"))
		return
	}
	versions, err := a.registry.ListVersions(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	if versions == nil {
		versions = []run.RegisteredModel{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"versions": versions})
}

func parseFilters(r *http.Request) (ports.RunFilters, error) {
	q := r.URL.Query()
	f := ports.RunFilters{
		Experiment:   q.Get("experiment"),
		Architecture: q.Get("architecture"),
		Status:       run.Status(q.Get("status")),
	}
	for key, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, errors.InvalidInput(key + " must be a non-negative integer")
		}
		*dst = n
	}
	return f, nil
}

func (a *TrackingAPI) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("[TrackingAPI] %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "code": errors.GetCode(err)})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
