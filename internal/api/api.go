/*
Copyright (C) 2026 Tactile Sound Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tactilesound/ratingexplorer/internal/auth"
	"github.com/tactilesound/ratingexplorer/internal/cache"
	"github.com/tactilesound/ratingexplorer/internal/dashboard"
	"github.com/tactilesound/ratingexplorer/internal/dataset"
	"github.com/tactilesound/ratingexplorer/internal/generation"
	"github.com/tactilesound/ratingexplorer/internal/logbuffer"
	"github.com/tactilesound/ratingexplorer/internal/media"
	"github.com/tactilesound/ratingexplorer/internal/models"
	"github.com/tactilesound/ratingexplorer/internal/stats"
)

// SessionTokenTTL bounds how long a session token stays valid. Idle
// sessions are swept earlier by the manager.
const SessionTokenTTL = 12 * time.Hour

// API exposes HTTP handlers.
type API struct {
	db         *gorm.DB
	jwtSecret  []byte
	store      *dataset.Store
	sessions   *dashboard.Manager
	media      *media.Service
	generation *generation.Client
	cache      *cache.Cache
	logBuffer  *logbuffer.Buffer
	logger     zerolog.Logger
}

// New creates the API router wrapper. cache and logBuf may be nil.
func New(db *gorm.DB, jwtSecret []byte, store *dataset.Store, sessions *dashboard.Manager, mediaSvc *media.Service, genClient *generation.Client, cacheSvc *cache.Cache, logBuf *logbuffer.Buffer, logger zerolog.Logger) *API {
	return &API{
		db:         db,
		jwtSecret:  jwtSecret,
		store:      store,
		sessions:   sessions,
		media:      mediaSvc,
		generation: genClient,
		cache:      cacheSvc,
		logBuffer:  logBuf,
		logger:     logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts all API routes.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		// Public dataset payloads consumed by the frontend on load.
		r.Get("/data/ratings.json", a.handleRatings)
		r.Get("/data/summary.json", a.handleSummary)
		r.Get("/stats/categories", a.handleCategoryStats)
		r.Get("/stats/classes", a.handleClassStats)
		r.Get("/stats/designs", a.handleDesignStats)

		r.Get("/files/{kind}/{name}", a.handleFile)

		r.Post("/sessions", a.handleSessionCreate)

		// Session-scoped routes require a bearer token bound to the session.
		r.Group(func(pr chi.Router) {
			pr.Use(auth.Middleware(a.jwtSecret))

			pr.Route("/sessions/{sessionID}", func(r chi.Router) {
				r.Get("/", a.handleSessionGet)
				r.Delete("/", a.handleSessionDelete)

				r.Patch("/filters", a.handleFiltersUpdate)
				r.Delete("/filters", a.handleFiltersClear)
				r.Post("/filters/categories/{name}/toggle", a.handleCategoryToggle)

				r.Get("/selection", a.handleSelectionGet)
				r.Post("/selection/{kind}", a.handleSelect)
				r.Post("/selection/conflict/resolve", a.handleConflictResolve)

				r.Get("/stats/categories", a.handleSessionCategoryStats)
				r.Get("/stats/classes", a.handleSessionClassStats)
				r.Get("/stats/designs", a.handleSessionDesignStats)

				r.Get("/catalog", a.handleCatalog)
				r.Post("/catalog/more", a.handleCatalogMore)
				r.Post("/catalog/retry", a.handleCatalogRetry)

				r.Post("/charts/sunburst/{action}", a.handleSunburstClick)
				r.Get("/charts/sunburst", a.handleSunburstState)
				r.Post("/charts/linechart/point", a.handleLineChartPoint)
				r.Post("/charts/radial/algorithm", a.handleRadialClick)

				r.Get("/events", a.handleEventsWS)
			})

			pr.Post("/generate", a.handleGenerate)
			pr.Post("/generate/download", a.handleGenerateDownload)
			pr.Get("/generate/outputs", a.handleGenerateOutputs)

			pr.Route("/logs", func(lr chi.Router) {
				lr.Get("/", a.handleLogs)
				lr.Get("/components", a.handleLogComponents)
				lr.Get("/stats", a.handleLogStats)
			})
		})
	})
}

func copyBody(w io.Writer, r io.Reader) error {
	_, err := io.Copy(w, r)
	return err
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{"api": "ok"}
	status := http.StatusOK

	if a.db != nil {
		if sqlDB, err := a.db.DB(); err != nil || sqlDB.PingContext(r.Context()) != nil {
			components["database"] = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			components["database"] = "ok"
		}
	}

	if a.media != nil {
		if err := a.media.CheckStorageAccess(); err != nil {
			components["storage"] = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			components["storage"] = "ok"
		}
	}

	// Generation is optional: the dashboard degrades to pre-rendered files
	// when the service is down, so it never fails the health check.
	if a.generation != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if health, err := a.generation.Health(ctx); err != nil || !health.Healthy() {
			components["generation"] = "unavailable"
		} else {
			components["generation"] = "ok"
		}
	}

	writeJSON(w, status, map[string]any{
		"status":     http.StatusText(status),
		"components": components,
	})
}

func (a *API) handleRatings(w http.ResponseWriter, r *http.Request) {
	if a.cache != nil {
		if payload, ok := a.cache.GetRatingsPayload(r.Context()); ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(payload)
			return
		}
	}

	records := a.store.Records()
	if a.cache != nil {
		if payload, err := json.Marshal(records); err == nil {
			_ = a.cache.SetRatingsPayload(r.Context(), payload)
		}
	}
	writeJSON(w, http.StatusOK, records)
}

func (a *API) handleSummary(w http.ResponseWriter, r *http.Request) {
	if a.cache != nil {
		if summary, ok := a.cache.GetSummary(r.Context()); ok {
			writeJSON(w, http.StatusOK, summary)
			return
		}
	}

	summary := a.store.Summary()
	if a.cache != nil {
		_ = a.cache.SetSummary(r.Context(), summary)
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleCategoryStats(w http.ResponseWriter, r *http.Request) {
	if a.cache != nil {
		if out, ok := a.cache.GetCategoryStats(r.Context()); ok {
			writeJSON(w, http.StatusOK, out)
			return
		}
	}

	records := a.store.Records()
	out := make([]stats.CategoryStats, 0)
	for _, c := range stats.UniqueCategories(records) {
		out = append(out, stats.ForCategory(records, c))
	}
	if a.cache != nil {
		_ = a.cache.SetCategoryStats(r.Context(), out)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleClassStats(w http.ResponseWriter, r *http.Request) {
	if a.cache != nil {
		if out, ok := a.cache.GetClassStats(r.Context()); ok {
			writeJSON(w, http.StatusOK, out)
			return
		}
	}

	records := a.store.Records()
	out := make([]stats.ClassStats, 0)
	for _, c := range stats.UniqueClasses(records) {
		out = append(out, stats.ForClass(records, c))
	}
	if a.cache != nil {
		_ = a.cache.SetClassStats(r.Context(), out)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleDesignStats(w http.ResponseWriter, r *http.Request) {
	if a.cache != nil {
		if out, ok := a.cache.GetDesignStats(r.Context()); ok {
			writeJSON(w, http.StatusOK, out)
			return
		}
	}

	records := a.store.Records()
	out := make([]stats.DesignStats, 0, len(models.Designs))
	for _, d := range models.Designs {
		out = append(out, stats.ForDesign(records, d))
	}
	if a.cache != nil {
		_ = a.cache.SetDesignStats(r.Context(), out)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleFile(w http.ResponseWriter, r *http.Request) {
	if a.media == nil {
		writeError(w, http.StatusNotFound, "media_disabled")
		return
	}

	kind := chi.URLParam(r, "kind")
	name := chi.URLParam(r, "name")

	reader, err := a.media.Open(r.Context(), kind, name)
	if err != nil {
		writeError(w, http.StatusNotFound, "file_not_found")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	_ = copyBody(w, reader)
}

func (a *API) handleLogs(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeError(w, http.StatusNotFound, "log_buffer_disabled")
		return
	}

	params := logbuffer.QueryParams{
		Level:     r.URL.Query().Get("level"),
		Component: r.URL.Query().Get("component"),
		SessionID: r.URL.Query().Get("session_id"),
		Search:    r.URL.Query().Get("search"),
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			params.Limit = n
		}
	}
	params.Descending = r.URL.Query().Get("order") != "asc"

	writeJSON(w, http.StatusOK, map[string]any{
		"logs": a.logBuffer.Query(params),
	})
}

func (a *API) handleLogComponents(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeError(w, http.StatusNotFound, "log_buffer_disabled")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"components": a.logBuffer.Components()})
}

func (a *API) handleLogStats(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeError(w, http.StatusNotFound, "log_buffer_disabled")
		return
	}
	writeJSON(w, http.StatusOK, a.logBuffer.Stats(r.URL.Query().Get("session_id")))
}
