/*
Copyright (C) 2026 Tactile Sound Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tactilesound/ratingexplorer/internal/api"
	"github.com/tactilesound/ratingexplorer/internal/cache"
	"github.com/tactilesound/ratingexplorer/internal/config"
	"github.com/tactilesound/ratingexplorer/internal/dashboard"
	"github.com/tactilesound/ratingexplorer/internal/dataset"
	"github.com/tactilesound/ratingexplorer/internal/db"
	"github.com/tactilesound/ratingexplorer/internal/generation"
	"github.com/tactilesound/ratingexplorer/internal/logbuffer"
	"github.com/tactilesound/ratingexplorer/internal/media"
	"github.com/tactilesound/ratingexplorer/internal/models"
	"github.com/tactilesound/ratingexplorer/internal/telemetry"
)

// Server bundles the HTTP API and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db        *gorm.DB
	cache     *cache.Cache
	store     *dataset.Store
	sessions  *dashboard.Manager
	media     *media.Service
	genClient *generation.Client
	api       *api.API
	logBuffer *logbuffer.Buffer

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.MetricsMiddleware)
	// Skip timeout for WebSocket event streams; they are long-lived.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(60 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    router,
		logBuffer: logBuf,
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:    addr,
		Handler: srv.router,
		// Keep header deadline to protect against slowloris, but do not
		// enforce a full-body read deadline so audio uploads are not
		// terminated mid-request.
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       0,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self' 'unsafe-inline' data: blob:; frame-ancestors 'none'; base-uri 'self'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(database); err != nil {
		return err
	}
	if err := db.RegisterCallbacks(database); err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	if err := os.MkdirAll(s.cfg.MediaRoot, 0755); err != nil {
		return fmt.Errorf("failed to create media directory %s: %w", s.cfg.MediaRoot, err)
	}
	s.logger.Info().Str("path", s.cfg.MediaRoot).Msg("media directory ready")

	if s.cfg.CacheEnabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = s.cfg.RedisAddr
		cacheCfg.RedisPassword = s.cfg.RedisPassword
		cacheCfg.RedisDB = s.cfg.RedisDB
		entityCache, err := cache.New(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
		} else {
			s.cache = entityCache
			s.DeferClose(func() error { return s.cache.Close() })
		}
	}

	store, err := s.loadDataset()
	if err != nil {
		return err
	}
	s.store = store
	s.logger.Info().Int("records", store.Len()).Msg("dataset loaded")

	taxonomy, err := s.loadTaxonomy()
	if err != nil {
		return err
	}

	s.sessions = dashboard.NewManager(store, taxonomy, dashboard.Options{
		Debounce:        s.cfg.Debounce,
		RatingFloor:     s.cfg.RatingFloor,
		InitialBatch:    s.cfg.InitialBatch,
		BackgroundBatch: s.cfg.BackgroundBatch,
		BatchDelay:      s.cfg.BatchDelay,
		IdleTimeout:     s.cfg.SessionIdle,
	}, s.logger)
	s.DeferClose(func() error { s.sessions.Close(); return nil })

	mediaService, err := media.NewService(s.cfg, s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize media service: %w", err)
	}
	s.media = mediaService

	if s.cfg.GenerationURL != "" {
		s.genClient = generation.New(s.cfg.GenerationURL, s.cfg.GenerationTimeout, s.logger)
		s.genClient.SetMaxUploadSize(s.cfg.MaxUploadSizeBytes())
	} else {
		s.logger.Info().Msg("generation service not configured, upload endpoints disabled")
	}

	s.api = api.New(s.db, []byte(s.cfg.JWTSigningKey), s.store, s.sessions, s.media, s.genClient, s.cache, s.logBuffer, s.logger)

	return nil
}

// loadDataset prefers the database; an empty table falls back to the
// ratings.json export so a fresh install still renders.
func (s *Server) loadDataset() (*dataset.Store, error) {
	store, err := dataset.LoadFromDB(s.db)
	if err != nil {
		return nil, fmt.Errorf("load dataset from db: %w", err)
	}
	if store.Len() > 0 {
		return store, nil
	}

	if s.cfg.RatingsPath != "" {
		s.logger.Warn().Str("path", s.cfg.RatingsPath).Msg("rating table empty, falling back to ratings file")
		return dataset.LoadFile(s.cfg.RatingsPath)
	}

	s.logger.Warn().Msg("no rating records loaded; run the import command to populate the database")
	return store, nil
}

func (s *Server) loadTaxonomy() (*models.Taxonomy, error) {
	if s.cfg.TaxonomyPath == "" {
		return models.DefaultTaxonomy(), nil
	}
	taxonomy, err := models.LoadTaxonomy(s.cfg.TaxonomyPath)
	if err != nil {
		return nil, fmt.Errorf("load taxonomy: %w", err)
	}
	return taxonomy, nil
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// LogBuffer returns the server's log buffer for attaching to zerolog.
func (s *Server) LogBuffer() *logbuffer.Buffer {
	return s.logBuffer
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	// Database pool metrics updater.
	if s.db != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					db.UpdateConnectionMetrics(s.db)
				}
			}
		}()
	}

	// Optional dedicated metrics listener, for deployments that keep
	// /metrics off the public port.
	if s.cfg.MetricsBind != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", telemetry.Handler())
		metricsSrv := &http.Server{
			Addr:              s.cfg.MetricsBind,
			Handler:           metricsMux,
			ReadHeaderTimeout: 15 * time.Second,
		}
		s.bgWG.Add(2)
		go func() {
			defer s.bgWG.Done()
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Error().Err(err).Msg("metrics listener exited")
			}
		}()
		go func() {
			defer s.bgWG.Done()
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	// Session gauge updater. Session creation and expiry both move the
	// count; sampling keeps the gauge honest without threading telemetry
	// through the manager.
	if s.sessions != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					telemetry.SessionsActive.Set(float64(s.sessions.Count()))
				}
			}
		}()
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.router.Handle("/metrics", telemetry.Handler())

	s.api.Routes(s.router)
}
