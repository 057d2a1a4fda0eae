/*
Copyright (C) 2026 Tactile Sound Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tactilesound/ratingexplorer/internal/generation"
	"github.com/tactilesound/ratingexplorer/internal/models"
)

// generationHealthy gates uploads on the service's own health report so a
// long multipart upload is not wasted on a service that cannot render.
func (a *API) generationHealthy(r *http.Request) bool {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	health, err := a.generation.Health(ctx)
	return err == nil && health.Healthy()
}

// handleGenerate proxies an uploaded audio file to the vibration
// generation service and returns the per-algorithm results. Partial
// failures come back per algorithm; the request itself only fails when
// the service is unreachable.
func (a *API) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if a.generation == nil {
		writeError(w, http.StatusServiceUnavailable, "generation_unavailable")
		return
	}

	if !a.generationHealthy(r) {
		writeError(w, http.StatusServiceUnavailable, "generation_unhealthy")
		return
	}

	file, header, err := r.FormFile("audio_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio_file_required")
		return
	}
	defer file.Close()

	if err := generation.ValidateFilename(header.Filename); err != nil {
		writeError(w, http.StatusBadRequest, "unsupported_audio_format")
		return
	}

	result, err := a.generation.Generate(r.Context(), header.Filename, file)
	if err != nil {
		a.logger.Error().Err(err).Str("filename", header.Filename).Msg("generation failed")
		writeError(w, http.StatusBadGateway, "generation_failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGenerateDownload generates with a single algorithm and streams
// the vibration file straight back to the client.
func (a *API) handleGenerateDownload(w http.ResponseWriter, r *http.Request) {
	if a.generation == nil {
		writeError(w, http.StatusServiceUnavailable, "generation_unavailable")
		return
	}

	if !a.generationHealthy(r) {
		writeError(w, http.StatusServiceUnavailable, "generation_unhealthy")
		return
	}

	design := models.Design(r.FormValue("algorithm"))
	if !design.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_algorithm")
		return
	}

	file, header, err := r.FormFile("audio_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio_file_required")
		return
	}
	defer file.Close()

	body, err := a.generation.GenerateAndDownload(r.Context(), header.Filename, file, design)
	if err != nil {
		a.logger.Error().Err(err).Str("filename", header.Filename).Msg("generate-and-download failed")
		writeError(w, http.StatusBadGateway, "generation_failed")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", "attachment")
	w.WriteHeader(http.StatusOK)
	if err := copyBody(w, body); err != nil {
		a.logger.Debug().Err(err).Msg("download stream interrupted")
	}
}

func (a *API) handleGenerateOutputs(w http.ResponseWriter, r *http.Request) {
	if a.generation == nil {
		writeError(w, http.StatusServiceUnavailable, "generation_unavailable")
		return
	}

	outputs, err := a.generation.ListOutputs(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("list outputs failed")
		writeError(w, http.StatusBadGateway, "generation_failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"outputs": outputs,
		"count":   len(outputs),
	})
}
