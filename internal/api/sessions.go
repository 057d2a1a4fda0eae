/*
Copyright (C) 2026 Tactile Sound Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tactilesound/ratingexplorer/internal/auth"
	"github.com/tactilesound/ratingexplorer/internal/dashboard"
	"github.com/tactilesound/ratingexplorer/internal/filter"
	"github.com/tactilesound/ratingexplorer/internal/models"
	"github.com/tactilesound/ratingexplorer/internal/selection"
	"github.com/tactilesound/ratingexplorer/internal/telemetry"
)

func (a *API) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	session := a.sessions.Create()
	telemetry.SessionsTotal.Inc()
	telemetry.SessionsActive.Set(float64(a.sessions.Count()))

	token, err := auth.Issue(a.jwtSecret, session.ID, SessionTokenTTL)
	if err != nil {
		a.sessions.Delete(session.ID)
		a.logger.Error().Err(err).Msg("issue session token")
		writeError(w, http.StatusInternalServerError, "token_issue_failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"session_id": session.ID,
		"token":      token,
	})
}

// requireSession resolves the route's session and enforces that the token
// was issued for it.
func (a *API) requireSession(w http.ResponseWriter, r *http.Request) (*dashboard.Session, bool) {
	sessionID := chi.URLParam(r, "sessionID")

	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok || claims.SessionID != sessionID {
		writeError(w, http.StatusForbidden, "session_mismatch")
		return nil, false
	}

	session, ok := a.sessions.Get(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "session_not_found")
		return nil, false
	}
	return session, true
}

func (a *API) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	session, ok := a.requireSession(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": session.ID,
		"filters":    session.Filters.State(),
		"selection":  session.Selection.State(),
		"catalog":    session.Catalog.Snapshot(),
	})
}

func (a *API) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	session, ok := a.requireSession(w, r)
	if !ok {
		return
	}

	a.sessions.Delete(session.ID)
	telemetry.SessionsActive.Set(float64(a.sessions.Count()))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Filter handlers

func (a *API) handleFiltersUpdate(w http.ResponseWriter, r *http.Request) {
	session, ok := a.requireSession(w, r)
	if !ok {
		return
	}

	var update filter.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_filter_update")
		return
	}

	session.Filters.UpdateFilter(update)
	writeJSON(w, http.StatusOK, session.Filters.State())
}

func (a *API) handleFiltersClear(w http.ResponseWriter, r *http.Request) {
	session, ok := a.requireSession(w, r)
	if !ok {
		return
	}

	session.Filters.ClearAllFilters()
	writeJSON(w, http.StatusOK, session.Filters.State())
}

func (a *API) handleCategoryToggle(w http.ResponseWriter, r *http.Request) {
	session, ok := a.requireSession(w, r)
	if !ok {
		return
	}

	name := chi.URLParam(r, "name")
	session.Filters.ToggleCategory(name)
	writeJSON(w, http.StatusOK, map[string]any{
		"filters":     session.Filters.State(),
		"group_state": session.Filters.GroupState(name).String(),
	})
}

// Selection handlers

type selectRequest struct {
	Origin string           `json:"origin"`
	Value  *string          `json:"value"`
	Design *models.Design   `json:"design"`
	Point  *selection.Point `json:"point"`
	Sound  *selectSound     `json:"sound"`
}

type selectSound struct {
	ID string `json:"id"`
}

func parseOrigin(s string) (selection.Origin, bool) {
	switch selection.Origin(s) {
	case selection.OriginSunburst, selection.OriginRadial, selection.OriginLineChart,
		selection.OriginContour, selection.OriginCatalog:
		return selection.Origin(s), true
	}
	return "", false
}

func (a *API) handleSelect(w http.ResponseWriter, r *http.Request) {
	session, ok := a.requireSession(w, r)
	if !ok {
		return
	}

	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_selection_request")
		return
	}

	origin, ok := parseOrigin(req.Origin)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_origin")
		return
	}

	var err error
	switch chi.URLParam(r, "kind") {
	case "algorithm":
		if req.Design != nil && !req.Design.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_design")
			return
		}
		err = session.Selection.SelectAlgorithm(origin, req.Design)
	case "category":
		err = session.Selection.SelectCategory(origin, req.Value)
	case "subcategory":
		err = session.Selection.SelectSubcategory(origin, req.Value)
	case "point":
		session.Selection.SelectPoint(origin, req.Point)
	case "sound":
		var card *models.SoundCard
		if req.Sound != nil {
			card = &models.SoundCard{ID: req.Sound.ID}
		}
		session.Selection.SelectSound(origin, card)
	default:
		writeError(w, http.StatusNotFound, "unknown_selection_kind")
		return
	}

	if err != nil {
		a.writeSelectionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session.Selection.State())
}

// writeSelectionError maps a refused drill to 409 with the conflict detail
// the frontend needs to prompt the user.
func (a *API) writeSelectionError(w http.ResponseWriter, err error) {
	var conflict *selection.ConflictError
	if errors.As(err, &conflict) {
		telemetry.SelectionConflictsTotal.Inc()
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":        "selection_conflict",
			"attempted":    conflict.Attempted,
			"origin":       conflict.Origin,
			"point_origin": conflict.PointOrigin,
			"resolutions":  []string{"cancel", "clear_point"},
		})
		return
	}
	writeError(w, http.StatusInternalServerError, "selection_failed")
}

func (a *API) handleSelectionGet(w http.ResponseWriter, r *http.Request) {
	session, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session.Selection.State())
}

func (a *API) handleConflictResolve(w http.ResponseWriter, r *http.Request) {
	session, ok := a.requireSession(w, r)
	if !ok {
		return
	}

	var req struct {
		Resolution string `json:"resolution"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_resolution_request")
		return
	}

	switch req.Resolution {
	case "cancel":
		// Keep the point selection; the refused interaction is dropped.
	case "clear_point":
		// Clear the point; the refused interaction is NOT replayed.
		session.Selection.ClearPoint()
	default:
		writeError(w, http.StatusBadRequest, "unknown_resolution")
		return
	}

	writeJSON(w, http.StatusOK, session.Selection.State())
}

// Session-scoped stats. NaN aggregates cross the wire as nulls.

func (a *API) handleSessionCategoryStats(w http.ResponseWriter, r *http.Request) {
	session, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session.CategoryStats())
}

func (a *API) handleSessionClassStats(w http.ResponseWriter, r *http.Request) {
	session, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session.ClassStats())
}

func (a *API) handleSessionDesignStats(w http.ResponseWriter, r *http.Request) {
	session, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session.DesignStats())
}

// Catalog handlers

func (a *API) handleCatalog(w http.ResponseWriter, r *http.Request) {
	session, ok := a.requireSession(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, session.Catalog.Snapshot())
}

func (a *API) handleCatalogMore(w http.ResponseWriter, r *http.Request) {
	session, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session.Catalog.LoadMore())
}

func (a *API) handleCatalogRetry(w http.ResponseWriter, r *http.Request) {
	session, ok := a.requireSession(w, r)
	if !ok {
		return
	}

	snap, err := session.Catalog.Retry()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":   "retry_exhausted",
			"detail":  err.Error(),
			"retries": snap.Retries,
		})
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// Chart adapter handlers

func (a *API) handleSunburstClick(w http.ResponseWriter, r *http.Request) {
	session, ok := a.requireSession(w, r)
	if !ok {
		return
	}

	var req struct {
		Value string `json:"value"`
	}
	action := chi.URLParam(r, "action")
	if action != "center" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_click_request")
			return
		}
	}

	var err error
	switch action {
	case "algorithm":
		design := models.Design(req.Value)
		if !design.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_design")
			return
		}
		err = session.Sunburst.ClickAlgorithm(design)
	case "category":
		err = session.Sunburst.ClickCategory(req.Value)
	case "subcategory":
		err = session.Sunburst.ClickSubcategory(req.Value)
	case "center":
		err = session.Sunburst.ClickCenter()
	default:
		writeError(w, http.StatusNotFound, "unknown_sunburst_action")
		return
	}

	if err != nil {
		a.writeSelectionError(w, err)
		return
	}
	a.writeSunburstState(w, session)
}

func (a *API) handleSunburstState(w http.ResponseWriter, r *http.Request) {
	session, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	a.writeSunburstState(w, session)
}

func (a *API) writeSunburstState(w http.ResponseWriter, session *dashboard.Session) {
	writeJSON(w, http.StatusOK, map[string]any{
		"level":     session.Sunburst.Level(),
		"selection": session.Selection.State(),
	})
}

func (a *API) handleLineChartPoint(w http.ResponseWriter, r *http.Request) {
	session, ok := a.requireSession(w, r)
	if !ok {
		return
	}

	var point selection.Point
	if err := json.NewDecoder(r.Body).Decode(&point); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_point_request")
		return
	}
	if !point.Algorithm.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_design")
		return
	}

	session.LineChart.ClickPoint(point)
	writeJSON(w, http.StatusOK, session.Selection.State())
}

func (a *API) handleRadialClick(w http.ResponseWriter, r *http.Request) {
	session, ok := a.requireSession(w, r)
	if !ok {
		return
	}

	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_click_request")
		return
	}
	design := models.Design(req.Value)
	if !design.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_design")
		return
	}

	if err := session.Radial.ClickAlgorithm(design); err != nil {
		a.writeSelectionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session.Selection.State())
}
