/*
Copyright (C) 2026 Tactile Sound Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/tactilesound/ratingexplorer/internal/dashboard"
	"github.com/tactilesound/ratingexplorer/internal/dataset"
	"github.com/tactilesound/ratingexplorer/internal/models"
)

var testSecret = []byte("test-secret-not-for-production")

func testRecords() []models.RatingRecord {
	return []models.RatingRecord{
		{ID: "1", AudioFile: "1-100032-A-0.wav", Class: "0", Category: "dog", Design: models.DesignFreqShift, Rating: 80},
		{ID: "2", AudioFile: "1-100032-A-0.wav", Class: "0", Category: "dog", Design: models.DesignHapticGen, Rating: 60},
		{ID: "3", AudioFile: "1-26806-A-1.wav", Class: "1", Category: "rooster", Design: models.DesignFreqShift, Rating: 70},
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := dataset.New(testRecords())
	manager := dashboard.NewManager(store, models.DefaultTaxonomy(), dashboard.Options{
		Debounce:        2 * time.Millisecond,
		RatingFloor:     0,
		InitialBatch:    10,
		BackgroundBatch: 10,
		BatchDelay:      2 * time.Millisecond,
	}, zerolog.Nop())
	t.Cleanup(manager.Close)

	a := New(nil, testSecret, store, manager, nil, nil, nil, nil, zerolog.Nop())
	router := chi.NewRouter()
	a.Routes(router)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func createSession(t *testing.T, server *httptest.Server) (sessionID, token string) {
	t.Helper()

	resp, err := http.Post(server.URL+"/api/v1/sessions", "application/json", nil)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session status = %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode session response: %v", err)
	}
	if body["session_id"] == "" || body["token"] == "" {
		t.Fatalf("missing session_id or token in %v", body)
	}
	return body["session_id"], body["token"]
}

func doRequest(t *testing.T, method, url, token string, payload any) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestHealth(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	components, ok := body["components"].(map[string]any)
	if !ok || components["api"] != "ok" {
		t.Fatalf("unexpected health body %v", body)
	}
}

func TestRatingsEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/v1/data/ratings.json")
	if err != nil {
		t.Fatalf("ratings: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ratings status = %d", resp.StatusCode)
	}

	var records []models.RatingRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		t.Fatalf("decode ratings: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
}

func TestSessionRequiresToken(t *testing.T) {
	server := newTestServer(t)
	sessionID, _ := createSession(t, server)

	resp := doRequest(t, http.MethodGet, server.URL+"/api/v1/sessions/"+sessionID, "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestSessionTokenBoundToSession(t *testing.T) {
	server := newTestServer(t)
	_, tokenA := createSession(t, server)
	sessionB, _ := createSession(t, server)

	resp := doRequest(t, http.MethodGet, server.URL+"/api/v1/sessions/"+sessionB, tokenA, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestSessionLifecycle(t *testing.T) {
	server := newTestServer(t)
	sessionID, token := createSession(t, server)
	base := server.URL + "/api/v1/sessions/" + sessionID

	resp := doRequest(t, http.MethodGet, base, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get session status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["session_id"] != sessionID {
		t.Fatalf("session_id = %v", body["session_id"])
	}

	resp = doRequest(t, http.MethodDelete, base, token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete session status = %d", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodGet, base, token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get deleted session status = %d, want 404", resp.StatusCode)
	}
}

func TestFiltersUpdate(t *testing.T) {
	server := newTestServer(t)
	sessionID, token := createSession(t, server)
	base := server.URL + "/api/v1/sessions/" + sessionID

	resp := doRequest(t, http.MethodPatch, base+"/filters", token, map[string]any{"search": "dog"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("filters update status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["search"] != "dog" {
		t.Fatalf("search = %v, want dog", body["search"])
	}

	resp = doRequest(t, http.MethodDelete, base+"/filters", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("filters clear status = %d", resp.StatusCode)
	}
	body = decodeBody(t, resp)
	if body["search"] != "" {
		t.Fatalf("search after clear = %v, want empty", body["search"])
	}
}

func TestSelectionConflictFlow(t *testing.T) {
	server := newTestServer(t)
	sessionID, token := createSession(t, server)
	base := server.URL + "/api/v1/sessions/" + sessionID

	resp := doRequest(t, http.MethodPost, base+"/selection/point", token, map[string]any{
		"origin": "linechart",
		"point":  map[string]any{"algorithm": "freqshift", "category": models.GroupAnimals},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("point select status = %d", resp.StatusCode)
	}

	// A click-driven drill from another chart must be refused, not
	// silently resolved.
	resp = doRequest(t, http.MethodPost, base+"/selection/category", token, map[string]any{
		"origin": "sunburst",
		"value":  models.GroupAnimals,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("conflicting select status = %d, want 409", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["error"] != "selection_conflict" {
		t.Fatalf("conflict body = %v", body)
	}
	if body["point_origin"] != "linechart" {
		t.Fatalf("point_origin = %v", body["point_origin"])
	}

	// clear_point clears the point but never replays the refused click.
	resp = doRequest(t, http.MethodPost, base+"/selection/conflict/resolve", token, map[string]any{
		"resolution": "clear_point",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve status = %d", resp.StatusCode)
	}
	body = decodeBody(t, resp)
	if body["selectedPoint"] != nil {
		t.Fatalf("point not cleared: %v", body["selectedPoint"])
	}
	if body["selectedCategory"] != nil {
		t.Fatalf("refused click was replayed: %v", body["selectedCategory"])
	}

	// The user repeating the interaction now proceeds.
	resp = doRequest(t, http.MethodPost, base+"/selection/category", token, map[string]any{
		"origin": "sunburst",
		"value":  models.GroupAnimals,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("repeat select status = %d", resp.StatusCode)
	}
	body = decodeBody(t, resp)
	if body["selectedCategory"] != models.GroupAnimals {
		t.Fatalf("selectedCategory = %v", body["selectedCategory"])
	}
}

func TestSunburstClicks(t *testing.T) {
	server := newTestServer(t)
	sessionID, token := createSession(t, server)
	base := server.URL + "/api/v1/sessions/" + sessionID

	resp := doRequest(t, http.MethodPost, base+"/charts/sunburst/algorithm", token, map[string]any{
		"value": "freqshift",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("algorithm click status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["level"] != float64(2) {
		t.Fatalf("level = %v, want 2", body["level"])
	}

	resp = doRequest(t, http.MethodPost, base+"/charts/sunburst/algorithm", token, map[string]any{
		"value": "not-a-design",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid design status = %d, want 400", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodPost, base+"/charts/sunburst/center", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("center click status = %d", resp.StatusCode)
	}
	body = decodeBody(t, resp)
	if body["level"] != float64(1) {
		t.Fatalf("level after center = %v, want 1", body["level"])
	}
}

func TestCatalogEndpoint(t *testing.T) {
	server := newTestServer(t)
	sessionID, token := createSession(t, server)
	base := server.URL + "/api/v1/sessions/" + sessionID

	resp := doRequest(t, http.MethodGet, base+"/catalog", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("catalog status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	// Three records over two audio files collapse into two cards.
	if body["total"] != float64(2) {
		t.Fatalf("total = %v, want 2", body["total"])
	}
}

func TestSessionCategoryStatsUseLeafCategories(t *testing.T) {
	server := newTestServer(t)
	sessionID, token := createSession(t, server)
	base := server.URL + "/api/v1/sessions/" + sessionID

	resp := doRequest(t, http.MethodGet, base+"/stats/categories", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("category stats status = %d", resp.StatusCode)
	}
	defer resp.Body.Close()

	var entries []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Records carry leaf categories ("dog"), never group names ("Animals"):
	// the importer writes leaves and groups exist only in the taxonomy.
	groups := make(map[string]bool, len(models.GroupNames))
	for _, g := range models.GroupNames {
		groups[g] = true
	}
	got := make([]string, 0, len(entries))
	for _, entry := range entries {
		name, _ := entry["category"].(string)
		got = append(got, name)
		if groups[name] {
			t.Fatalf("category stats returned group name %q", name)
		}
	}
	want := []string{"dog", "rooster"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("categories = %v, want %v", got, want)
	}
}

func TestGenerateUnavailableWithoutService(t *testing.T) {
	server := newTestServer(t)
	_, token := createSession(t, server)

	resp := doRequest(t, http.MethodGet, server.URL+"/api/v1/generate/outputs", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("outputs status = %d, want 503", resp.StatusCode)
	}
}
