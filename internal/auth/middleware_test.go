package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func protectedHandler(t *testing.T, wantSession string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			t.Error("expected claims in context")
			return
		}
		if claims.SessionID != wantSession {
			t.Errorf("unexpected session ID %q", claims.SessionID)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareAcceptsBearerToken(t *testing.T) {
	secret := []byte("test-secret")
	token, err := Issue(secret, "session-abc", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	handler := Middleware(secret)(protectedHandler(t, "session-abc"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/session-abc", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	handler := Middleware([]byte("secret"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run without credentials")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/x", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("expected WWW-Authenticate header")
	}
}

func TestMiddlewareAllowsQueryTokenOnlyForWebSocketEvents(t *testing.T) {
	secret := []byte("test-secret")
	token, err := Issue(secret, "session-abc", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	handler := Middleware(secret)(protectedHandler(t, "session-abc"))

	// Plain request with query token: refused.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/session-abc/events?token="+token, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without upgrade header, got %d", rec.Code)
	}

	// WebSocket upgrade with query token: accepted.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/sessions/session-abc/events?token="+token, nil)
	req.Header.Set("Upgrade", "websocket")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on websocket upgrade, got %d", rec.Code)
	}
}
