package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

// newTestChainRouter は本番と同じ順序でミドルウェアを積んだchi.Routerを返す。
//
//	Recovery → SecurityHeaders → CORS → ClientID → Session → Logging → CSRF
func newTestChainRouter(resolver SessionResolver) http.Handler {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	cookies := CookieConfig{}

	r := chi.NewRouter()
	r.Use(NewRecoveryMiddleware(logger))
	r.Use(NewSecurityHeadersMiddleware())
	r.Use(NewCORSMiddleware("http://localhost:3000"))
	r.Use(NewClientIDMiddleware(3600, cookies))
	r.Use(NewSessionMiddleware(resolver, cookies))
	r.Use(NewLoggingMiddleware(logger, nil))

	r.Get("/api/csrf-token", NewCSRFTokenHandler(cookies).ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(NewCSRFMiddleware(cookies))

		r.Get("/api/whoami", func(w http.ResponseWriter, r *http.Request) {
			b, _ := BridgeFromContext(r.Context())
			clientID, _ := ClientIDFromContext(r.Context())
			body := map[string]string{"state": b.State().String(), "client_id": clientID}
			json.NewEncoder(w).Encode(body)
		})

		r.Post("/api/action", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})

		r.Get("/api/panic", func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		})
	})

	return r
}

func TestRouterIntegration_CSRFTokenEndpoint(t *testing.T) {
	r := newTestChainRouter(newStubResolver())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Token == "" {
		t.Error("expected non-empty token")
	}
}

func TestRouterIntegration_MiddlewareChain(t *testing.T) {
	r := newTestChainRouter(newStubResolver())

	t.Run("GET with session is signed in", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-session"})
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		var body map[string]string
		json.NewDecoder(w.Body).Decode(&body)
		if body["state"] != "signed_in" {
			t.Errorf("state = %q, want %q", body["state"], "signed_in")
		}
		if body["client_id"] == "" {
			t.Error("client_id should be issued by the chain")
		}
		if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
			t.Errorf("X-Frame-Options = %q, want DENY", got)
		}
	})

	t.Run("GET without session is signed out", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/whoami", nil))

		var body map[string]string
		json.NewDecoder(w.Body).Decode(&body)
		if body["state"] != "signed_out" {
			t.Errorf("state = %q, want %q", body["state"], "signed_out")
		}
	})

	t.Run("POST with CSRF token passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/action", nil)
		req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "test-csrf-token"})
		req.Header.Set(csrfHeaderName, "test-csrf-token")
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
		}
	})

	t.Run("POST without CSRF token is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/action", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-session"})
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
		}
	})

	t.Run("panic is recovered as 500", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/panic", nil))

		if w.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
		}
		var body ErrorResponseBody
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if body.Code != "INTERNAL_ERROR" {
			t.Errorf("code = %q, want INTERNAL_ERROR", body.Code)
		}
	})
}

func TestSecurityHeadersMiddleware_SetsHeaders(t *testing.T) {
	handler := NewSecurityHeadersMiddleware()(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	} {
		if got := w.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if w.Header().Get("Content-Security-Policy") == "" {
		t.Error("Content-Security-Policy should be set")
	}
}
