package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

const testAdminToken = "s3cret-admin-token"

func TestAdminAuthMiddleware_ValidToken_PassesThrough(t *testing.T) {
	mw := NewAdminAuthMiddleware(testAdminToken)

	var admin bool
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admin = IsAdmin(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/shortlinks", nil)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if !admin {
		t.Error("expected request context to be marked as admin")
	}
}

func TestAdminAuthMiddleware_CaseInsensitiveScheme(t *testing.T) {
	mw := NewAdminAuthMiddleware(testAdminToken)

	handlerCalled := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/shortlinks", nil)
	req.Header.Set("Authorization", "bearer "+testAdminToken)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if !handlerCalled {
		t.Error("handler should be called for lower-case bearer scheme")
	}
}

func TestAdminAuthMiddleware_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong token", "Bearer wrong-token"},
		{"empty token", "Bearer "},
		{"basic scheme", "Basic " + testAdminToken},
		{"token prefix only", "Bearer " + testAdminToken[:5]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := NewAdminAuthMiddleware(testAdminToken)
			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodPut, "/admin/shortlinks/1", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Result().StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
			}

			var body ErrorResponseBody
			if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body.Code != "UNAUTHORIZED" {
				t.Errorf("code = %q, want %q", body.Code, "UNAUTHORIZED")
			}
		})
	}
}

func TestAdminAuthMiddleware_EmptyConfiguredToken_RejectsAll(t *testing.T) {
	mw := NewAdminAuthMiddleware("")
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/shortlinks", nil)
	req.Header.Set("Authorization", "Bearer ")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestIsAdmin_DefaultFalse(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if IsAdmin(req.Context()) {
		t.Error("IsAdmin should be false without authentication")
	}
	if !IsAdmin(ContextWithAdmin(req.Context())) {
		t.Error("IsAdmin should be true after ContextWithAdmin")
	}
}
