package linkcheck

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/hitoshi/shortlink/internal/model"
)

// mockValidator はURLValidatorのモック実装。
type mockValidator struct {
	err error
}

func (m *mockValidator) ValidateURL(rawURL string) error { return m.err }

func TestChecker_ClassifiesStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   model.LinkStatus
	}{
		{"200", http.StatusOK, model.LinkStatusOK},
		{"204", http.StatusNoContent, model.LinkStatusOK},
		{"301 not followed", http.StatusMovedPermanently, model.LinkStatusOK},
		{"404", http.StatusNotFound, model.LinkStatusBroken},
		{"410", http.StatusGone, model.LinkStatusBroken},
		{"503", http.StatusServiceUnavailable, model.LinkStatusBroken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodHead {
					t.Errorf("method = %s, want HEAD", r.Method)
				}
				if tt.status >= 300 && tt.status < 400 {
					w.Header().Set("Location", "/elsewhere")
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			client := srv.Client()
			client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			}
			c := NewChecker(client, nil)

			if got := c.Check(context.Background(), srv.URL); got != tt.want {
				t.Errorf("Check() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChecker_FallsBackToGET(t *testing.T) {
	for _, headStatus := range []int{http.StatusMethodNotAllowed, http.StatusNotImplemented} {
		var gets atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead {
				w.WriteHeader(headStatus)
				return
			}
			gets.Add(1)
			w.Write([]byte("ok"))
		}))

		c := NewChecker(srv.Client(), nil)
		got := c.Check(context.Background(), srv.URL)
		srv.Close()

		if got != model.LinkStatusOK {
			t.Errorf("HEAD %d: Check() = %q, want ok", headStatus, got)
		}
		if gets.Load() != 1 {
			t.Errorf("HEAD %d: GET requests = %d, want 1", headStatus, gets.Load())
		}
	}
}

func TestChecker_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewChecker(http.DefaultClient, nil)
	if got := c.Check(context.Background(), url); got != model.LinkStatusUnreachable {
		t.Errorf("Check() = %q, want unreachable", got)
	}
}

func TestChecker_BlockedByValidator(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := NewChecker(srv.Client(), &mockValidator{err: errors.New("blocked IP address: 127.0.0.1")})

	if got := c.Check(context.Background(), srv.URL); got != model.LinkStatusUnreachable {
		t.Errorf("Check() = %q, want unreachable", got)
	}
	if hits.Load() != 0 {
		t.Error("blocked URL must not be requested")
	}
}
