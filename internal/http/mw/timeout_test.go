package mw

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestTimeoutAllowsFastRequests(t *testing.T) {
	handler := Timeout(TimeoutConfig{
		Default:  100 * time.Millisecond,
		Extended: time.Second,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/usage", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestTimeoutExpiresSlowRequests(t *testing.T) {
	handler := Timeout(TimeoutConfig{
		Default:  20 * time.Millisecond,
		Extended: time.Second,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/usage", nil))

	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusGatewayTimeout)
	}
}

func TestTimeoutExtendedPattern(t *testing.T) {
	handler := Timeout(TimeoutConfig{
		Default:          20 * time.Millisecond,
		Extended:         500 * time.Millisecond,
		ExtendedPatterns: []string{"/analyze"},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(50 * time.Millisecond):
			w.WriteHeader(http.StatusOK)
		}
	}))

	// Slower than the default timeout but inside the extended one.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/analyze", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestTimeoutPropagatesPanics(t *testing.T) {
	handler := Timeout(TimeoutConfig{
		Default:  time.Second,
		Extended: time.Second,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	}))

	defer func() {
		p := recover()
		if p == nil {
			t.Fatal("expected the panic to propagate")
		}
		if !strings.Contains(p.(string), "handler exploded") {
			t.Errorf("panic = %q, want it to contain the original value", p)
		}
	}()

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}
