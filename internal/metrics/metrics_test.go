package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistryPopulated(t *testing.T) {
	m := New()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, name := range []string{"http_inflight_requests", "publish_unchanged_total", "go_goroutines"} {
		if !strings.Contains(body, name) {
			t.Errorf("metric %q not found in /metrics output", name)
		}
	}
}

func TestObservePublish(t *testing.T) {
	m := New()
	m.ObservePublish("created", false, 10*time.Millisecond)
	m.ObservePublish("updated", true, 20*time.Millisecond)
	m.ObservePublish("failed", false, time.Millisecond)

	require.Equal(t, 1.0, testutil.ToFloat64(m.publishTotal.WithLabelValues("created")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.publishTotal.WithLabelValues("updated")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.publishTotal.WithLabelValues("failed")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.publishUnchanged))
}

func TestMiddleware_routeLabels(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Post("/api/upload", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPost, "/api/upload", nil),
		httptest.NewRequest(http.MethodGet, "/health", nil),
		httptest.NewRequest(http.MethodGet, "/health", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	require.Equal(t, 1.0, testutil.ToFloat64(m.reqTotal.WithLabelValues("POST", "/api/upload", "500")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.reqTotal.WithLabelValues("GET", "/health", "200")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.errorsTotal.WithLabelValues("POST", "/api/upload")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.inflight))
}
