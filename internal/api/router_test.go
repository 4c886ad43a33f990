package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shaun/chatsync/internal/auth"
	"github.com/shaun/chatsync/internal/config"
	"github.com/shaun/chatsync/internal/github"
	"github.com/shaun/chatsync/internal/metrics"
	"github.com/shaun/chatsync/internal/publish"
)

func TestRouter_health(t *testing.T) {
	router := NewRouter(NewHandler(&fakePublisher{}), RouterOptions{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("GET /health: %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS header missing")
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("request id header missing")
	}
}

func TestRouter_options(t *testing.T) {
	router := NewRouter(NewHandler(&fakePublisher{}), RouterOptions{})
	req := httptest.NewRequest(http.MethodOptions, "/api/upload", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("OPTIONS: %d", rec.Code)
	}
}

func TestRouter_requestIDPropagated(t *testing.T) {
	router := NewRouter(NewHandler(&fakePublisher{}), RouterOptions{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, "abc", rec.Header().Get("X-Request-Id"))
}

type panicPublisher struct{}

func (panicPublisher) Publish(_ context.Context, _, _ string) (*publish.Result, error) {
	panic("nil map write")
}

func TestRouter_panicBecomesJSON(t *testing.T) {
	router := NewRouter(NewHandler(panicPublisher{}), RouterOptions{})
	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(`{"filename":"a","content":"b"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "nil map write", decodeError(t, rec))
}

func TestRouter_maxBody(t *testing.T) {
	fake := &fakePublisher{res: &publish.Result{}}
	router := NewRouter(NewHandler(fake), RouterOptions{MaxBodyBytes: 16})
	body := `{"filename":"a.md","content":"` + strings.Repeat("x", 64) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Zero(t, fake.calls)
}

func TestRouter_basicAuth(t *testing.T) {
	fake := &fakePublisher{res: &publish.Result{URL: "u"}}
	router := NewRouter(NewHandler(fake), RouterOptions{Auth: auth.Middleware("alice", "secret", "")})

	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(`{"filename":"a","content":"b"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(`{"filename":"a","content":"b"}`))
	req.SetBasicAuth("alice", "secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

// fakeContentsAPI mimics GitHub's contents endpoint over an in-memory repo.
type fakeContentsAPI struct {
	files map[string]string // path -> sha
	calls atomic.Int32
	puts  []map[string]any
	fail  int // status returned for PUT when set
}

func (f *fakeContentsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	path := strings.TrimPrefix(r.URL.Path, "/repos/o/r/contents/")
	w.Header().Set("Content-Type", "application/json")
	switch r.Method {
	case http.MethodGet:
		sha, ok := f.files[path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"Not Found"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"type": "file", "path": path, "sha": sha})
	case http.MethodPut:
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.puts = append(f.puts, body)
		if f.fail != 0 {
			w.WriteHeader(f.fail)
			w.Write([]byte(`{"message":"Invalid request."}`))
			return
		}
		raw, _ := base64.StdEncoding.DecodeString(body["content"].(string))
		sha := publish.BlobSHA(raw)
		f.files[path] = sha
		json.NewEncoder(w).Encode(map[string]any{
			"content": map[string]string{"sha": sha, "html_url": "https://github.com/o/r/blob/main/" + path},
		})
	}
}

func newStack(t *testing.T, cfg *config.Config, api *fakeContentsAPI) (http.Handler, *metrics.ServerMetrics) {
	t.Helper()
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)
	cfg.APIURL = server.URL
	gh, err := github.NewClient(github.Options{Token: cfg.Token, APIURL: cfg.APIURL, UserAgent: config.DefaultUserAgent})
	require.NoError(t, err)
	m := metrics.New()
	pub := publish.New(cfg.Publish(), gh, publish.WithRecorder(m))
	h := NewHandler(pub, WithPrecheck(cfg.ValidateRemote))
	return NewRouter(h, RouterOptions{Metrics: m.Middleware, MetricsHandler: m.Handler(), MaxBodyBytes: 1 << 20}), m
}

func upload(t *testing.T, router http.Handler, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(PublishRequest{Content: content, Filename: filename})
	req := httptest.NewRequest(http.MethodPost, "/api/upload", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_uploadCreatesThenUpdates(t *testing.T) {
	api := &fakeContentsAPI{files: map[string]string{}}
	router, _ := newStack(t, &config.Config{Token: "tk", Owner: "o", Repo: "r"}, api)

	rec := upload(t, router, "notes.txt", "hello")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res PublishResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	require.Equal(t, PublishResponse{Success: true, URL: "https://github.com/o/r/blob/main/notes.txt"}, res)

	require.Len(t, api.puts, 1)
	first := api.puts[0]
	require.Equal(t, "Sync from Gemini Chat: notes.txt", first["message"])
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte("hello")), first["content"])
	require.Nil(t, first["sha"])

	// second publish of identical content is still a successful write
	rec = upload(t, router, "notes.txt", "hello")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, api.puts, 2)
	require.Equal(t, publish.BlobSHA([]byte("hello")), api.puts[1]["sha"])
}

func TestRouter_uploadExistingSHA(t *testing.T) {
	api := &fakeContentsAPI{files: map[string]string{"notes.txt": "abc123"}}
	router, _ := newStack(t, &config.Config{Token: "tk", Owner: "o", Repo: "r"}, api)

	rec := upload(t, router, "notes.txt", "hello")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, api.puts, 1)
	require.Equal(t, "abc123", api.puts[0]["sha"])
}

func TestRouter_uploadMissingConfig(t *testing.T) {
	for _, cfg := range []*config.Config{
		{Owner: "o", Repo: "r"},
		{Token: "tk", Repo: "r"},
		{Token: "tk", Owner: "o"},
	} {
		api := &fakeContentsAPI{files: map[string]string{}}
		router, _ := newStack(t, cfg, api)

		rec := upload(t, router, "notes.txt", "hello")
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		require.Contains(t, decodeError(t, rec), "not configured")
		require.Zero(t, api.calls.Load())
	}
}

func TestRouter_uploadWriteRejected(t *testing.T) {
	api := &fakeContentsAPI{files: map[string]string{}, fail: http.StatusUnprocessableEntity}
	router, m := newStack(t, &config.Config{Token: "tk", Owner: "o", Repo: "r"}, api)

	rec := upload(t, router, "notes.txt", "hello")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, decodeError(t, rec), "422")

	scrape := httptest.NewRecorder()
	m.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Contains(t, scrape.Body.String(), `publish_total{outcome="failed"} 1`)
}

func TestRouter_metricsEndpoint(t *testing.T) {
	api := &fakeContentsAPI{files: map[string]string{}}
	router, _ := newStack(t, &config.Config{Token: "tk", Owner: "o", Repo: "r"}, api)

	upload(t, router, "notes.txt", "hello")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `publish_total{outcome="created"} 1`)
}
