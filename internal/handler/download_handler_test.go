package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"reelsdownload/internal/metrics"
	"reelsdownload/internal/model"
	"reelsdownload/internal/service"
	"reelsdownload/pkg/i18n"
	"reelsdownload/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/text/language"
)

type mockResolver struct {
	mu    sync.Mutex
	calls []string
	fn    func(ctx context.Context, videoURL string) (*model.ResolvedMedia, error)
}

func (m *mockResolver) Resolve(ctx context.Context, videoURL string) (*model.ResolvedMedia, error) {
	m.mu.Lock()
	m.calls = append(m.calls, videoURL)
	m.mu.Unlock()
	if m.fn != nil {
		return m.fn(ctx, videoURL)
	}
	return &model.ResolvedMedia{DownloadLink: "https://cdn.example/video.mp4"}, nil
}

func (m *mockResolver) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type testEnv struct {
	router    *gin.Engine
	localizer *i18n.Localizer
	limiter   *service.RateLimitService
	cfg       *model.Config
}

func testConfig() *model.Config {
	return &model.Config{
		RapidAPI: model.RapidAPIConfig{
			Key:     "test-key",
			Host:    "social-download.p.rapidapi.com",
			Timeout: 5 * time.Second,
		},
		Security: model.SecurityConfig{
			AllowedDomains: []string{"instagram.com", "www.instagram.com", "tiktok.com", "x.com"},
		},
		RateLimit: model.RateLimitConfig{
			Enabled:  true,
			Backend:  "memory",
			Requests: 15,
			Window:   time.Minute,
		},
	}
}

func newTestEnv(t *testing.T, cfg *model.Config, resolver MediaResolver) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	loc, err := i18n.New("en-US", []string{"en-US", "vi", "id"})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	limiter := service.NewRateLimitService(&cfg.RateLimit)
	t.Cleanup(limiter.Stop)

	router, err := NewRouter(RouterDeps{
		Download:  NewDownloadHandler(resolver, loc, m, cfg),
		Limiter:   limiter,
		Localizer: loc,
		Metrics:   m,
		Gatherer:  reg,
	})
	require.NoError(t, err)

	return &testEnv{router: router, localizer: loc, limiter: limiter, cfg: cfg}
}

func (e *testEnv) post(t *testing.T, body string, remoteAddr string) (*httptest.ResponseRecorder, model.DownloadResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/download/reels", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var resp model.DownloadResponse
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	}
	return rec, resp
}

func (e *testEnv) text(key string) string {
	return e.localizer.Text(language.AmericanEnglish, key)
}

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	previous := logger.Logger
	logger.Logger = zap.New(core)
	t.Cleanup(func() { logger.Logger = previous })
	return logs
}

func TestDownloadReelsSuccess(t *testing.T) {
	resolver := &mockResolver{}
	env := newTestEnv(t, testConfig(), resolver)

	rec, resp := env.post(t, `{"url":"https://www.instagram.com/reel/ABC/?utm_source=ig_web_copy_link&igsh=2"}`, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, env.text(i18n.DownloadStartingMessage), resp.Message)
	assert.Equal(t, "https://cdn.example/video.mp4", resp.DownloadLink)
	assert.Empty(t, resp.Error)
	assert.Equal(t, []string{"https://www.instagram.com/reel/ABC/"}, resolver.Calls())
	assert.Equal(t, "14", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestDownloadReelsRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty url", `{"url":""}`},
		{"blank url", `{"url":"   "}`},
		{"missing url", `{}`},
		{"invalid json", `{"url":`},
		{"domain not allowed", `{"url":"https://evil.com/reel/ABC"}`},
		{"lookalike domain", `{"url":"https://evilinstagram.com/reel/ABC"}`},
		{"localhost", `{"url":"http://localhost/x"}`},
		{"relative url", `{"url":"instagram.com/reel/ABC"}`},
		{"non http scheme", `{"url":"ftp://instagram.com/reel/ABC"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &mockResolver{}
			env := newTestEnv(t, testConfig(), resolver)

			rec, resp := env.post(t, tt.body, "")

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, resp.Success)
			assert.Equal(t, env.text(i18n.InvalidLinkError), resp.Error)
			assert.Empty(t, resp.DownloadLink)
			assert.Empty(t, resolver.Calls(), "no outbound call for invalid input")
			assert.Equal(t, 14, env.limiter.Remaining(context.Background(), "192.0.2.1"), "only the check itself is counted")
		})
	}
}

func TestDownloadReelsMissingConfiguration(t *testing.T) {
	for _, missing := range []string{"key", "host"} {
		t.Run(missing, func(t *testing.T) {
			logs := observeLogs(t)
			cfg := testConfig()
			if missing == "key" {
				cfg.RapidAPI.Key = ""
			} else {
				cfg.RapidAPI.Host = ""
			}
			resolver := &mockResolver{}
			env := newTestEnv(t, cfg, resolver)

			rec, resp := env.post(t, `{"url":"https://instagram.com/reel/ABC"}`, "")

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, env.text(i18n.GeneralDownloadError), resp.Error)
			assert.Empty(t, resolver.Calls())
			assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
		})
	}
}

func TestDownloadReelsResolverFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantLogged bool
	}{
		{"upstream forbidden passes through", &service.UpstreamStatusError{StatusCode: http.StatusForbidden}, http.StatusForbidden, false},
		{"upstream too many requests passes through", &service.UpstreamStatusError{StatusCode: http.StatusTooManyRequests}, http.StatusTooManyRequests, false},
		{"upstream redirect becomes bad gateway", &service.UpstreamStatusError{StatusCode: http.StatusMultipleChoices}, http.StatusBadGateway, false},
		{"malformed response", service.ErrMalformedResponse, http.StatusInternalServerError, false},
		{"network failure", errors.New("dial tcp: connection refused"), http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := observeLogs(t)
			resolver := &mockResolver{fn: func(context.Context, string) (*model.ResolvedMedia, error) {
				return nil, tt.err
			}}
			env := newTestEnv(t, testConfig(), resolver)

			rec, resp := env.post(t, `{"url":"https://instagram.com/reel/ABC"}`, "")

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.False(t, resp.Success)
			assert.Equal(t, env.text(i18n.GeneralDownloadError), resp.Error)
			assert.NotContains(t, rec.Body.String(), "connection refused")
			assert.Equal(t, tt.wantLogged, logs.FilterMessage("Error processing download request").Len() == 1)
		})
	}
}

func TestDownloadReelsMalformedUpstreamEndToEnd(t *testing.T) {
	logs := observeLogs(t)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"medias":[]}}`))
	}))
	t.Cleanup(upstream.Close)

	cfg := testConfig()
	cfg.RapidAPI.BaseURL = upstream.URL
	env := newTestEnv(t, cfg, service.NewMediaResolverService(&cfg.RapidAPI, nil))

	rec, resp := env.post(t, `{"url":"https://instagram.com/reel/ABC?igsh=1"}`, "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, env.text(i18n.GeneralDownloadError), resp.Error)
	assert.NotContains(t, rec.Body.String(), "medias")

	entries := logs.FilterField(zap.String("response", `{"data":{"medias":[]}}`)).All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
}

func TestDownloadReelsRateLimit(t *testing.T) {
	resolver := &mockResolver{}
	env := newTestEnv(t, testConfig(), resolver)

	for i := 1; i <= 15; i++ {
		rec, _ := env.post(t, `{"url":"https://instagram.com/reel/ABC"}`, "198.51.100.4:5000")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}

	rec, resp := env.post(t, `{"url":"https://instagram.com/reel/ABC"}`, "198.51.100.4:5001")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, env.text(i18n.RateLimitError), resp.Error)
	assert.Len(t, resolver.Calls(), 15)

	rec, _ = env.post(t, `{"url":"https://instagram.com/reel/ABC"}`, "198.51.100.5:5000")
	assert.Equal(t, http.StatusOK, rec.Code, "other clients keep their own budget")
}

func TestDownloadReelsConcurrentClientNeverOvershoots(t *testing.T) {
	resolver := &mockResolver{fn: func(context.Context, string) (*model.ResolvedMedia, error) {
		time.Sleep(time.Millisecond)
		return &model.ResolvedMedia{DownloadLink: "https://cdn.example/v.mp4"}, nil
	}}
	env := newTestEnv(t, testConfig(), resolver)

	var wg sync.WaitGroup
	var mu sync.Mutex
	statuses := map[int]int{}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/api/download/reels", bytes.NewBufferString(`{"url":"https://x.com/i/status/1"}`))
			req.RemoteAddr = "203.0.113.9:1234"
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, req)
			mu.Lock()
			statuses[rec.Code]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 15, statuses[http.StatusOK])
	assert.Equal(t, 35, statuses[http.StatusTooManyRequests])
	assert.Len(t, resolver.Calls(), 15)
}

func TestDownloadReelsLocalizedResponse(t *testing.T) {
	env := newTestEnv(t, testConfig(), &mockResolver{})

	req := httptest.NewRequest(http.MethodPost, "/api/download/reels?culture=vi", bytes.NewBufferString(`{"url":""}`))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	var resp model.DownloadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, env.localizer.Text(language.Vietnamese, i18n.InvalidLinkError), resp.Error)
}

func TestDownloadReelsPanicIsRecovered(t *testing.T) {
	logs := observeLogs(t)
	resolver := &mockResolver{fn: func(context.Context, string) (*model.ResolvedMedia, error) {
		panic("boom")
	}}
	env := newTestEnv(t, testConfig(), resolver)

	rec, resp := env.post(t, `{"url":"https://instagram.com/reel/ABC"}`, "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, env.text(i18n.GeneralDownloadError), resp.Error)
	assert.NotContains(t, rec.Body.String(), "boom")
	assert.Equal(t, 1, logs.FilterMessage("Error processing request").Len())
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, testConfig(), &mockResolver{})
	env.post(t, `{"url":""}`, "")

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"reels-downloader","configured":true}`, rec.Body.String())

	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `reels_download_requests_total{outcome="invalid_link"} 1`)
}
