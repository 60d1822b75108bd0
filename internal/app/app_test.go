package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jgivc/mediarelay/internal/adapter/mdadapter"
	"github.com/jgivc/mediarelay/internal/config"
	"github.com/jgivc/mediarelay/internal/entity"
	"github.com/jgivc/mediarelay/internal/repository/stats"
	"github.com/jgivc/mediarelay/internal/service/transfer"
	"github.com/jgivc/mediarelay/internal/source"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

type catalogStub struct{}

func (catalogStub) Resolve(ctx context.Context, videoURL string) (*entity.VideoMetadata, error) {
	return &entity.VideoMetadata{Title: "t"}, nil
}

type probeStub struct{}

func (probeStub) Probe(ctx context.Context, w http.ResponseWriter) error {
	w.Write([]byte("{}\n"))

	return nil
}

func newTestRouter(t *testing.T, origins []string) http.Handler {
	t.Helper()

	log := discardLogger()
	repo := stats.NewMemoryRepository()
	page, err := mdadapter.NewUsagePage(log)
	require.NoError(t, err)

	tr := transfer.NewTransferService(transfer.Config{}, catalogStub{}, source.NewMediaOpener(nil, log), source.NewHTTPOpener(nil, log), nil, repo, log)

	return newRouter(&services{
		catalog:  catalogStub{},
		transfer: tr,
		probe:    probeStub{},
		stats:    repo,
		page:     page,
	}, &config.CORSConfig{AllowedOrigins: origins}, log)
}

func TestRouter(t *testing.T) {
	h := newTestRouter(t, []string{"*"})

	tests := []struct {
		name   string
		method string
		target string
		status int
	}{
		{name: "page", method: http.MethodGet, target: "/", status: http.StatusOK},
		{name: "health", method: http.MethodGet, target: "/api/health", status: http.StatusOK},
		{name: "stats", method: http.MethodGet, target: "/api/stats", status: http.StatusOK},
		{name: "speedtest", method: http.MethodGet, target: "/api/speedtest", status: http.StatusOK},
		{name: "download without url", method: http.MethodGet, target: "/api/download", status: http.StatusBadRequest},
		{name: "youtube download without url", method: http.MethodGet, target: "/api/youtube/download", status: http.StatusBadRequest},
		{name: "info wrong method", method: http.MethodGet, target: "/api/youtube/info", status: http.StatusMethodNotAllowed},
		{name: "unknown", method: http.MethodGet, target: "/api/nope", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))
			require.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRouterCORS(t *testing.T) {
	h := newTestRouter(t, []string{"https://app.example.com"})

	req := httptest.NewRequest(http.MethodOptions, "/api/youtube/info", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://app.example.com")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
}

func TestNewHTTPClient(t *testing.T) {
	cl := newHTTPClient(&config.UpstreamConfig{ResponseHeaderTimeout: time.Second, MaxConnsPerHost: 7})

	require.Zero(t, cl.Timeout)

	tr, ok := cl.Transport.(*http.Transport)
	require.True(t, ok)
	require.Equal(t, time.Second, tr.ResponseHeaderTimeout)
	require.Equal(t, 7, tr.MaxConnsPerHost)
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{config.LogLevelDebug, config.LogLevelInfo, config.LogLevelWarn, config.LogLevelError} {
		require.NotNil(t, newLogger(level))
	}

	require.Panics(t, func() { newLogger("loud") })
}
