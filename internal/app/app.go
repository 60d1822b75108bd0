package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jgivc/mediarelay/internal/adapter/mdadapter"
	"github.com/jgivc/mediarelay/internal/adapter/provider"
	"github.com/jgivc/mediarelay/internal/config"
	httphandler "github.com/jgivc/mediarelay/internal/handler/http"
	"github.com/jgivc/mediarelay/internal/repository/stats"
	"github.com/jgivc/mediarelay/internal/service/catalog"
	"github.com/jgivc/mediarelay/internal/service/counter"
	"github.com/jgivc/mediarelay/internal/service/probe"
	"github.com/jgivc/mediarelay/internal/service/transfer"
	"github.com/jgivc/mediarelay/internal/source"
	"github.com/jgivc/mediarelay/internal/transcode"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
)

const (
	pingTimeout       = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
	idleConnTimeout   = 90 * time.Second
)

type statsRepository interface {
	transfer.StatsRecorder
	httphandler.StatsService
}

type services struct {
	catalog  httphandler.CatalogService
	transfer httphandler.TransferService
	probe    httphandler.ProbeService
	stats    httphandler.StatsService
	page     httphandler.PageService
}

type App struct {
	cfgPath string
	cfg     *config.Config
	srv     *http.Server
	rdb     *redis.Client
	log     *slog.Logger
}

func New(cfgPath string) *App {
	return &App{
		cfgPath: cfgPath,
	}
}

func (a *App) Start() {
	a.cfg = config.MustLoad(a.cfgPath)

	log := newLogger(a.cfg.LogLevel)
	a.log = log

	var repo statsRepository
	if a.cfg.RedisURL != "" {
		opt, err := redis.ParseURL(a.cfg.RedisURL)
		if err != nil {
			panic(err)
		}

		a.rdb = redis.NewClient(opt)

		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()

		if _, err := a.rdb.Ping(ctx).Result(); err != nil {
			panic(err)
		}

		repo = stats.NewStatsRepository(a.rdb, log)
	} else {
		log.Warn("Redis is not configured, transfer stats are kept in memory")
		repo = stats.NewMemoryRepository()
	}

	cl := newHTTPClient(&a.cfg.Upstream)
	yt := provider.NewYouTubeProvider(cl, log)
	web := source.NewHTTPOpener(cl, log)
	cat := catalog.NewCatalogService(yt, log)

	enc := transcode.NewFFmpegEncoder(a.cfg.Transcode.FFmpegPath, a.cfg.Transcode.BitrateKbps, log)
	if !enc.Available() {
		log.Warn("ffmpeg not found, mp3 transfers will fail", slog.String("path", a.cfg.Transcode.FFmpegPath))
	}

	tr := transfer.NewTransferService(transfer.Config{
		ChunkSize:    a.cfg.Transfer.ChunkSize,
		BufferChunks: a.cfg.Transfer.BufferChunks,
		MaxDuration:  a.cfg.Transfer.MaxDuration,
	}, cat, source.NewMediaOpener(yt, log), web, transcode.NewStage(enc, log), repo, log)

	page, err := mdadapter.NewUsagePage(log)
	if err != nil {
		panic(err)
	}

	handler := newRouter(&services{
		catalog:  cat,
		transfer: tr,
		probe:    probe.NewProbeService(a.cfg.Probe.ReferenceURL, web, log),
		stats:    counter.NewCounterService(repo, log),
		page:     page,
	}, &a.cfg.CORS, log)

	// No write timeout: transfers last as long as the media does.
	a.srv = &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info("Start listen", slog.String("addr", a.cfg.Listen))

		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Could not serve", slog.String("listen_addr", a.cfg.Listen), slog.Any("error", err))
			os.Exit(2)
		}
	}()
}

func (a *App) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.srv.Shutdown(ctx); err != nil {
		a.log.Error("Cannot shutdown server gracefully", slog.Any("error", err))
	}

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Error("Cannot close redis client", slog.Any("error", err))
		}
	}
}

func newLogger(level string) *slog.Logger {
	lo := &slog.HandlerOptions{}
	switch level {
	case config.LogLevelInfo:
		lo.Level = slog.LevelInfo
	case config.LogLevelWarn:
		lo.Level = slog.LevelWarn
	case config.LogLevelError:
		lo.Level = slog.LevelError
	case config.LogLevelDebug:
		lo.Level = slog.LevelDebug
	default:
		panic("unknown log level")
	}

	return slog.New(slog.NewTextHandler(os.Stderr, lo))
}

// newHTTPClient has no overall timeout since response bodies are streamed
// for as long as a transfer runs.
func newHTTPClient(cfg *config.UpstreamConfig) *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 100
	t.MaxIdleConnsPerHost = 100
	t.MaxConnsPerHost = cfg.MaxConnsPerHost
	t.IdleConnTimeout = idleConnTimeout
	t.ResponseHeaderTimeout = cfg.ResponseHeaderTimeout

	return &http.Client{Transport: t}
}

func newRouter(s *services, corsCfg *config.CORSConfig, log *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /api/youtube/info", httphandler.NewInfoHandler(s.catalog, log))
	mux.Handle("GET /api/youtube/download", httphandler.NewDownloadHandler(s.transfer, log))
	mux.Handle("GET /api/download", httphandler.NewProxyHandler(s.transfer, log))
	mux.Handle("GET /api/speedtest", httphandler.NewSpeedTestHandler(s.probe, log))
	mux.Handle("GET /api/stats", httphandler.NewStatsHandler(s.stats, log))
	mux.Handle("GET /api/health", httphandler.NewHealthHandler(log))
	mux.Handle("GET /{$}", httphandler.NewPageHandler(s.page, log))

	c := cors.New(cors.Options{
		AllowedOrigins: corsCfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Disposition", "Content-Length", "X-Transfer-Id"},
	})

	return c.Handler(mux)
}
