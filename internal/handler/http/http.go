package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jgivc/mediarelay/internal/common"
	"github.com/jgivc/mediarelay/internal/entity"
	"github.com/jgivc/mediarelay/internal/service/transfer"
	"github.com/jgivc/mediarelay/internal/source"
	"github.com/jgivc/mediarelay/internal/util"
)

const (
	maxInfoBodySize = 64 * 1024

	codeValidation = "validation_error"
	codeResolution = "resolution_error"
	codeUpstream   = "upstream_error"
	codeTranscode  = "transcode_error"
	codeInternal   = "internal_error"
)

type CatalogService interface {
	Resolve(ctx context.Context, videoURL string) (*entity.VideoMetadata, error)
}

type TransferService interface {
	Execute(ctx context.Context, req entity.TransferRequest, w http.ResponseWriter) (*transfer.Session, error)
	Proxy(ctx context.Context, req entity.ProxyRequest, w http.ResponseWriter) (*transfer.Session, error)
}

type ProbeService interface {
	Probe(ctx context.Context, w http.ResponseWriter) error
}

type StatsService interface {
	Stats(ctx context.Context) (*entity.TransferStats, error)
}

type PageService interface {
	HTML() []byte
}

type infoRequest struct {
	URL string `json:"url"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type healthBody struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func NewInfoHandler(srv CatalogService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "InfoHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		var req infoRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxInfoBodySize)).Decode(&req); err != nil {
			writeError(w, fmt.Errorf("%w: cannot decode request body: %w", common.ErrValidation, err), log)

			return
		}

		if err := util.ValidateURL(req.URL); err != nil {
			writeError(w, err, log)

			return
		}

		meta, err := srv.Resolve(r.Context(), req.URL)
		if err != nil {
			writeError(w, err, log)

			return
		}

		writeJSON(w, http.StatusOK, meta, log)
	}
}

func NewDownloadHandler(srv TransferService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "DownloadHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		target, err := entity.ParseContainer(q.Get("format"))
		if err != nil {
			writeError(w, fmt.Errorf("%w: %w", common.ErrValidation, err), log)

			return
		}

		// A format id wins over a quality hint, which wins over the
		// requested container.
		selector := strings.TrimSpace(q.Get("itag"))
		if selector == "" {
			selector = strings.TrimSpace(q.Get("quality"))
		}
		if selector == "" {
			selector = source.FormatHint(q.Get("format"))
		}

		sess, err := srv.Execute(r.Context(), entity.TransferRequest{
			SourceURL:       q.Get("url"),
			FormatSelector:  selector,
			TargetContainer: target,
		}, w)
		if err != nil {
			writeError(w, err, log)

			return
		}

		logSession(log, sess)
	}
}

func NewProxyHandler(srv TransferService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "ProxyHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		sess, err := srv.Proxy(r.Context(), entity.ProxyRequest{
			ResourceURL:  q.Get("url"),
			FilenameHint: q.Get("filename"),
		}, w)
		if err != nil {
			writeError(w, err, log)

			return
		}

		logSession(log, sess)
	}
}

func NewSpeedTestHandler(srv ProbeService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "SpeedTestHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		if err := srv.Probe(r.Context(), w); err != nil {
			writeError(w, err, log)
		}
	}
}

func NewStatsHandler(srv StatsService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "StatsHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := srv.Stats(r.Context())
		if err != nil {
			writeError(w, err, log)

			return
		}

		writeJSON(w, http.StatusOK, stats, log)
	}
}

func NewHealthHandler(log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "HealthHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, &healthBody{
			Status:    "OK",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}, log)
	}
}

func NewPageHandler(srv PageService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "PageHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err := w.Write(srv.HTML()); err != nil {
			log.Debug("Cannot write page", slog.Any("error", err))
		}
	}
}

func logSession(log *slog.Logger, sess *transfer.Session) {
	attrs := []any{
		slog.String("session", sess.ID),
		slog.String("state", sess.State().String()),
		slog.Int64("bytes", sess.BytesTransferred()),
		slog.Duration("took", time.Since(sess.StartedAt)),
	}

	if err := sess.Err(); err != nil {
		attrs = append(attrs, slog.Any("error", err))
	}

	log.Info("Transfer finished", attrs...)
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, codeValidation
	case errors.Is(err, common.ErrResolution):
		return http.StatusBadGateway, codeResolution
	case errors.Is(err, common.ErrUpstream):
		return http.StatusBadGateway, codeUpstream
	case errors.Is(err, common.ErrTranscode):
		return http.StatusInternalServerError, codeTranscode
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func writeError(w http.ResponseWriter, err error, log *slog.Logger) {
	status, code := errorStatus(err)

	if status >= http.StatusInternalServerError {
		log.Error("Request failed", slog.String("code", code), slog.Any("error", err))
	} else {
		log.Info("Request rejected", slog.String("code", code), slog.Any("error", err))
	}

	writeJSON(w, status, &errorBody{Error: errorDetail{Code: code, Message: err.Error()}}, log)
}

func writeJSON(w http.ResponseWriter, status int, v any, log *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Cannot encode response", slog.Any("error", err))
	}
}
