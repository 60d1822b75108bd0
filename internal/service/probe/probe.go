package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jgivc/mediarelay/internal/common"
	"github.com/jgivc/mediarelay/internal/entity"
	"github.com/jgivc/mediarelay/internal/source"
)

const (
	serviceName = "probe"

	DefaultReferenceURL = "https://speed.hetzner.de/100MB.bin"
	defaultChunkSize    = 64 * 1024
	bytesInMB           = 1024 * 1024
	contentTypeNDJSON   = "application/x-ndjson"
)

type Opener interface {
	Open(ctx context.Context, url string) (source.ByteSource, error)
}

type probeService struct {
	url       string
	web       Opener
	chunkSize int
	now       func() time.Time
	log       *slog.Logger
}

func NewProbeService(referenceURL string, web Opener, log *slog.Logger) *probeService {
	if referenceURL == "" {
		referenceURL = DefaultReferenceURL
	}

	return &probeService{
		url:       referenceURL,
		web:       web,
		chunkSize: defaultChunkSize,
		now:       time.Now,
		log:       log.With(slog.String("service", serviceName)),
	}
}

// Probe downloads the reference resource, discards it and writes one JSON
// sample per chunk read. Only errors raised before the first byte is written
// are returned.
func (p *probeService) Probe(ctx context.Context, w http.ResponseWriter) error {
	src, err := p.web.Open(ctx, p.url)
	if err != nil {
		p.log.Error("Cannot open reference resource", slog.String("url", p.url), slog.Any("error", err))

		return err
	}
	defer src.Close()

	stop := context.AfterFunc(ctx, func() { src.Close() })
	defer stop()

	var total *int64
	if l := src.Length(); l > 0 {
		total = &l
	}

	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)
	buf := make([]byte, p.chunkSize)
	start := p.now()

	var (
		received  int64
		committed bool
	)

	// Headers wait for the first read so a dead reference resource still
	// gets an error response.
	commit := func() {
		if committed {
			return
		}
		committed = true

		w.Header().Set("Content-Type", contentTypeNDJSON)
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
	}

	for {
		n, err := src.Read(buf)
		if n > 0 {
			commit()
			received += int64(n)

			werr := enc.Encode(newSample(received, total, p.now().Sub(start)))
			if werr == nil {
				if ferr := rc.Flush(); ferr != nil && !errors.Is(ferr, http.ErrNotSupported) {
					werr = ferr
				}
			}

			if werr != nil {
				p.log.Info("Client disconnected", slog.Int64("bytes", received), slog.Any("error", werr))

				return nil
			}
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			commit()
			p.log.Info("Probe completed", slog.Int64("bytes", received), slog.Duration("took", p.now().Sub(start)))

			return nil
		case ctx.Err() != nil:
			p.log.Info("Client disconnected", slog.Int64("bytes", received))

			return nil
		case !committed:
			p.log.Error("Cannot read reference resource", slog.String("url", p.url), slog.Any("error", err))

			return fmt.Errorf("%w: %w", common.ErrUpstream, err)
		default:
			p.log.Error("Probe failed", slog.Int64("bytes", received), slog.Any("error", err))

			return nil
		}
	}
}

func newSample(received int64, total *int64, elapsed time.Duration) entity.ProbeSample {
	s := entity.ProbeSample{
		BytesSoFar:     received,
		TotalBytes:     total,
		ElapsedSeconds: elapsed.Seconds(),
	}

	if s.ElapsedSeconds > 0 {
		s.SpeedMBps = float64(received) / s.ElapsedSeconds / bytesInMB
	}

	if total != nil && *total > 0 {
		percent := float64(received) / float64(*total) * 100
		s.Percent = &percent
	}

	return s
}
