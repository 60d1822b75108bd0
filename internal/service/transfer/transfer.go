package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jgivc/mediarelay/internal/common"
	"github.com/jgivc/mediarelay/internal/entity"
	"github.com/jgivc/mediarelay/internal/source"
	"github.com/jgivc/mediarelay/internal/util"
)

const (
	serviceName = "transfer"

	DefaultChunkSize    = 32 * 1024
	DefaultBufferChunks = 1

	statsTimeout = 2 * time.Second
)

type Catalog interface {
	Resolve(ctx context.Context, videoURL string) (*entity.VideoMetadata, error)
}

type MediaOpener interface {
	Open(ctx context.Context, videoURL string, format entity.FormatDescriptor) (source.ByteSource, error)
}

type HTTPOpener interface {
	Open(ctx context.Context, url string) (source.ByteSource, error)
}

type Transcoder interface {
	Wrap(ctx context.Context, src source.ByteSource, target entity.Container) (source.ByteSource, error)
}

type StatsRecorder interface {
	Record(ctx context.Context, state entity.State, bytes int64) error
}

type Config struct {
	ChunkSize    int
	BufferChunks int
	// MaxDuration bounds a whole transfer; zero means no limit.
	MaxDuration time.Duration
}

type transferService struct {
	cfg     Config
	catalog Catalog
	media   MediaOpener
	web     HTTPOpener
	stage   Transcoder
	stats   StatsRecorder
	pool    sync.Pool
	log     *slog.Logger
}

func NewTransferService(cfg Config, catalog Catalog, media MediaOpener, web HTTPOpener, stage Transcoder, stats StatsRecorder, log *slog.Logger) *transferService {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.BufferChunks <= 0 {
		cfg.BufferChunks = DefaultBufferChunks
	}

	s := &transferService{
		cfg:     cfg,
		catalog: catalog,
		media:   media,
		web:     web,
		stage:   stage,
		stats:   stats,
		log:     log.With(slog.String("service", serviceName)),
	}
	s.pool.New = func() any {
		buf := make([]byte, s.cfg.ChunkSize)

		return &buf
	}

	return s
}

// Execute streams one media format to w. The returned error is set only when
// nothing has been written yet; failures after that are recorded on the
// session and truncate the response.
func (s *transferService) Execute(ctx context.Context, req entity.TransferRequest, w http.ResponseWriter) (*Session, error) {
	sess := newSession()
	log := s.log.With(slog.String("session", sess.ID), slog.String("url", req.SourceURL))

	if err := util.ValidateURL(req.SourceURL); err != nil {
		sess.finish(entity.StateFailed, err)

		return sess, err
	}

	ctx, cancel := s.withLimit(ctx)
	defer cancel()

	sess.setState(entity.StateResolving)

	src, filename, err := s.openMedia(ctx, req)
	if err != nil {
		log.Error("Cannot open media", slog.Any("error", err))
		s.finish(ctx, sess, entity.StateFailed, err)

		return sess, err
	}

	log.Info("Start transfer", slog.String("filename", filename), slog.String("container", src.Container()))

	return sess, s.stream(ctx, sess, src, filename, w, log)
}

// Proxy streams an arbitrary HTTP resource to w, with the same error contract
// as Execute.
func (s *transferService) Proxy(ctx context.Context, req entity.ProxyRequest, w http.ResponseWriter) (*Session, error) {
	sess := newSession()
	log := s.log.With(slog.String("session", sess.ID), slog.String("url", req.ResourceURL))

	if err := util.ValidateURL(req.ResourceURL); err != nil {
		sess.finish(entity.StateFailed, err)

		return sess, err
	}

	ctx, cancel := s.withLimit(ctx)
	defer cancel()

	sess.setState(entity.StateResolving)

	src, err := s.web.Open(ctx, req.ResourceURL)
	if err != nil {
		log.Error("Cannot open resource", slog.Any("error", err))
		s.finish(ctx, sess, entity.StateFailed, err)

		return sess, err
	}

	filename := util.ProxyFilename(req.FilenameHint, req.ResourceURL)
	log.Info("Start proxy", slog.String("filename", filename), slog.Int64("length", src.Length()))

	return sess, s.stream(ctx, sess, src, filename, w, log)
}

func (s *transferService) withLimit(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.MaxDuration > 0 {
		return context.WithTimeout(ctx, s.cfg.MaxDuration)
	}

	return context.WithCancel(ctx)
}

func (s *transferService) openMedia(ctx context.Context, req entity.TransferRequest) (source.ByteSource, string, error) {
	meta, err := s.catalog.Resolve(ctx, req.SourceURL)
	if err != nil {
		return nil, "", err
	}

	format, err := source.SelectFormat(meta.Formats, req.FormatSelector, req.TargetContainer)
	if err != nil {
		return nil, "", err
	}

	src, err := s.media.Open(ctx, req.SourceURL, format)
	if err != nil {
		return nil, "", err
	}

	out, err := s.stage.Wrap(ctx, src, req.TargetContainer)
	if err != nil {
		src.Close()

		return nil, "", err
	}

	ext := out.Container()
	if ext == "" {
		ext = format.Container
	}

	return out, util.Filename(meta.Title, ext), nil
}

type chunk struct {
	buf *[]byte
	n   int
	err error
}

// stream copies src to w through a bounded channel. Headers are committed
// with the first chunk, so a source that fails before producing anything is
// reported through the returned error. The pump stops reading while the
// channel is full, so a slow client holds at most BufferChunks+2 chunks in
// memory.
func (s *transferService) stream(ctx context.Context, sess *Session, src source.ByteSource, filename string, w http.ResponseWriter, log *slog.Logger) error {
	defer src.Close()
	stop := context.AfterFunc(ctx, func() { src.Close() })
	defer stop()

	chunks := make(chan chunk, s.cfg.BufferChunks)
	done := make(chan struct{})
	pumped := make(chan struct{})

	go func() {
		defer close(pumped)
		s.pump(src, chunks, done)
	}()

	defer func() {
		close(done)
		src.Close()
		<-pumped
	}()

	c := <-chunks
	if c.err != nil && !errors.Is(c.err, io.EOF) {
		return s.endOfSource(ctx, sess, c.err, log)
	}

	h := w.Header()
	h.Set("Content-Type", src.ContentType())
	h.Set("Content-Disposition", util.ContentDisposition(filename))
	h.Set("X-Transfer-Id", sess.ID)
	if l := src.Length(); l >= 0 {
		h.Set("Content-Length", strconv.FormatInt(l, 10))
	}

	w.WriteHeader(http.StatusOK)
	sess.commit()
	sess.setState(entity.StateStreaming)

	rc := http.NewResponseController(w)

	for {
		if c.err != nil {
			s.endOfSource(ctx, sess, c.err, log)

			return nil
		}

		_, err := w.Write((*c.buf)[:c.n])
		s.pool.Put(c.buf)
		if err == nil {
			if ferr := rc.Flush(); ferr != nil && !errors.Is(ferr, http.ErrNotSupported) {
				err = ferr
			}
		}

		if err != nil {
			src.Close()
			log.Info("Client disconnected", slog.Int64("bytes", sess.BytesTransferred()), slog.Any("error", err))
			s.finish(ctx, sess, entity.StateAborted, fmt.Errorf("%w: %w", common.ErrClientDisconnect, err))

			return nil
		}

		sess.bytes.Add(int64(c.n))

		var ok bool
		if c, ok = <-chunks; !ok {
			return nil
		}
	}
}

// endOfSource finishes the session after the last chunk. It returns the
// cause of a failure; a client gone away is not one.
func (s *transferService) endOfSource(ctx context.Context, sess *Session, err error, log *slog.Logger) error {
	switch {
	case errors.Is(err, io.EOF):
		log.Info("Transfer completed", slog.Int64("bytes", sess.BytesTransferred()), slog.Duration("took", time.Since(sess.StartedAt)))
		s.finish(ctx, sess, entity.StateCompleted, nil)

		return nil
	case errors.Is(ctx.Err(), context.Canceled):
		log.Info("Client disconnected", slog.Int64("bytes", sess.BytesTransferred()))
		s.finish(ctx, sess, entity.StateAborted, fmt.Errorf("%w: %w", common.ErrClientDisconnect, ctx.Err()))

		return nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w: transfer took longer than %s", common.ErrUpstream, s.cfg.MaxDuration)
	}

	log.Error("Transfer failed", slog.Int64("bytes", sess.BytesTransferred()), slog.Any("error", err))
	s.finish(ctx, sess, entity.StateFailed, err)

	return err
}

// pump reads src chunk by chunk until it fails, ends or done is closed. The
// final chunk carries the read error, io.EOF included.
func (s *transferService) pump(src io.Reader, out chan<- chunk, done <-chan struct{}) {
	defer close(out)

	for {
		buf := s.pool.Get().(*[]byte)
		n, err := src.Read(*buf)

		if n > 0 {
			select {
			case out <- chunk{buf: buf, n: n}:
			case <-done:
				return
			}
		} else {
			s.pool.Put(buf)
		}

		if err != nil {
			select {
			case out <- chunk{err: err}:
			case <-done:
			}

			return
		}
	}
}

func (s *transferService) finish(ctx context.Context, sess *Session, state entity.State, err error) {
	if !sess.finish(state, err) || s.stats == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statsTimeout)
	defer cancel()

	if err := s.stats.Record(ctx, state, sess.BytesTransferred()); err != nil {
		s.log.Error("Cannot record transfer", slog.String("session", sess.ID), slog.Any("error", err))
	}
}
