package transcode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/jgivc/mediarelay/internal/common"
	"github.com/jgivc/mediarelay/internal/entity"
	"github.com/jgivc/mediarelay/internal/source"
	"golang.org/x/sync/errgroup"
)

const contentTypeMP3 = "audio/mpeg"

// encodingStage optionally inserts an encoder between a source and its consumer.
type encodingStage struct {
	enc Encoder
	log *slog.Logger
}

func NewStage(enc Encoder, log *slog.Logger) *encodingStage {
	return &encodingStage{
		enc: enc,
		log: log.With(slog.String("item", "TranscodeStage")),
	}
}

// Needed reports whether src has to be re-encoded to reach target. An empty
// target means original.
func Needed(src source.ByteSource, target entity.Container) bool {
	switch target {
	case "", entity.ContainerOriginal, entity.Container(src.Container()):
		return false
	}

	return true
}

// Wrap returns src itself when no re-encoding is needed. Otherwise it starts
// the encoder and returns its output. Closing the returned source stops the
// encoder and closes src.
func (s *encodingStage) Wrap(ctx context.Context, src source.ByteSource, target entity.Container) (source.ByteSource, error) {
	if !Needed(src, target) {
		return src, nil
	}

	if target != entity.ContainerMP3 {
		return nil, fmt.Errorf("%w: cannot encode to %q", common.ErrValidation, target)
	}

	if s.enc == nil {
		return nil, fmt.Errorf("%w: encoder is not configured", common.ErrTranscode)
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	pr, pw := io.Pipe()
	in := &recordingReader{r: src}

	g.Go(func() error {
		err := s.enc.Encode(gctx, in, pw)

		switch {
		case err == nil:
		case ctx.Err() != nil:
			err = source.ErrClosed
		case in.Err() != nil:
			err = fmt.Errorf("%w: %w", common.ErrUpstream, in.Err())
		default:
			err = fmt.Errorf("%w: %w", common.ErrTranscode, err)
		}

		src.Close()
		pw.CloseWithError(err)

		return err
	})

	s.log.Debug("Encoder started", slog.String("from", src.Container()), slog.String("to", string(target)))

	return &encoded{
		pr:     pr,
		src:    src,
		cancel: cancel,
		g:      g,
		log:    s.log,
	}, nil
}

type encoded struct {
	pr     *io.PipeReader
	src    source.ByteSource
	cancel context.CancelFunc
	g      *errgroup.Group
	log    *slog.Logger

	once sync.Once
}

func (e *encoded) Read(p []byte) (int, error) {
	return e.pr.Read(p)
}

func (e *encoded) Close() error {
	e.once.Do(func() {
		e.cancel()
		e.pr.Close()
		e.src.Close()

		if err := e.g.Wait(); err != nil && !errors.Is(err, source.ErrClosed) {
			e.log.Debug("Encoder stopped", slog.Any("error", err))
		}
	})

	return nil
}

func (e *encoded) Length() int64 {
	return source.LengthUnknown
}

func (e *encoded) ContentType() string {
	return contentTypeMP3
}

func (e *encoded) Container() string {
	return string(entity.ContainerMP3)
}

// recordingReader remembers the first non-EOF read error so an upstream
// failure is not reported as an encoder failure.
type recordingReader struct {
	r   io.Reader
	mu  sync.Mutex
	err error
}

func (r *recordingReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if err != nil && err != io.EOF {
		r.mu.Lock()
		if r.err == nil {
			r.err = err
		}
		r.mu.Unlock()
	}

	return n, err
}

func (r *recordingReader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.err
}
