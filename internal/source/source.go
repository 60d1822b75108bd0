package source

import (
	"context"
	"errors"
	"io"
	"mime"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	mimeTypeUnknown = "application/octet-stream"
	LengthUnknown   = -1
)

var ErrClosed = errors.New("source closed")

// ByteSource is a cancellable pull-based byte stream. Length returns
// LengthUnknown when the upstream did not declare one. Close is idempotent and
// stops any further network reads.
type ByteSource interface {
	io.ReadCloser
	Length() int64
	ContentType() string
	Container() string
}

type stream struct {
	rc          io.ReadCloser
	cancel      context.CancelFunc
	length      int64
	contentType string
	container   string

	once     sync.Once
	closed   atomic.Bool
	closeErr error
}

func newStream(rc io.ReadCloser, cancel context.CancelFunc, length int64, contentType, container string) *stream {
	if length < 0 {
		length = LengthUnknown
	}
	if contentType == "" {
		contentType = mimeTypeUnknown
	}

	return &stream{
		rc:          rc,
		cancel:      cancel,
		length:      length,
		contentType: contentType,
		container:   container,
	}
}

func (s *stream) Read(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}

	n, err := s.rc.Read(p)
	if err != nil && s.closed.Load() {
		return n, ErrClosed
	}

	return n, err
}

func (s *stream) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		if s.cancel != nil {
			s.cancel()
		}
		s.closeErr = s.rc.Close()
	})

	return s.closeErr
}

func (s *stream) Length() int64 {
	return s.length
}

func (s *stream) ContentType() string {
	return s.contentType
}

func (s *stream) Container() string {
	return s.container
}

// ContainerFromMIME returns the subtype of a media type, e.g. "webm" for
// `audio/webm; codecs="opus"`.
func ContainerFromMIME(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}

	_, sub, ok := strings.Cut(mt, "/")
	if !ok {
		return ""
	}

	switch sub {
	case "mpeg":
		return "mp3"
	case "octet-stream":
		return ""
	}

	return sub
}
