package transcode

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	DefaultAudioBitrate = 128
	defaultFFmpegPath   = "ffmpeg"
	stderrTailSize      = 4096
	waitDelay           = 2 * time.Second
)

// Encoder re-encodes src into dst until src is exhausted or ctx is done.
type Encoder interface {
	Encode(ctx context.Context, src io.Reader, dst io.Writer) error
}

// ffmpegEncoder encodes to MP3 with an ffmpeg process reading stdin and
// writing stdout.
type ffmpegEncoder struct {
	path    string
	bitrate int
	log     *slog.Logger
}

func NewFFmpegEncoder(path string, bitrateKbps int, log *slog.Logger) *ffmpegEncoder {
	if path == "" {
		path = defaultFFmpegPath
	}
	if bitrateKbps <= 0 {
		bitrateKbps = DefaultAudioBitrate
	}

	return &ffmpegEncoder{
		path:    path,
		bitrate: bitrateKbps,
		log:     log.With(slog.String("item", "ffmpegEncoder")),
	}
}

func (e *ffmpegEncoder) Available() bool {
	_, err := exec.LookPath(e.path)

	return err == nil
}

func (e *ffmpegEncoder) args() []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
		"-vn",
		"-c:a", "libmp3lame",
		"-b:a", fmt.Sprintf("%dk", e.bitrate),
		"-f", "mp3",
		"pipe:1",
	}
}

func (e *ffmpegEncoder) Encode(ctx context.Context, src io.Reader, dst io.Writer) error {
	stderr := &tailBuffer{max: stderrTailSize}

	cmd := exec.CommandContext(ctx, e.path, e.args()...)
	cmd.Stdin = src
	cmd.Stdout = dst
	cmd.Stderr = stderr
	// Bounds the wait for the stdin/stdout copy goroutines once the process is gone.
	cmd.WaitDelay = waitDelay

	started := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		e.log.Error("Encoder failed", slog.Any("error", err), slog.String("stderr", stderr.String()))

		return fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	e.log.Debug("Encoder finished", slog.Duration("took", time.Since(started)))

	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = b.buf[over:]
	}

	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return string(b.buf)
}
