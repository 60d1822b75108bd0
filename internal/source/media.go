package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/jgivc/mediarelay/internal/common"
	"github.com/jgivc/mediarelay/internal/entity"
)

// Provider is the video-info provider the media variant streams from.
type Provider interface {
	GetMetadata(ctx context.Context, videoURL string) (*entity.RawVideo, error)
	OpenMediaStream(ctx context.Context, videoURL string, itag int) (io.ReadCloser, int64, error)
}

// mediaOpener opens the media variant: one format of a resolved video.
type mediaOpener struct {
	provider Provider
	log      *slog.Logger
}

func NewMediaOpener(provider Provider, log *slog.Logger) *mediaOpener {
	return &mediaOpener{
		provider: provider,
		log:      log.With(slog.String("item", "mediaOpener")),
	}
}

func (o *mediaOpener) Open(ctx context.Context, videoURL string, format entity.FormatDescriptor) (ByteSource, error) {
	itag, err := strconv.Atoi(format.FormatID)
	if err != nil {
		return nil, fmt.Errorf("%w: bad format id %q", common.ErrValidation, format.FormatID)
	}

	ctx, cancel := context.WithCancel(ctx)

	rc, length, err := o.provider.OpenMediaStream(ctx, videoURL, itag)
	if err != nil {
		cancel()

		if errors.Is(err, common.ErrUpstream) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: cannot open stream itag=%d: %w", common.ErrUpstream, itag, err)
	}

	if length <= 0 && format.ContentLength != nil {
		length = *format.ContentLength
	}
	if length <= 0 {
		length = LengthUnknown
	}

	o.log.Debug("Opened", slog.String("url", videoURL), slog.Int("itag", itag), slog.Int64("length", length))

	return newStream(rc, cancel, length, mediaContentType(format), format.Container), nil
}

func mediaContentType(f entity.FormatDescriptor) string {
	if f.Container == "" {
		return mimeTypeUnknown
	}

	if f.HasVideo {
		return "video/" + f.Container
	}

	return "audio/" + f.Container
}
