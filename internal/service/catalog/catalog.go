package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jgivc/mediarelay/internal/common"
	"github.com/jgivc/mediarelay/internal/entity"
	"github.com/jgivc/mediarelay/internal/source"
	"github.com/samber/lo"
)

const (
	serviceName = "catalog"
)

type ProviderLookup interface {
	GetMetadata(ctx context.Context, videoURL string) (*entity.RawVideo, error)
}

type catalogService struct {
	provider ProviderLookup
	log      *slog.Logger
}

func NewCatalogService(provider ProviderLookup, log *slog.Logger) *catalogService {
	return &catalogService{
		provider: provider,
		log:      log.With(slog.String("service", serviceName)),
	}
}

// Resolve queries the provider on every call and normalizes its answer.
func (c *catalogService) Resolve(ctx context.Context, videoURL string) (*entity.VideoMetadata, error) {
	raw, err := c.provider.GetMetadata(ctx, videoURL)
	if err != nil {
		c.log.Error("Cannot get metadata", slog.String("url", videoURL), slog.Any("error", err))

		if errors.Is(err, common.ErrResolution) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: cannot resolve %s: %w", common.ErrResolution, videoURL, err)
	}

	meta := Normalize(raw)
	c.log.Debug("Resolved", slog.String("url", videoURL), slog.String("title", meta.Title), slog.Int("formats", len(meta.Formats)))

	return meta, nil
}

func Normalize(raw *entity.RawVideo) *entity.VideoMetadata {
	avFormats := lo.Filter(raw.Formats, func(f entity.RawFormat, _ int) bool {
		return f.HasAudio || f.HasVideo
	})

	return &entity.VideoMetadata{
		Title:           raw.Title,
		Author:          raw.Author,
		DurationSeconds: raw.Duration,
		ThumbnailURL:    bestThumbnail(raw.Thumbnails),
		ViewCount:       raw.ViewCount,
		Formats:         lo.Map(avFormats, func(f entity.RawFormat, _ int) entity.FormatDescriptor { return toDescriptor(f) }),
	}
}

func toDescriptor(f entity.RawFormat) entity.FormatDescriptor {
	d := entity.FormatDescriptor{
		FormatID:     strconv.Itoa(f.Itag),
		QualityLabel: f.QualityLabel,
		Container:    source.ContainerFromMIME(f.MimeType),
		HasAudio:     f.HasAudio,
		HasVideo:     f.HasVideo,
	}

	if d.QualityLabel == "" {
		d.QualityLabel = f.Quality
	}
	if f.ContentLength > 0 {
		d.ContentLength = lo.ToPtr(f.ContentLength)
	}
	if f.Bitrate > 0 {
		d.Bitrate = lo.ToPtr(f.Bitrate)
	}
	if f.FPS > 0 {
		d.FPS = lo.ToPtr(f.FPS)
	}

	return d
}

// bestThumbnail returns the largest thumbnail; on equal size the one supplied
// last wins, and without any sizes that is simply the last one.
func bestThumbnail(thumbs []entity.RawThumbnail) string {
	if len(thumbs) == 0 {
		return ""
	}

	best := thumbs[0]
	for _, t := range thumbs[1:] {
		if t.Width*t.Height >= best.Width*best.Height {
			best = t
		}
	}

	return best.URL
}
