package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jgivc/mediarelay/internal/common"
	"github.com/jgivc/mediarelay/internal/entity"
	"github.com/jgivc/mediarelay/internal/source"
	"github.com/kkdai/youtube/v2"
	"github.com/samber/lo"
)

type StreamOpener interface {
	Open(ctx context.Context, url string) (source.ByteSource, error)
}

type streamURLFunc func(ctx context.Context, video *youtube.Video, format *youtube.Format) (string, error)

// youTubeProvider resolves metadata and stream URLs with the youtube client.
// Stream bodies are pulled through a single GET, never through the client's
// own chunked downloader, which prefetches the whole file.
type youTubeProvider struct {
	cl        *youtube.Client
	web       StreamOpener
	streamURL streamURLFunc
	log       *slog.Logger
}

func NewYouTubeProvider(httpClient *http.Client, log *slog.Logger) *youTubeProvider {
	cl := &youtube.Client{HTTPClient: httpClient}

	return &youTubeProvider{
		cl:        cl,
		web:       source.NewHTTPOpener(httpClient, log),
		streamURL: cl.GetStreamURLContext,
		log:       log.With(slog.String("item", "YouTubeProvider")),
	}
}

func (p *youTubeProvider) GetMetadata(ctx context.Context, videoURL string) (*entity.RawVideo, error) {
	video, err := p.cl.GetVideoContext(ctx, videoURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrResolution, err)
	}

	return toRawVideo(video), nil
}

func (p *youTubeProvider) OpenMediaStream(ctx context.Context, videoURL string, itag int) (io.ReadCloser, int64, error) {
	video, err := p.cl.GetVideoContext(ctx, videoURL)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", common.ErrResolution, err)
	}

	formats := video.Formats.Itag(itag)
	if len(formats) == 0 {
		return nil, 0, fmt.Errorf("%w: itag %d", common.ErrFormatNotFound, itag)
	}

	return p.openFormat(ctx, video, &formats[0])
}

func (p *youTubeProvider) openFormat(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error) {
	streamURL, err := p.streamURL(ctx, video, format)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: cannot get stream url: %w", common.ErrUpstream, err)
	}

	src, err := p.web.Open(ctx, streamURL)
	if err != nil {
		return nil, 0, err
	}

	p.log.Debug("Stream opened", slog.String("id", video.ID), slog.Int("itag", format.ItagNo), slog.Int64("size", src.Length()))

	return src, src.Length(), nil
}

func toRawVideo(v *youtube.Video) *entity.RawVideo {
	return &entity.RawVideo{
		ID:        v.ID,
		Title:     v.Title,
		Author:    v.Author,
		Duration:  int64(v.Duration.Seconds()),
		ViewCount: int64(v.Views),
		Thumbnails: lo.Map(v.Thumbnails, func(t youtube.Thumbnail, _ int) entity.RawThumbnail {
			return entity.RawThumbnail{URL: t.URL, Width: int(t.Width), Height: int(t.Height)}
		}),
		Formats: lo.Map(v.Formats, func(f youtube.Format, _ int) entity.RawFormat {
			return toRawFormat(f)
		}),
	}
}

func toRawFormat(f youtube.Format) entity.RawFormat {
	return entity.RawFormat{
		Itag:          f.ItagNo,
		MimeType:      f.MimeType,
		Quality:       f.Quality,
		QualityLabel:  f.QualityLabel,
		HasVideo:      strings.HasPrefix(f.MimeType, "video/"),
		HasAudio:      strings.HasPrefix(f.MimeType, "audio/") || f.AudioChannels > 0 || f.AudioQuality != "",
		ContentLength: f.ContentLength,
		Bitrate:       f.Bitrate,
		FPS:           f.FPS,
	}
}
