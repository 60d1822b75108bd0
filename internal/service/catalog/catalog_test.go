package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/jgivc/mediarelay/internal/common"
	"github.com/jgivc/mediarelay/internal/entity"
	"github.com/stretchr/testify/require"
)

type providerStub struct {
	video *entity.RawVideo
	err   error
	calls int
}

func (p *providerStub) GetMetadata(ctx context.Context, videoURL string) (*entity.RawVideo, error) {
	p.calls++

	return p.video, p.err
}

func TestResolve(t *testing.T) {
	p := &providerStub{video: &entity.RawVideo{
		Title:     "Me at the zoo",
		Author:    "jawed",
		Duration:  19,
		ViewCount: 300000000,
		Thumbnails: []entity.RawThumbnail{
			{URL: "small", Width: 120, Height: 90},
			{URL: "large", Width: 480, Height: 360},
			{URL: "medium", Width: 320, Height: 180},
		},
		Formats: []entity.RawFormat{
			{Itag: 18, MimeType: `video/mp4; codecs="avc1.42001E, mp4a.40.2"`, QualityLabel: "360p", HasAudio: true, HasVideo: true, ContentLength: 791367, Bitrate: 500000, FPS: 30},
			{Itag: 22, MimeType: `video/mp4; codecs="avc1.64001F, mp4a.40.2"`, QualityLabel: "720p", HasAudio: true, HasVideo: true},
			{Itag: 251, MimeType: `audio/webm; codecs="opus"`, Quality: "tiny", HasAudio: true, Bitrate: 160000},
			{Itag: 0, MimeType: "text/vtt"},
		},
	}}

	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	svc := NewCatalogService(p, log)

	meta, err := svc.Resolve(context.Background(), "https://valid/video")
	require.NoError(t, err)

	require.Equal(t, "Me at the zoo", meta.Title)
	require.Equal(t, "jawed", meta.Author)
	require.Equal(t, int64(19), meta.DurationSeconds)
	require.Equal(t, int64(300000000), meta.ViewCount)
	require.Equal(t, "large", meta.ThumbnailURL)

	require.Len(t, meta.Formats, 3)
	for _, f := range meta.Formats {
		require.True(t, f.HasAudio || f.HasVideo)
	}

	require.Equal(t, "18", meta.Formats[0].FormatID)
	require.Equal(t, "mp4", meta.Formats[0].Container)
	require.Equal(t, int64(791367), *meta.Formats[0].ContentLength)
	require.Equal(t, 500000, *meta.Formats[0].Bitrate)
	require.Equal(t, 30, *meta.Formats[0].FPS)

	require.Nil(t, meta.Formats[1].ContentLength)
	require.Nil(t, meta.Formats[1].Bitrate)

	require.Equal(t, "webm", meta.Formats[2].Container)
	require.Equal(t, "tiny", meta.Formats[2].QualityLabel)

	_, err = svc.Resolve(context.Background(), "https://valid/video")
	require.NoError(t, err)
	require.Equal(t, 2, p.calls)
}

func TestResolveError(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	svc := NewCatalogService(&providerStub{err: errors.New("video unavailable")}, log)

	_, err := svc.Resolve(context.Background(), "https://valid/video")
	require.ErrorIs(t, err, common.ErrResolution)
}

func TestBestThumbnail(t *testing.T) {
	testCases := []struct {
		name   string
		thumbs []entity.RawThumbnail
		want   string
	}{
		{name: "empty"},
		{name: "no sizes", thumbs: []entity.RawThumbnail{{URL: "a"}, {URL: "b"}}, want: "b"},
		{name: "tie", thumbs: []entity.RawThumbnail{{URL: "a", Width: 10, Height: 10}, {URL: "b", Width: 10, Height: 10}, {URL: "c", Width: 5, Height: 5}}, want: "b"},
		{name: "max first", thumbs: []entity.RawThumbnail{{URL: "a", Width: 100, Height: 100}, {URL: "b", Width: 10, Height: 10}}, want: "a"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, bestThumbnail(tc.thumbs))
		})
	}
}
