package provider

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jgivc/mediarelay/internal/common"
	"github.com/kkdai/youtube/v2"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestToRawVideo(t *testing.T) {
	v := &youtube.Video{
		ID:       "jNQXAC9IVRw",
		Title:    "Me at the zoo",
		Author:   "jawed",
		Duration: 19 * time.Second,
		Views:    42,
		Thumbnails: youtube.Thumbnails{
			{URL: "https://i.ytimg.com/vi/jNQXAC9IVRw/default.jpg", Width: 120, Height: 90},
		},
		Formats: youtube.FormatList{
			{ItagNo: 18, MimeType: `video/mp4; codecs="avc1.42001E, mp4a.40.2"`, QualityLabel: "360p", AudioChannels: 2, Bitrate: 500000, FPS: 30, ContentLength: 1024},
			{ItagNo: 137, MimeType: `video/mp4; codecs="avc1.640028"`, QualityLabel: "1080p"},
			{ItagNo: 251, MimeType: `audio/webm; codecs="opus"`, Quality: "tiny", AudioQuality: "AUDIO_QUALITY_MEDIUM"},
		},
	}

	raw := toRawVideo(v)
	require.Equal(t, "jNQXAC9IVRw", raw.ID)
	require.Equal(t, int64(19), raw.Duration)
	require.Equal(t, int64(42), raw.ViewCount)
	require.Len(t, raw.Thumbnails, 1)
	require.Equal(t, 120, raw.Thumbnails[0].Width)

	require.Len(t, raw.Formats, 3)
	require.True(t, raw.Formats[0].HasAudio)
	require.True(t, raw.Formats[0].HasVideo)
	require.Equal(t, int64(1024), raw.Formats[0].ContentLength)

	require.False(t, raw.Formats[1].HasAudio)
	require.True(t, raw.Formats[1].HasVideo)

	require.True(t, raw.Formats[2].HasAudio)
	require.False(t, raw.Formats[2].HasVideo)
	require.Equal(t, "tiny", raw.Formats[2].Quality)
}

func TestOpenFormatPullsOnDemand(t *testing.T) {
	const size = 64 << 20

	var served atomic.Int64
	chunk := bytes.Repeat([]byte("m"), 32<<10)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(size))

		for served.Load() < size {
			n, err := w.Write(chunk)
			served.Add(int64(n))
			if err != nil {
				return
			}
		}
	}))
	defer upstream.Close()

	p := NewYouTubeProvider(upstream.Client(), discardLogger())
	p.streamURL = func(ctx context.Context, video *youtube.Video, format *youtube.Format) (string, error) {
		return upstream.URL + "/videoplayback?itag=" + strconv.Itoa(format.ItagNo), nil
	}

	rc, length, err := p.openFormat(context.Background(), &youtube.Video{ID: "jNQXAC9IVRw"}, &youtube.Format{ItagNo: 18, ContentLength: size})
	require.NoError(t, err)
	require.Equal(t, int64(size), length)

	buf := make([]byte, 32<<10)
	_, err = io.ReadFull(rc, buf)
	require.NoError(t, err)

	// A stalled reader must hold the upstream back; only socket buffers
	// may run ahead of it.
	time.Sleep(time.Second)
	require.Less(t, served.Load(), int64(size/4))

	require.NoError(t, rc.Close())
}

func TestOpenFormatErrors(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer upstream.Close()

	p := NewYouTubeProvider(upstream.Client(), discardLogger())
	video := &youtube.Video{ID: "jNQXAC9IVRw"}
	format := &youtube.Format{ItagNo: 18}

	p.streamURL = func(ctx context.Context, video *youtube.Video, format *youtube.Format) (string, error) {
		return "", errors.New("cipher: cannot decode signature")
	}

	_, _, err := p.openFormat(context.Background(), video, format)
	require.ErrorIs(t, err, common.ErrUpstream)

	p.streamURL = func(ctx context.Context, video *youtube.Video, format *youtube.Format) (string, error) {
		return upstream.URL + "/videoplayback", nil
	}

	_, _, err = p.openFormat(context.Background(), video, format)
	require.ErrorIs(t, err, common.ErrUpstream)
}
