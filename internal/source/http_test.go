package source

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jgivc/mediarelay/internal/common"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestHTTPOpener(t *testing.T) {
	payload := strings.Repeat("abcdef", 1000)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/file.bin":
			w.Header().Set("Content-Type", "video/webm")
			w.Write([]byte(payload))
		case "/forbidden":
			http.Error(w, "no", http.StatusForbidden)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	opener := NewHTTPOpener(srv.Client(), discardLogger())

	t.Run("ok", func(t *testing.T) {
		src, err := opener.Open(context.Background(), srv.URL+"/file.bin")
		require.NoError(t, err)
		defer src.Close()

		require.Equal(t, int64(len(payload)), src.Length())
		require.Equal(t, "video/webm", src.ContentType())
		require.Equal(t, "webm", src.Container())

		data, err := io.ReadAll(src)
		require.NoError(t, err)
		require.Equal(t, payload, string(data))
	})

	for _, path := range []string{"/missing", "/forbidden"} {
		t.Run(path, func(t *testing.T) {
			_, err := opener.Open(context.Background(), srv.URL+path)
			require.ErrorIs(t, err, common.ErrUpstream)
		})
	}

	t.Run("connection refused", func(t *testing.T) {
		_, err := opener.Open(context.Background(), "http://127.0.0.1:1/nothing")
		require.ErrorIs(t, err, common.ErrUpstream)
	})
}

func TestHTTPOpenerCloseStopsReads(t *testing.T) {
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("first"))
		w.(http.Flusher).Flush()

		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	src, err := NewHTTPOpener(srv.Client(), discardLogger()).Open(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, int64(LengthUnknown), src.Length())

	buf := make([]byte, 5)
	_, err = io.ReadFull(src, buf)
	require.NoError(t, err)
	require.Equal(t, "first", string(buf))

	done := make(chan error, 1)
	go func() {
		_, err := src.Read(buf)
		done <- err
	}()

	require.NoError(t, src.Close())
	require.ErrorIs(t, <-done, ErrClosed)
	require.NoError(t, src.Close())

	_, err = src.Read(buf)
	require.ErrorIs(t, err, ErrClosed)
}

func TestContainerFromMIME(t *testing.T) {
	testCases := map[string]string{
		`video/mp4; codecs="avc1.42001E, mp4a.40.2"`: "mp4",
		`audio/webm; codecs="opus"`:                   "webm",
		"audio/mpeg":                                  "mp3",
		"application/octet-stream":                    "",
		"":                                            "",
		"garbage":                                     "",
	}

	for in, want := range testCases {
		require.Equal(t, want, ContainerFromMIME(in), in)
	}
}
