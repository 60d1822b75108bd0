package util

import (
	"strings"
	"testing"

	"github.com/jgivc/mediarelay/internal/common"
	"github.com/stretchr/testify/require"
)

func TestFilename(t *testing.T) {
	testCases := []struct {
		title string
		ext   string
		want  string
	}{
		{title: "Me at the zoo", ext: "mp4", want: "Me at the zoo.mp4"},
		{title: "AC/DC - Thunderstruck (Official Video)", ext: "mp3", want: "ACDC  Thunderstruck Official Video.mp3"},
		{title: "../../etc/passwd", ext: "mp4", want: "etcpasswd.mp4"},
		{title: "line\nbreak\ttab", ext: "webm", want: "line break tab.webm"},
		{title: "!!!", ext: "mp3", want: "download.mp3"},
		{title: "Émilie", ext: "mp4", want: "milie.mp4"},
		{title: "x", ext: "", want: "x"},
	}

	for _, tc := range testCases {
		t.Run(tc.title, func(t *testing.T) {
			require.Equal(t, tc.want, Filename(tc.title, tc.ext))
		})
	}

	long := Filename(strings.Repeat("a", 500), "mp4")
	require.Equal(t, strings.Repeat("a", maxFilenameLength)+".mp4", long)
}

func TestProxyFilename(t *testing.T) {
	testCases := []struct {
		name string
		hint string
		url  string
		want string
	}{
		{name: "hint", hint: "report.pdf", url: "https://example.com/x.bin", want: "report.pdf"},
		{name: "hint traversal", hint: "../../secret.txt", url: "https://example.com/x", want: "secret.txt"},
		{name: "hint windows path", hint: `C:\tmp\a.txt`, url: "https://example.com/x", want: "a.txt"},
		{name: "url path", url: "https://example.com/files/archive.zip?sig=1", want: "archive.zip"},
		{name: "root", url: "https://example.com/", want: DefaultFilename},
		{name: "no path", url: "https://example.com", want: DefaultFilename},
		{name: "dots", hint: "..", url: "https://example.com/", want: DefaultFilename},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ProxyFilename(tc.hint, tc.url))
		})
	}
}

func TestContentDisposition(t *testing.T) {
	require.Equal(t, `attachment; filename="Me at the zoo.mp4"`, ContentDisposition("Me at the zoo.mp4"))
	require.Equal(t, `attachment; filename=a.mp3`, ContentDisposition("a.mp3"))
	require.Contains(t, ContentDisposition("héllo.mp3"), "filename*=utf-8''")
}

func TestValidateURL(t *testing.T) {
	for _, raw := range []string{"https://www.youtube.com/watch?v=jNQXAC9IVRw", "http://example.com/a"} {
		require.NoError(t, ValidateURL(raw), raw)
	}

	for _, raw := range []string{"", "   ", "not a url", "ftp://example.com/a", "/relative", "https://", "%zz"} {
		require.ErrorIs(t, ValidateURL(raw), common.ErrValidation, raw)
	}
}
