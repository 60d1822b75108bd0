package util

import (
	"fmt"
	"mime"
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"

	"github.com/jgivc/mediarelay/internal/common"
)

const (
	DefaultFilename   = "download"
	maxFilenameLength = 200
)

var (
	nonWordRegexp      = regexp.MustCompile(`[^\w\s]`)
	controlSpaceRegexp = regexp.MustCompile(`[\t\n\v\f\r]`)
)

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: url is required", common.ErrValidation)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: malformed url: %w", common.ErrValidation, err)
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be absolute http(s): %q", common.ErrValidation, raw)
	}

	return nil
}

// Filename strips everything but word characters and whitespace from title
// and appends ext. The result never contains a path separator.
func Filename(title, ext string) string {
	name := nonWordRegexp.ReplaceAllString(title, "")
	name = strings.TrimSpace(controlSpaceRegexp.ReplaceAllString(name, " "))

	return withExt(truncate(name), ext)
}

// ProxyFilename picks the name for a proxied resource: the hint, then the last
// segment of the URL path, then DefaultFilename.
func ProxyFilename(hint, rawURL string) string {
	if name := baseName(hint); name != "" {
		return name
	}

	if u, err := url.Parse(rawURL); err == nil {
		if name := baseName(u.Path); name != "" {
			return name
		}
	}

	return DefaultFilename
}

func baseName(p string) string {
	p = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}

		return r
	}, strings.ReplaceAll(p, `\`, "/"))

	name := strings.TrimSpace(path.Base(p))
	switch name {
	case ".", "..", "/", "":
		return ""
	}

	return truncate(name)
}

func ContentDisposition(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}

	return "attachment"
}

func withExt(name, ext string) string {
	if name == "" {
		name = DefaultFilename
	}
	if ext == "" {
		return name
	}

	return name + "." + ext
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) > maxFilenameLength {
		return strings.TrimSpace(string(r[:maxFilenameLength]))
	}

	return s
}
