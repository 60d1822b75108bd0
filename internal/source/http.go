package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jgivc/mediarelay/internal/common"
)

// httpOpener opens the generic variant: a plain GET against any URL.
type httpOpener struct {
	cl  *http.Client
	log *slog.Logger
}

func NewHTTPOpener(cl *http.Client, log *slog.Logger) *httpOpener {
	if cl == nil {
		cl = http.DefaultClient
	}

	return &httpOpener{
		cl:  cl,
		log: log.With(slog.String("item", "httpOpener")),
	}
}

func (o *httpOpener) Open(ctx context.Context, url string) (ByteSource, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()

		return nil, fmt.Errorf("%w: cannot create request: %w", common.ErrUpstream, err)
	}

	resp, err := o.cl.Do(req)
	if err != nil {
		cancel()

		return nil, fmt.Errorf("%w: cannot get %s: %w", common.ErrUpstream, url, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		resp.Body.Close()
		cancel()

		return nil, fmt.Errorf("%w: %s returned status %d", common.ErrUpstream, url, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	o.log.Debug("Opened", slog.String("url", url), slog.Int64("length", resp.ContentLength), slog.String("content_type", contentType))

	return newStream(resp.Body, cancel, resp.ContentLength, contentType, ContainerFromMIME(contentType)), nil
}
