// Package render converts DOCX documents to PDF through a Gotenberg server.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"docsign/internal/config"
)

const convertPath = "/forms/libreoffice/convert"

// ErrEmptyDocument is returned when there is nothing to convert.
var ErrEmptyDocument = errors.New("empty document")

// Gotenberg is a client for the LibreOffice conversion route.
type Gotenberg struct {
	client  *resty.Client
	retries int
	backoff time.Duration
}

// NewGotenberg builds a client with a traced transport.
func NewGotenberg(cfg config.GotenbergConfig) *Gotenberg {
	c := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout).
		SetTransport(otelhttp.NewTransport(http.DefaultTransport))
	return &Gotenberg{client: c, retries: max(cfg.RetryCount, 0), backoff: 500 * time.Millisecond}
}

// ConvertDocx renders a DOCX document to PDF. Transport errors and 5xx answers
// are retried; the multipart body is rebuilt for every attempt.
func (g *Gotenberg) ConvertDocx(ctx context.Context, docx []byte) ([]byte, error) {
	if len(docx) == 0 {
		return nil, ErrEmptyDocument
	}

	var (
		resp *resty.Response
		err  error
	)
	for attempt := 0; attempt <= g.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(g.backoff * time.Duration(attempt)):
			}
		}
		resp, err = g.client.R().
			SetContext(ctx).
			SetFileReader("files", "document.docx", bytes.NewReader(docx)).
			Post(convertPath)
		if err == nil && resp.StatusCode() < http.StatusInternalServerError {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("gotenberg request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("gotenberg convert failed: status %d", resp.StatusCode())
	}
	body := resp.Body()
	if !bytes.HasPrefix(body, []byte("%PDF")) {
		return nil, fmt.Errorf("gotenberg convert returned non-pdf payload (%d bytes)", len(body))
	}
	return body, nil
}
