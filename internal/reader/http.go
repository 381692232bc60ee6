package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kode4food/swfcatalog"
	"github.com/kode4food/swfcatalog/pkg/log"
)

// HTTPReader fetches content over HTTP(S)
type HTTPReader struct {
	httpClient *http.Client
	logger     *slog.Logger
}

var ErrHTTPStatus = errors.New("unexpected HTTP status")

var (
	_ Reader = (*HTTPReader)(nil)

	userAgent = swfcatalog.Name + "/" + swfcatalog.Version
)

// NewHTTPReader creates a reader whose requests are bounded by timeout
func NewHTTPReader(timeout time.Duration, logger *slog.Logger) *HTTPReader {
	return NewHTTPReaderWithClient(&http.Client{Timeout: timeout}, logger)
}

// NewHTTPReaderWithClient creates a reader that issues requests through
// the provided client
func NewHTTPReaderWithClient(
	client *http.Client, logger *slog.Logger,
) *HTTPReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPReader{
		httpClient: client,
		logger:     logger,
	}
}

// ReadURL performs a GET request and returns the response body. Any status
// outside the 2xx range is an error
func (r *HTTPReader) ReadURL(
	ctx context.Context, url string,
) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/yaml, application/json, */*")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := r.httpClient.Do(req)
	dur := time.Since(start)
	if err != nil {
		r.logger.Debug("HTTP read failed",
			log.URL(url),
			slog.Duration("duration", dur),
			log.Error(err))
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		r.logger.Debug("HTTP read returned error status",
			log.URL(url),
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(body)))
		return nil, fmt.Errorf("%w: HTTP %d from %s",
			ErrHTTPStatus, resp.StatusCode, url)
	}
	return body, nil
}
