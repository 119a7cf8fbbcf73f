package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const fetchAttempts = 3

var (
	// ErrPayloadTooLarge is returned when a remote image exceeds the size limit
	ErrPayloadTooLarge = errors.New("image exceeds size limit")

	// ErrEmptyBody is returned when a remote source answers with no bytes
	ErrEmptyBody = errors.New("empty response body")
)

// StatusError reports a non-200 answer from a remote image host
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	if e.Code >= 500 {
		return fmt.Sprintf("server error: status code %d", e.Code)
	}
	return fmt.Sprintf("client error: status code %d", e.Code)
}

// Retryable reports whether another attempt may succeed
func (e *StatusError) Retryable() bool {
	return e.Code >= 500
}

// ImageFetcher downloads encoded image bytes. Decoding is left to the analyzer
// so that metadata and compression artefacts survive untouched.
type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL string) ([]byte, error)
}

// HTTPImageFetcher implements ImageFetcher with connection reuse and retries
type HTTPImageFetcher struct {
	client   *http.Client
	maxBytes int64
	backoff  time.Duration
}

// NewHTTPImageFetcher creates an HTTP image fetcher. A timeout or size limit of
// zero falls back to 30s and 10MB.
func NewHTTPImageFetcher(timeout time.Duration, maxBytes int64) *HTTPImageFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,

		// Connection pooling sized for single image downloads
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}

	return &HTTPImageFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,

			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		maxBytes: maxBytes,
		backoff:  time.Second,
	}
}

// FetchImage downloads the body of imageURL. Network failures and 5xx answers
// are retried up to three times with linear backoff; 4xx answers are final.
func (h *HTTPImageFetcher) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	req.Header.Set("Accept", "image/jpeg, image/png, image/webp, image/gif, image/bmp, image/tiff, */*")
	req.Header.Set("User-Agent", "Go-Image-Forensics/1.0")

	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * h.backoff):
			}
		}

		data, err := h.do(req)
		if err == nil {
			return data, nil
		}
		lastErr = err

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			break
		}
		if errors.Is(err, ErrPayloadTooLarge) || ctx.Err() != nil {
			break
		}
	}

	return nil, fmt.Errorf("failed to fetch image after %d attempts: %w", fetchAttempts, lastErr)
}

func (h *HTTPImageFetcher) do(req *http.Request) ([]byte, error) {
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode}
	}

	if resp.ContentLength > h.maxBytes {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLarge, resp.ContentLength, h.maxBytes)
	}
	return readLimited(resp.Body, h.maxBytes)
}

// readLimited reads at most maxBytes and reports ErrPayloadTooLarge past that
func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrPayloadTooLarge, maxBytes)
	}
	if len(data) == 0 {
		return nil, ErrEmptyBody
	}
	return data, nil
}
