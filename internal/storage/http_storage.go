package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/plantcare-ai/leaf-inspector-go/pkg/models"
)

const (
	fetchAttempts  = 3
	defaultBackoff = time.Second
)

// ErrTooLarge is returned when a remote image exceeds the byte limit.
var ErrTooLarge = errors.New("image exceeds size limit")

// ImageFetcher downloads encoded image bytes from a URL.
type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL string) ([]byte, *models.ImageMetadata, error)
}

// HTTPImageFetcher implements ImageFetcher with bounded retries. Network
// errors and 5xx responses are retried with linear backoff; 4xx responses
// fail immediately.
type HTTPImageFetcher struct {
	client   *http.Client
	maxBytes int64
	backoff  time.Duration
}

// NewHTTPImageFetcher creates an HTTP image fetcher. Bodies larger than
// maxBytes are rejected.
func NewHTTPImageFetcher(timeout time.Duration, maxBytes int64) *HTTPImageFetcher {
	transport := &http.Transport{
		// A leaf photo is one request per analysis; keep the pool small
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
		backoff:  defaultBackoff,
	}
}

// FetchImage downloads imageURL and returns its bytes
func (h *HTTPImageFetcher) FetchImage(ctx context.Context, imageURL string) ([]byte, *models.ImageMetadata, error) {
	var lastErr error

	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * h.backoff):
			}
		}

		body, meta, retry, err := h.fetchOnce(ctx, imageURL)
		if err == nil {
			return body, meta, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}

	return nil, nil, fmt.Errorf("failed to fetch image after %d attempts: %w", fetchAttempts, lastErr)
}

// fetchOnce performs a single GET. retry reports whether the failure is
// transient.
func (h *HTTPImageFetcher) fetchOnce(ctx context.Context, imageURL string) (body []byte, meta *models.ImageMetadata, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, nil, false, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, image/webp, image/gif, image/bmp, */*")
	req.Header.Set("User-Agent", "Leaf-Inspector/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, nil, true, fmt.Errorf("server error: status code %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, nil, false, fmt.Errorf("client error: status code %d", resp.StatusCode)
	}

	if h.maxBytes > 0 && resp.ContentLength > h.maxBytes {
		return nil, nil, false, ErrTooLarge
	}
	body, err = readLimited(resp.Body, h.maxBytes)
	if err != nil {
		return nil, nil, !errors.Is(err, ErrTooLarge), err
	}

	return body, &models.ImageMetadata{
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: int64(len(body)),
		Source:        imageURL,
	}, false, nil
}

// readLimited reads r fully, failing with ErrTooLarge past maxBytes.
// maxBytes <= 0 means no limit.
func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > maxBytes {
		return nil, ErrTooLarge
	}
	return body, nil
}
