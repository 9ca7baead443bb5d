package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// minimal 1x1 PNG
var pngData = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
	0x89, 0x00, 0x00, 0x00, 0x0A, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9C, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE,
	0x42, 0x60, 0x82,
}

func newTestFetcher(maxBytes int64) *HTTPImageFetcher {
	f := NewHTTPImageFetcher(5*time.Second, maxBytes)
	f.backoff = 10 * time.Millisecond
	return f
}

func TestHTTPImageFetcher_RetryLogic(t *testing.T) {
	tests := []struct {
		name          string
		responses     []int // Status codes to return in sequence
		expectRetries int   // Expected number of requests
		expectError   bool
		errorContains string
	}{
		{
			name:          "Success on first attempt",
			responses:     []int{200},
			expectRetries: 1,
		},
		{
			name:          "Success on second attempt after 5xx",
			responses:     []int{500, 200},
			expectRetries: 2,
		},
		{
			name:          "4xx client error - no retry",
			responses:     []int{404},
			expectRetries: 1,
			expectError:   true,
			errorContains: "client error: status code 404",
		},
		{
			name:          "4xx after 5xx - retry until 4xx then stop",
			responses:     []int{500, 404},
			expectRetries: 2,
			expectError:   true,
			errorContains: "client error: status code 404",
		},
		{
			name:          "All 5xx errors - retry all attempts",
			responses:     []int{500, 502, 503},
			expectRetries: 3,
			expectError:   true,
			errorContains: "server error: status code 503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requestCount int32

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := int(atomic.AddInt32(&requestCount, 1)) - 1
				if n >= len(tt.responses) {
					w.WriteHeader(500)
					return
				}
				if tt.responses[n] == 200 {
					w.Header().Set("Content-Type", "image/png")
					_, _ = w.Write(pngData)
					return
				}
				w.WriteHeader(tt.responses[n])
				_, _ = w.Write([]byte(fmt.Sprintf("Error %d", tt.responses[n])))
			}))
			defer server.Close()

			body, meta, err := newTestFetcher(0).FetchImage(context.Background(), server.URL)

			if got := int(atomic.LoadInt32(&requestCount)); got != tt.expectRetries {
				t.Errorf("Expected %d requests, got %d", tt.expectRetries, got)
			}

			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error, but got none")
				}
				if !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("Expected error to contain '%s', got: %s", tt.errorContains, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got: %s", err.Error())
			}
			if !bytes.Equal(body, pngData) {
				t.Error("Expected body to be returned unchanged")
			}
			if meta.ContentType != "image/png" || meta.ContentLength != int64(len(pngData)) || meta.Source != server.URL {
				t.Errorf("Unexpected metadata: %+v", meta)
			}
		})
	}
}

func TestHTTPImageFetcher_NetworkError_Retry(t *testing.T) {
	var requestCount int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requestCount, 1) < 3 {
			// Simulate network error by closing connection
			if hj, ok := w.(http.Hijacker); ok {
				conn, _, _ := hj.Hijack()
				conn.Close()
			}
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngData)
	}))
	defer server.Close()

	start := time.Now()
	_, _, err := newTestFetcher(0).FetchImage(context.Background(), server.URL)
	duration := time.Since(start)

	if err != nil {
		t.Errorf("Expected success after retries, got error: %s", err.Error())
	}
	if got := atomic.LoadInt32(&requestCount); got != 3 {
		t.Errorf("Expected 3 requests, got %d", got)
	}
	// linear backoff: 10ms + 20ms
	if duration < 30*time.Millisecond {
		t.Errorf("Expected backoff between attempts, took %v", duration)
	}
}

func TestHTTPImageFetcher_SizeLimit(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		_, _ = w.Write(pngData)
	}))
	defer server.Close()

	_, _, err := newTestFetcher(16).FetchImage(context.Background(), server.URL)
	if err == nil || !strings.Contains(err.Error(), ErrTooLarge.Error()) {
		t.Fatalf("Expected size limit error, got %v", err)
	}
	if got := atomic.LoadInt32(&requestCount); got != 1 {
		t.Errorf("Expected oversize bodies not to be retried, got %d requests", got)
	}

	body, _, err := newTestFetcher(int64(len(pngData))).FetchImage(context.Background(), server.URL)
	if err != nil || len(body) != len(pngData) {
		t.Errorf("Expected body at exactly the limit to pass, got %d bytes, err %v", len(body), err)
	}
}

func TestHTTPImageFetcher_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f := newTestFetcher(0)
	f.backoff = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, _, err := f.FetchImage(ctx, server.URL); err == nil {
		t.Fatal("Expected cancellation to stop the retry loop")
	}
}

func TestParseBlobURL(t *testing.T) {
	tests := []struct {
		url       string
		container string
		blob      string
		wantErr   bool
	}{
		{"azblob://leaves/2026/tomato.jpg", "leaves", "2026/tomato.jpg", false},
		{"https://acct.blob.core.windows.net/leaves/tomato.png", "leaves", "tomato.png", false},
		{"azblob://leaves", "", "", true},
		{"https://acct.blob.core.windows.net/", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			container, blob, err := ParseBlobURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBlobURL error = %v, wantErr %v", err, tt.wantErr)
			}
			if container != tt.container || blob != tt.blob {
				t.Errorf("Got %q/%q, want %q/%q", container, blob, tt.container, tt.blob)
			}
		})
	}
}

func TestIsBlobURL(t *testing.T) {
	if !IsBlobURL("azblob://c/b.jpg") || !IsBlobURL("https://acct.blob.core.windows.net/c/b.jpg") {
		t.Error("Expected blob URLs to be recognised")
	}
	if IsBlobURL("https://example.com/leaf.jpg") {
		t.Error("Expected plain HTTP URL not to be a blob URL")
	}
}
