// SPDX-License-Identifier: MIT
package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"visualizer/internal/log"
)

const (
	coverPrefix  = "data:image/png;base64,"
	maxCoverSize = 8 << 20
)

// CoverFetcher turns an art URL into a data URI the UI can display.
type CoverFetcher struct {
	client   *http.Client
	readFile func(string) ([]byte, error)
}

// NewCoverFetcher returns a fetcher whose HTTP requests time out after
// timeout.
func NewCoverFetcher(timeout time.Duration) *CoverFetcher {
	return &CoverFetcher{
		client:   &http.Client{Timeout: timeout},
		readFile: os.ReadFile,
	}
}

// Fetch returns the encoded cover or "" when it cannot be read.
func (f *CoverFetcher) Fetch(ctx context.Context, artURL string) string {
	if artURL == "" {
		return ""
	}
	data, err := f.fetch(ctx, artURL)
	if err != nil {
		log.Debugf("Cover unavailable: %v", err)
		return ""
	}
	return coverPrefix + base64.StdEncoding.EncodeToString(data)
}

func (f *CoverFetcher) fetch(ctx context.Context, artURL string) ([]byte, error) {
	u, err := url.Parse(artURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	switch u.Scheme {
	case "file":
		data, err := f.readFile(u.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFetch, err)
		}
		return data, nil
	case "http", "https":
		return f.get(ctx, artURL)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrFetch, u.Scheme)
	}
}

func (f *CoverFetcher) get(ctx context.Context, artURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCoverSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return data, nil
}
