package vobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Fetcher opens release files by slash-separated relative path.
type Fetcher interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	String() string
}

// FileFetcher reads a release mirrored onto the local filesystem.
type FileFetcher struct {
	root string
}

// NewFileFetcher creates a fetcher rooted at dir.
func NewFileFetcher(dir string) *FileFetcher {
	return &FileFetcher{root: filepath.Clean(os.ExpandEnv(dir))}
}

func (f *FileFetcher) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := filepath.Join(f.root, filepath.FromSlash(name))
	fh, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
		}
		return nil, err
	}
	return fh, nil
}

func (f *FileFetcher) String() string { return "file://" + filepath.ToSlash(f.root) }

// HTTPFetcher reads a release published over HTTP(S), e.g. a public bucket URL.
type HTTPFetcher struct {
	base   *url.URL
	client *http.Client
}

// NewHTTPFetcher creates a fetcher for files below baseURL.
func NewHTTPFetcher(baseURL string, timeout time.Duration) (*HTTPFetcher, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", baseURL)
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPFetcher{
		base:   u,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// SetClient replaces the HTTP client.
func (f *HTTPFetcher) SetClient(c *http.Client) { f.client = c }

func (f *HTTPFetcher) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	u := *f.base
	u.Path = path.Join(u.Path, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u.String(), err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden:
		// Public buckets answer 403 for missing objects.
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %w", u.String(), ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: unexpected status %s", u.String(), resp.Status)
	}
	return resp.Body, nil
}

func (f *HTTPFetcher) String() string { return f.base.String() }
