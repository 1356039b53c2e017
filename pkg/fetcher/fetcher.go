package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/docvault/ingest-backend/config"

	errorsx "github.com/instill-ai/x/errors"
)

// DefaultMaxBufferBytes is the size above which fetched objects are spooled
// to a temporary file instead of held in memory.
const DefaultMaxBufferBytes = 10 * 1024 * 1024

// Object is a fetched document. Content lives either in memory or in a
// temporary file depending on size. Callers must Close the object to release
// the temporary file.
type Object struct {
	// ContentType is the Content-Type reported by the origin, if any.
	ContentType string
	// Size is the content length in bytes.
	Size int64
	// FetchedURL is the URL the content was actually fetched from, which
	// may be an alternate of the requested URL.
	FetchedURL string

	data    []byte
	tmpPath string
}

// Bytes returns the full object content. Spooled objects are read back from
// their temporary file.
func (o *Object) Bytes() ([]byte, error) {
	if o.tmpPath == "" {
		return o.data, nil
	}
	data, err := os.ReadFile(o.tmpPath)
	if err != nil {
		return nil, fmt.Errorf("reading spooled object: %w", err)
	}
	return data, nil
}

// Close releases the object's temporary file, if any. It is safe to call
// more than once.
func (o *Object) Close() error {
	if o.tmpPath == "" {
		return nil
	}
	path := o.tmpPath
	o.tmpPath = ""
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing spooled object: %w", err)
	}
	return nil
}

// Fetcher downloads documents over HTTP. Failed fetches are retried once
// against CDN alternate URLs before giving up.
type Fetcher struct {
	client         *http.Client
	maxBufferBytes int64
	log            *zap.Logger
}

// NewFetcher creates a Fetcher from config. Non-positive maxBufferBytes
// uses the default.
func NewFetcher(cfg config.FetchConfig, log *zap.Logger) *Fetcher {
	maxBufferBytes := cfg.MaxBufferBytes
	if maxBufferBytes <= 0 {
		maxBufferBytes = DefaultMaxBufferBytes
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Fetcher{
		client:         &http.Client{Timeout: timeout},
		maxBufferBytes: maxBufferBytes,
		log:            log,
	}
}

// Fetch downloads the document at url. The returned Object must be closed
// by the caller. When the origin rejects the URL, the CDN alternates
// (image/raw delivery path swap, https upgrade) are each tried once.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Object, error) {
	candidates := append([]string{url}, AlternateURLs(url)...)

	var lastErr error
	for i, candidate := range candidates {
		if i > 0 {
			f.log.Info("Retrying fetch with alternate URL",
				zap.String("url", url),
				zap.String("alternateURL", candidate))
		}

		obj, err := f.fetchOne(ctx, candidate)
		if err == nil {
			return obj, nil
		}
		lastErr = err

		// Context errors are not recoverable by switching URLs
		if ctx.Err() != nil {
			break
		}
	}

	return nil, errorsx.AddMessage(
		fmt.Errorf("fetching %s: %w", url, lastErr),
		"Unable to download the document. The file may have been moved or deleted.",
	)
}

func (f *Fetcher) fetchOne(ctx context.Context, url string) (*Object, error) {
	// HEAD probe decides up front whether the body goes to memory or disk.
	// Origins that reject HEAD or omit Content-Length fall back to spooling.
	expectedSize := f.probeSize(ctx, url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	obj := &Object{
		ContentType: resp.Header.Get("Content-Type"),
		FetchedURL:  url,
	}

	useTempFile := expectedSize < 0 || expectedSize > f.maxBufferBytes
	if !useTempFile {
		// Read one byte past the threshold so a lying Content-Length still
		// lands on the temp-file path.
		data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBufferBytes+1))
		if err != nil {
			return nil, fmt.Errorf("reading body: %w", err)
		}
		if int64(len(data)) <= f.maxBufferBytes {
			obj.data = data
			obj.Size = int64(len(data))
			return obj, nil
		}
		return f.spool(obj, io.MultiReader(strings.NewReader(string(data)), resp.Body))
	}

	return f.spool(obj, resp.Body)
}

// spool writes the remaining body to a temporary file. The file is removed
// on any error so a failed fetch never leaks disk.
func (f *Fetcher) spool(obj *Object, body io.Reader) (*Object, error) {
	tmp, err := os.CreateTemp("", "ingest-fetch-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}

	size, err := io.Copy(tmp, body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("spooling body: %w", err)
	}

	obj.tmpPath = tmp.Name()
	obj.Size = size
	return obj, nil
}

// probeSize issues a HEAD request and returns the advertised content length,
// or -1 when it cannot be determined.
func (f *Fetcher) probeSize(ctx context.Context, url string) int64 {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return -1
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return -1
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || resp.ContentLength < 0 {
		return -1
	}
	return resp.ContentLength
}

// AlternateURLs returns the CDN alternates for a document URL, in the order
// they should be tried. Documents uploaded through image pipelines are
// sometimes served under the raw delivery path and vice versa, and legacy
// records may carry plain http URLs.
func AlternateURLs(url string) []string {
	seen := map[string]bool{url: true}
	var alternates []string

	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			alternates = append(alternates, u)
		}
	}

	add(swapDeliveryPath(url))
	if strings.HasPrefix(url, "http://") {
		https := "https://" + strings.TrimPrefix(url, "http://")
		add(https)
		add(swapDeliveryPath(https))
	}

	return alternates
}

func swapDeliveryPath(url string) string {
	switch {
	case strings.Contains(url, "/image/upload/"):
		return strings.Replace(url, "/image/upload/", "/raw/upload/", 1)
	case strings.Contains(url, "/raw/upload/"):
		return strings.Replace(url, "/raw/upload/", "/image/upload/", 1)
	default:
		return ""
	}
}
