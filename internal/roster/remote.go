package roster

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/certforge/certforge/internal/atomicfile"
)

// httpClient is a lazily-initialized retryable client shared by all remote
// stores.
var (
	httpClient     *retryablehttp.Client
	httpClientOnce sync.Once
)

func getHTTPClient() *retryablehttp.Client {
	httpClientOnce.Do(func() {
		httpClient = retryablehttp.NewClient()
		httpClient.RetryMax = 2
		httpClient.HTTPClient.Timeout = 15 * time.Second
		httpClient.Logger = nil // suppress retryablehttp's default logging
	})
	return httpClient
}

// RemoteStore serves lookups from a CSV export published at a URL (for
// example a spreadsheet's "publish to web" link). Fetched rows are kept in
// memory for TTL and mirrored to an on-disk cache file; when the remote is
// unreachable the cache file is the fallback, so a flaky connection never
// takes lookups down with it.
type RemoteStore struct {
	url       string
	cachePath string
	ttl       time.Duration

	mu        sync.Mutex
	records   []Record
	fetchedAt time.Time
}

func NewRemoteStore(url, cachePath string, ttl time.Duration) *RemoteStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RemoteStore{url: url, cachePath: cachePath, ttl: ttl}
}

// load returns the cached rows, refreshing from the remote when the TTL has
// expired. Refresh failures fall back to the on-disk cache; only when both
// fail is ErrUnavailable returned.
func (s *RemoteStore) load(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.records != nil && time.Since(s.fetchedAt) < s.ttl {
		return s.records, nil
	}

	body, err := s.fetch(ctx)
	if err == nil {
		records, perr := ParseCSV(bytes.NewReader(body))
		if perr == nil {
			if cerr := atomicfile.WriteFile(s.cachePath, body, 0o644); cerr != nil {
				slog.Warn("failed to write roster cache", "path", s.cachePath, "error", cerr)
			}
			s.records = records
			s.fetchedAt = time.Now()
			return records, nil
		}
		err = perr
	}
	slog.Warn("remote roster fetch failed, trying cache", "url", s.url, "error", err)

	cached, cerr := os.ReadFile(s.cachePath)
	if cerr != nil {
		return nil, fmt.Errorf("%w: remote: %v; cache: %v", ErrUnavailable, err, cerr)
	}
	records, perr := ParseCSV(bytes.NewReader(cached))
	if perr != nil {
		return nil, fmt.Errorf("%w: remote: %v; cache: %v", ErrUnavailable, err, perr)
	}
	// Serve stale data but keep retrying the remote on the next lookup.
	s.records = records
	s.fetchedAt = time.Time{}
	return records, nil
}

func (s *RemoteStore) fetch(ctx context.Context) ([]byte, error) {
	const maxResponseBytes = 10 << 20 // 10 MiB

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := getHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", s.url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", s.url, err)
	}
	if int64(len(body)) > maxResponseBytes {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", s.url, maxResponseBytes)
	}
	return body, nil
}

func (s *RemoteStore) Lookup(ctx context.Context, name, id string) (Record, error) {
	records, err := s.load(ctx)
	if err != nil {
		return Record{}, err
	}
	return lookup(records, name, id)
}

func (s *RemoteStore) All(ctx context.Context) ([]Record, error) {
	return s.load(ctx)
}
