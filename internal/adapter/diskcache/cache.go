// Package diskcache decorates scan sources with an advisory on-disk file cache
// and an in-memory listing cache, and provides an offline directory source.
package diskcache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/couchcryptid/storm-radar-etl/internal/domain"
	"github.com/couchcryptid/storm-radar-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Lister lists scan identifiers for a site and UTC date.
type Lister interface {
	ListScans(ctx context.Context, site string, date time.Time) ([]domain.ScanIdentifier, error)
}

// Fetcher returns the raw bytes of a scan.
type Fetcher interface {
	FetchScan(ctx context.Context, id domain.ScanIdentifier) ([]byte, error)
}

// CachedFetcher serves scans from <dir>/<identifier> when present and writes
// fetched scans there. Cache failures are logged and never fail a fetch.
type CachedFetcher struct {
	inner   Fetcher
	dir     string
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewCachedFetcher wraps inner with a disk cache rooted at dir.
func NewCachedFetcher(inner Fetcher, dir string, metrics *observability.Metrics, logger *slog.Logger) *CachedFetcher {
	return &CachedFetcher{inner: inner, dir: dir, metrics: metrics, logger: logger}
}

func (c *CachedFetcher) FetchScan(ctx context.Context, id domain.ScanIdentifier) ([]byte, error) {
	path, ok := c.path(id)
	if !ok {
		return c.inner.FetchScan(ctx, id)
	}

	if data, err := os.ReadFile(path); err == nil {
		c.metrics.CacheLookups.WithLabelValues("disk", "hit").Inc()
		c.logger.Debug("scan served from disk cache", "scan", id)
		return data, nil
	} else if !os.IsNotExist(err) {
		c.logger.Warn("read disk cache failed", "scan", id, "error", err)
	}
	c.metrics.CacheLookups.WithLabelValues("disk", "miss").Inc()

	data, err := c.inner.FetchScan(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(path, data); err != nil {
		c.logger.Warn("write disk cache failed", "scan", id, "error", err)
	}
	return data, nil
}

// path returns the cache file for id, or false when caching is disabled or
// the identifier is not a plain file name.
func (c *CachedFetcher) path(id domain.ScanIdentifier) (string, bool) {
	name := string(id)
	if c.dir == "" || name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", false
	}
	return filepath.Join(c.dir, name), true
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".scan-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

type listingKey struct {
	site string
	date string
}

// CachedLister keeps listings in an LRU. Only dates before the current UTC
// day are cached; today's listing still grows as new volumes arrive.
type CachedLister struct {
	inner   Lister
	cache   *lruCache[listingKey, []domain.ScanIdentifier]
	clock   clockwork.Clock
	metrics *observability.Metrics
}

// NewCachedLister wraps inner with an LRU of at most maxEntries listings.
func NewCachedLister(inner Lister, maxEntries int, clock clockwork.Clock, metrics *observability.Metrics) *CachedLister {
	return &CachedLister{
		inner:   inner,
		cache:   newLRUCache[listingKey, []domain.ScanIdentifier](maxEntries),
		clock:   clock,
		metrics: metrics,
	}
}

func (c *CachedLister) ListScans(ctx context.Context, site string, date time.Time) ([]domain.ScanIdentifier, error) {
	day := date.UTC().Format(time.DateOnly)
	if day >= c.clock.Now().UTC().Format(time.DateOnly) {
		return c.inner.ListScans(ctx, site, date)
	}

	key := listingKey{site: site, date: day}
	if ids, ok := c.cache.get(key); ok {
		c.metrics.CacheLookups.WithLabelValues("listing", "hit").Inc()
		return slices.Clone(ids), nil
	}
	c.metrics.CacheLookups.WithLabelValues("listing", "miss").Inc()

	ids, err := c.inner.ListScans(ctx, site, date)
	if err != nil {
		return nil, err
	}
	// Empty listings are not cached so a late upload can still be found.
	if len(ids) > 0 {
		c.cache.put(key, slices.Clone(ids))
	}
	return ids, nil
}

// DirSource lists and reads scans stored as <dir>/<identifier>.
type DirSource struct {
	dir string
}

// NewDirSource serves scans from dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (d *DirSource) ListScans(_ context.Context, site string, date time.Time) ([]domain.ScanIdentifier, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("list scan dir: %w", err)
	}
	prefix := site + date.UTC().Format("20060102")

	var ids []domain.ScanIdentifier
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || strings.HasSuffix(name, "_MDM") {
			continue
		}
		ids = append(ids, domain.ScanIdentifier(name))
	}
	return ids, nil
}

func (d *DirSource) FetchScan(_ context.Context, id domain.ScanIdentifier) ([]byte, error) {
	name := string(id)
	if name != filepath.Base(name) {
		return nil, fmt.Errorf("%w: %q", domain.ErrMalformedIdentifier, id)
	}
	data, err := os.ReadFile(filepath.Join(d.dir, name))
	if err != nil {
		return nil, fmt.Errorf("read scan: %w", err)
	}
	return data, nil
}
