// Package noaa lists and fetches NEXRAD Level II volumes from the public
// NOAA archive bucket over the S3 API.
package noaa

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/couchcryptid/storm-radar-etl/internal/config"
	"github.com/couchcryptid/storm-radar-etl/internal/domain"
	"github.com/couchcryptid/storm-radar-etl/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// metadataSuffix marks per-volume metadata objects that are not scans.
const metadataSuffix = "_MDM"

// Client reads the archive bucket anonymously.
// It implements pipeline.ScanLister and pipeline.ScanFetcher.
type Client struct {
	client  *minio.Client
	bucket  string
	timeout time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewClient creates an unsigned S3 client for the configured endpoint and bucket.
// The clock times storage requests.
func NewClient(cfg *config.Config, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) (*Client, error) {
	mc, err := minio.New(cfg.RadarEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("", "", ""),
		Secure: cfg.RadarUseSSL,
		Region: cfg.RadarRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &Client{
		client:  mc,
		bucket:  cfg.RadarBucket,
		timeout: cfg.FetchTimeout,
		clock:   clock,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// DayPrefix returns the bucket prefix holding all volumes of site on date.
func DayPrefix(site string, date time.Time) string {
	return date.UTC().Format("2006/01/02") + "/" + site + "/"
}

// ObjectKey derives the bucket key of a scan from its identifier.
func ObjectKey(id domain.ScanIdentifier) (string, error) {
	site, err := id.Site()
	if err != nil {
		return "", err
	}
	date, err := id.Date()
	if err != nil {
		return "", err
	}
	return DayPrefix(site, date) + string(id), nil
}

// ListScans returns the identifiers of every volume of site on date, in bucket order.
func (c *Client) ListScans(ctx context.Context, site string, date time.Time) ([]domain.ScanIdentifier, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := c.clock.Now()
	prefix := DayPrefix(site, date)

	var ids []domain.ScanIdentifier
	for obj := range c.client.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			c.observe("list", start, obj.Err)
			return nil, fmt.Errorf("list %s: %w", prefix, obj.Err)
		}
		name := path.Base(obj.Key)
		if strings.HasSuffix(name, metadataSuffix) {
			continue
		}
		ids = append(ids, domain.ScanIdentifier(name))
	}

	c.observe("list", start, nil)
	c.logger.Debug("scans listed", "prefix", prefix, "count", len(ids))
	return ids, nil
}

// FetchScan downloads the raw volume bytes of id.
func (c *Client) FetchScan(ctx context.Context, id domain.ScanIdentifier) ([]byte, error) {
	key, err := ObjectKey(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := c.clock.Now()
	obj, err := c.client.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		c.observe("fetch", start, err)
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	c.observe("fetch", start, err)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	c.logger.Debug("scan fetched", "key", key, "bytes", len(data))
	return data, nil
}

func (c *Client) observe(op string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.metrics.StorageRequests.WithLabelValues(op, outcome).Inc()
	c.metrics.StorageDuration.WithLabelValues(op).Observe(c.clock.Since(start).Seconds())
}
