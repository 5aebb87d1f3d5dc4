package config

import (
	"errors"
	"math"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Scan sources.
const (
	SourceS3  = "s3"
	SourceDir = "dir"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Scan source configuration.
	ScanSource       string
	ScanDir          string
	RadarBucket      string
	RadarEndpoint    string
	RadarRegion      string
	RadarUseSSL      bool
	FetchTimeout     time.Duration
	CacheDir         string
	ListingCacheSize int

	// Processing defaults applied to requests that leave them unset.
	RadarSite          string
	InclusionThreshold float64
	SamplingStride     int
	IncludeFolded      bool
	RenderRatio        float64
	ClusterEnabled     bool
	ClusterEps         float64
	ClusterMinPoints   int
	RunOnStart         bool

	// Result events.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("FETCH_TIMEOUT", "60s"))
	if err != nil || fetchTimeout <= 0 {
		return nil, errors.New("invalid FETCH_TIMEOUT")
	}

	threshold, err := parseFloat("INCLUSION_THRESHOLD", "0.5")
	if err != nil {
		return nil, err
	}
	renderRatio, err := parseFloat("RENDER_RATIO", "0.00001")
	if err != nil {
		return nil, err
	}
	if renderRatio <= 0 {
		return nil, errors.New("RENDER_RATIO must be positive")
	}
	eps, err := parseFloat("CLUSTER_EPS", "0.05")
	if err != nil {
		return nil, err
	}
	if eps <= 0 {
		return nil, errors.New("CLUSTER_EPS must be positive")
	}

	stride, err := parsePositiveInt("SAMPLING_STRIDE", 1)
	if err != nil {
		return nil, err
	}
	minPoints, err := parsePositiveInt("CLUSTER_MIN_POINTS", 5)
	if err != nil {
		return nil, err
	}
	listingCacheSize, err := parsePositiveInt("LISTING_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		ScanSource:       sharedcfg.EnvOrDefault("SCAN_SOURCE", SourceS3),
		ScanDir:          sharedcfg.EnvOrDefault("SCAN_DIR", "data/scans"),
		RadarBucket:      sharedcfg.EnvOrDefault("RADAR_BUCKET", "noaa-nexrad-level2"),
		RadarEndpoint:    sharedcfg.EnvOrDefault("RADAR_ENDPOINT", "s3.amazonaws.com"),
		RadarRegion:      sharedcfg.EnvOrDefault("RADAR_REGION", "us-east-1"),
		RadarUseSSL:      parseBool("RADAR_USE_SSL", true),
		FetchTimeout:     fetchTimeout,
		CacheDir:         os.Getenv("CACHE_DIR"),
		ListingCacheSize: listingCacheSize,

		RadarSite:          sharedcfg.EnvOrDefault("RADAR_SITE", "KDMX"),
		InclusionThreshold: threshold,
		SamplingStride:     stride,
		IncludeFolded:      parseBool("INCLUDE_FOLDED", false),
		RenderRatio:        renderRatio,
		ClusterEnabled:     parseBool("CLUSTER_ENABLED", false),
		ClusterEps:         eps,
		ClusterMinPoints:   minPoints,
		RunOnStart:         parseBool("RUN_ON_START", false),

		KafkaEnabled: parseBool("KAFKA_ENABLED", false),
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "radar-scan-results"),
	}
	if _, set := os.LookupEnv("CACHE_DIR"); !set {
		cfg.CacheDir = "data/cache"
	}

	switch cfg.ScanSource {
	case SourceS3:
		if cfg.RadarBucket == "" {
			return nil, errors.New("RADAR_BUCKET is required")
		}
		if cfg.RadarEndpoint == "" {
			return nil, errors.New("RADAR_ENDPOINT is required")
		}
	case SourceDir:
		if cfg.ScanDir == "" {
			return nil, errors.New("SCAN_DIR is required when SCAN_SOURCE is dir")
		}
	default:
		return nil, errors.New("SCAN_SOURCE must be s3 or dir")
	}
	if len(cfg.RadarSite) != 4 {
		return nil, errors.New("RADAR_SITE must be a 4-letter site code")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaTopic == "" {
			return nil, errors.New("KAFKA_TOPIC is required")
		}
	}

	return cfg, nil
}

func parseFloat(key, def string) (float64, error) {
	v, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(key, def), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("invalid " + key)
	}
	return v, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errors.New(key + " must be a positive integer")
	}
	return n, nil
}

func parseBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true"
	}
	return def
}
