// Package config resolves service settings from flags and environment
// variables. Flags win over environment variables, environment variables win
// over defaults, and out-of-range values are clamped rather than rejected.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Environment variable names
const (
	EnvAddr            = "GRABTUBE_ADDR"
	EnvOutputDir       = "GRABTUBE_OUTPUT_DIR"
	EnvStreamTimeout   = "GRABTUBE_STREAM_TIMEOUT"
	EnvJobTTL          = "GRABTUBE_JOB_TTL"
	EnvStaleFileAge    = "GRABTUBE_STALE_FILE_AGE"
	EnvCleanupInterval = "GRABTUBE_CLEANUP_INTERVAL"
	EnvAllowedOrigins  = "GRABTUBE_ALLOWED_ORIGINS"
)

// Default values
const (
	DefaultAddr            = ":8080"
	DefaultOutputDir       = "downloads"
	DefaultStreamTimeout   = 30 * time.Minute
	DefaultJobTTL          = time.Hour
	DefaultStaleFileAge    = time.Hour
	DefaultCleanupInterval = 10 * time.Minute
	DefaultAllowedOrigins  = "*"
)

// Clamping bounds for duration settings
const (
	MinStreamTimeout = time.Minute
	MaxStreamTimeout = 6 * time.Hour

	MinJobTTL = time.Minute
	MaxJobTTL = 24 * time.Hour

	MinStaleFileAge = time.Minute
	MaxStaleFileAge = 7 * 24 * time.Hour

	MinCleanupInterval = 10 * time.Second
	MaxCleanupInterval = time.Hour
)

// Settings holds the resolved service configuration.
type Settings struct {
	Addr            string
	OutputDir       string
	StreamTimeout   time.Duration
	JobTTL          time.Duration
	StaleFileAge    time.Duration
	CleanupInterval time.Duration
	AllowedOrigins  string
}

// Load resolves settings from the given argument list. Pass os.Args[1:] in
// production.
func Load(args []string) (*Settings, error) {
	fs := flag.NewFlagSet("grabtube", flag.ContinueOnError)

	addr := fs.String("addr", envString(EnvAddr, DefaultAddr), "HTTP listen address")
	outputDir := fs.String("output-dir", envString(EnvOutputDir, DefaultOutputDir), "Directory for finished downloads")
	streamTimeout := fs.Duration("stream-timeout", envDuration(EnvStreamTimeout, DefaultStreamTimeout), "Timeout for a single stream retrieval")
	jobTTL := fs.Duration("job-ttl", envDuration(EnvJobTTL, DefaultJobTTL), "How long finished jobs stay queryable")
	staleFileAge := fs.Duration("stale-file-age", envDuration(EnvStaleFileAge, DefaultStaleFileAge), "Age after which finished files are deleted")
	cleanupInterval := fs.Duration("cleanup-interval", envDuration(EnvCleanupInterval, DefaultCleanupInterval), "How often janitors run")
	allowedOrigins := fs.String("allowed-origins", envString(EnvAllowedOrigins, DefaultAllowedOrigins), "Comma-separated CORS origins, * for any")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	s := &Settings{
		Addr:            *addr,
		OutputDir:       *outputDir,
		StreamTimeout:   clampDuration(*streamTimeout, MinStreamTimeout, MaxStreamTimeout),
		JobTTL:          clampDuration(*jobTTL, MinJobTTL, MaxJobTTL),
		StaleFileAge:    clampDuration(*staleFileAge, MinStaleFileAge, MaxStaleFileAge),
		CleanupInterval: clampDuration(*cleanupInterval, MinCleanupInterval, MaxCleanupInterval),
		AllowedOrigins:  *allowedOrigins,
	}
	if s.Addr == "" {
		s.Addr = DefaultAddr
	}
	if s.OutputDir == "" {
		s.OutputDir = DefaultOutputDir
	}
	return s, nil
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	// Plain integers are treated as seconds.
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}

func clampDuration(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}
