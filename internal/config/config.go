package config

import (
	"fmt"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"go-image-forensics/internal/analyzer"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	AnalysisTimeout    time.Duration
	MaxRequestBodySize int64
	LogLevel           string

	// MaxConcurrentAnalyses bounds analyses in flight; each holds a few
	// float64 copies of the pixel grid
	MaxConcurrentAnalyses int

	// CORSAllowedOrigins lists browser origins allowed to call the API; "*"
	// admits any origin and an empty list disables CORS handling
	CORSAllowedOrigins []string

	// Remote image sources
	AllowedImageHosts   []string
	AzureStorageAccount string
	AzureStorageKey     string

	// Scoring policy, FORENSICS_* overrides applied
	Analysis analyzer.AnalysisOptions
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// BlobStorageEnabled reports whether azblob:// references can be served
func (c *Config) BlobStorageEnabled() bool {
	return c.AzureStorageAccount != "" && c.AzureStorageKey != ""
}

func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		ImageFetchTimeout:  parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", 15*time.Second),
		AnalysisTimeout:    parseDurationOrDefault("ANALYSIS_TIMEOUT", 20*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 10*1024*1024), // 10MB
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),

		MaxConcurrentAnalyses: int(parseIntOrDefault("MAX_CONCURRENT_ANALYSES", int64(runtime.NumCPU()))),
		CORSAllowedOrigins:    parseCORSOrigins("CORS_ALLOWED_ORIGINS"),

		AllowedImageHosts:   parseListOrDefault("IMAGE_ALLOWED_HOSTS", nil),
		AzureStorageAccount: strings.TrimSpace(os.Getenv("AZURE_STORAGE_ACCOUNT")),
		AzureStorageKey:     strings.TrimSpace(os.Getenv("AZURE_STORAGE_KEY")),

		Analysis: AnalysisOptionsFromEnv(analyzer.DefaultOptions()),
	}

	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(cfg.Port))
	if err != nil || p < 1 || p > 65535 {
		return nil, fmt.Errorf("invalid PORT: %q", cfg.Port)
	}
	if cfg.MaxRequestBodySize <= 0 {
		return nil, fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", cfg.MaxRequestBodySize)
	}
	if cfg.RequestTimeout <= 0 || cfg.ImageFetchTimeout <= 0 || cfg.AnalysisTimeout <= 0 {
		return nil, fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, analysis=%s)",
			cfg.RequestTimeout, cfg.ImageFetchTimeout, cfg.AnalysisTimeout)
	}
	if cfg.MaxConcurrentAnalyses <= 0 {
		return nil, fmt.Errorf("MAX_CONCURRENT_ANALYSES must be > 0 (got %d)", cfg.MaxConcurrentAnalyses)
	}
	for _, origin := range cfg.CORSAllowedOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return nil, fmt.Errorf("invalid CORS_ALLOWED_ORIGINS entry %q: must be * or start with http:// or https://", origin)
		}
	}
	if (cfg.AzureStorageAccount == "") != (cfg.AzureStorageKey == "") {
		return nil, fmt.Errorf("AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY must be set together")
	}
	if err := cfg.Analysis.Validate(); err != nil {
		return nil, fmt.Errorf("invalid FORENSICS_* settings: %w", err)
	}
	return cfg, nil
}

// AnalysisOptionsFromEnv applies FORENSICS_* overrides on top of base
func AnalysisOptionsFromEnv(base analyzer.AnalysisOptions) analyzer.AnalysisOptions {
	opts := base

	opts.RecompressionQuality = int(parseIntOrDefault("FORENSICS_ELA_QUALITY", int64(opts.RecompressionQuality)))
	opts.ELAWindowSize = int(parseIntOrDefault("FORENSICS_ELA_WINDOW", int64(opts.ELAWindowSize)))
	opts.ELAWindowStride = int(parseIntOrDefault("FORENSICS_ELA_STRIDE", int64(opts.ELAWindowStride)))
	opts.ELANoiseFloor = parseFloatOrDefault("FORENSICS_ELA_NOISE_FLOOR", opts.ELANoiseFloor)
	opts.ELAHighEdit = parseFloatOrDefault("FORENSICS_ELA_HIGH_EDIT", opts.ELAHighEdit)
	opts.ELALowThreshold = parseFloatOrDefault("FORENSICS_ELA_LOW_THRESHOLD", opts.ELALowThreshold)

	opts.TextureLowThreshold = parseFloatOrDefault("FORENSICS_TEXTURE_LOW_THRESHOLD", opts.TextureLowThreshold)
	opts.TextureSmoothVariance = parseFloatOrDefault("FORENSICS_TEXTURE_SMOOTH_VARIANCE", opts.TextureSmoothVariance)
	opts.TextureDetailedVariance = parseFloatOrDefault("FORENSICS_TEXTURE_DETAILED_VARIANCE", opts.TextureDetailedVariance)

	opts.CorrelationThreshold = parseFloatOrDefault("FORENSICS_CORRELATION_THRESHOLD", opts.CorrelationThreshold)
	opts.SuspiciousSoftware = parseListOrDefault("FORENSICS_SUSPICIOUS_SOFTWARE", opts.SuspiciousSoftware)

	opts.WeightMetadata = parseFloatOrDefault("FORENSICS_WEIGHT_METADATA", opts.WeightMetadata)
	opts.WeightELA = parseFloatOrDefault("FORENSICS_WEIGHT_ELA", opts.WeightELA)
	opts.WeightTexture = parseFloatOrDefault("FORENSICS_WEIGHT_TEXTURE", opts.WeightTexture)
	opts.WeightCorrelation = parseFloatOrDefault("FORENSICS_WEIGHT_CORRELATION", opts.WeightCorrelation)
	opts.CompoundBonus = parseFloatOrDefault("FORENSICS_COMPOUND_BONUS", opts.CompoundBonus)
	opts.ReviewCutPoint = parseFloatOrDefault("FORENSICS_REVIEW_CUT_POINT", opts.ReviewCutPoint)
	opts.HighPriorityCutPoint = parseFloatOrDefault("FORENSICS_HIGH_PRIORITY_CUT_POINT", opts.HighPriorityCutPoint)

	opts.MaxPixels = int(parseIntOrDefault("FORENSICS_MAX_PIXELS", int64(opts.MaxPixels)))
	opts.UseWorkerPool = parseBoolOrDefault("FORENSICS_PARALLEL", opts.UseWorkerPool)
	opts.MaxWorkers = int(parseIntOrDefault("FORENSICS_MAX_WORKERS", int64(opts.MaxWorkers)))

	return opts
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// parseCORSOrigins defaults to any origin; "none" turns CORS handling off
func parseCORSOrigins(key string) []string {
	origins := parseListOrDefault(key, []string{"*"})
	if len(origins) == 1 && strings.EqualFold(origins[0], "none") {
		return nil
	}
	return origins
}

// parseListOrDefault splits a comma separated value, dropping blanks
func parseListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
