// Package config handles application configuration
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	// Environment (development, production)
	Environment string

	// HTTP server address
	HTTPAddr string

	// Database connection string
	DatabaseURL string

	// ClusterName tags every collected kubernetes sample
	ClusterName string

	// Version reported by the health endpoint
	Version string

	// PrometheusURL is the metrics server the usage collector queries
	PrometheusURL string

	// Azure Cost Management credentials
	Azure AzureConfig

	// Collector fetch bounds
	Collector CollectorConfig

	// Scheduler cadences
	Scheduler SchedulerConfig

	// Analysis policy knobs
	Policy PolicyConfig

	// Report archive configuration
	ReportArchive ReportArchiveConfig
}

// AzureConfig holds the Azure Cost Management API settings
type AzureConfig struct {
	SubscriptionID string
	TenantID       string
	ClientID       string
	ClientSecret   string
	// Enabled disables the azure source entirely when false
	Enabled bool
}

// CollectorConfig bounds each source fetch
type CollectorConfig struct {
	Timeout time.Duration
	Retries int
}

// SchedulerConfig holds the periodic job cadences
type SchedulerConfig struct {
	AzureCollectInterval      time.Duration
	KubernetesCollectInterval time.Duration
	AnalyzeInterval           time.Duration
	CompareInterval           time.Duration
	GenerateInterval          time.Duration
}

// PolicyConfig holds the analysis thresholds. Defaults are the documented
// engine policy; operators can tune any of them.
type PolicyConfig struct {
	// Efficiency classification bands (utilization ratios)
	EfficiencyPoorBelow float64
	EfficiencyGoodAbove float64

	// Trend stability band (absolute percent change per month)
	StableBandPct float64

	// Forecast confidence bands (coefficient of variation of residuals)
	HighConfidenceCV   float64
	MediumConfidenceCV float64

	// Recommendation generation
	MinSavings           float64
	PrioritySavingsRatio float64
	MinSamples           int
	CPUReduction         float64
	MemoryReduction      float64
	StorageReduction     float64
	HeadroomFactor       float64
}

// ReportArchiveConfig holds period report archive configuration
type ReportArchiveConfig struct {
	// Backend type: local, s3, minio
	Backend string
	// Local storage path
	LocalPath string
	// S3/MinIO endpoint (for MinIO or custom S3-compatible storage)
	Endpoint string
	// S3 region
	Region string
	// S3 bucket name
	Bucket string
	// Access key ID for S3/MinIO
	AccessKeyID string
	// Secret access key for S3/MinIO
	SecretAccessKey string
	// Use SSL for S3/MinIO connection
	UseSSL bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Environment:   getEnv("ENVIRONMENT", "development"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:   getEnv("DATABASE_URL", "postgres://localhost:5432/costguard?sslmode=disable"),
		ClusterName:   getEnv("CLUSTER_NAME", "default"),
		Version:       getEnv("VERSION", "1.0.0"),
		PrometheusURL: getEnv("PROMETHEUS_URL", "http://localhost:9090"),
		Azure: AzureConfig{
			SubscriptionID: getEnv("AZURE_SUBSCRIPTION_ID", ""),
			TenantID:       getEnv("AZURE_TENANT_ID", ""),
			ClientID:       getEnv("AZURE_CLIENT_ID", ""),
			ClientSecret:   getEnv("AZURE_CLIENT_SECRET", ""),
			Enabled:        getEnvBool("AZURE_ENABLED", true),
		},
		Collector: CollectorConfig{
			Timeout: getEnvDuration("COLLECTOR_TIMEOUT", 60*time.Second),
			Retries: getEnvInt("COLLECTOR_RETRIES", 3),
		},
		Scheduler: SchedulerConfig{
			AzureCollectInterval:      getEnvDuration("AZURE_COLLECT_INTERVAL", time.Hour),
			KubernetesCollectInterval: getEnvDuration("KUBERNETES_COLLECT_INTERVAL", 5*time.Minute),
			AnalyzeInterval:           getEnvDuration("ANALYZE_INTERVAL", 30*time.Minute),
			CompareInterval:           getEnvDuration("COMPARE_INTERVAL", time.Hour),
			GenerateInterval:          getEnvDuration("GENERATE_INTERVAL", 2*time.Hour),
		},
		Policy: PolicyConfig{
			EfficiencyPoorBelow:  getEnvFloat("EFFICIENCY_POOR_BELOW", 0.40),
			EfficiencyGoodAbove:  getEnvFloat("EFFICIENCY_GOOD_ABOVE", 0.75),
			StableBandPct:        getEnvFloat("TREND_STABLE_BAND_PCT", 2.0),
			HighConfidenceCV:     getEnvFloat("FORECAST_HIGH_CONFIDENCE_CV", 0.10),
			MediumConfidenceCV:   getEnvFloat("FORECAST_MEDIUM_CONFIDENCE_CV", 0.30),
			MinSavings:           getEnvFloat("RECOMMENDATION_MIN_SAVINGS", 10.0),
			PrioritySavingsRatio: getEnvFloat("RECOMMENDATION_PRIORITY_RATIO", 0.10),
			MinSamples:           getEnvInt("RECOMMENDATION_MIN_SAMPLES", 30),
			CPUReduction:         getEnvFloat("RECOMMENDATION_CPU_REDUCTION", 0.5),
			MemoryReduction:      getEnvFloat("RECOMMENDATION_MEMORY_REDUCTION", 0.6),
			StorageReduction:     getEnvFloat("RECOMMENDATION_STORAGE_REDUCTION", 0.7),
			HeadroomFactor:       getEnvFloat("RECOMMENDATION_HEADROOM_FACTOR", 1.2),
		},
		ReportArchive: ReportArchiveConfig{
			Backend:         getEnv("REPORT_ARCHIVE_BACKEND", "local"),
			LocalPath:       getEnv("REPORT_ARCHIVE_LOCAL_PATH", "/var/lib/costguard/reports"),
			Endpoint:        getEnv("REPORT_ARCHIVE_ENDPOINT", ""),
			Region:          getEnv("REPORT_ARCHIVE_REGION", "us-east-1"),
			Bucket:          getEnv("REPORT_ARCHIVE_BUCKET", "costguard-reports"),
			AccessKeyID:     getEnv("REPORT_ARCHIVE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("REPORT_ARCHIVE_SECRET_ACCESS_KEY", ""),
			UseSSL:          getEnvBool("REPORT_ARCHIVE_USE_SSL", true),
		},
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
