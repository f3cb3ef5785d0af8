// Package report archives finalized period cost reports to durable storage.
// Closed billing periods are immutable, so a report written once is never
// rewritten; re-archiving the same period overwrites with identical content.
package report

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AwesomeGRV/CloudCostGuard/internal/aggregate"
	"github.com/AwesomeGRV/CloudCostGuard/internal/recommend"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Backend defines the type of archive backend
type Backend string

const (
	BackendLocal Backend = "local"
	BackendS3    Backend = "s3"
	BackendMinIO Backend = "minio"
)

// Config holds configuration for the report archive
type Config struct {
	Backend Backend

	// Local storage config
	LocalPath string

	// S3/MinIO config
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

// DefaultConfig returns default archive configuration
func DefaultConfig() *Config {
	return &Config{
		Backend:   BackendLocal,
		LocalPath: "/var/lib/costguard/reports",
		Region:    "us-east-1",
		Bucket:    "costguard-reports",
		UseSSL:    true,
	}
}

// PeriodReport is the archived snapshot of one billing period.
type PeriodReport struct {
	Period         string                    `json:"period"`
	ClusterName    string                    `json:"cluster_name"`
	GeneratedAt    time.Time                 `json:"generated_at"`
	Overview       aggregate.CostOverview    `json:"overview"`
	NamespaceCosts []aggregate.NamespaceCost `json:"namespace_costs"`
	Summary        recommend.Summary         `json:"recommendation_summary"`
}

// Archive stores and retrieves period reports
type Archive struct {
	config   *Config
	s3Client *s3.Client
}

// NewArchive creates a report archive against the configured backend
func NewArchive(cfg *Config) (*Archive, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	a := &Archive{config: cfg}

	switch cfg.Backend {
	case BackendLocal:
		if err := os.MkdirAll(cfg.LocalPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create local archive directory: %w", err)
		}
		slog.Info("Initialized local report archive", "path", cfg.LocalPath)

	case BackendS3, BackendMinIO:
		client, err := a.createS3Client()
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		a.s3Client = client
		slog.Info("Initialized S3/MinIO report archive",
			"endpoint", cfg.Endpoint,
			"bucket", cfg.Bucket,
		)
	default:
		return nil, fmt.Errorf("unsupported archive backend: %s", cfg.Backend)
	}

	return a, nil
}

// createS3Client creates an S3 client for S3 or MinIO
func (a *Archive) createS3Client() (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error

	opts = append(opts, config.WithRegion(a.config.Region))

	// Use static credentials if provided
	if a.config.AccessKeyID != "" && a.config.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				a.config.AccessKeyID,
				a.config.SecretAccessKey,
				"",
			),
		))
	}

	cfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Custom endpoint and path style for MinIO
	clientOpts := []func(*s3.Options){}
	if a.config.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(a.config.Endpoint)
			o.UsePathStyle = true
		})
	}

	return s3.NewFromConfig(cfg, clientOpts...), nil
}

// Store archives a period report and returns the storage path and checksum
func (a *Archive) Store(ctx context.Context, report PeriodReport) (string, string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("failed to encode report: %w", err)
	}
	checksum := calculateChecksum(data)

	switch a.config.Backend {
	case BackendLocal:
		return a.storeLocal(report.Period, data, checksum)
	case BackendS3, BackendMinIO:
		return a.storeS3(ctx, report.Period, data, checksum)
	default:
		return "", "", fmt.Errorf("unsupported archive backend: %s", a.config.Backend)
	}
}

func (a *Archive) storeLocal(period string, data []byte, checksum string) (string, string, error) {
	path := filepath.Join(a.config.LocalPath, reportFilename(period))

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", "", fmt.Errorf("failed to write report file: %w", err)
	}

	slog.Info("Archived report locally",
		"period", period,
		"path", path,
		"size_bytes", len(data),
		"checksum", checksum,
	)

	return path, checksum, nil
}

func (a *Archive) storeS3(ctx context.Context, period string, data []byte, checksum string) (string, string, error) {
	key := "reports/" + reportFilename(period)

	_, err := a.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.config.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to upload report to S3: %w", err)
	}

	storagePath := fmt.Sprintf("s3://%s/%s", a.config.Bucket, key)

	slog.Info("Archived report in S3",
		"period", period,
		"path", storagePath,
		"size_bytes", len(data),
		"checksum", checksum,
	)

	return storagePath, checksum, nil
}

// Get retrieves an archived report by period ("2006-01")
func (a *Archive) Get(ctx context.Context, period string) (*PeriodReport, error) {
	var data []byte
	var err error

	switch a.config.Backend {
	case BackendLocal:
		data, err = os.ReadFile(filepath.Join(a.config.LocalPath, reportFilename(period)))
		if err != nil {
			return nil, fmt.Errorf("failed to read report file: %w", err)
		}
	case BackendS3, BackendMinIO:
		data, err = a.getS3(ctx, "reports/"+reportFilename(period))
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported archive backend: %s", a.config.Backend)
	}

	var report PeriodReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &report, nil
}

func (a *Archive) getS3(ctx context.Context, key string) ([]byte, error) {
	result, err := a.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get report from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read report data: %w", err)
	}

	return data, nil
}

// List returns the periods of all archived reports
func (a *Archive) List(ctx context.Context) ([]string, error) {
	switch a.config.Backend {
	case BackendLocal:
		return a.listLocal()
	case BackendS3, BackendMinIO:
		return a.listS3(ctx)
	default:
		return nil, fmt.Errorf("unsupported archive backend: %s", a.config.Backend)
	}
}

func (a *Archive) listLocal() ([]string, error) {
	entries, err := os.ReadDir(a.config.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list local reports: %w", err)
	}

	var periods []string
	for _, entry := range entries {
		if p, ok := periodFromFilename(entry.Name()); ok && !entry.IsDir() {
			periods = append(periods, p)
		}
	}

	return periods, nil
}

func (a *Archive) listS3(ctx context.Context) ([]string, error) {
	result, err := a.s3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.config.Bucket),
		Prefix: aws.String("reports/"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list S3 reports: %w", err)
	}

	var periods []string
	for _, obj := range result.Contents {
		if obj.Key == nil {
			continue
		}
		if p, ok := periodFromFilename(filepath.Base(*obj.Key)); ok {
			periods = append(periods, p)
		}
	}

	return periods, nil
}

// VerifyChecksum verifies the checksum of archived report bytes
func (a *Archive) VerifyChecksum(data []byte, expectedChecksum string) bool {
	return calculateChecksum(data) == expectedChecksum
}

func calculateChecksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

func reportFilename(period string) string {
	return fmt.Sprintf("cost_report_%s.json", period)
}

func periodFromFilename(name string) (string, bool) {
	if !strings.HasPrefix(name, "cost_report_") || !strings.HasSuffix(name, ".json") {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(name, "cost_report_"), ".json"), true
}
