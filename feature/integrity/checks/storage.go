package checks

import (
	"context"
	"fmt"

	"crm-sync/core/storage"

	"go.uber.org/zap"
)

// ReportPrefix is where audit reports are archived.
const ReportPrefix = "audits/"

// StorageReport describes the report archive.
type StorageReport struct {
	Bucket  string `json:"bucket"`
	Exists  bool   `json:"exists"`
	Reports int    `json:"reports"`
}

// CheckStorage reports whether the bucket exists and how many audit reports it holds.
func CheckStorage(ctx context.Context, client storage.Client, bucket string) (*StorageReport, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	report := &StorageReport{Bucket: bucket, Exists: exists}
	if !exists {
		return report, nil
	}

	keys, err := storage.ListKeys(ctx, client, bucket, ReportPrefix)
	if err != nil {
		return nil, err
	}
	report.Reports = len(keys)
	return report, nil
}

// FixStorage creates the bucket.
func FixStorage(ctx context.Context, client storage.Client, bucket, region string, logger *zap.Logger) error {
	if err := storage.EnsureBucket(ctx, client, bucket, region); err != nil {
		logger.Error("Failed to create bucket", zap.String("bucket", bucket), zap.Error(err))
		return err
	}
	logger.Info("Ensured report bucket", zap.String("bucket", bucket))
	return nil
}
