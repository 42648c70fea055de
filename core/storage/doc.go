// Package storage provides an abstraction layer for object storage services.
//
// It wraps the MinIO Go client behind the Client interface, which supports both AWS S3 and
// self-hosted MinIO, and can be mocked in tests (see core/storage/mocks).
//
// Audit reports are archived as JSON objects through the PutJSON, GetJSON and ListKeys helpers.
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	err = storage.EnsureBucket(ctx, client, cfg.Storage.Bucket, cfg.Storage.Region)
//	err = storage.PutJSON(ctx, client, cfg.Storage.Bucket, "audits/Contact/run.json", result)
package storage
