package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig points at an S3-compatible bucket.
type MinioConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// Prefix is prepended to every object key.
	Prefix string
}

// objectClient is the subset of *minio.Client the publisher needs.
type objectClient interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinioPublisher copies finished result files to object storage.
type MinioPublisher struct {
	client objectClient
	bucket string
	region string
	prefix string
	host   string
}

// NewMinioPublisher connects to the bucket, creating it if absent.
func NewMinioPublisher(ctx context.Context, cfg MinioConfig) (*MinioPublisher, error) {
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, &StorageError{Op: "connect", Entity: "bucket", ID: cfg.Bucket, Err: err}
	}

	p := &MinioPublisher{
		client: cli,
		bucket: cfg.Bucket,
		region: cfg.Region,
		prefix: cfg.Prefix,
		host:   cli.EndpointURL().Host,
	}
	if err := p.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *MinioPublisher) ensureBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return &StorageError{Op: "stat", Entity: "bucket", ID: p.bucket, Err: err}
	}
	if exists {
		return nil
	}
	if err := p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{Region: p.region}); err != nil {
		return &StorageError{Op: "create", Entity: "bucket", ID: p.bucket, Err: err}
	}
	return nil
}

// ObjectKey returns the key a local file is published under.
func (p *MinioPublisher) ObjectKey(localPath, runID string) string {
	name := filepath.Base(localPath)
	if runID != "" {
		ext := filepath.Ext(name)
		name = strings.TrimSuffix(name, ext) + "-" + runID + ext
	}
	if p.prefix == "" {
		return name
	}
	return strings.TrimSuffix(p.prefix, "/") + "/" + name
}

// Publish uploads localPath and returns the object URL.
func (p *MinioPublisher) Publish(ctx context.Context, localPath, runID string) (string, error) {
	key := p.ObjectKey(localPath, runID)

	contentType := "application/octet-stream"
	if filepath.Ext(localPath) == ".json" {
		contentType = "application/json"
	}

	_, err := p.client.FPutObject(ctx, p.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", &StorageError{Op: "upload", Entity: "object", ID: key, Err: err}
	}

	return fmt.Sprintf("http://%s/%s/%s", p.host, p.bucket, key), nil
}
