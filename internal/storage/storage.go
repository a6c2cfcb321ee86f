// Package storage keeps product images in an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"pharmamart/internal/logging"
)

// ErrDisabled is returned when no bucket is configured.
var ErrDisabled = errors.New("image storage is not configured")

// Images stores objects and hands out their public URLs.
type Images interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	// Delete removes the object behind a URL previously returned by Upload.
	Delete(ctx context.Context, publicURL string) error
}

// Config selects the MinIO endpoint and bucket.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL overrides the base of returned URLs, e.g. a CDN host.
	PublicURL string
}

// Minio is an Images backed by minio-go.
type Minio struct {
	client *minio.Client
	bucket string
	base   string
	logger *zap.Logger
}

// NewMinio builds a client. It does not contact the server; call
// EnsureBucket for that.
func NewMinio(cfg Config, logger *zap.Logger) (*Minio, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	base := strings.TrimRight(cfg.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + cfg.Endpoint
	}
	return &Minio{
		client: client,
		bucket: cfg.Bucket,
		base:   base + "/" + cfg.Bucket,
		logger: logging.OrNop(logger).Named("storage"),
	}, nil
}

// EnsureBucket creates the bucket with anonymous read access if missing.
func (m *Minio) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", m.bucket, err)
	}
	policy := fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, m.bucket)
	if err := m.client.SetBucketPolicy(ctx, m.bucket, policy); err != nil {
		return fmt.Errorf("set bucket policy: %w", err)
	}
	m.logger.Info("bucket created", zap.String("bucket", m.bucket))
	return nil
}

func (m *Minio) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	info, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	m.logger.Info("image uploaded", zap.String("key", key), zap.Int64("size", info.Size))
	return m.URL(key), nil
}

func (m *Minio) Delete(ctx context.Context, publicURL string) error {
	key, ok := m.KeyFromURL(publicURL)
	if !ok {
		return fmt.Errorf("url %q is not in bucket %s", publicURL, m.bucket)
	}
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// URL returns the public URL of key.
func (m *Minio) URL(key string) string {
	return m.base + "/" + (&url.URL{Path: key}).EscapedPath()
}

// KeyFromURL reverses URL.
func (m *Minio) KeyFromURL(publicURL string) (string, bool) {
	rest, ok := strings.CutPrefix(publicURL, m.base+"/")
	if !ok || rest == "" {
		return "", false
	}
	key, err := url.PathUnescape(rest)
	if err != nil {
		return "", false
	}
	return key, true
}

// Disabled rejects uploads. It is used when no endpoint is configured.
type Disabled struct{}

func (Disabled) Upload(context.Context, string, io.Reader, int64, string) (string, error) {
	return "", ErrDisabled
}

func (Disabled) Delete(context.Context, string) error { return ErrDisabled }
