package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"stemset/config"
	"stemset/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// minioStore implements ObjectStore on a MinIO / S3-compatible bucket.
type minioStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// NewMinioStore connects to the configured MinIO endpoint, ensures the
// bucket exists, and returns the store.
func NewMinioStore(cfg *config.Config) (ObjectStore, error) {
	logger.Info("connecting to object storage",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket))

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		logger.Info("created bucket", logger.String("bucket", cfg.MinioBucket))
	}

	return &minioStore{
		client:  client,
		bucket:  cfg.MinioBucket,
		baseURL: strings.TrimSuffix(cfg.AudioBaseURL, "/"),
	}, nil
}

func (s *minioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to store object %s: %w", key, err)
	}
	return s.URLFor(key), nil
}

func (s *minioStore) Get(ctx context.Context, key string) (Object, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to open object %s: %w", key, err)
	}
	return &minioObject{obj: obj, key: key}, nil
}

func (s *minioStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

func (s *minioStore) URLFor(key string) string {
	return s.baseURL + "/" + key
}

type minioObject struct {
	obj *minio.Object
	key string
}

func (o *minioObject) Read(p []byte) (int, error)                { return o.obj.Read(p) }
func (o *minioObject) Seek(off int64, whence int) (int64, error) { return o.obj.Seek(off, whence) }
func (o *minioObject) Close() error                              { return o.obj.Close() }

func (o *minioObject) Stat() (ObjectInfo, error) {
	info, err := o.obj.Stat()
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("failed to stat object %s: %w", o.key, err)
	}
	return ObjectInfo{
		Key:          o.key,
		Size:         info.Size,
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
	}, nil
}
