package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"whosehouse/api/internal/config"
)

// ObjectStore holds two buckets: house photos, which are public-facing, and
// case media, which is only ever served through short-lived presigned URLs.
type ObjectStore struct {
	client *minio.Client
	cfg    config.StorageConfig
}

func NewObjectStore(cfg config.StorageConfig) (*ObjectStore, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	return &ObjectStore{
		client: client,
		cfg:    cfg,
	}, nil
}

func (s *ObjectStore) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.cfg.BucketPhotos, s.cfg.BucketMedia} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("bucket exists %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

// PutHousePhoto stores a household photo and returns its object key.
func (s *ObjectStore) PutHousePhoto(ctx context.Context, householdID string, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	key := path.Join("households", householdID, filename)
	_, err := s.client.PutObject(ctx, s.cfg.BucketPhotos, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put photo: %w", err)
	}
	return key, nil
}

// PutCaseMedia stores sensitive case media and returns its object key.
func (s *ObjectStore) PutCaseMedia(ctx context.Context, caseID string, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	key := path.Join("cases", caseID, filename)
	_, err := s.client.PutObject(ctx, s.cfg.BucketMedia, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put media: %w", err)
	}
	return key, nil
}

// PhotoURL builds the stable public URL of a house photo.
func (s *ObjectStore) PhotoURL(key string) string {
	scheme := "http"
	if s.cfg.UseSSL {
		scheme = "https"
	}
	endpoint := strings.TrimPrefix(strings.TrimPrefix(s.cfg.Endpoint, "https://"), "http://")
	return fmt.Sprintf("%s://%s/%s/%s", scheme, endpoint, s.cfg.BucketPhotos, key)
}

// ListCaseMedia returns the object keys stored under a case.
func (s *ObjectStore) ListCaseMedia(ctx context.Context, caseID string) ([]string, error) {
	prefix := path.Join("cases", caseID) + "/"
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.cfg.BucketMedia, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list media: %w", obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// PresignMediaURL returns a time-limited URL to sensitive case media.
func (s *ObjectStore) PresignMediaURL(ctx context.Context, key string) (string, error) {
	ttl := s.cfg.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	u, err := s.client.PresignedGetObject(ctx, s.cfg.BucketMedia, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign media: %w", err)
	}
	return u.String(), nil
}
