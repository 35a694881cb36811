package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrStorageUnavailable wraps every provider failure so callers can treat the
// backend as a single opaque capability.
var ErrStorageUnavailable = errors.New("object storage unavailable")

// Upload is an explicit description of an inbound blob: the stream plus what
// the client declared about it. Declared values are validated against the
// upload policy before Store is called.
type Upload struct {
	Reader      io.Reader
	ContentType string
	Size        int64
	Filename    string
}

// StoredObject describes a blob after it has been written to the backend.
// PublicID is the key that uniquely names the blob from then on.
type StoredObject struct {
	PublicID     string
	URL          string
	ThumbnailURL string
	Format       string
	Bytes        int64
	Width        int
	Height       int
}

type ObjectStore interface {
	Store(ctx context.Context, upload *Upload) (*StoredObject, error)
	ThumbnailURL(publicID string) string
	Delete(ctx context.Context, publicID string) error
}

// MinioStore implements ObjectStore for MinIO/S3 compatible storage.
type MinioStore struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
	timeout       time.Duration
}

// NewMinioStore connects to the backend and ensures the bucket exists.
func NewMinioStore(endpoint, accessKey, secretKey, bucket, publicBaseURL string, useSSL bool, timeout time.Duration) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init storage client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &MinioStore{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
		timeout:       timeout,
	}, nil
}

func (m *MinioStore) Store(ctx context.Context, upload *Upload) (*StoredObject, error) {
	data, err := io.ReadAll(upload.Reader)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	key := objectKey(upload)

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	_, err = m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: upload.ContentType})
	if err != nil {
		return nil, fmt.Errorf("%w: put object: %s", ErrStorageUnavailable, err.Error())
	}

	width, height := decodeDimensions(data)

	return &StoredObject{
		PublicID:     key,
		URL:          m.objectURL(key),
		ThumbnailURL: m.ThumbnailURL(key),
		Format:       formatFromContentType(upload.ContentType),
		Bytes:        int64(len(data)),
		Width:        width,
		Height:       height,
	}, nil
}

// ThumbnailURL is pure string construction; the transform is applied by the
// image proxy in front of the bucket, never here.
func (m *MinioStore) ThumbnailURL(publicID string) string {
	return m.objectURL(publicID) + "?w=300&h=300&fit=cover&fmt=webp"
}

func (m *MinioStore) Delete(ctx context.Context, publicID string) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.client.RemoveObject(ctx, m.bucket, publicID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%w: remove object: %s", ErrStorageUnavailable, err.Error())
	}
	return nil
}

func (m *MinioStore) objectURL(key string) string {
	return m.publicBaseURL + "/" + m.bucket + "/" + key
}

// objectKey builds a collision-free key, keeping the original extension when
// one is present and deriving it from the content type otherwise.
func objectKey(upload *Upload) string {
	ext := strings.ToLower(path.Ext(upload.Filename))
	if ext == "" {
		if exts, err := mime.ExtensionsByType(upload.ContentType); err == nil && len(exts) > 0 {
			ext = exts[0]
		}
	}
	return uuid.New().String() + ext
}

func formatFromContentType(contentType string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(contentType, "/"); idx >= 0 {
		return contentType[idx+1:]
	}
	return contentType
}

// decodeDimensions reads image bounds for the formats the standard decoders
// cover. Formats without a registered decoder (webp) report zero dimensions.
func decodeDimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
