package invoice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultLinkTTL = 7 * 24 * time.Hour

var ErrStorageDisabled = errors.New("invoice: object storage is not configured")

type objectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	LinkTTL   time.Duration
}

// Uploader stores rendered receipts and hands out presigned links so staff can
// send them to customers.
type Uploader struct {
	client objectStore
	bucket string
	ttl    time.Duration
	now    func() time.Time
}

// NewUploader returns nil, nil when no endpoint is configured.
func NewUploader(cfg StorageConfig) (*Uploader, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("invoice: minio client: %w", err)
	}
	return newUploader(client, cfg.Bucket, cfg.LinkTTL), nil
}

func newUploader(client objectStore, bucket string, ttl time.Duration) *Uploader {
	if ttl <= 0 {
		ttl = defaultLinkTTL
	}
	return &Uploader{client: client, bucket: bucket, ttl: ttl, now: time.Now}
}

// EnsureBucket creates the bucket on first use.
func (u *Uploader) EnsureBucket(ctx context.Context) error {
	if u == nil {
		return ErrStorageDisabled
	}
	ok, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("invoice: check bucket %q: %w", u.bucket, err)
	}
	if ok {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("invoice: create bucket %q: %w", u.bucket, err)
	}
	return nil
}

// Upload stores png for the ticket and returns a presigned download URL.
func (u *Uploader) Upload(ctx context.Context, ticketID string, png []byte) (string, error) {
	if u == nil {
		return "", ErrStorageDisabled
	}
	name := ObjectName(ticketID, u.now())
	_, err := u.client.PutObject(ctx, u.bucket, name, bytes.NewReader(png), int64(len(png)), minio.PutObjectOptions{
		ContentType: "image/png",
	})
	if err != nil {
		return "", fmt.Errorf("invoice: upload %s: %w", name, err)
	}
	link, err := u.client.PresignedGetObject(ctx, u.bucket, name, u.ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("invoice: presign %s: %w", name, err)
	}
	return link.String(), nil
}
