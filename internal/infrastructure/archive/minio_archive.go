package archive

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"TenderScanner/internal/config"
	"TenderScanner/internal/ports"
)

const pagePrefix = "pages/"

type objectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinioArchive keeps the analyzed page text of every stored tender.
type MinioArchive struct {
	client objectStore
	bucket string
}

var (
	_ ports.PageArchive = (*MinioArchive)(nil)
	_ objectStore       = (*minio.Client)(nil)
)

// NewMinioArchive creates the client; no request is sent until the first call.
func NewMinioArchive(cfg config.MinioConfig) (*MinioArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioArchive{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (a *MinioArchive) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}

	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// StorePage uploads text as pages/<tender-id>.txt.
func (a *MinioArchive) StorePage(ctx context.Context, tenderID, text string) error {
	if strings.TrimSpace(tenderID) == "" {
		return fmt.Errorf("archive page: empty tender id")
	}

	_, err := a.client.PutObject(ctx, a.bucket, ObjectKey(tenderID), strings.NewReader(text), int64(len(text)), minio.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
	})
	if err != nil {
		return fmt.Errorf("failed to upload page: %w", err)
	}
	return nil
}

// ObjectKey is the object name holding a tender's page text.
func ObjectKey(tenderID string) string {
	return pagePrefix + tenderID + ".txt"
}
