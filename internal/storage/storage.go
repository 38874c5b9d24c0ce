package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/shaiso/rpabot/internal/config"
)

// ErrNotConfigured — хранилище не настроено.
var ErrNotConfigured = errors.New("object store is not configured")

// Validate проверяет параметры хранилища.
func Validate(c config.ObjectStore) error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return ErrNotConfigured
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	if strings.TrimSpace(c.AccessKey) == "" || strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("access key and secret key are required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("bucket is required")
	}
	return nil
}

// Uploader выгружает файлы run в bucket.
type Uploader struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// New создаёт Uploader.
func New(c config.ObjectStore, logger *slog.Logger) (*Uploader, error) {
	if err := Validate(c); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.AccessKey, c.SecretKey, ""),
		Secure: c.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &Uploader{client: client, bucket: c.Bucket, logger: logger}, nil
}

// EnsureBucket создаёт bucket, если его нет.
func (u *Uploader) EnsureBucket(ctx context.Context) error {
	ok, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", u.bucket, err)
	}
	if ok {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", u.bucket, err)
	}
	return nil
}

// Upload выгружает файлы под префиксом ObjectPrefix. Пустые пути
// пропускаются. Возвращает ключи выгруженных объектов.
func (u *Uploader) Upload(ctx context.Context, processCode, runID string, at time.Time, files ...string) ([]string, error) {
	if err := u.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	prefix := ObjectPrefix(processCode, runID, at)
	var keys []string
	var errs []error
	for _, f := range files {
		if f == "" {
			continue
		}
		key := path.Join(prefix, filepath.Base(f))
		contentType := mime.TypeByExtension(filepath.Ext(f))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		info, err := u.client.FPutObject(ctx, u.bucket, key, f, minio.PutObjectOptions{ContentType: contentType})
		if err != nil {
			errs = append(errs, fmt.Errorf("upload %s: %w", f, err))
			continue
		}
		u.logger.Info("file uploaded", "bucket", u.bucket, "key", key, "size", info.Size)
		keys = append(keys, key)
	}
	return keys, errors.Join(errs...)
}

// ObjectPrefix возвращает префикс объектов run: <process>/<yyyy>/<mm>/<run_id>.
func ObjectPrefix(processCode, runID string, at time.Time) string {
	return path.Join(strings.ToUpper(processCode), at.Format("2006"), at.Format("01"), runID)
}
