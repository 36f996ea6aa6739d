// Package minio stores validation documents (MSDS, COA, TDS scans) uploaded
// to back up a resolved identity.
package minio

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

	"github.com/chemlens/chemlens/internal/config"
	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/logging"
	"github.com/chemlens/chemlens/pkg/errors"
	"github.com/chemlens/chemlens/pkg/types/common"
)

const presignExpiry = time.Hour

// objectAPI abstracts the minio client for tests.
type objectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucket, object string, opts minio.GetObjectOptions) (*minio.Object, error)
	RemoveObject(ctx context.Context, bucket, object string, opts minio.RemoveObjectOptions) error
	PresignedGetObject(ctx context.Context, bucket, object string, expiry time.Duration, params url.Values) (*url.URL, error)
}

// DocumentStore keeps validation documents in one bucket, keyed by material
// record id.
type DocumentStore struct {
	api    objectAPI
	bucket string
	logger logging.Logger
}

// NewDocumentStore connects to MinIO and ensures the validation bucket exists.
func NewDocumentStore(cfg config.MinIOConfig, log logging.Logger) (*DocumentStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create minio client")
	}

	store := &DocumentStore{api: client, bucket: cfg.Bucket, logger: log.Named("docstore")}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}

	log.Info("document store connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket))
	return store, nil
}

func (s *DocumentStore) ensureBucket(ctx context.Context) error {
	exists, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to reach object storage")
	}
	if exists {
		return nil
	}
	if err := s.api.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create validation bucket")
	}
	return nil
}

// objectKey namespaces documents per record: <record-id>/<doc-type>/<filename>.
func objectKey(recordID common.ID, docType, filename string) string {
	clean := strings.ReplaceAll(path.Base(filename), " ", "_")
	return fmt.Sprintf("%s/%s/%s", recordID, strings.ToUpper(docType), clean)
}

// Put uploads one document and returns its object key.
func (s *DocumentStore) Put(ctx context.Context, recordID common.ID, docType, filename, contentType string, r io.Reader, size int64) (string, error) {
	key := objectKey(recordID, docType, filename)
	_, err := s.api.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeExternalService, "uploading validation document")
	}
	s.logger.Info("validation document stored",
		logging.String("record_id", string(recordID)),
		logging.String("key", key),
		logging.Int64("size", size))
	return key, nil
}

// Get streams one stored document.  The caller closes the reader.
func (s *DocumentStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.api.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "fetching validation document")
	}
	return obj, nil
}

// Remove deletes one stored document.
func (s *DocumentStore) Remove(ctx context.Context, key string) error {
	if err := s.api.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "removing validation document")
	}
	return nil
}

// PresignedURL returns a time-limited download link for one document.
func (s *DocumentStore) PresignedURL(ctx context.Context, key string) (string, error) {
	u, err := s.api.PresignedGetObject(ctx, s.bucket, key, presignExpiry, nil)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeExternalService, "presigning document url")
	}
	return u.String(), nil
}
