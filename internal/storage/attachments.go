// Package storage keeps message attachments in an S3 compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"messenger-service/internal/apperrors"
	"messenger-service/internal/config"
	"messenger-service/internal/logger"
)

// Kind is an attachment category. It doubles as the folder name under a thread.
type Kind string

const (
	KindImage    Kind = "images"
	KindDocument Kind = "documents"
	KindAudio    Kind = "audio"
)

var (
	ErrUnsupportedType = apperrors.NewWithStatus(apperrors.ErrCodeValidation, "Unsupported file type.", http.StatusUnprocessableEntity)
	ErrTooLarge        = apperrors.NewWithStatus(apperrors.ErrCodeValidation, "File is empty or too large.", http.StatusUnprocessableEntity)
)

func storageError(message string, err error) error {
	return apperrors.WrapWithStatus(apperrors.ErrCodeStorage, message, http.StatusBadGateway, err)
}

var rules = map[Kind]struct {
	maxSize    int64
	extensions []string
}{
	KindImage:    {maxSize: 5 << 20, extensions: []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"}},
	KindDocument: {maxSize: 10 << 20, extensions: []string{".pdf", ".doc", ".docx", ".ppt", ".pptx", ".xls", ".xlsx", ".csv", ".txt", ".rtf", ".zip", ".rar", ".7z"}},
	KindAudio:    {maxSize: 10 << 20, extensions: []string{".aac", ".mp3", ".m4a", ".ogg", ".opus", ".wav", ".webm"}},
}

// objectClient is the subset of *minio.Client the store relies on.
type objectClient interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// AttachmentStore writes and removes thread attachments.
type AttachmentStore struct {
	client objectClient
	bucket string
}

// NewAttachmentStore connects to the configured endpoint and makes sure the bucket exists.
func NewAttachmentStore(ctx context.Context, cfg config.Storage) (*AttachmentStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
		logger.Log.Info("attachment bucket created", zap.String("bucket", cfg.Bucket))
	}
	return &AttachmentStore{client: client, bucket: cfg.Bucket}, nil
}

// ThreadPath is the object prefix holding every attachment of a thread.
func ThreadPath(threadID string) string {
	return path.Join("threads", threadID)
}

// Validate checks the file name and size against the rules for kind.
func Validate(kind Kind, filename string, size int64) error {
	rule, ok := rules[kind]
	if !ok {
		return ErrUnsupportedType
	}
	if size <= 0 || size > rule.maxSize {
		return ErrTooLarge
	}
	ext := strings.ToLower(path.Ext(filename))
	for _, allowed := range rule.extensions {
		if ext == allowed {
			return nil
		}
	}
	return ErrUnsupportedType
}

// Put validates and stores an attachment, returning its object key.
func (s *AttachmentStore) Put(ctx context.Context, threadID string, kind Kind, filename string, r io.Reader, size int64, contentType string) (string, error) {
	if err := Validate(kind, filename, size); err != nil {
		return "", err
	}

	key := path.Join(ThreadPath(threadID), string(kind), uuid.NewString()+strings.ToLower(path.Ext(filename)))
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"original-name": path.Base(filename)},
	})
	if err != nil {
		return "", storageError("Unable to store the attachment.", err)
	}
	return key, nil
}

// Remove deletes a single stored attachment.
func (s *AttachmentStore) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return storageError("Unable to remove the attachment.", err)
	}
	return nil
}

// DeletePrefix removes every object under prefix and reports how many were removed.
func (s *AttachmentStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	// Cancelling stops the lister when we bail out early.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	removed := 0
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix + "/", Recursive: true})
	for object := range objects {
		if object.Err != nil {
			return removed, fmt.Errorf("list %s: %w", prefix, object.Err)
		}
		if err := s.client.RemoveObject(ctx, s.bucket, object.Key, minio.RemoveObjectOptions{}); err != nil {
			return removed, fmt.Errorf("remove %s: %w", object.Key, err)
		}
		removed++
	}
	return removed, nil
}
