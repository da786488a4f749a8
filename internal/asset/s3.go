package asset

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/aanand-mishra/student-directory/internal/config"
)

// s3Scheme prefixes every reference handed out by S3.
const s3Scheme = "s3://"

// S3 keeps photos as objects in a MinIO / S3 bucket. References have
// the form "s3://<bucket>/<key>".
type S3 struct {
	client *minio.Client
	bucket string
	region string
}

var _ Store = (*S3)(nil)

// NewS3 creates a MinIO client from the asset config.
func NewS3(cfg config.S3) (*S3, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("asset.NewS3: init minio: %w", err)
	}
	return &S3{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// EnsureBucket makes sure the photo bucket exists before use.
func (s *S3) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// Persist uploads the file at tempPath under a fresh key.
func (s *S3) Persist(ctx context.Context, tempPath string) (string, error) {
	f, err := os.Open(tempPath)
	if err != nil {
		return "", fmt.Errorf("Persist: open source: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("Persist: stat source: %w", err)
	}

	key := newKey(tempPath)
	opts := minio.PutObjectOptions{ContentType: contentType(tempPath)}
	if _, err := s.client.PutObject(ctx, s.bucket, key, f, info.Size(), opts); err != nil {
		return "", fmt.Errorf("Persist: upload object: %w", err)
	}
	return s.ref(key), nil
}

// Exists stats the object behind ref.
func (s *S3) Exists(ctx context.Context, ref string) (bool, error) {
	bucket, key, err := parseRef(ref)
	if err != nil {
		return false, err
	}
	_, err = s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("Exists: stat object: %w", err)
	}
	return true, nil
}

// Remove deletes the object behind ref. S3 treats a missing key as a
// successful delete.
func (s *S3) Remove(ctx context.Context, ref string) error {
	bucket, key, err := parseRef(ref)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("Remove: remove object: %w", err)
	}
	return nil
}

func (s *S3) ref(key string) string {
	return s3Scheme + s.bucket + "/" + key
}

// parseRef splits "s3://bucket/key" into its parts.
func parseRef(ref string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(ref, s3Scheme)
	if !ok {
		return "", "", fmt.Errorf("not an s3 reference: %q", ref)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("malformed s3 reference: %q", ref)
	}
	return bucket, key, nil
}

func contentType(path string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
