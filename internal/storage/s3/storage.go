// Package s3 implements the StorageBackend interface for AWS S3 and S3-compatible storage.
package s3

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/tradefoox/deckvault/internal/storage"
)

// multipartUploadPartSize is the size for S3 multipart upload parts (5MB minimum)
const multipartUploadPartSize = 5 * 1024 * 1024

// S3Config holds configuration for S3 storage.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Custom endpoint for MinIO or other S3-compatible services
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool   // Use path-style addressing (required for MinIO)
	Prefix          string // Optional key prefix, e.g. "decks/"
	StorageQuota    int64  // Optional storage quota in bytes (0 = unlimited)
}

// S3Storage implements StorageBackend for AWS S3 and S3-compatible storage.
type S3Storage struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
	quota    int64
}

var _ storage.StorageBackend = (*S3Storage)(nil)

// NewS3Storage creates a new S3Storage with the given configuration.
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket name is required")
	}

	var optFuncs []func(*config.LoadOptions) error

	if cfg.Region != "" {
		optFuncs = append(optFuncs, config.WithRegion(cfg.Region))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		optFuncs = append(optFuncs, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, optFuncs...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.PathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = multipartUploadPartSize
	})

	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access S3 bucket %q: %w", cfg.Bucket, err)
	}

	slog.Info("S3 storage initialized",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"endpoint", cfg.Endpoint,
		"path_style", cfg.PathStyle,
		"prefix", cfg.Prefix,
	)

	return &S3Storage{
		client:   client,
		uploader: uploader,
		bucket:   cfg.Bucket,
		prefix:   normalizePrefix(cfg.Prefix),
		quota:    cfg.StorageQuota,
	}, nil
}

func normalizePrefix(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

// objectKey validates filename and returns the full object key.
func (s *S3Storage) objectKey(filename string) (string, error) {
	if err := validateKey(filename); err != nil {
		return "", err
	}
	return s.prefix + strings.TrimPrefix(filename, "/"), nil
}

// validateKey ensures the S3 key doesn't contain path traversal attacks or dangerous characters.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key not allowed", storage.ErrInvalidPath)
	}

	// Null bytes can cause truncation issues
	if strings.ContainsRune(key, '\x00') {
		return fmt.Errorf("%w: null bytes not allowed in key", storage.ErrInvalidPath)
	}

	// Reject keys that look URL-encoded to prevent double-encoding attacks
	if strings.Contains(key, "%") {
		return fmt.Errorf("%w: encoded characters not allowed in key", storage.ErrInvalidPath)
	}

	if strings.Contains(key, "..") {
		return fmt.Errorf("%w: path traversal not allowed: %s", storage.ErrInvalidPath, key)
	}

	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == "/" {
		return fmt.Errorf("%w: invalid key: %s", storage.ErrInvalidPath, key)
	}

	return nil
}

// hashingReader wraps a reader to compute SHA256 hash and byte count while reading
type hashingReader struct {
	reader io.Reader
	hasher hash.Hash
	n      int64
}

func newHashingReader(r io.Reader) *hashingReader {
	h := sha256.New()
	return &hashingReader{
		reader: io.TeeReader(r, h),
		hasher: h,
	}
}

func (hr *hashingReader) Read(p []byte) (int, error) {
	n, err := hr.reader.Read(p)
	hr.n += int64(n)
	return n, err
}

func (hr *hashingReader) Hash() string {
	return hex.EncodeToString(hr.hasher.Sum(nil))
}

func (hr *hashingReader) BytesRead() int64 {
	return hr.n
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	return errors.As(err, &nf)
}

// Store streams data to S3 with a multipart upload.
// Returns the storage path and SHA256 hash of the stored content.
func (s *S3Storage) Store(ctx context.Context, filename string, reader io.Reader, size int64) (string, string, error) {
	key, err := s.objectKey(filename)
	if err != nil {
		return "", "", storage.NewStorageErrorWithMessage("Store", filename, err, "key validation failed")
	}

	hr := newHashingReader(reader)

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   hr,
	})
	if err != nil {
		return "", "", storage.NewStorageError("Store", filename, err)
	}

	if size > 0 && hr.BytesRead() != size {
		// Best effort: do not leave a truncated object behind
		s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		return "", "", storage.NewStorageErrorWithMessage("Store", filename, nil,
			fmt.Sprintf("size mismatch: expected %d bytes, wrote %d bytes", size, hr.BytesRead()))
	}

	hash := hr.Hash()

	slog.Debug("file stored in S3",
		"filename", filename,
		"size", hr.BytesRead(),
		"hash", hash[:16]+"...",
	)

	return filename, hash, nil
}

// Retrieve returns a reader for the stored file from S3.
func (s *S3Storage) Retrieve(ctx context.Context, filename string) (io.ReadCloser, error) {
	key, err := s.objectKey(filename)
	if err != nil {
		return nil, storage.NewStorageErrorWithMessage("Retrieve", filename, err, "key validation failed")
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, storage.NewStorageErrorWithMessage("Retrieve", filename, storage.ErrNotFound, "file not found")
		}
		return nil, storage.NewStorageError("Retrieve", filename, err)
	}

	return result.Body, nil
}

// Delete removes a file from S3.
func (s *S3Storage) Delete(ctx context.Context, filename string) error {
	key, err := s.objectKey(filename)
	if err != nil {
		return storage.NewStorageErrorWithMessage("Delete", filename, err, "key validation failed")
	}

	// S3 doesn't error on delete of non-existent objects
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return storage.NewStorageError("Delete", filename, err)
	}

	slog.Debug("file deleted from S3", "filename", filename)
	return nil
}

// Exists checks if a file exists in S3.
func (s *S3Storage) Exists(ctx context.Context, filename string) (bool, error) {
	key, err := s.objectKey(filename)
	if err != nil {
		return false, storage.NewStorageErrorWithMessage("Exists", filename, err, "key validation failed")
	}

	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, storage.NewStorageError("Exists", filename, err)
	}

	return true, nil
}

// GetSize returns the size of a stored file in bytes.
func (s *S3Storage) GetSize(ctx context.Context, filename string) (int64, error) {
	key, err := s.objectKey(filename)
	if err != nil {
		return 0, storage.NewStorageErrorWithMessage("GetSize", filename, err, "key validation failed")
	}

	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, storage.NewStorageErrorWithMessage("GetSize", filename, storage.ErrNotFound, "file not found")
		}
		return 0, storage.NewStorageError("GetSize", filename, err)
	}

	if result.ContentLength != nil {
		return *result.ContentLength, nil
	}
	return 0, nil
}

// GetAvailableSpace returns the quota minus used space, or -1 without a quota.
func (s *S3Storage) GetAvailableSpace(ctx context.Context) (int64, error) {
	if s.quota <= 0 {
		return -1, nil
	}

	used, err := s.GetUsedSpace(ctx)
	if err != nil {
		return 0, err
	}

	return max(s.quota-used, 0), nil
}

// GetUsedSpace sums the sizes of all objects under the prefix.
func (s *S3Storage) GetUsedSpace(ctx context.Context) (int64, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix)
	}
	paginator := s3.NewListObjectsV2Paginator(s.client, input)

	var totalSize int64
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, storage.NewStorageError("GetUsedSpace", s.bucket, err)
		}

		for _, obj := range page.Contents {
			if obj.Size != nil {
				totalSize += *obj.Size
			}
		}
	}

	return totalSize, nil
}

func (s *S3Storage) Type() string { return "s3" }

// HealthCheck verifies that the bucket is accessible, with a 5-second timeout.
func (s *S3Storage) HealthCheck(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.client.HeadBucket(checkCtx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return storage.NewStorageErrorWithMessage("HealthCheck", s.bucket, err, "S3 bucket not accessible")
	}
	return nil
}
