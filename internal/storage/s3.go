package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// =============================================================================
// S3Storage Implementation
// =============================================================================

// S3Storage implements the Storage interface against any S3-compatible
// endpoint.
type S3Storage struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucketName    string
	publicURL     string
	logger        *slog.Logger
}

// NewS3Storage builds an S3 client from static credentials. A custom
// Endpoint switches the client to path-style addressing, which MinIO needs.
func NewS3Storage(cfg S3Config, logger *slog.Logger) (*S3Storage, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("s3 storage: bucket name is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg := aws.Config{
		Region: region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	logger.Info("initialized S3 storage",
		"bucket", cfg.BucketName,
		"endpoint", cfg.Endpoint,
		"region", region,
		"public_url", cfg.PublicURL,
	)

	return &S3Storage{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucketName:    cfg.BucketName,
		publicURL:     strings.TrimSuffix(cfg.PublicURL, "/"),
		logger:        logger,
	}, nil
}

// Put uploads data to key.
func (s *S3Storage) Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error {
	if err := validateKey(key); err != nil {
		return &StorageError{Op: "Put", Key: key, Err: err}
	}

	if !opts.Overwrite {
		exists, err := s.Exists(ctx, key)
		if err != nil {
			return &StorageError{Op: "Put", Key: key, Err: fmt.Errorf("failed to check existence: %w", err)}
		}
		if exists {
			return &StorageError{Op: "Put", Key: key, Err: ErrKeyExists}
		}
	}

	var reader io.Reader = data
	if opts.MaxSize > 0 {
		reader = io.LimitReader(data, opts.MaxSize+1)
	}

	contentType := DetectContentType(opts.ContentType, key)

	result, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        reader,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return &StorageError{Op: "Put", Key: key, Err: wrapS3Error(err)}
	}

	s.logger.Debug("stored object in S3",
		"key", key,
		"etag", aws.ToString(result.ETag),
		"content_type", contentType,
	)

	return nil
}

// Get downloads the object at key.
func (s *S3Storage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if err := validateKey(key); err != nil {
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: err}
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: wrapS3Error(err)}
	}

	info := ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(result.ContentLength),
		ContentType:  aws.ToString(result.ContentType),
		LastModified: aws.ToTime(result.LastModified),
		ETag:         aws.ToString(result.ETag),
	}

	return result.Body, info, nil
}

// Delete removes the object at key. S3 does not error on missing keys.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return &StorageError{Op: "Delete", Key: key, Err: err}
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return &StorageError{Op: "Delete", Key: key, Err: wrapS3Error(err)}
	}

	s.logger.Debug("deleted object from S3", "key", key)
	return nil
}

// URL returns the public URL when one is configured and expires is 0,
// otherwise a presigned GET valid for expires (default 15 minutes).
func (s *S3Storage) URL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if err := validateKey(key); err != nil {
		return "", &StorageError{Op: "URL", Key: key, Err: err}
	}

	if s.publicURL != "" && expires == 0 {
		return fmt.Sprintf("%s/%s", s.publicURL, key), nil
	}

	if expires == 0 {
		expires = 15 * time.Minute
	}

	request, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", &StorageError{Op: "URL", Key: key, Err: fmt.Errorf("failed to generate presigned URL: %w", err)}
	}

	return request.URL, nil
}

// Exists issues a HeadObject for key.
func (s *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, &StorageError{Op: "Exists", Key: key, Err: err}
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		if errors.Is(wrapS3Error(err), ErrNotFound) {
			return false, nil
		}
		return false, &StorageError{Op: "Exists", Key: key, Err: wrapS3Error(err)}
	}

	return true, nil
}

// List pages through ListObjectsV2 under prefix.
func (s *S3Storage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucketName),
		Prefix: aws.String(prefix),
	})

	var out []ObjectInfo
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, &StorageError{Op: "List", Key: prefix, Err: wrapS3Error(err)}
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			out = append(out, ObjectInfo{
				Key:          key,
				Size:         aws.ToInt64(obj.Size),
				ContentType:  DetectContentType("", key),
				LastModified: aws.ToTime(obj.LastModified),
				ETag:         aws.ToString(obj.ETag),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// =============================================================================
// Internal Helpers
// =============================================================================

func validateKey(key string) error {
	if key == "" || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}

// wrapS3Error maps SDK errors onto the package sentinels.
func wrapS3Error(err error) error {
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return ErrNotFound
	}

	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return ErrNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return ErrNotFound
		case "AccessDenied", "Forbidden":
			return ErrAccessDenied
		}
	}

	var httpErr interface{ HTTPStatusCode() int }
	if errors.As(err, &httpErr) {
		switch httpErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusForbidden:
			return ErrAccessDenied
		}
	}

	return fmt.Errorf("s3 operation failed: %w", err)
}
