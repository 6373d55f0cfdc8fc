// Package s3 implements the storage Backend on an S3-compatible object store
// (AWS S3 or MinIO). Paths map directly to object keys; directory listings are
// emulated with prefix + delimiter queries.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"vizlab/internal/storage/core"
)

// Store implements core.Backend over a single bucket.
type Store struct {
	client *s3.Client
	bucket string
}

// Config holds explicit construction parameters (mostly for tests). For prod
// we rely primarily on environment variables.
type Config struct {
	Region    string
	Bucket    string
	Endpoint  string // optional; enables custom endpoint (e.g. MinIO)
	PathStyle bool
}

// Environment variables:
//
//	VIZLAB_STORAGE_DRIVER=s3
//	VIZLAB_STORAGE_S3_BUCKET=<bucket> (required)
//	VIZLAB_STORAGE_S3_REGION=<region> (default ap-southeast-1)
//	VIZLAB_STORAGE_S3_ENDPOINT=<url> (optional, for MinIO)
//	VIZLAB_STORAGE_S3_PATH_STYLE=true|false (default false)
//	AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN (optional)

// New creates an S3 storage backend from Config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "ap-southeast-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// OpenFromEnv constructs an S3 store from process environment.
func OpenFromEnv(ctx context.Context) (*Store, error) {
	bucket := os.Getenv("VIZLAB_STORAGE_S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("VIZLAB_STORAGE_S3_BUCKET required for s3 driver")
	}
	cfg := Config{
		Bucket:    bucket,
		Region:    os.Getenv("VIZLAB_STORAGE_S3_REGION"),
		Endpoint:  os.Getenv("VIZLAB_STORAGE_S3_ENDPOINT"),
		PathStyle: strings.EqualFold(os.Getenv("VIZLAB_STORAGE_S3_PATH_STYLE"), "true"),
	}
	return New(ctx, cfg)
}

// Driver returns the storage driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverS3 }

// Write uploads data under path, overwriting any previous object.
func (s *Store) Write(ctx context.Context, p string, data []byte) (string, error) {
	key, err := core.CleanPath(p)
	if err != nil {
		return "", err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// Read downloads the object at path, mapping a missing key to core.ErrNotFound.
func (s *Store) Read(ctx context.Context, p string) ([]byte, error) {
	key, err := core.CleanPath(p)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) || isNotFoundAPIError(err) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	defer func() { _ = out.Body.Close() }()
	return io.ReadAll(out.Body)
}

// Exists heads the object at path; a 404 is reported as false, not an error.
func (s *Store) Exists(ctx context.Context, p string) (bool, error) {
	key, err := core.CleanPath(p)
	if err != nil {
		return false, err
	}
	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) || isNotFoundAPIError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListDir lists immediate children under path using prefix + "/" delimiter.
// Common prefixes come back suffixed with "/" to mirror directories.
func (s *Store) ListDir(ctx context.Context, p string) ([]string, error) {
	dir, err := core.CleanPath(p)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimSuffix(dir, "/") + "/"
	delimiter := "/"
	names := []string{}
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &s.bucket,
			Prefix:            &prefix,
			Delimiter:         &delimiter,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, err
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if key == prefix {
				continue
			}
			names = append(names, strings.TrimPrefix(key, prefix))
		}
		for _, cp := range out.CommonPrefixes {
			sub := strings.TrimPrefix(aws.ToString(cp.Prefix), prefix)
			names = append(names, sub)
		}
		if out.IsTruncated != nil && *out.IsTruncated && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}
	sort.Strings(names)
	return names, nil
}

// isNotFoundAPIError covers backends that surface 404s as generic API errors
// rather than typed NoSuchKey/NotFound values.
func isNotFoundAPIError(err error) bool {
	var apiErr interface{ ErrorCode() string }
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
