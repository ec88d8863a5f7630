// Package storage keeps SLA model artifacts in S3-compatible object storage
// (AWS S3, RustFS, MinIO) and resolves s3://bucket/key references.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// MaxArtifactSize bounds how much of an object GetObject will read.
const MaxArtifactSize = 64 << 20

const uriScheme = "s3://"

// ErrObjectNotFound is returned when a bucket or key does not exist.
var ErrObjectNotFound = errors.New("object not found")

type S3ClientConfig struct {
	// Endpoint overrides the AWS endpoint for S3-compatible servers.
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

type S3Client struct {
	client *s3.Client
}

func NewS3Client(ctx context.Context, cfg S3ClientConfig) (*S3Client, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &S3Client{client: client}, nil
}

// IsURI reports whether path names an S3 object.
func IsURI(path string) bool {
	return strings.HasPrefix(path, uriScheme)
}

// ParseURI splits s3://bucket/key into its parts.
func ParseURI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, uriScheme)
	if !ok {
		return "", "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 uri needs bucket and key: %q", uri)
	}
	return bucket, key, nil
}

// URI is the inverse of ParseURI.
func URI(bucket, key string) string {
	return uriScheme + bucket + "/" + key
}

func notFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	var nsb *types.NoSuchBucket
	return errors.As(err, &nsk) || errors.As(err, &nf) || errors.As(err, &nsb)
}

// GetObject reads a whole artifact, refusing objects over MaxArtifactSize.
func (c *S3Client) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, URI(bucket, key))
		}
		return nil, fmt.Errorf("failed to get %s: %w", URI(bucket, key), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, MaxArtifactSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", URI(bucket, key), err)
	}
	if len(data) > MaxArtifactSize {
		return nil, fmt.Errorf("%s exceeds %d bytes", URI(bucket, key), MaxArtifactSize)
	}
	return data, nil
}

// PutObject uploads data under key and returns the stored object's ETag.
func (c *S3Client) PutObject(ctx context.Context, bucket, key, contentType string, data []byte) (string, error) {
	out, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		Body:        bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put %s: %w", URI(bucket, key), err)
	}
	return strings.Trim(aws.ToString(out.ETag), `"`), nil
}

type ObjectInfo struct {
	Size        int64
	ContentType string
	ETag        string
}

// Stat returns metadata for an object without downloading it.
func (c *S3Client) Stat(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	out, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if notFound(err) {
			return ObjectInfo{}, fmt.Errorf("%w: %s", ErrObjectNotFound, URI(bucket, key))
		}
		return ObjectInfo{}, fmt.Errorf("failed to stat %s: %w", URI(bucket, key), err)
	}
	return ObjectInfo{
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
		ETag:        strings.Trim(aws.ToString(out.ETag), `"`),
	}, nil
}

// EnsureBucket creates bucket when HeadBucket reports it missing.
func (c *S3Client) EnsureBucket(ctx context.Context, bucket string) error {
	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}
	if !notFound(err) {
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}

	_, err = c.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	var owned *types.BucketAlreadyOwnedByYou
	if err != nil && !errors.As(err, &owned) {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}
