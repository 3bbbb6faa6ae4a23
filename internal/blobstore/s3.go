package blobstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"filerecon/internal/models"
)

// S3Config holds configuration for an S3-backed upload store.
type S3Config struct {
	Bucket string
	// Region is optional; the SDK default chain is used when empty.
	Region string
	// Endpoint overrides the S3 endpoint for S3-compatible services.
	Endpoint string
	// Prefix is the "directory" holding the blobs. A trailing slash is added
	// when missing.
	Prefix         string
	ForcePathStyle bool
	// AccessKeyID and SecretAccessKey select static credentials. When empty
	// the SDK default credential chain applies.
	AccessKeyID     string
	SecretAccessKey string
}

// S3API is the subset of the S3 client used by S3Bucket.
type S3API interface {
	s3.ListObjectsV2APIClient
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Bucket lists blobs stored as objects directly under one bucket prefix.
type S3Bucket struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Bucket wraps an existing client.
func NewS3Bucket(client S3API, cfg S3Config) (*S3Bucket, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 client is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	return &S3Bucket{client: client, bucket: bucket, prefix: normalizePrefix(cfg.Prefix)}, nil
}

// NewS3BucketFromConfig builds an S3 client from cfg and the AWS default
// configuration chain.
func NewS3BucketFromConfig(ctx context.Context, cfg S3Config) (*S3Bucket, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return NewS3Bucket(client, cfg)
}

// List returns the names of the objects directly under the prefix, sorted.
func (b *S3Bucket) List(ctx context.Context) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.bucket),
		Prefix:    aws.String(b.prefix),
		Delimiter: aws.String("/"),
	})

	names := []string{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list objects: %w", err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), b.prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Exists reports whether an object with name exists under the prefix.
func (b *S3Bucket) Exists(ctx context.Context, name string) (bool, error) {
	_, err := b.Stat(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Stat returns size and last-modified time of one object.
func (b *S3Bucket) Stat(ctx context.Context, name string) (models.BlobInfo, error) {
	var zero models.BlobInfo
	if err := ValidateName(name); err != nil {
		return zero, err
	}
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.prefix + name),
	})
	if err != nil {
		if isNotFoundError(err) {
			return zero, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return zero, fmt.Errorf("s3 head object: %w", err)
	}
	return models.BlobInfo{
		Name:      name,
		SizeBytes: aws.ToInt64(out.ContentLength),
		ModTime:   aws.ToTime(out.LastModified).UTC(),
	}, nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimLeft(strings.TrimSpace(prefix), "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}

func isNotFoundError(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	// HeadObject responses carry no body, so some S3-compatible services only
	// surface the status code.
	msg := err.Error()
	return strings.Contains(msg, "NotFound") || strings.Contains(msg, "StatusCode: 404")
}

var _ BlobStore = (*S3Bucket)(nil)
