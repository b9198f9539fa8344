package s3backup

// Remote copy of store backups in any S3 compatible bucket.

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	logging "holders-api/internal/infra/log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

type Options struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	Timeout         time.Duration
}

// putObjectAPI is the subset of *s3.Client the uploader needs.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader implements store.BackupSink.
type Uploader struct {
	client  putObjectAPI
	bucket  string
	prefix  string
	timeout time.Duration
}

func New(ctx context.Context, opts Options) (*Uploader, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	return newWithClient(client, opts), nil
}

func newWithClient(client putObjectAPI, opts Options) *Uploader {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Uploader{
		client:  client,
		bucket:  opts.Bucket,
		prefix:  opts.Prefix,
		timeout: opts.Timeout,
	}
}

// Key returns the object key for a backup file name.
func (u *Uploader) Key(name string) string {
	if u.prefix == "" {
		return name
	}
	return path.Join(u.prefix, name)
}

func (u *Uploader) Upload(ctx context.Context, name string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	key := u.Key(name)
	start := time.Now()
	input := &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}
	if _, err := u.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", u.bucket, key, err)
	}

	logging.LogInfo("Backup uploaded",
		zap.String("bucket", u.bucket),
		zap.String("key", key),
		zap.Int("bytes", len(data)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	return nil
}
