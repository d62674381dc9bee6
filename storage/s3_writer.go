package storage

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"otodom-scraper/config"
	"otodom-scraper/models"
)

const uploadTimeout = 2 * time.Minute

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Writer buffers estates as JSON lines and uploads the object on Close.
type S3Writer struct {
	mu     sync.Mutex
	client objectPutter
	bucket string
	key    string
	buf    bytes.Buffer
}

// NewS3Writer creates a writer for S3 or any S3-compatible store. Static
// credentials are used when set; otherwise the default AWS chain applies.
func NewS3Writer(ctx context.Context, cfg config.S3Config) (*S3Writer, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Writer(client, cfg.Bucket, cfg.Key), nil
}

func newS3Writer(client objectPutter, bucket, key string) *S3Writer {
	return &S3Writer{client: client, bucket: bucket, key: key}
}

// Write appends estates to the pending object.
func (w *S3Writer) Write(estates []*models.Estate) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := writeJSONL(&w.buf, estates); err != nil {
		return fmt.Errorf("s3: encode: %w", err)
	}
	return nil
}

// Close uploads everything written so far to s3://bucket/key.
func (w *S3Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	_, err := w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(w.key),
		Body:        bytes.NewReader(w.buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("s3: put object s3://%s/%s: %w", w.bucket, w.key, err)
	}
	return nil
}
