package asset

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/roach88/cardfs/internal/metrics"
)

// S3Config holds S3-compatible bucket settings.
type S3Config struct {
	Endpoint  string // empty for AWS itself
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	// PublicURL is the base that object keys are appended to when building
	// retrieval URLs. Defaults to <Endpoint>/<Bucket>.
	PublicURL string
}

// S3Store uploads assets to an S3-compatible bucket (AWS, MinIO).
type S3Store struct {
	client    *s3.Client
	bucket    string
	publicURL string
	now       func() time.Time
	logger    *slog.Logger
}

// NewS3 builds a client for cfg. Static credentials are used when set,
// otherwise the default AWS credential chain.
func NewS3(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Required for MinIO
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	public := strings.TrimRight(cfg.PublicURL, "/")
	if public == "" {
		if cfg.Endpoint != "" {
			public = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
		} else {
			public = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, region)
		}
	}

	return &S3Store{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: public,
		now:       time.Now,
		logger:    slog.Default().With("component", "asset"),
	}, nil
}

// Put implements Store.
func (s *S3Store) Put(ctx context.Context, userKey, filename string, data []byte) (string, error) {
	if err := check(userKey, data); err != nil {
		return "", err
	}
	key := ObjectKey(userKey, filename, s.now())
	start := time.Now()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(ContentType(data)),
	})
	if err != nil {
		metrics.RecordAssetUpload(time.Since(start), false)
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	metrics.RecordAssetUpload(time.Since(start), true)

	s.logger.Debug("asset uploaded", "key", key, "size", len(data))
	return s.publicURL + "/" + key, nil
}
