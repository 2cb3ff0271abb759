// Package storage archives delivered label documents in S3-compatible
// object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	apprinting "github.com/erp/labelprint/internal/application/printing"
	"github.com/erp/labelprint/internal/domain/printing"
	"github.com/erp/labelprint/internal/infrastructure/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var _ apprinting.DocumentArchive = (*S3Archive)(nil)

const defaultPresignExpiration = 15 * time.Minute

// S3Archive stores one object per delivered document under
// {prefix}/{store}/{yyyy}/{mm}/{job}.pdf
type S3Archive struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucket        string
	prefix        string
	logger        *zap.Logger
}

// Option configures an S3Archive
type Option func(*S3Archive)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) Option {
	return func(a *S3Archive) {
		a.logger = logger
	}
}

// NewS3Archive creates an archive from configuration. Any S3-compatible
// endpoint works (AWS S3, MinIO, RustFS).
func NewS3Archive(cfg *config.StorageConfig, opts ...Option) (*S3Archive, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("storage access key and secret key are required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "localhost:9000"
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if cfg.UseSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		o.BaseEndpoint = aws.String(endpoint)
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix == "" {
		prefix = "labels"
	}
	a := &S3Archive{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        cfg.Bucket,
		prefix:        prefix,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (a *S3Archive) EnsureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	a.logger.Info("Creating label archive bucket", zap.String("bucket", a.bucket))
	_, err = a.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(a.bucket)})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Key returns the object key of a job's document
func (a *S3Archive) Key(storeID string, jobID uuid.UUID, createdAt time.Time) string {
	store := strings.Trim(strings.ReplaceAll(storeID, "/", "_"), ".")
	if store == "" {
		store = "unknown"
	}
	t := createdAt.UTC()
	return path.Join(a.prefix, store, fmt.Sprintf("%04d", t.Year()), fmt.Sprintf("%02d", int(t.Month())), jobID.String()+".pdf")
}

// Archive uploads the document and returns its key
func (a *S3Archive) Archive(ctx context.Context, storeID string, doc *printing.Document) (string, error) {
	if doc == nil || len(doc.Data) == 0 {
		return "", errors.New("document is empty")
	}
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	key := a.Key(storeID, doc.JobID, createdAt)

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(doc.Data),
		ContentType: aws.String(doc.ContentType),
		Metadata: map[string]string{
			"job-id":   doc.JobID.String(),
			"store-id": storeID,
			"pages":    fmt.Sprint(doc.PageCount),
			"labels":   fmt.Sprint(doc.LabelCount),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive label document: %w", err)
	}
	a.logger.Debug("label document archived", zap.String("key", key), zap.Int("bytes", len(doc.Data)))
	return key, nil
}

// DownloadURL presigns a GET for an archived document
func (a *S3Archive) DownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, error) {
	if key == "" {
		return "", errors.New("storage key is required")
	}
	if expiresIn <= 0 {
		expiresIn = defaultPresignExpiration
	}
	req, err := a.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiresIn))
	if err != nil {
		return "", fmt.Errorf("failed to generate download URL: %w", err)
	}
	return req.URL, nil
}

// Bucket returns the bucket name
func (a *S3Archive) Bucket() string {
	return a.bucket
}
