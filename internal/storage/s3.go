package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"learnhub/bounty-pipeline/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsCfg "github.com/aws/aws-sdk-go-v2/config" // Alias config to avoid clash
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// SigV4 presigned URLs cannot outlive a week. Links are minted per read, so
// the default only has to cover one page view.
const (
	maxPresignExpiry     = 7 * 24 * time.Hour
	defaultPresignExpiry = time.Hour
)

// s3Storage implements the FileStorage interface using an S3-compatible backend.
type s3Storage struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucketName    string
	publicBaseURL string
	presignExpiry time.Duration
	logger        *slog.Logger
}

// NewS3Storage creates a new S3 storage service instance.
func NewS3Storage(ctx context.Context, cfg config.S3Config, logger *slog.Logger) (FileStorage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	awsSDKConfig, err := awsCfg.LoadDefaultConfig(ctx,
		awsCfg.WithRegion(cfg.Region),
		awsCfg.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsSDKConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(endpointURL(cfg.Endpoint, cfg.UseSSL))
			o.UsePathStyle = true // required by MinIO / R2 style endpoints
			if !strings.HasPrefix(aws.ToString(o.BaseEndpoint), "https://") {
				// Header checksums need a seekable body; uploads stream.
				o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			}
		}
	})

	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = defaultPresignExpiry
	}
	expiry = min(expiry, maxPresignExpiry)

	logger.Info("s3 storage initialized", "endpoint", cfg.Endpoint, "bucket", cfg.BucketName)

	return &s3Storage{
		client:        s3Client,
		presignClient: s3.NewPresignClient(s3Client),
		bucketName:    cfg.BucketName,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		presignExpiry: expiry,
		logger:        logger,
	}, nil
}

// endpointURL adds a scheme to a bare host:port endpoint.
func endpointURL(endpoint string, useSSL bool) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

// PutObject uploads the object body. Bodies that cannot seek are sent with an
// unsigned payload so they are read once, straight onto the wire.
func (s *s3Storage) PutObject(ctx context.Context, objectKey, contentType string, body io.Reader, size int64) error {
	var opts []func(*s3.Options)
	if _, ok := body.(io.Seeker); !ok {
		opts = append(opts, s3.WithAPIOptions(v4.SwapComputePayloadSHA256ForUnsignedPayloadMiddleware))
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(objectKey),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	}, opts...)
	if err != nil {
		s.logger.Error("s3 put failed", "key", objectKey, "error", err)
		return fmt.Errorf("s3 put %s: %w", objectKey, err)
	}
	return nil
}

// ObjectURL returns the CDN URL when configured, else a presigned GET.
func (s *s3Storage) ObjectURL(ctx context.Context, objectKey string) (string, error) {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + objectKey, nil
	}

	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(s.presignExpiry))
	if err != nil {
		s.logger.Error("presign get failed", "key", objectKey, "error", err)
		return "", fmt.Errorf("presign %s: %w", objectKey, err)
	}
	return req.URL, nil
}

// DeleteObject removes an object from the S3 bucket.
func (s *s3Storage) DeleteObject(ctx context.Context, objectKey string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		s.logger.Error("s3 delete failed", "key", objectKey, "bucket", s.bucketName, "error", err)
		return err
	}
	s.logger.Info("deleted object", "key", objectKey, "bucket", s.bucketName)
	return nil
}
