package media

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/mikepea/foodgram/pkg/foodgram/config"
	"github.com/mikepea/foodgram/pkg/foodgram/logging"
)

// S3Storage stores objects in an S3-compatible bucket such as MinIO.
type S3Storage struct {
	client    *s3.Client
	uploader  *manager.Uploader
	bucket    string
	publicURL string
}

// NewS3Storage connects to the endpoint and creates the bucket if missing.
func NewS3Storage(ctx context.Context, cfg config.S3Config) (*S3Storage, error) {
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	endpoint := cfg.Endpoint
	if !strings.Contains(endpoint, "://") {
		endpoint = scheme + "://" + endpoint
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = endpoint + "/" + cfg.Bucket
	}

	s := &S3Storage{
		client:    client,
		uploader:  manager.NewUploader(client),
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
	if err := s.ensureBucket(ctx, cfg.Region); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *S3Storage) ensureBucket(ctx context.Context, region string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err == nil {
		return nil
	}

	logging.Info().Str("bucket", s.bucket).Msg("Bucket not found, creating")
	input := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
	if region != "" && region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}
	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}

	waiter := s3.NewBucketExistsWaiter(s.client)
	if err := waiter.Wait(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}, 30*time.Second); err != nil {
		return fmt.Errorf("wait for bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *S3Storage) Save(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s to bucket %s: %w", key, s.bucket, err)
	}
	return s.publicURL + "/" + key, nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s from bucket %s: %w", key, s.bucket, err)
	}
	return nil
}
