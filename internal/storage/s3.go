package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const presignTTL = time.Hour

// S3 stores videos in an S3-compatible bucket (AWS S3 or Cloudflare R2)
type S3 struct {
	client     *s3.Client
	bucket     string
	baseURL    string // public URL root, e.g. https://pub-bucket.r2.dev
	publicRead bool
}

// S3Config holds connection settings for an S3-compatible bucket
type S3Config struct {
	Region      string
	Bucket      string
	AccessKey   string
	SecretKey   string
	EndpointURL string // for R2: https://account-id.r2.cloudflarestorage.com
	BaseURL     string
	PublicRead  bool
}

// NewS3 connects to the bucket and verifies access
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	var awsCfg aws.Config
	var err error

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKey, cfg.SecretKey, "",
			)),
			awsconfig.WithRegion(cfg.Region),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true // R2 requires path-style addressing
		}
	})

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return nil, fmt.Errorf("failed to access bucket %s: %w", cfg.Bucket, err)
	}

	slog.Info("S3 storage initialized", "bucket", cfg.Bucket, "endpoint", cfg.EndpointURL)
	return &S3{
		client:     client,
		bucket:     cfg.Bucket,
		baseURL:    cfg.BaseURL,
		publicRead: cfg.PublicRead,
	}, nil
}

func (s *S3) Upload(ctx context.Context, localPath, name string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open video: %w", err)
	}
	defer file.Close()

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(name),
		Body:        file,
		ContentType: aws.String(videoMIME),
	}
	if s.publicRead {
		input.ACL = types.ObjectCannedACLPublicRead
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload video: %w", err)
	}

	slog.Info("Video uploaded", "key", name, "bucket", s.bucket)
	return s.downloadURL(ctx, name), nil
}

// downloadURL prefers the configured public base; without one it falls
// back to a presigned GET
func (s *S3) downloadURL(ctx context.Context, name string) string {
	if s.baseURL != "" {
		return fmt.Sprintf("%s/%s", strings.TrimRight(s.baseURL, "/"), name)
	}

	presigner := s3.NewPresignClient(s.client)
	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = presignTTL
	})
	if err != nil {
		slog.Error("Failed to presign download URL", "key", name, "error", err)
		return ""
	}
	return req.URL
}

func (s *S3) Open(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open video %s: %w", name, err)
	}
	return result.Body, aws.ToInt64(result.ContentLength), nil
}

func (s *S3) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check video %s: %w", name, err)
	}
	return true, nil
}

func (s *S3) Delete(ctx context.Context, name string) error {
	// S3 deletes are idempotent; a missing key is not an error
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("failed to delete video %s: %w", name, err)
	}
	return nil
}

func (s *S3) List(ctx context.Context) ([]Object, error) {
	var objects []Object
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list bucket: %w", err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, Object{
				Name:    aws.ToString(obj.Key),
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
	}
	return objects, nil
}
