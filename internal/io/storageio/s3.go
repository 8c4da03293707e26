package storageio

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/xdump/xdump/internal/ent/storage"
	"github.com/xdump/xdump/pkg/config"
)

type s3Storage struct {
	bucket string
	client *s3.Client
}

// NewS3 creates a storage in the bucket. Credentials come from the
// configuration or from the default AWS chain.
func NewS3(ctx context.Context, cfg config.Config, bucket string) (storage.Storage, error) {
	if bucket == "" {
		return nil, fmt.Errorf("S3 bucket is not set")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		slog.Error("Cannot load AWS config", "error", err)
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, s3Options(cfg)...)
	return &s3Storage{bucket: bucket, client: client}, nil
}

// s3Options points the client to S3-compatible storage with path-style
// addressing when an endpoint is set.
func s3Options(cfg config.Config) []func(*s3.Options) {
	if cfg.S3Endpoint == "" {
		return nil
	}
	return []func(*s3.Options){
		func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		},
	}
}

// Upload puts the archive into the bucket.
func (s *s3Storage) Upload(ctx context.Context, path, key string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return "", err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(fi.Size()),
		ContentType:   aws.String("application/zip"),
	})
	if err != nil {
		slog.Error("Cannot upload archive", "bucket", s.bucket, "key", key, "error", err)
		return "", err
	}
	return s3Scheme + s.bucket + "/" + key, nil
}

// Download gets the archive from the bucket.
func (s *s3Storage) Download(ctx context.Context, key, path string) error {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		slog.Error("Cannot download archive", "bucket", s.bucket, "key", key, "error", err)
		return err
	}
	defer out.Body.Close()
	return writeFile(path, out.Body)
}
