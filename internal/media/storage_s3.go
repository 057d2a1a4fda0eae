/*
Copyright (C) 2026 Tactile Sound Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package media

import (
	"context"
	"fmt"
	"io"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// S3Config contains S3-compatible object storage configuration.
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
	Endpoint        string // For S3-compatible services (MinIO, Spaces, etc.)
	PublicBaseURL   string // Optional CDN/CloudFront URL
	UsePathStyle    bool   // Required for MinIO
}

// S3Storage implements Storage using S3-compatible object storage.
type S3Storage struct {
	client *s3.Client
	cfg    S3Config
	logger zerolog.Logger
}

// NewS3Storage creates an S3-based storage backend.
func NewS3Storage(ctx context.Context, cfg S3Config, logger zerolog.Logger) (*S3Storage, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &cfg.Endpoint
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Storage{
		client: client,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Store uploads a file to object storage.
func (st *S3Storage) Store(ctx context.Context, kind, storagePath string, file io.Reader) (string, error) {
	_, err := st.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &st.cfg.Bucket,
		Key:    &storagePath,
		Body:   file,
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}

	st.logger.Debug().Str("key", storagePath).Str("bucket", st.cfg.Bucket).Msg("s3 storage: object stored")
	return storagePath, nil
}

// Open returns a reader for a stored object.
func (st *S3Storage) Open(ctx context.Context, storagePath string) (io.ReadCloser, error) {
	out, err := st.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &st.cfg.Bucket,
		Key:    &storagePath,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	return out.Body, nil
}

// Delete removes an object from storage.
func (st *S3Storage) Delete(ctx context.Context, storagePath string) error {
	_, err := st.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &st.cfg.Bucket,
		Key:    &storagePath,
	})
	if err != nil {
		return fmt.Errorf("s3 delete object: %w", err)
	}
	return nil
}

// URL returns the public URL for an object.
func (st *S3Storage) URL(storagePath string) string {
	if st.cfg.PublicBaseURL != "" {
		return strings.TrimRight(st.cfg.PublicBaseURL, "/") + "/" + storagePath
	}
	if st.cfg.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(st.cfg.Endpoint, "/"), st.cfg.Bucket, storagePath)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", st.cfg.Bucket, st.cfg.Region, storagePath)
}

// CheckAccess verifies the bucket is reachable.
func (st *S3Storage) CheckAccess(ctx context.Context) error {
	_, err := st.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &st.cfg.Bucket})
	if err != nil {
		return fmt.Errorf("s3 head bucket %q: %w", st.cfg.Bucket, err)
	}
	return nil
}
