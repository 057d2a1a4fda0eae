/*
Copyright (C) 2026 Tactile Sound Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package media

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tactilesound/ratingexplorer/internal/config"
)

// File kinds served by the dashboard.
const (
	KindAudio     = "audio"     // ESC-50 source clips
	KindVibration = "vibration" // pre-rendered vibration files
	KindGenerated = "generated" // outputs fetched from the generation service
)

// ErrInvalidKind is returned for a kind outside the known set.
var ErrInvalidKind = fmt.Errorf("invalid media kind")

// ErrInvalidName is returned for names that escape the storage tree.
var ErrInvalidName = fmt.Errorf("invalid media file name")

// Storage interface abstracts file storage operations.
type Storage interface {
	Store(ctx context.Context, kind, name string, file io.Reader) (string, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
	URL(path string) string
	CheckAccess(ctx context.Context) error
}

// Service manages audio and vibration file storage.
type Service struct {
	storage Storage
	logger  zerolog.Logger
}

// NewService creates a media service using filesystem or S3 storage based on config.
func NewService(cfg *config.Config, logger zerolog.Logger) (*Service, error) {
	var storage Storage

	if cfg.S3Enabled() {
		s3cfg := S3Config{
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			PublicBaseURL:   cfg.S3PublicBaseURL,
			UsePathStyle:    cfg.S3UsePathStyle,
		}
		if s3cfg.AccessKeyID == "" || s3cfg.SecretAccessKey == "" {
			logger.Warn().Msg("S3 credentials not configured, some operations may fail")
		}

		s3Storage, err := NewS3Storage(context.Background(), s3cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 storage: %w", err)
		}
		storage = s3Storage
	} else {
		storage = NewFilesystemStorage(cfg.MediaRoot, logger)
	}

	return &Service{
		storage: storage,
		logger:  logger.With().Str("component", "media").Logger(),
	}, nil
}

// NewServiceWithStorage wires an explicit backend, used by tests.
func NewServiceWithStorage(storage Storage, logger zerolog.Logger) *Service {
	return &Service{storage: storage, logger: logger}
}

// Store saves a file under the given kind and returns the storage path.
func (s *Service) Store(ctx context.Context, kind, name string, file io.Reader) (string, error) {
	storagePath, err := buildMediaPath(kind, name)
	if err != nil {
		return "", err
	}

	storedPath, err := s.storage.Store(ctx, kind, storagePath, file)
	if err != nil {
		s.logger.Error().Err(err).Str("kind", kind).Str("name", name).Msg("media store failed")
		return "", fmt.Errorf("store media: %w", err)
	}

	s.logger.Info().Str("kind", kind).Str("name", name).Str("path", storedPath).Msg("media stored")
	return storedPath, nil
}

// Open returns a reader for a stored file.
func (s *Service) Open(ctx context.Context, kind, name string) (io.ReadCloser, error) {
	storagePath, err := buildMediaPath(kind, name)
	if err != nil {
		return nil, err
	}
	return s.storage.Open(ctx, storagePath)
}

// Delete removes a media file from storage.
func (s *Service) Delete(ctx context.Context, kind, name string) error {
	storagePath, err := buildMediaPath(kind, name)
	if err != nil {
		return err
	}
	if err := s.storage.Delete(ctx, storagePath); err != nil {
		s.logger.Error().Err(err).Str("path", storagePath).Msg("media delete failed")
		return fmt.Errorf("delete media: %w", err)
	}
	return nil
}

// URL returns the accessible URL for a stored media file.
func (s *Service) URL(kind, name string) string {
	storagePath, err := buildMediaPath(kind, name)
	if err != nil {
		return ""
	}
	return s.storage.URL(storagePath)
}

// CheckStorageAccess verifies that the storage backend is accessible.
func (s *Service) CheckStorageAccess() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.storage.CheckAccess(ctx)
}

// buildMediaPath validates kind and name and joins them into a storage
// path. Names containing separators or traversal segments are rejected so a
// request can never reach outside the kind's subtree.
func buildMediaPath(kind, name string) (string, error) {
	switch kind {
	case KindAudio, KindVibration, KindGenerated:
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	if name == "" || strings.ContainsAny(name, `/\`) || name != path.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return path.Join(kind, name), nil
}
