/*
Copyright (C) 2026 Tactile Sound Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package generation is the HTTP client for the vibration rendering
// service. The service accepts an audio clip and renders one vibration
// file per algorithm; a failure in one algorithm never aborts the others.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tactilesound/ratingexplorer/internal/models"
	"github.com/tactilesound/ratingexplorer/internal/telemetry"
)

// DefaultMaxUploadSize caps uploaded clips, mirroring the service's own
// limit.
const DefaultMaxUploadSize = 50 * 1024 * 1024

// Sentinel errors surfaced to handlers.
var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrServiceUnhealthy  = errors.New("generation service unhealthy")
)

// acceptedExtensions lists audio formats the service will process.
var acceptedExtensions = []string{".wav", ".mp3", ".ogg", ".flac", ".m4a"}

// HealthStatus is the service's health report.
type HealthStatus struct {
	Status     string   `json:"status"`
	Algorithms []string `json:"algorithms"`
	Message    string   `json:"message"`
}

// Healthy reports whether the service is accepting work.
func (h HealthStatus) Healthy() bool {
	return strings.EqualFold(h.Status, "healthy")
}

// AlgorithmResult is one algorithm's outcome within a generation run.
type AlgorithmResult struct {
	Filename string `json:"filename,omitempty"`
	Path     string `json:"path,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Failed reports whether this algorithm produced an error instead of a file.
func (r AlgorithmResult) Failed() bool { return r.Error != "" }

// GenerateResult is the full per-algorithm outcome of one run.
type GenerateResult struct {
	Success      bool                              `json:"success"`
	Message      string                            `json:"message"`
	OriginalFile string                            `json:"original_file"`
	Results      map[models.Design]AlgorithmResult `json:"results"`
}

// OutputFile describes one file in the service's output directory.
type OutputFile struct {
	Filename string  `json:"filename"`
	Size     int64   `json:"size"`
	Modified float64 `json:"modified"`
}

// Client talks to the generation service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
	maxUpload  int64
}

// New creates a generation client. Requests are traced through the shared
// otelhttp transport.
func New(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:    logger.With().Str("component", "generation").Logger(),
		maxUpload: DefaultMaxUploadSize,
	}
}

// SetMaxUploadSize overrides the upload cap.
func (c *Client) SetMaxUploadSize(n int64) {
	if n > 0 {
		c.maxUpload = n
	}
}

// ValidateFilename checks the extension against the service's accepted
// formats.
func ValidateFilename(name string) error {
	lower := strings.ToLower(name)
	for _, ext := range acceptedExtensions {
		if strings.HasSuffix(lower, ext) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
}

// algorithmName maps a design to the service's algorithm identifier. The
// service calls the pitch-matching algorithm "pitch".
func algorithmName(d models.Design) string {
	if d == models.DesignPitchMatch {
		return "pitch"
	}
	return string(d)
}

// designForAlgorithm is the reverse mapping.
func designForAlgorithm(name string) (models.Design, bool) {
	if name == "pitch" {
		return models.DesignPitchMatch, true
	}
	d := models.Design(name)
	return d, d.Valid()
}

// Health fetches the service health report.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generation health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrServiceUnhealthy, resp.StatusCode)
	}

	var status HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode health response: %w", err)
	}
	return &status, nil
}

// Generate uploads a clip and renders vibrations with every algorithm.
// Individual algorithm failures are reported inside the result, not as an
// error.
func (c *Client) Generate(ctx context.Context, filename string, audio io.Reader) (*GenerateResult, error) {
	if err := ValidateFilename(filename); err != nil {
		return nil, err
	}

	start := time.Now()
	body, contentType, err := c.multipartBody(filename, audio, nil)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate-vibrations", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.GenerationRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("generate vibrations: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		telemetry.GenerationRequestsTotal.WithLabelValues("error").Inc()
		return nil, c.serviceError(resp)
	}

	var wire struct {
		Success      bool                       `json:"success"`
		Message      string                     `json:"message"`
		OriginalFile string                     `json:"original_file"`
		Results      map[string]AlgorithmResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		telemetry.GenerationRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decode generation response: %w", err)
	}

	result := &GenerateResult{
		Success:      wire.Success,
		Message:      wire.Message,
		OriginalFile: wire.OriginalFile,
		Results:      make(map[models.Design]AlgorithmResult, len(wire.Results)),
	}
	for name, r := range wire.Results {
		design, ok := designForAlgorithm(name)
		if !ok {
			c.logger.Warn().Str("algorithm", name).Msg("unknown algorithm in generation response")
			continue
		}
		result.Results[design] = r
		if r.Failed() {
			c.logger.Warn().Str("algorithm", name).Str("error", r.Error).Msg("algorithm failed")
		}
	}

	telemetry.GenerationRequestsTotal.WithLabelValues("ok").Inc()
	telemetry.GenerationDuration.Observe(time.Since(start).Seconds())
	return result, nil
}

// GenerateAndDownload renders one algorithm's vibration and streams the
// file back without the service persisting it. The caller owns the returned
// reader.
func (c *Client) GenerateAndDownload(ctx context.Context, filename string, audio io.Reader, design models.Design) (io.ReadCloser, error) {
	if err := ValidateFilename(filename); err != nil {
		return nil, err
	}
	if !design.Valid() {
		return nil, fmt.Errorf("invalid design %q", design)
	}

	start := time.Now()
	fields := map[string]string{"algorithm": algorithmName(design)}
	body, contentType, err := c.multipartBody(filename, audio, fields)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate-and-download", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.GenerationRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("generate and download: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		telemetry.GenerationRequestsTotal.WithLabelValues("error").Inc()
		return nil, c.serviceError(resp)
	}

	telemetry.GenerationRequestsTotal.WithLabelValues("ok").Inc()
	telemetry.GenerationDuration.Observe(time.Since(start).Seconds())
	return resp.Body, nil
}

// ListOutputs fetches the service's generated output directory listing.
func (c *Client) ListOutputs(ctx context.Context) ([]OutputFile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/list-outputs", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list outputs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.serviceError(resp)
	}

	var wire struct {
		Outputs []OutputFile `json:"outputs"`
		Count   int          `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode outputs response: %w", err)
	}
	return wire.Outputs, nil
}

// multipartBody builds the upload form. The whole body is buffered so the
// upload cap can be enforced before any bytes hit the wire.
func (c *Client) multipartBody(filename string, audio io.Reader, fields map[string]string) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("audio_file", filename)
	if err != nil {
		return nil, "", err
	}

	n, err := io.Copy(part, io.LimitReader(audio, c.maxUpload+1))
	if err != nil {
		return nil, "", fmt.Errorf("read audio: %w", err)
	}
	if n > c.maxUpload {
		return nil, "", fmt.Errorf("audio file exceeds %d byte limit", c.maxUpload)
	}

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}

// serviceError extracts the service's {"error": ...} payload.
func (c *Client) serviceError(resp *http.Response) error {
	var wire struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err == nil && wire.Error != "" {
		return fmt.Errorf("generation service: %s (status %d)", wire.Error, resp.StatusCode)
	}
	return fmt.Errorf("generation service: status %d", resp.StatusCode)
}
