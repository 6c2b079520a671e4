package display

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"elevator-status-monitor/config"
	"elevator-status-monitor/internal/metrics"
	"elevator-status-monitor/internal/retry"
)

const (
	uploadPath     = "/imgupload"
	uploadFilename = "elstatus.jpg"
	uploadTimeout  = 10 * time.Second
)

// Uploader pushes images to an OpenEPaperLink access point.
type Uploader struct {
	client  *http.Client
	baseURL string
	tag     string
	dither  bool
	policy  retry.Policy
	log     *zap.Logger
}

// NewUploader creates an Uploader for the configured access point and tag.
func NewUploader(cfg config.DisplayConfig, log *zap.Logger) *Uploader {
	policy := retry.DefaultPolicy()
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.BaseDelayMillis > 0 {
		policy.BaseDelay = cfg.BaseDelay()
	}
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		log.Warn("upload failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", policy.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err))
	}

	baseURL := cfg.APAddress
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	return &Uploader{
		client:  &http.Client{Timeout: uploadTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		tag:     cfg.Tag,
		dither:  cfg.Dither,
		policy:  policy,
		log:     log,
	}
}

// Upload sends the image, retrying with exponential backoff. It returns the last
// failure once every attempt is used up.
func (u *Uploader) Upload(ctx context.Context, image []byte) error {
	return retry.Do(ctx, u.policy, func(ctx context.Context) error {
		u.log.Debug("uploading image", zap.String("tag", u.tag), zap.Int("bytes", len(image)))
		if err := u.uploadOnce(ctx, image); err != nil {
			metrics.DeliveryAttempts.WithLabelValues(metrics.OutcomeFailure).Inc()
			return err
		}
		metrics.DeliveryAttempts.WithLabelValues(metrics.OutcomeSuccess).Inc()
		return nil
	})
}

func (u *Uploader) uploadOnce(ctx context.Context, image []byte) error {
	body, contentType, err := u.form(image)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+uploadPath, body)
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("access point returned %d: %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}
	return nil
}

func (u *Uploader) form(image []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	dither := "0"
	if u.dither {
		dither = "1"
	}
	if err := w.WriteField("mac", u.tag); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("dither", dither); err != nil {
		return nil, "", err
	}
	part, err := w.CreateFormFile("file", uploadFilename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
