// Package imagehost adapts external image hosts to port.ImageUploader.
package imagehost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("imagehost")

// ErrUploadRejected is returned when the host answers without a usable URL.
var ErrUploadRejected = errors.New("image host rejected upload")

type imgbbResponse struct {
	Success bool `json:"success"`
	Status  int  `json:"status"`
	Data    struct {
		URL        string `json:"url"`
		DisplayURL string `json:"display_url"`
	} `json:"data"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ImgBB uploads images to imgbb.com with a multipart POST.
type ImgBB struct {
	client *resty.Client
	apiKey string
	logger *zap.Logger
}

// NewImgBB creates an imgbb uploader. baseURL is normally https://api.imgbb.com.
func NewImgBB(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) (*ImgBB, error) {
	if apiKey == "" {
		return nil, errors.New("imgbb api key cannot be empty")
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)

	return &ImgBB{client: client, apiKey: apiKey, logger: logger}, nil
}

// Name implements port.ImageUploader.
func (u *ImgBB) Name() string { return "imgbb" }

// Upload implements port.ImageUploader.
func (u *ImgBB) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	ctx, span := tracer.Start(ctx, "ImgBB.Upload")
	defer span.End()

	resp, err := u.client.R().
		SetContext(ctx).
		SetQueryParam("key", u.apiKey).
		SetFileReader("image", filename, r).
		SetResult(&imgbbResponse{}).
		SetError(&imgbbResponse{}).
		Post("/1/upload")
	if err != nil {
		return "", fmt.Errorf("imgbb request: %w", err)
	}

	if resp.IsError() {
		msg := resp.Status()
		if e, ok := resp.Error().(*imgbbResponse); ok && e.Error.Message != "" {
			msg = e.Error.Message
		}
		u.logger.Warn("imgbb: upload failed",
			zap.Int("status", resp.StatusCode()),
			zap.String("message", msg),
		)
		return "", fmt.Errorf("%w: %s", ErrUploadRejected, msg)
	}

	result := resp.Result().(*imgbbResponse)
	if !result.Success || result.Data.URL == "" {
		return "", ErrUploadRejected
	}

	u.logger.Debug("imgbb: upload ok", zap.String("filename", filename))
	return result.Data.URL, nil
}
