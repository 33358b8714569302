package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/boddenberg/bazchat-go/internal/domain"
	"github.com/boddenberg/bazchat-go/internal/infra/observability"
	"github.com/boddenberg/bazchat-go/internal/infra/resilience"
	"github.com/boddenberg/bazchat-go/internal/port"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// UploadService forwards owner image uploads (logos, product photos) to the
// configured image host.
type UploadService struct {
	uploader port.ImageUploader
	cb       *gobreaker.CircuitBreaker
	maxBytes int64
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewUploadService creates an upload service. uploader may be nil, in which
// case every upload fails with an external service error.
func NewUploadService(uploader port.ImageUploader, maxBytes int64, metrics *observability.Metrics, logger *zap.Logger) *UploadService {
	s := &UploadService{uploader: uploader, maxBytes: maxBytes, metrics: metrics, logger: logger}
	if uploader != nil {
		s.cb = resilience.NewCircuitBreaker("imagehost/"+uploader.Name(), nil)
	}
	return s
}

// Enabled reports whether an image host is configured.
func (s *UploadService) Enabled() bool { return s.uploader != nil }

// MaxBytes is the largest accepted image.
func (s *UploadService) MaxBytes() int64 { return s.maxBytes }

// Upload validates and forwards an image, returning its public URL.
func (s *UploadService) Upload(ctx context.Context, profileID, filename, contentType string, size int64, r io.Reader) (string, error) {
	ctx, span := chatTracer.Start(ctx, "UploadService.Upload")
	defer span.End()

	if s.uploader == nil {
		return "", &domain.ErrExternalService{Service: "imagehost", Err: errors.New("image uploads are not configured")}
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", &domain.ErrValidation{Field: "image", Message: "file must be an image"}
	}
	if size <= 0 || size > s.maxBytes {
		return "", &domain.ErrValidation{Field: "image", Message: fmt.Sprintf("image must be between 1 byte and %d bytes", s.maxBytes)}
	}

	start := time.Now()
	out, err := s.cb.Execute(func() (any, error) {
		return s.uploader.Upload(ctx, filename, r)
	})
	s.metrics.RecordRequestDuration("imagehost."+s.uploader.Name(), time.Since(start))
	if err != nil {
		s.metrics.IncrExternalError("imagehost/" + s.uploader.Name())
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", &domain.ErrCircuitOpen{Service: "imagehost"}
		}
		return "", &domain.ErrExternalService{Service: "imagehost/" + s.uploader.Name(), Err: err}
	}

	url := out.(string)
	s.logger.Info("image uploaded",
		zap.String("profile_id", profileID),
		zap.String("provider", s.uploader.Name()),
		zap.Int64("size", size),
	)
	return url, nil
}
