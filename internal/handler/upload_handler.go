package handler

import (
	"errors"
	"net/http"

	"github.com/boddenberg/bazchat-go/internal/domain"
	"github.com/boddenberg/bazchat-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Uploads: POST /v1/uploads/image (multipart field "image")
// ============================================================

func uploadImageHandler(uploads *service.UploadService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/uploads/image")
		defer span.End()

		profileID := ProfileIDFromContext(ctx)
		span.SetAttributes(attribute.String("profile.id", profileID))

		// Allow room for the multipart envelope on top of the image itself.
		r.Body = http.MaxBytesReader(w, r.Body, uploads.MaxBytes()+64<<10)
		if err := r.ParseMultipartForm(uploads.MaxBytes()); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "image too large")
				return
			}
			writeError(w, http.StatusBadRequest, "invalid multipart body")
			return
		}

		file, header, err := r.FormFile("image")
		if err != nil {
			handleServiceError(w, &domain.ErrValidation{Field: "image", Message: "image file is required"}, logger)
			return
		}
		defer file.Close()

		url, err := uploads.Upload(ctx, profileID, header.Filename, header.Header.Get("Content-Type"), header.Size, file)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, domain.UploadResponse{URL: url})
	}
}
