package imagehost

import (
	"fmt"

	"github.com/boddenberg/bazchat-go/internal/config"
	"github.com/boddenberg/bazchat-go/internal/port"
	"go.uber.org/zap"
)

// FromConfig builds the configured uploader. It returns (nil, nil) when
// uploads are disabled.
func FromConfig(cfg *config.Config, logger *zap.Logger) (port.ImageUploader, error) {
	switch cfg.ImageProvider {
	case "", "none":
		return nil, nil
	case "imgbb":
		up, err := NewImgBB(cfg.ImgBBBaseURL, cfg.ImgBBAPIKey, cfg.HTTPTimeout, logger)
		if err != nil {
			return nil, err
		}
		return up, nil
	case "cloudinary":
		up, err := NewCloudinary(cfg.CloudinaryURL, "bazchat", logger)
		if err != nil {
			return nil, err
		}
		return up, nil
	default:
		return nil, fmt.Errorf("unknown image provider %q", cfg.ImageProvider)
	}
}
