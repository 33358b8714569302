package llm

import (
	"context"
	"fmt"

	"github.com/boddenberg/bazchat-go/internal/config"
	"github.com/boddenberg/bazchat-go/internal/port"
)

// FromConfig builds the configured reply generator. It returns (nil, nil)
// when the auto-responder is disabled.
func FromConfig(ctx context.Context, cfg *config.Config) (port.ReplyGenerator, error) {
	switch cfg.LLMProvider {
	case "", "none":
		return nil, nil
	case "gemini":
		g, err := NewGemini(ctx, cfg.GeminiAPIKey, cfg.LLMModel)
		if err != nil {
			return nil, err
		}
		return g, nil
	case "openai":
		o, err := NewOpenAI(cfg.OpenAIAPIKey, cfg.LLMModel, "")
		if err != nil {
			return nil, err
		}
		return o, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
}
