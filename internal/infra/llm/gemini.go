// Package llm adapts hosted language models to port.ReplyGenerator.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/boddenberg/bazchat-go/internal/domain"
	"github.com/google/generative-ai-go/genai"
	"go.opentelemetry.io/otel"
	"google.golang.org/api/option"
)

var tracer = otel.Tracer("llm")

const defaultGeminiModel = "gemini-1.5-flash-latest"

// ErrEmptyReply is returned when the provider answers with no text.
var ErrEmptyReply = errors.New("llm returned an empty reply")

// Gemini generates replies with Google's Gemini models.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini client.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key cannot be empty")
	}
	if model == "" {
		model = defaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Name implements port.ReplyGenerator.
func (g *Gemini) Name() string { return "gemini" }

// Close releases the underlying client.
func (g *Gemini) Close() error { return g.client.Close() }

// GenerateReply implements port.ReplyGenerator. Customer messages map to the
// "user" role and owner messages to "model"; the trailing customer messages
// are sent and everything before them becomes chat history.
func (g *Gemini) GenerateReply(ctx context.Context, systemPrompt string, history []domain.Message) (string, error) {
	ctx, span := tracer.Start(ctx, "Gemini.GenerateReply")
	defer span.End()

	pending, prior, ok := splitPendingCustomer(history)
	if !ok {
		return "", errors.New("no customer message to answer")
	}

	model := g.client.GenerativeModel(g.model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}

	cs := model.StartChat()
	cs.History = toGeminiHistory(prior)

	parts := make([]genai.Part, len(pending))
	for i, m := range pending {
		parts[i] = genai.Text(m.Text)
	}
	resp, err := cs.SendMessage(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini chat SendMessage failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyReply
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	reply := strings.TrimSpace(sb.String())
	if reply == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}

// Gemini requires alternating roles, so consecutive messages from the same
// side are merged into one turn.
func toGeminiHistory(msgs []domain.Message) []*genai.Content {
	var out []*genai.Content
	for _, m := range msgs {
		role := "user"
		if m.Sender == domain.SenderOwner {
			role = "model"
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Parts = append(out[n-1].Parts, genai.Text(m.Text))
			continue
		}
		out = append(out, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Text)}})
	}
	return out
}

// splitPendingCustomer returns the newest run of consecutive customer
// messages and the messages before it. The run is sent as one user turn so
// the history never ends on a user turn.
func splitPendingCustomer(history []domain.Message) ([]domain.Message, []domain.Message, bool) {
	end := len(history) - 1
	for end >= 0 && history[end].Sender != domain.SenderCustomer {
		end--
	}
	if end < 0 {
		return nil, nil, false
	}
	start := end
	for start > 0 && history[start-1].Sender == domain.SenderCustomer {
		start--
	}
	return history[start : end+1], history[:start], true
}
