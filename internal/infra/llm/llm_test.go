package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/boddenberg/bazchat-go/internal/domain"
	"github.com/google/generative-ai-go/genai"
	openai "github.com/sashabaranov/go-openai"
)

func TestToGeminiHistory_MergesConsecutiveTurns(t *testing.T) {
	msgs := []domain.Message{
		{Sender: domain.SenderCustomer, Text: "hi"},
		{Sender: domain.SenderCustomer, Text: "anyone?"},
		{Sender: domain.SenderOwner, Text: "hello"},
	}

	got := toGeminiHistory(msgs)

	if len(got) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(got))
	}
	if got[0].Role != "user" || len(got[0].Parts) != 2 {
		t.Errorf("unexpected first turn: %+v", got[0])
	}
	if got[1].Role != "model" || got[1].Parts[0] != genai.Text("hello") {
		t.Errorf("unexpected second turn: %+v", got[1])
	}
}

func TestSplitPendingCustomer(t *testing.T) {
	msgs := []domain.Message{
		{ID: "1", Sender: domain.SenderCustomer, Text: "a"},
		{ID: "2", Sender: domain.SenderOwner, Text: "b"},
		{ID: "3", Sender: domain.SenderCustomer, Text: "c"},
		{ID: "4", Sender: domain.SenderOwner, Text: "d"},
	}

	pending, prior, ok := splitPendingCustomer(msgs)
	if !ok || len(pending) != 1 || pending[0].ID != "3" || len(prior) != 2 {
		t.Fatalf("unexpected split: %v %+v %d", ok, pending, len(prior))
	}

	if _, _, ok := splitPendingCustomer(msgs[1:2]); ok {
		t.Error("expected no customer message")
	}
}

func TestSplitPendingCustomer_ConsecutiveCustomerMessages(t *testing.T) {
	msgs := []domain.Message{
		{ID: "1", Sender: domain.SenderCustomer, Text: "hi"},
		{ID: "2", Sender: domain.SenderOwner, Text: "hello"},
		{ID: "3", Sender: domain.SenderCustomer, Text: "do you deliver?"},
		{ID: "4", Sender: domain.SenderCustomer, Text: "to the airport"},
	}

	pending, prior, ok := splitPendingCustomer(msgs)
	if !ok || len(pending) != 2 || pending[0].ID != "3" || pending[1].ID != "4" {
		t.Fatalf("expected both trailing customer messages pending, got %+v", pending)
	}

	history := toGeminiHistory(prior)
	if n := len(history); n == 0 || history[n-1].Role != "model" {
		t.Errorf("history must end on a model turn before sending, got %+v", history)
	}
}

func TestOpenAI_GenerateReply(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "  We open at 9.  "},
			}},
		})
	}))
	defer srv.Close()

	p, err := NewOpenAI("test-key", "", srv.URL+"/v1")
	if err != nil {
		t.Fatal(err)
	}

	reply, err := p.GenerateReply(context.Background(), "You are a shop assistant.", []domain.Message{
		{Sender: domain.SenderCustomer, Text: "When do you open?"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "We open at 9." {
		t.Errorf("unexpected reply %q", reply)
	}
	if got.Model != defaultOpenAIModel || len(got.Messages) != 2 || got.Messages[0].Role != openai.ChatMessageRoleSystem {
		t.Errorf("unexpected request: %+v", got)
	}
}

func TestOpenAI_EmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p, _ := NewOpenAI("test-key", "", srv.URL+"/v1")
	if _, err := p.GenerateReply(context.Background(), "sys", nil); err != ErrEmptyReply {
		t.Fatalf("expected ErrEmptyReply, got %v", err)
	}
}
