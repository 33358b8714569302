package service_test

import (
	"strings"
	"testing"

	"github.com/boddenberg/bazchat-go/internal/domain"
	"github.com/boddenberg/bazchat-go/internal/service"
)

func TestBuildSystemPrompt(t *testing.T) {
	p := &domain.BusinessProfile{
		Name:           "Acme",
		Currency:       "USD",
		AIBusinessInfo: "Family run since 1990.",
		Products:       []domain.Product{{Name: "Anvil", Price: 49.5, Description: "heavy"}},
		FAQs:           []domain.FAQ{{Question: "Do you ship?", Answer: "Yes"}},
		DeliveryPolicy: "2 days",
	}

	prompt := service.BuildSystemPrompt(p)

	for _, want := range []string{`"Acme"`, "Family run since 1990.", "- Anvil: 49.5 USD (heavy)", "Q: Do you ship?\nA: Yes", "2 days"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "Return policy") {
		t.Error("empty sections must be omitted")
	}
}
