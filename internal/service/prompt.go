package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/boddenberg/bazchat-go/internal/domain"
)

// BuildSystemPrompt assembles the auto-responder instructions from the
// profile: business info, catalog, FAQs and policies.
func BuildSystemPrompt(p *domain.BusinessProfile) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are the customer support assistant for %q. ", p.DisplayName())
	b.WriteString("Reply in the customer's language, briefly and politely. ")
	b.WriteString("Only use the information below. If you do not know the answer, say the owner will reply soon.\n")

	if info := strings.TrimSpace(p.AIBusinessInfo); info != "" {
		b.WriteString("\n## About the business\n")
		b.WriteString(info)
		b.WriteString("\n")
	}
	if p.Description != "" {
		b.WriteString("\n## Description\n")
		b.WriteString(p.Description)
		b.WriteString("\n")
	}

	if len(p.Products) > 0 {
		b.WriteString("\n## Products\n")
		for _, prod := range p.Products {
			fmt.Fprintf(&b, "- %s: %s", prod.Name, formatPrice(prod.Price, p.Currency))
			if prod.Description != "" {
				fmt.Fprintf(&b, " (%s)", prod.Description)
			}
			b.WriteString("\n")
		}
	}

	if len(p.FAQs) > 0 {
		b.WriteString("\n## FAQ\n")
		for _, f := range p.FAQs {
			fmt.Fprintf(&b, "Q: %s\nA: %s\n", f.Question, f.Answer)
		}
	}

	if p.DeliveryPolicy != "" {
		b.WriteString("\n## Delivery policy\n")
		b.WriteString(p.DeliveryPolicy)
		b.WriteString("\n")
	}
	if p.ReturnPolicy != "" {
		b.WriteString("\n## Return policy\n")
		b.WriteString(p.ReturnPolicy)
		b.WriteString("\n")
	}

	return b.String()
}

func formatPrice(price float64, currency string) string {
	s := strconv.FormatFloat(price, 'f', -1, 64)
	if currency == "" {
		return s
	}
	return s + " " + currency
}
