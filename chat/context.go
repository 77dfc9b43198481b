package chat

import (
	"fmt"
	"strings"

	"github.com/brandchat-io/brandchat/datatypes"
)

// NoProductsSentinel is the fixed context string for an empty result set.
// The prompt composer checks for it to decide whether a grounding turn is
// worth adding at all.
const NoProductsSentinel = "No specific products found for this query."

// defaultContextItems caps how many results render into the grounding text.
const defaultContextItems = 5

// BuildProductContext renders retrieval results into the plain-text
// grounding block inserted into the completion prompt.
//
// # Description
//
// At most maxItems results render as a numbered list in the given order,
// which the catalog store already sorts by descending score. Each entry
// carries name, category, price, description, the first three features
// (with an ellipsis marker when more exist), an availability flag, and the
// similarity score to two decimals.
func BuildProductContext(results []datatypes.SearchResult, maxItems int) string {
	if len(results) == 0 {
		return NoProductsSentinel
	}
	if maxItems <= 0 {
		maxItems = defaultContextItems
	}
	if len(results) > maxItems {
		results = results[:maxItems]
	}

	var sb strings.Builder
	sb.WriteString("Here are some relevant products from our catalog:\n\n")
	for i, r := range results {
		p := r.Product
		available := "No"
		if p.IsAvailable {
			available = "Yes"
		}
		features := strings.Join(firstN(p.Features, 3), ", ")
		if len(p.Features) > 3 {
			features += "..."
		}

		fmt.Fprintf(&sb, "%d. **%s** (Category: %s)\n", i+1, p.Name, p.Category)
		fmt.Fprintf(&sb, "   Price: $%.2f\n", p.Price)
		fmt.Fprintf(&sb, "   Description: %s\n", p.Description)
		fmt.Fprintf(&sb, "   Key Features: %s\n", features)
		fmt.Fprintf(&sb, "   Available: %s\n", available)
		fmt.Fprintf(&sb, "   Relevance Score: %.2f\n\n", r.Score)
	}
	return sb.String()
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// groundingInstruction wraps the product context into the system turn
// appended after the conversation history.
func groundingInstruction(currentMessage, productContext string) string {
	return fmt.Sprintf("Product information for the current query %q:\n%s\n"+
		"Use this product information to help answer the customer's question. Remember to:\n"+
		"- Reference the conversation history when relevant\n"+
		"- Suggest products that match the customer's stated needs and preferences\n"+
		"- Mention current promotions when appropriate\n"+
		"- Ask follow-up questions to better understand their requirements",
		currentMessage, productContext)
}
