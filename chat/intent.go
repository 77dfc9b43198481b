package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/brandchat-io/brandchat/datatypes"
	"github.com/brandchat-io/brandchat/llm"
)

// intentHistoryTurns is how many trailing non-system turns are shown to the
// classifier model as context.
const intentHistoryTurns = 4

// productKeywords is the deterministic fallback vocabulary, English and
// Indonesian. Matching is case-insensitive substring membership. The list
// is intentionally coarse: in degraded mode a false positive only costs an
// unnecessary catalog search.
var productKeywords = []string{
	// English
	"product", "price", "cost", "buy", "purchase", "order", "recommend",
	"recommendation", "laptop", "computer", "monitor", "accessory",
	"cheap", "expensive", "budget", "stock", "available", "availability",
	"spec", "feature", "warranty", "compare", "catalog", "discount",
	// Indonesian
	"produk", "harga", "beli", "pesan", "rekomendasi", "murah", "mahal",
	"stok", "tersedia", "barang", "spesifikasi", "fitur", "garansi",
	"bandingkan", "katalog", "diskon",
}

// IntentClassifier decides per user turn whether catalog retrieval should
// run.
//
// # Description
//
// The primary path asks the chat model for a strict true/false answer. Any
// model failure drops to a deterministic bilingual keyword test so the
// gating decision never fails outright.
type IntentClassifier struct {
	llm llm.Client
}

// NewIntentClassifier creates a classifier backed by the given model.
func NewIntentClassifier(client llm.Client) *IntentClassifier {
	return &IntentClassifier{llm: client}
}

// ShouldRetrieve reports whether the current message warrants a product
// catalog search.
//
// # Description
//
// Sends the message plus up to the last 4 non-system turns to the model
// with a true/false-only instruction. Only the literal answer "true"
// (after trimming and lowercasing) is positive. If the model call itself
// fails, the keyword fallback decides instead.
func (c *IntentClassifier) ShouldRetrieve(ctx context.Context, message string, history []datatypes.ChatMessage) bool {
	ctx, span := tracer.Start(ctx, "IntentClassifier.ShouldRetrieve")
	defer span.End()

	prompt := buildIntentPrompt(message, history)
	maxTokens := 5
	temperature := float32(0.0)
	answer, err := c.llm.Chat(ctx, []llm.Message{
		{Role: datatypes.RoleSystem, Content: "You are a classifier. Answer with exactly one word: true or false."},
		{Role: datatypes.RoleUser, Content: prompt},
	}, llm.GenerationParams{MaxTokens: &maxTokens, Temperature: &temperature})
	if err != nil {
		slog.Warn("Intent classifier model call failed, using keyword fallback", "error", err)
		return KeywordFallback(message)
	}

	verdict := strings.ToLower(strings.TrimSpace(answer)) == "true"
	slog.Debug("Intent classified", "retrieve", verdict)
	return verdict
}

func buildIntentPrompt(message string, history []datatypes.ChatMessage) string {
	var sb strings.Builder
	sb.WriteString("Decide whether the customer's current message asks about products, ")
	sb.WriteString("prices, availability, recommendations, or anything else that a product ")
	sb.WriteString("catalog search could help answer. Respond with exactly \"true\" or \"false\".\n\n")

	recent := recentNonSystemTurns(history, intentHistoryTurns)
	if len(recent) > 0 {
		sb.WriteString("Recent conversation:\n")
		for _, turn := range recent {
			fmt.Fprintf(&sb, "%s: %s\n", turn.Role, turn.Content)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "Current message: %s", message)
	return sb.String()
}

// recentNonSystemTurns returns up to n trailing turns, skipping system
// turns, oldest first.
func recentNonSystemTurns(history []datatypes.ChatMessage, n int) []datatypes.ChatMessage {
	filtered := make([]datatypes.ChatMessage, 0, len(history))
	for _, turn := range history {
		if turn.Role == datatypes.RoleSystem {
			continue
		}
		filtered = append(filtered, turn)
	}
	if len(filtered) > n {
		filtered = filtered[len(filtered)-n:]
	}
	return filtered
}

// KeywordFallback is the degraded-mode classifier: case-insensitive
// substring membership against the bilingual keyword list.
func KeywordFallback(message string) bool {
	lowered := strings.ToLower(message)
	for _, kw := range productKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}
