package datatypes

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// sharedValidate is the package-level validator instance. validator caches
// struct metadata internally, so a single instance is reused everywhere.
var sharedValidate = validator.New()

func init() {
	// maxbytes limits a string field by byte length rather than rune count,
	// matching what the LLM backends actually account for.
	err := sharedValidate.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		limit := 0
		if _, err := fmt.Sscanf(fl.Param(), "%d", &limit); err != nil {
			return false
		}
		return len(fl.Field().String()) <= limit
	})
	if err != nil {
		panic(fmt.Sprintf("datatypes: register maxbytes validation: %v", err))
	}
}

// RoleUser, RoleAssistant, and RoleSystem are the conversation turn roles.
// System turns carry the brand prompt and are never returned by history
// endpoints.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatRequest is the body for POST /v1/brands/:brandId/chat and the payload
// of a WebSocket chat frame.
//
// # Description
// SessionID scopes conversation history. VoiceMode asks for a single short
// spoken-style sentence instead of full prose.
//
// # Limitations
// Message is capped at 32 KiB. Longer inputs are rejected before any model
// call is made.
type ChatRequest struct {
	Message   string `json:"message" validate:"required,maxbytes=32768"`
	SessionID string `json:"session_id,omitempty"`
	VoiceMode bool   `json:"voice_mode,omitempty"`
}

// Validate checks the request against its validation tags.
func (r *ChatRequest) Validate() error {
	return sharedValidate.Struct(r)
}

// ChatResponse is the non-streaming chat reply.
//
// ConfidenceScore is nil when the classifier decided no product retrieval
// was needed, and 0.0 when retrieval ran but matched nothing. The two cases
// are deliberately distinguishable; SuggestedProducts mirrors them as
// absent versus empty.
type ChatResponse struct {
	Response          string    `json:"response"`
	SessionID         string    `json:"session_id"`
	BrandID           string    `json:"brand_id"`
	SuggestedProducts []Product `json:"suggested_products"`
	ConfidenceScore   *float64  `json:"confidence_score,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// ConversationSummary is the compact session digest used by operators:
// the last few turns as truncated preview lines.
type ConversationSummary struct {
	SessionID string `json:"session_id"`
	BrandID   string `json:"brand_id"`
	Summary   string `json:"summary"`
}
