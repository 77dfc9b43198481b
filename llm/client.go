// Package llm abstracts the chat model backends. Two implementations
// exist: OpenAIClient (hosted API) and OllamaClient (self-hosted).
// The backend is selected at startup via LLM_BACKEND_TYPE.
package llm

import "context"

// Message is one turn sent to a model backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams are the optional sampling knobs. Nil fields fall back
// to backend defaults.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// StreamEventType discriminates streaming callback events.
type StreamEventType int

const (
	// StreamEventToken carries one generated text fragment.
	StreamEventToken StreamEventType = iota
	// StreamEventDone marks the end of a successful stream.
	StreamEventDone
	// StreamEventError carries a backend-reported failure.
	StreamEventError
)

// StreamEvent is one unit of streaming output.
type StreamEvent struct {
	Type    StreamEventType
	Content string
	Error   string
}

// StreamCallback receives stream events in order. Returning a non-nil
// error aborts the stream.
type StreamCallback func(event StreamEvent) error

// Client is the interface every chat model backend implements.
//
// # Description
//
// Chat runs a full multi-turn completion and returns the assistant text.
// ChatStream does the same but delivers tokens incrementally through the
// callback, ending with a StreamEventDone event.
//
// # Limitations
//
//   - No tool calling. The conversation engine does retrieval itself.
//
// # Assumptions
//
//   - messages are ordered oldest first and the last turn is the user's.
type Client interface {
	Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error)
	ChatStream(ctx context.Context, messages []Message, params GenerationParams, callback StreamCallback) error
}

// Embedder produces dense vectors for catalog indexing and search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
