package datatypes

import (
	"time"
)

// StreamChunk is one SSE event of a streaming chat response. Done is true
// on the final chunk, which carries the trailing metadata instead of text.
type StreamChunk struct {
	Content           string    `json:"content,omitempty"`
	Done              bool      `json:"done"`
	SessionID         string    `json:"session_id,omitempty"`
	SuggestedProducts []Product `json:"suggested_products,omitempty"`
	ConfidenceScore   *float64  `json:"confidence_score,omitempty"`
	Error             string    `json:"error,omitempty"`
}

// WebSocket frame types. Clients send chat and ping frames; the server
// replies with welcome, chunk, complete, pong, and error frames.
const (
	WSTypeChat     = "chat"
	WSTypePing     = "ping"
	WSTypePong     = "pong"
	WSTypeWelcome  = "welcome"
	WSTypeChunk    = "chunk"
	WSTypeComplete = "complete"
	WSTypeError    = "error"
)

// WSInbound is a client-to-server WebSocket frame.
type WSInbound struct {
	Type      string `json:"type"`
	Message   string `json:"message,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	VoiceMode bool   `json:"voice_mode,omitempty"`
}

// WSOutbound is a server-to-client WebSocket frame. Only the fields
// relevant to the frame type are populated.
type WSOutbound struct {
	Type              string    `json:"type"`
	Content           string    `json:"content,omitempty"`
	Message           string    `json:"message,omitempty"`
	SessionID         string    `json:"session_id,omitempty"`
	BrandID           string    `json:"brand_id,omitempty"`
	BrandName         string    `json:"brand_name,omitempty"`
	SuggestedProducts []Product `json:"suggested_products,omitempty"`
	ConfidenceScore   *float64  `json:"confidence_score,omitempty"`
	Timestamp         time.Time `json:"timestamp,omitempty"`
}
