package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// newTestOllamaClient creates an OllamaClient pointing to a test server.
//
// # Description
//
// Creates an OllamaClient configured to use the given test server URL.
// Used for testing without a real Ollama server.
//
// # Limitations
//
//   - Bypasses environment variable configuration
func newTestOllamaClient(baseURL, model string) *OllamaClient {
	return &OllamaClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		model:      model,
	}
}

// TestChatStream_BasicSuccess tests successful streaming.
//
// # Description
//
// Verifies end-to-end streaming with a mock server returning multiple
// content chunks followed by a done chunk.
func TestChatStream_BasicSuccess(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("Expected path /api/chat, got %s", r.URL.Path)
		}
		if r.Header.Get("Accept") != "application/x-ndjson" {
			t.Errorf("Expected Accept: application/x-ndjson, got %s", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"Hello"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":" there"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"!"},"done":false}`)
		fmt.Fprintln(w, `{"done":true,"done_reason":"stop"}`)
	}))
	defer server.Close()

	client := newTestOllamaClient(server.URL, "test-model")

	var response strings.Builder
	doneSeen := false
	err := client.ChatStream(context.Background(), []Message{
		{Role: "user", Content: "Hi"},
	}, GenerationParams{}, func(event StreamEvent) error {
		switch event.Type {
		case StreamEventToken:
			response.WriteString(event.Content)
		case StreamEventDone:
			doneSeen = true
		}
		return nil
	})

	if err != nil {
		t.Fatalf("ChatStream returned error: %v", err)
	}
	if response.String() != "Hello there!" {
		t.Errorf("Expected 'Hello there!', got '%s'", response.String())
	}
	if !doneSeen {
		t.Error("Expected a StreamEventDone event")
	}
}

// TestChatStream_ServerError tests handling of HTTP errors.
func TestChatStream_ServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintln(w, `{"error":"internal server error"}`)
	}))
	defer server.Close()

	client := newTestOllamaClient(server.URL, "test-model")

	err := client.ChatStream(context.Background(), []Message{
		{Role: "user", Content: "Hi"},
	}, GenerationParams{}, func(event StreamEvent) error {
		return nil
	})

	if err == nil {
		t.Fatal("ChatStream should return error for server error")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("Error should contain status code, got: %v", err)
	}
}

// TestChatStream_StreamError tests handling of an error within the stream.
//
// # Description
//
// Verifies that an error field in a chunk emits a StreamEventError and
// aborts the stream with a non-nil error.
func TestChatStream_StreamError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"message":{"content":"Starting..."},"done":false}`)
		fmt.Fprintln(w, `{"error":"model crashed"}`)
	}))
	defer server.Close()

	client := newTestOllamaClient(server.URL, "test-model")

	var errorReceived bool
	var errorMessage string

	err := client.ChatStream(context.Background(), []Message{
		{Role: "user", Content: "Hi"},
	}, GenerationParams{}, func(event StreamEvent) error {
		if event.Type == StreamEventError {
			errorReceived = true
			errorMessage = event.Error
		}
		return nil
	})

	if err == nil {
		t.Fatal("ChatStream should return error when stream contains error")
	}
	if !errorReceived {
		t.Error("Error event should be emitted before returning")
	}
	if errorMessage != "model crashed" {
		t.Errorf("Expected error 'model crashed', got '%s'", errorMessage)
	}
}

// TestChatStream_ContextCancellation tests context cancellation handling.
func TestChatStream_ContextCancellation(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"message":{"content":"First"},"done":false}`)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		time.Sleep(500 * time.Millisecond)
		fmt.Fprintln(w, `{"message":{"content":"Second"},"done":false}`)
		fmt.Fprintln(w, `{"done":true}`)
	}))
	defer server.Close()

	client := newTestOllamaClient(server.URL, "test-model")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := client.ChatStream(ctx, []Message{
		{Role: "user", Content: "Hi"},
	}, GenerationParams{}, func(event StreamEvent) error {
		return nil
	})

	if err == nil {
		t.Fatal("ChatStream should return error on context cancellation")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got: %v", err)
	}
}

// TestChatStream_CallbackAbort tests callback-initiated abort.
func TestChatStream_CallbackAbort(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"message":{"content":"First"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"content":"Second"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"content":"Third"},"done":false}`)
		fmt.Fprintln(w, `{"done":true}`)
	}))
	defer server.Close()

	client := newTestOllamaClient(server.URL, "test-model")

	tokenCount := 0
	abortErr := errors.New("user abort")

	err := client.ChatStream(context.Background(), []Message{
		{Role: "user", Content: "Hi"},
	}, GenerationParams{}, func(event StreamEvent) error {
		if event.Type == StreamEventToken {
			tokenCount++
			if tokenCount >= 2 {
				return abortErr
			}
		}
		return nil
	})

	if err == nil {
		t.Fatal("ChatStream should return error when callback aborts")
	}
	if !strings.Contains(err.Error(), "callback") {
		t.Errorf("Error should mention callback, got: %v", err)
	}
	if tokenCount != 2 {
		t.Errorf("Expected 2 tokens before abort, got %d", tokenCount)
	}
}

// TestChatStream_MalformedJSON tests handling of malformed JSON lines.
//
// # Description
//
// Verifies that malformed JSON lines are skipped with a warning instead
// of aborting the stream.
func TestChatStream_MalformedJSON(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"message":{"content":"First"},"done":false}`)
		fmt.Fprintln(w, `{not valid json}`)
		fmt.Fprintln(w, `{"message":{"content":"Second"},"done":false}`)
		fmt.Fprintln(w, `{"done":true}`)
	}))
	defer server.Close()

	client := newTestOllamaClient(server.URL, "test-model")

	var tokens []string
	err := client.ChatStream(context.Background(), []Message{
		{Role: "user", Content: "Hi"},
	}, GenerationParams{}, func(event StreamEvent) error {
		if event.Type == StreamEventToken {
			tokens = append(tokens, event.Content)
		}
		return nil
	})

	if err != nil {
		t.Fatalf("ChatStream should not fail on malformed JSON, got: %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("Expected 2 tokens, got %d", len(tokens))
	}
	if tokens[0] != "First" || tokens[1] != "Second" {
		t.Errorf("Expected [First, Second], got %v", tokens)
	}
}

// TestChat_NonStreaming tests the blocking chat path.
func TestChat_NonStreaming(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("Expected path /api/chat, got %s", r.URL.Path)
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"All good"},"done":true}`)
	}))
	defer server.Close()

	client := newTestOllamaClient(server.URL, "test-model")

	out, err := client.Chat(context.Background(), []Message{
		{Role: "user", Content: "Status?"},
	}, GenerationParams{})

	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if out != "All good" {
		t.Errorf("Expected 'All good', got '%s'", out)
	}
}

// TestEmbed tests the embedding path.
func TestEmbed(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("Expected path /api/embeddings, got %s", r.URL.Path)
		}
		fmt.Fprintln(w, `{"embedding":[0.1,0.2,0.3]}`)
	}))
	defer server.Close()

	client := newTestOllamaClient(server.URL, "test-model")

	vec, err := client.Embed(context.Background(), "trail tent")
	if err != nil {
		t.Fatalf("Embed returned error: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("Expected 3 dims, got %d", len(vec))
	}
	if vec[1] != 0.2 {
		t.Errorf("Expected second dim 0.2, got %f", vec[1])
	}
}

// TestParseStreamChunk_ValidJSON tests parsing valid NDJSON lines.
func TestParseStreamChunk_ValidJSON(t *testing.T) {
	t.Parallel()

	client := &OllamaClient{}

	testCases := []struct {
		name     string
		input    string
		expected ollamaStreamChunk
	}{
		{
			name:  "content only",
			input: `{"message":{"role":"assistant","content":"Hello"},"done":false}`,
			expected: ollamaStreamChunk{
				Message: Message{Role: "assistant", Content: "Hello"},
				Done:    false,
			},
		},
		{
			name:  "done chunk",
			input: `{"done":true,"done_reason":"stop"}`,
			expected: ollamaStreamChunk{
				Done:       true,
				DoneReason: "stop",
			},
		},
		{
			name:  "error chunk",
			input: `{"error":"model not found"}`,
			expected: ollamaStreamChunk{
				Error: "model not found",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			chunk, err := client.parseStreamChunk([]byte(tc.input))
			if err != nil {
				t.Fatalf("parseStreamChunk returned error: %v", err)
			}
			if chunk.Message.Content != tc.expected.Message.Content {
				t.Errorf("Content mismatch: expected '%s', got '%s'",
					tc.expected.Message.Content, chunk.Message.Content)
			}
			if chunk.Done != tc.expected.Done {
				t.Errorf("Done mismatch: expected %v, got %v",
					tc.expected.Done, chunk.Done)
			}
			if chunk.Error != tc.expected.Error {
				t.Errorf("Error mismatch: expected '%s', got '%s'",
					tc.expected.Error, chunk.Error)
			}
		})
	}
}

// TestParseStreamChunk_InvalidJSON tests parsing invalid JSON.
func TestParseStreamChunk_InvalidJSON(t *testing.T) {
	t.Parallel()

	client := &OllamaClient{}

	invalidInputs := []string{
		`{not valid`,
		``,
		`{missing: quotes}`,
	}

	for _, input := range invalidInputs {
		t.Run(input, func(t *testing.T) {
			_, err := client.parseStreamChunk([]byte(input))
			if err == nil {
				t.Errorf("parseStreamChunk should return error for invalid JSON: %s", input)
			}
		})
	}
}
