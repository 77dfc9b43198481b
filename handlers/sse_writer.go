package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/brandchat-io/brandchat/datatypes"
)

// =============================================================================
// SSE Writer
// =============================================================================

// SSEWriter writes chat stream chunks to an HTTP response in SSE format.
//
// # Description
//
// Wraps an http.ResponseWriter to emit `data: {json}\n\n` events, flushing
// after every write so tokens reach the client as they are generated.
//
// # Thread Safety
//
// Thread-safe via mutex, though the chat stream delivers chunks from a
// single goroutine.
//
// # Limitations
//
//   - Requires http.Flusher support.
//   - Cannot be reused across requests.
type SSEWriter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

// NewSSEWriter creates an SSEWriter over the given ResponseWriter.
//
// # Outputs
//
//   - *SSEWriter: Ready to write chunks.
//   - error: Non-nil if the ResponseWriter does not support flushing.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}
	return &SSEWriter{writer: w, flusher: flusher}, nil
}

// WriteChunk serializes one stream chunk as an SSE data event and flushes.
func (w *SSEWriter) WriteChunk(chunk datatypes.StreamChunk) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("marshal chunk: %w", err)
	}
	if _, err := fmt.Fprintf(w.writer, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write chunk: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// WriteKeepAlive sends an SSE comment line. Comments are ignored by
// clients but reset load balancer idle timers.
func (w *SSEWriter) WriteKeepAlive() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprintf(w.writer, ": ping\n\n"); err != nil {
		return fmt.Errorf("write keepalive: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// SetSSEHeaders configures response headers for SSE streaming. Must be
// called before the first write.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}
