// Package session manages WebSocket chat connections.
//
// # Description
//
// The Hub tracks open WebSocket connections per brand and runs the frame
// protocol for each: a welcome frame on connect, then a read loop that
// dispatches chat frames to the brand's conversation engine and answers
// ping frames with pongs. Frames the hub cannot parse produce an error
// frame without closing the connection; engine-level failures report an
// error frame and then close.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/brandchat-io/brandchat/brand"
	"github.com/brandchat-io/brandchat/chat"
	"github.com/brandchat-io/brandchat/datatypes"
	"github.com/brandchat-io/brandchat/observability"
)

var tracer = otel.Tracer("brandchat.session")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Tenant widgets embed from arbitrary storefront origins.
		return true
	},
}

// Hub tracks open WebSocket chat connections per brand.
//
// # Description
//
// One Hub serves every brand. Connections register on upgrade and
// unregister when the read loop exits, so ConnectionCount reflects live
// sockets only. The read loop is single-goroutine per connection, which
// keeps writes ordered without a per-connection write lock.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Hub struct {
	registry *brand.Registry
	engines  *chat.Manager
	metrics  *observability.ChatMetrics

	mu    sync.Mutex
	conns map[string]map[*websocket.Conn]bool
}

// NewHub creates a Hub backed by the given registry and engine manager.
// Metrics come from observability.DefaultMetrics and may be absent in tests.
func NewHub(registry *brand.Registry, engines *chat.Manager) *Hub {
	return &Hub{
		registry: registry,
		engines:  engines,
		metrics:  observability.DefaultMetrics,
		conns:    make(map[string]map[*websocket.Conn]bool),
	}
}

// ConnectionCount returns the number of live connections for a brand.
func (h *Hub) ConnectionCount(brandID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns[brandID])
}

func (h *Hub) register(brandID string, ws *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[brandID] == nil {
		h.conns[brandID] = make(map[*websocket.Conn]bool)
	}
	h.conns[brandID][ws] = true
}

func (h *Hub) unregister(brandID string, ws *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns[brandID], ws)
	if len(h.conns[brandID]) == 0 {
		delete(h.conns, brandID)
	}
}

// sendJSON writes a frame and logs the failure if the peer is gone.
func sendJSON(ws *websocket.Conn, v any) error {
	if err := ws.WriteJSON(v); err != nil {
		slog.Warn("WebSocket write failed", "error", err)
		return err
	}
	return nil
}

// HandleChat returns the gin handler for GET /ws/chat/:brandId.
//
// # Description
//
// Upgrades the request and runs the connection protocol: the brand is
// resolved once at connect time, an unknown or inactive brand gets one
// error frame and a close, an active brand gets a welcome frame carrying
// its configured greeting. Afterwards the loop serves chat and ping
// frames until the client disconnects.
func (h *Hub) HandleChat() gin.HandlerFunc {
	return func(c *gin.Context) {
		brandID := c.Param("brandId")

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("WebSocket upgrade failed", "brandId", brandID, "error", err)
			return
		}
		defer ws.Close()

		h.serve(c.Request.Context(), ws, brandID)
	}
}

func (h *Hub) serve(ctx context.Context, ws *websocket.Conn, brandID string) {
	ctx, span := tracer.Start(ctx, "Hub.serve")
	defer span.End()
	span.SetAttributes(attribute.String("brand.id", brandID))

	b, err := h.registry.GetActive(brandID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if h.metrics != nil {
			h.metrics.RecordError(observability.ChannelWebSocket, observability.ErrorCodeBrandNotFound)
		}
		sendJSON(ws, datatypes.WSOutbound{
			Type:      datatypes.WSTypeError,
			Message:   fmt.Sprintf("brand %q is not available", brandID),
			Timestamp: time.Now().UTC(),
		})
		return
	}
	cfg, err := h.registry.GetConfig(brandID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		sendJSON(ws, datatypes.WSOutbound{
			Type:      datatypes.WSTypeError,
			Message:   fmt.Sprintf("brand %q is not available", brandID),
			Timestamp: time.Now().UTC(),
		})
		return
	}

	h.register(brandID, ws)
	defer h.unregister(brandID, ws)
	if h.metrics != nil {
		h.metrics.ConnectionOpened(observability.ChannelWebSocket)
		defer h.metrics.ConnectionClosed(observability.ChannelWebSocket)
	}
	slog.Info("WebSocket connected", "brandId", brandID)

	if err := sendJSON(ws, datatypes.WSOutbound{
		Type:      datatypes.WSTypeWelcome,
		Message:   cfg.WelcomeMessage,
		BrandID:   b.ID,
		BrandName: b.Name,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		return
	}

	for {
		var in datatypes.WSInbound
		if err := ws.ReadJSON(&in); err != nil {
			if isDecodeError(err) {
				// Malformed payload on a healthy socket: report and keep serving.
				if sendErr := sendJSON(ws, datatypes.WSOutbound{
					Type:      datatypes.WSTypeError,
					Message:   "invalid message payload",
					Timestamp: time.Now().UTC(),
				}); sendErr != nil {
					return
				}
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("WebSocket read failed", "brandId", brandID, "error", err)
			}
			return
		}

		switch in.Type {
		case datatypes.WSTypeChat:
			if err := h.handleChatFrame(ctx, ws, brandID, &in); err != nil {
				return
			}
		case datatypes.WSTypePing:
			if err := sendJSON(ws, datatypes.WSOutbound{
				Type:      datatypes.WSTypePong,
				Timestamp: time.Now().UTC(),
			}); err != nil {
				return
			}
		default:
			if err := sendJSON(ws, datatypes.WSOutbound{
				Type:      datatypes.WSTypeError,
				Message:   fmt.Sprintf("unknown message type %q", in.Type),
				Timestamp: time.Now().UTC(),
			}); err != nil {
				return
			}
		}
	}
}

// handleChatFrame streams one chat turn back over the socket. A returned
// error means the connection should close.
func (h *Hub) handleChatFrame(ctx context.Context, ws *websocket.Conn, brandID string, in *datatypes.WSInbound) error {
	if in.Message == "" {
		return sendJSON(ws, datatypes.WSOutbound{
			Type:      datatypes.WSTypeError,
			Message:   "message must not be empty",
			Timestamp: time.Now().UTC(),
		})
	}

	// Resolved per frame: the brand may be deactivated mid-connection,
	// and a config update swaps in a fresh engine.
	engine, err := h.engines.GetEngine(brandID)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordError(observability.ChannelWebSocket, observability.ErrorCodeBrandNotFound)
		}
		sendJSON(ws, datatypes.WSOutbound{
			Type:      datatypes.WSTypeError,
			Message:   fmt.Sprintf("brand %q is not available", brandID),
			Timestamp: time.Now().UTC(),
		})
		return err
	}

	start := time.Now()
	firstToken := time.Time{}
	success := true

	req := &datatypes.ChatRequest{
		Message:   in.Message,
		SessionID: in.SessionID,
		VoiceMode: in.VoiceMode,
	}
	streamErr := engine.ChatStream(ctx, req, func(chunk datatypes.StreamChunk) error {
		switch {
		case chunk.Error != "":
			success = false
			return sendJSON(ws, datatypes.WSOutbound{
				Type:      datatypes.WSTypeError,
				Message:   chunk.Error,
				SessionID: chunk.SessionID,
				Timestamp: time.Now().UTC(),
			})
		case chunk.Done:
			return sendJSON(ws, datatypes.WSOutbound{
				Type:              datatypes.WSTypeComplete,
				SessionID:         chunk.SessionID,
				BrandID:           brandID,
				SuggestedProducts: chunk.SuggestedProducts,
				ConfidenceScore:   chunk.ConfidenceScore,
				Timestamp:         time.Now().UTC(),
			})
		default:
			if firstToken.IsZero() {
				firstToken = time.Now()
				if h.metrics != nil {
					h.metrics.RecordTimeToFirstToken(observability.ChannelWebSocket, firstToken.Sub(start).Seconds())
				}
			}
			return sendJSON(ws, datatypes.WSOutbound{
				Type:      datatypes.WSTypeChunk,
				Content:   chunk.Content,
				SessionID: chunk.SessionID,
			})
		}
	})

	if h.metrics != nil {
		h.metrics.RecordStreamDuration(observability.ChannelWebSocket, time.Since(start).Seconds(), success && streamErr == nil)
		h.metrics.RecordRequest(observability.ChannelWebSocket, success && streamErr == nil)
		if streamErr != nil {
			h.metrics.RecordError(observability.ChannelWebSocket, observability.ErrorCodeClientDisconnect)
		} else if !success {
			h.metrics.RecordError(observability.ChannelWebSocket, observability.ErrorCodeLLMError)
		}
	}
	if streamErr != nil {
		return streamErr
	}
	if !success {
		// The engine already reported the failure; close the connection.
		return errors.New("chat turn failed")
	}
	return nil
}

// isDecodeError reports whether a ReadJSON failure was a payload decode
// problem rather than a transport failure.
func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}
