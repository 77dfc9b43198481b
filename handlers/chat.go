package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/brandchat-io/brandchat/chat"
	"github.com/brandchat-io/brandchat/datatypes"
	"github.com/brandchat-io/brandchat/observability"
)

// Chat handles POST /v1/brands/:brandId/chat, one single-shot turn.
//
// # Description
//
// Engine failures have already been degraded to the apology reply by the
// time the response reaches this handler, so the status is 200 whenever
// the brand resolves and the request validates.
func Chat(engines *chat.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		brandID := c.Param("brandId")

		var req datatypes.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		engine, err := engines.GetEngine(brandID)
		if err != nil {
			if observability.DefaultMetrics != nil {
				observability.DefaultMetrics.RecordError(observability.ChannelHTTP, observability.ErrorCodeBrandNotFound)
			}
			c.JSON(brandStatus(err), gin.H{"error": err.Error()})
			return
		}

		resp := engine.Chat(c.Request.Context(), &req)
		if observability.DefaultMetrics != nil {
			observability.DefaultMetrics.RecordRequest(observability.ChannelHTTP, true)
		}
		c.JSON(http.StatusOK, resp)
	}
}

// ChatStream handles POST /v1/brands/:brandId/chat/stream, one streaming
// turn over SSE.
//
// # Description
//
// Each chunk goes out as a `data:` event as it is generated. Mid-stream
// failures arrive as a terminal error-flagged chunk, not an HTTP error;
// by then the status line is long gone.
func ChatStream(engines *chat.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		brandID := c.Param("brandId")

		var req datatypes.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		engine, err := engines.GetEngine(brandID)
		if err != nil {
			if observability.DefaultMetrics != nil {
				observability.DefaultMetrics.RecordError(observability.ChannelSSE, observability.ErrorCodeBrandNotFound)
			}
			c.JSON(brandStatus(err), gin.H{"error": err.Error()})
			return
		}

		SetSSEHeaders(c.Writer)
		writer, err := NewSSEWriter(c.Writer)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
			return
		}

		start := time.Now()
		firstToken := time.Time{}
		success := true
		if observability.DefaultMetrics != nil {
			observability.DefaultMetrics.ConnectionOpened(observability.ChannelSSE)
			defer observability.DefaultMetrics.ConnectionClosed(observability.ChannelSSE)
		}

		streamErr := engine.ChatStream(c.Request.Context(), &req, func(chunk datatypes.StreamChunk) error {
			if chunk.Error != "" {
				success = false
			}
			if chunk.Content != "" && firstToken.IsZero() {
				firstToken = time.Now()
				if observability.DefaultMetrics != nil {
					observability.DefaultMetrics.RecordTimeToFirstToken(observability.ChannelSSE, firstToken.Sub(start).Seconds())
				}
			}
			return writer.WriteChunk(chunk)
		})
		if streamErr != nil {
			// The client went away mid-stream; nothing left to write.
			slog.Warn("SSE stream aborted", "brandId", brandID, "error", streamErr)
			success = false
		}

		if observability.DefaultMetrics != nil {
			observability.DefaultMetrics.RecordStreamDuration(observability.ChannelSSE, time.Since(start).Seconds(), success)
			observability.DefaultMetrics.RecordRequest(observability.ChannelSSE, success)
		}
	}
}

// GetHistory handles GET /v1/brands/:brandId/chat/history/:conversationId.
// System turns are never exposed.
func GetHistory(engines *chat.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		brandID := c.Param("brandId")
		conversationID := c.Param("conversationId")

		engine, err := engines.GetEngine(brandID)
		if err != nil {
			c.JSON(brandStatus(err), gin.H{"error": err.Error()})
			return
		}

		messages, ok := engine.History(conversationID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"session_id": conversationID,
			"brand_id":   brandID,
			"messages":   messages,
			"count":      len(messages),
		})
	}
}

// GetSummary handles GET /v1/brands/:brandId/chat/summary/:conversationId.
func GetSummary(engines *chat.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		brandID := c.Param("brandId")
		conversationID := c.Param("conversationId")

		engine, err := engines.GetEngine(brandID)
		if err != nil {
			c.JSON(brandStatus(err), gin.H{"error": err.Error()})
			return
		}

		summary, ok := engine.Summary(conversationID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		c.JSON(http.StatusOK, datatypes.ConversationSummary{
			SessionID: conversationID,
			BrandID:   brandID,
			Summary:   summary,
		})
	}
}

// ClearConversation handles DELETE /v1/brands/:brandId/chat/:conversationId.
func ClearConversation(engines *chat.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		brandID := c.Param("brandId")
		conversationID := c.Param("conversationId")

		engine, err := engines.GetEngine(brandID)
		if err != nil {
			c.JSON(brandStatus(err), gin.H{"error": err.Error()})
			return
		}

		if !engine.Clear(conversationID) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}

		slog.Info("Conversation cleared", "brandId", brandID, "conversationId", conversationID)
		c.JSON(http.StatusOK, gin.H{"status": "success", "cleared_session_id": conversationID})
	}
}

// Recommendations handles POST /v1/brands/:brandId/recommendations.
func Recommendations(engines *chat.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		brandID := c.Param("brandId")

		var req datatypes.RecommendationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Limit == 0 {
			req.Limit = defaultSearchLimit
		}

		engine, err := engines.GetEngine(brandID)
		if err != nil {
			c.JSON(brandStatus(err), gin.H{"error": err.Error()})
			return
		}

		rec, err := engine.Recommendations(c.Request.Context(), req.Query, req.Limit)
		if err != nil {
			slog.Error("Recommendations failed", "brandId", brandID, "query", req.Query, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build recommendations"})
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}
