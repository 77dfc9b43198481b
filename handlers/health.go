package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
)

// Health handles GET /health.
//
// # Description
//
// Reports the service as up and probes the vector index. A Weaviate
// outage degrades the payload but keeps the 200 status: chat still works
// without retrieval, so the service itself is healthy.
func Health(client *weaviate.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		weaviateStatus := "ok"
		if client != nil {
			ready, err := client.Misc().ReadyChecker().Do(c.Request.Context())
			if err != nil || !ready {
				slog.Warn("Weaviate readiness probe failed", "error", err)
				weaviateStatus = "unavailable"
			}
		} else {
			weaviateStatus = "not configured"
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"weaviate":  weaviateStatus,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
