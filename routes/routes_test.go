package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandchat-io/brandchat/brand"
	"github.com/brandchat-io/brandchat/chat"
	"github.com/brandchat-io/brandchat/datatypes"
	"github.com/brandchat-io/brandchat/handlers"
	"github.com/brandchat-io/brandchat/llm"
	"github.com/brandchat-io/brandchat/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type staticLLM struct{}

func (staticLLM) Chat(ctx context.Context, messages []llm.Message, params llm.GenerationParams) (string, error) {
	return "false", nil
}

func (staticLLM) ChatStream(ctx context.Context, messages []llm.Message, params llm.GenerationParams, callback llm.StreamCallback) error {
	if err := callback(llm.StreamEvent{Type: llm.StreamEventToken, Content: "ok"}); err != nil {
		return err
	}
	return callback(llm.StreamEvent{Type: llm.StreamEventDone})
}

type emptySearcher struct{}

func (emptySearcher) Search(ctx context.Context, brandID string, req *datatypes.ProductSearchRequest) ([]datatypes.SearchResult, error) {
	return nil, nil
}

type nopStore struct{ handlers.ProductStore }

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	registry, err := brand.NewRegistry(brand.NewFileStore(t.TempDir() + "/brands.json"))
	require.NoError(t, err)
	engines := chat.NewManager(registry, staticLLM{}, emptySearcher{})
	hub := session.NewHub(registry, engines)

	router := gin.New()
	SetupRoutes(router, nil, registry, nopStore{}, engines, hub)
	return router
}

func TestSetupRoutes_RegistersFullSurface(t *testing.T) {
	router := newTestRouter(t)

	registered := make(map[string]bool)
	for _, r := range router.Routes() {
		registered[r.Method+" "+r.Path] = true
	}

	expected := []string{
		"GET /health",
		"GET /metrics",
		"GET /ws/chat/:brandId",
		"POST /v1/brands",
		"GET /v1/brands",
		"GET /v1/brands/:brandId",
		"PUT /v1/brands/:brandId",
		"DELETE /v1/brands/:brandId",
		"GET /v1/brands/:brandId/config",
		"PUT /v1/brands/:brandId/config",
		"GET /v1/brands/:brandId/stats",
		"POST /v1/brands/:brandId/products",
		"GET /v1/brands/:brandId/products",
		"POST /v1/brands/:brandId/products/bulk",
		"POST /v1/brands/:brandId/products/search",
		"GET /v1/brands/:brandId/products/:productId",
		"PUT /v1/brands/:brandId/products/:productId",
		"DELETE /v1/brands/:brandId/products/:productId",
		"GET /v1/brands/:brandId/categories",
		"POST /v1/brands/:brandId/chat",
		"POST /v1/brands/:brandId/chat/stream",
		"GET /v1/brands/:brandId/chat/history/:conversationId",
		"GET /v1/brands/:brandId/chat/summary/:conversationId",
		"DELETE /v1/brands/:brandId/chat/:conversationId",
		"POST /v1/brands/:brandId/recommendations",
	}
	for _, route := range expected {
		assert.True(t, registered[route], "missing route %s", route)
	}
}

func TestSetupRoutes_HealthWithoutVectorStore(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "not configured")
}

func TestSetupRoutes_MetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}
