// Package routes wires the HTTP and WebSocket surface onto a gin router.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"github.com/brandchat-io/brandchat/brand"
	"github.com/brandchat-io/brandchat/chat"
	"github.com/brandchat-io/brandchat/handlers"
	"github.com/brandchat-io/brandchat/session"
)

// SetupRoutes registers every endpoint on the router.
//
// The weaviate client may be nil; the health endpoint then reports the
// vector store as not configured and catalog routes fail at the store
// layer rather than at registration time.
func SetupRoutes(router *gin.Engine, client *weaviate.Client, registry *brand.Registry,
	store handlers.ProductStore, engines *chat.Manager, hub *session.Hub) {

	router.GET("/health", handlers.Health(client))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws/chat/:brandId", hub.HandleChat())

	v1 := router.Group("/v1")
	{
		brands := v1.Group("/brands")
		{
			brands.POST("", handlers.CreateBrand(registry))
			brands.GET("", handlers.ListBrands(registry))
			brands.GET("/:brandId", handlers.GetBrand(registry))
			brands.PUT("/:brandId", handlers.UpdateBrand(registry))
			brands.DELETE("/:brandId", handlers.DeleteBrand(registry, store))
			brands.GET("/:brandId/config", handlers.GetBrandConfig(registry))
			brands.PUT("/:brandId/config", handlers.UpdateBrandConfig(registry))
			brands.GET("/:brandId/stats", handlers.GetBrandStats(registry, store, engines))

			brands.POST("/:brandId/products", handlers.CreateProduct(registry, store))
			brands.GET("/:brandId/products", handlers.ListProducts(registry, store))
			brands.POST("/:brandId/products/bulk", handlers.BulkCreateProducts(registry, store))
			brands.POST("/:brandId/products/search", handlers.SearchProducts(registry, store))
			brands.GET("/:brandId/products/:productId", handlers.GetProduct(registry, store))
			brands.PUT("/:brandId/products/:productId", handlers.UpdateProduct(registry, store))
			brands.DELETE("/:brandId/products/:productId", handlers.DeleteProduct(registry, store))
			brands.GET("/:brandId/categories", handlers.ListCategories(registry, store))

			brands.POST("/:brandId/chat", handlers.Chat(engines))
			brands.POST("/:brandId/chat/stream", handlers.ChatStream(engines))
			brands.GET("/:brandId/chat/history/:conversationId", handlers.GetHistory(engines))
			brands.GET("/:brandId/chat/summary/:conversationId", handlers.GetSummary(engines))
			brands.DELETE("/:brandId/chat/:conversationId", handlers.ClearConversation(engines))

			brands.POST("/:brandId/recommendations", handlers.Recommendations(engines))
		}
	}
}
