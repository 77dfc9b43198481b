// Package handlers contains the gin HTTP handlers for the chat backend.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/brandchat-io/brandchat/brand"
	"github.com/brandchat-io/brandchat/chat"
	"github.com/brandchat-io/brandchat/datatypes"
)

// ProductStore is the catalog surface the handlers need. Satisfied by
// *catalog.Store.
type ProductStore interface {
	Create(ctx context.Context, brandID string, req *datatypes.ProductCreateRequest) (*datatypes.Product, error)
	Get(ctx context.Context, brandID, productID string) (*datatypes.Product, error)
	List(ctx context.Context, brandID, category string) ([]datatypes.Product, error)
	Update(ctx context.Context, brandID, productID string, req *datatypes.ProductUpdateRequest) (*datatypes.Product, error)
	Delete(ctx context.Context, brandID, productID string) error
	DeleteBrand(ctx context.Context, brandID string) error
	Search(ctx context.Context, brandID string, req *datatypes.ProductSearchRequest) ([]datatypes.SearchResult, error)
	Categories(ctx context.Context, brandID string) ([]string, error)
	Counts(ctx context.Context, brandID string) (total, available int, categories []string, err error)
}

// brandStatus translates registry errors to HTTP status codes.
func brandStatus(err error) int {
	switch {
	case errors.Is(err, brand.ErrBrandNotFound):
		return http.StatusNotFound
	case errors.Is(err, brand.ErrBrandInactive):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// CreateBrand handles POST /v1/brands.
func CreateBrand(registry *brand.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.BrandCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		created, err := registry.Create(&req)
		if err != nil {
			slog.Error("Brand creation failed", "name", req.Name, "error", err)
			c.JSON(brandStatus(err), gin.H{"error": err.Error()})
			return
		}

		slog.Info("Brand created", "brandId", created.ID)
		c.JSON(http.StatusCreated, created)
	}
}

// ListBrands handles GET /v1/brands. With ?active=true only active
// brands are returned.
func ListBrands(registry *brand.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		includeInactive := c.Query("active") != "true"
		brands := registry.List(includeInactive)
		c.JSON(http.StatusOK, gin.H{"brands": brands, "count": len(brands)})
	}
}

// GetBrand handles GET /v1/brands/:brandId.
func GetBrand(registry *brand.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, err := registry.Get(c.Param("brandId"))
		if err != nil {
			c.JSON(brandStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

// UpdateBrand handles PUT /v1/brands/:brandId.
func UpdateBrand(registry *brand.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		brandID := c.Param("brandId")

		var req datatypes.BrandUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		updated, err := registry.Update(brandID, &req)
		if err != nil {
			c.JSON(brandStatus(err), gin.H{"error": err.Error()})
			return
		}

		slog.Info("Brand updated", "brandId", brandID)
		c.JSON(http.StatusOK, updated)
	}
}

// DeleteBrand handles DELETE /v1/brands/:brandId.
//
// # Description
//
// Cascade is best-effort and non-atomic: the catalog is purged first,
// then the registry record (which also evicts the cached engine). If the
// catalog purge fails the record is still removed and the response
// reports the partial cleanup.
func DeleteBrand(registry *brand.Registry, store ProductStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		brandID := c.Param("brandId")
		slog.Info("Deleting brand", "brandId", brandID)

		if _, err := registry.Get(brandID); err != nil {
			c.JSON(brandStatus(err), gin.H{"error": err.Error()})
			return
		}

		catalogErr := store.DeleteBrand(c.Request.Context(), brandID)
		if catalogErr != nil {
			slog.Error("Catalog cascade failed", "brandId", brandID, "error", catalogErr)
		}

		if err := registry.Delete(brandID); err != nil {
			c.JSON(brandStatus(err), gin.H{"error": err.Error()})
			return
		}

		if catalogErr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"status":  "partial",
				"error":   "brand deleted but catalog cleanup failed",
				"brandId": brandID,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "deleted_brand_id": brandID})
	}
}

// GetBrandConfig handles GET /v1/brands/:brandId/config.
func GetBrandConfig(registry *brand.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg, err := registry.GetConfig(c.Param("brandId"))
		if err != nil {
			c.JSON(brandStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, cfg)
	}
}

// UpdateBrandConfig handles PUT /v1/brands/:brandId/config. A successful
// update evicts the brand's cached engine, so the next turn sees the new
// prompts.
func UpdateBrandConfig(registry *brand.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		brandID := c.Param("brandId")

		var req datatypes.BrandConfigUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		cfg, err := registry.UpdateConfig(brandID, &req)
		if err != nil {
			c.JSON(brandStatus(err), gin.H{"error": err.Error()})
			return
		}

		slog.Info("Brand config updated", "brandId", brandID)
		c.JSON(http.StatusOK, cfg)
	}
}

// GetBrandStats handles GET /v1/brands/:brandId/stats.
func GetBrandStats(registry *brand.Registry, store ProductStore, engines *chat.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		brandID := c.Param("brandId")

		b, err := registry.Get(brandID)
		if err != nil {
			c.JSON(brandStatus(err), gin.H{"error": err.Error()})
			return
		}

		total, available, categories, err := store.Counts(c.Request.Context(), brandID)
		if err != nil {
			slog.Error("Catalog stats query failed", "brandId", brandID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query catalog stats"})
			return
		}

		c.JSON(http.StatusOK, datatypes.BrandStats{
			BrandID:             b.ID,
			BrandName:           b.Name,
			TotalProducts:       total,
			AvailableProducts:   available,
			Categories:          len(categories),
			ActiveConversations: engines.ActiveConversations(brandID),
			CategoryList:        categories,
		})
	}
}
