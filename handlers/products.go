package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/brandchat-io/brandchat/brand"
	"github.com/brandchat-io/brandchat/catalog"
	"github.com/brandchat-io/brandchat/datatypes"
)

// defaultSearchLimit caps search responses when the client omits a limit.
const defaultSearchLimit = 5

// requireBrand resolves the brand path param or writes the error response.
func requireBrand(c *gin.Context, registry *brand.Registry) (string, bool) {
	brandID := c.Param("brandId")
	if _, err := registry.Get(brandID); err != nil {
		c.JSON(brandStatus(err), gin.H{"error": err.Error()})
		return "", false
	}
	return brandID, true
}

// CreateProduct handles POST /v1/brands/:brandId/products.
func CreateProduct(registry *brand.Registry, store ProductStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		brandID, ok := requireBrand(c, registry)
		if !ok {
			return
		}

		var req datatypes.ProductCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		product, err := store.Create(c.Request.Context(), brandID, &req)
		if err != nil {
			slog.Error("Product creation failed", "brandId", brandID, "name", req.Name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create product"})
			return
		}

		slog.Info("Product created", "brandId", brandID, "productId", product.ID)
		c.JSON(http.StatusCreated, product)
	}
}

// BulkCreateProducts handles POST /v1/brands/:brandId/products/bulk.
//
// # Description
//
// Validates every entry before writing anything, then creates the
// products one by one. Individual storage failures are reported per
// entry without aborting the rest of the batch.
func BulkCreateProducts(registry *brand.Registry, store ProductStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		brandID, ok := requireBrand(c, registry)
		if !ok {
			return
		}

		var reqs []datatypes.ProductCreateRequest
		if err := c.ShouldBindJSON(&reqs); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if len(reqs) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "empty product list"})
			return
		}
		for i := range reqs {
			if err := reqs[i].Validate(); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("product %d: %s", i, err.Error())})
				return
			}
		}

		created := make([]datatypes.Product, 0, len(reqs))
		var failures []gin.H
		for i := range reqs {
			product, err := store.Create(c.Request.Context(), brandID, &reqs[i])
			if err != nil {
				slog.Error("Bulk product creation failed", "brandId", brandID, "name", reqs[i].Name, "error", err)
				failures = append(failures, gin.H{"name": reqs[i].Name, "error": "failed to create product"})
				continue
			}
			created = append(created, *product)
		}

		slog.Info("Bulk product creation completed", "brandId", brandID, "created", len(created), "failed", len(failures))
		c.JSON(http.StatusCreated, gin.H{
			"created":  created,
			"failures": failures,
			"count":    len(created),
		})
	}
}

// ListProducts handles GET /v1/brands/:brandId/products. The optional
// ?category= query narrows the listing.
func ListProducts(registry *brand.Registry, store ProductStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		brandID, ok := requireBrand(c, registry)
		if !ok {
			return
		}

		products, err := store.List(c.Request.Context(), brandID, c.Query("category"))
		if err != nil {
			slog.Error("Product listing failed", "brandId", brandID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list products"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"products": products, "count": len(products)})
	}
}

// GetProduct handles GET /v1/brands/:brandId/products/:productId.
func GetProduct(registry *brand.Registry, store ProductStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		brandID, ok := requireBrand(c, registry)
		if !ok {
			return
		}

		product, err := store.Get(c.Request.Context(), brandID, c.Param("productId"))
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
				return
			}
			slog.Error("Product lookup failed", "brandId", brandID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get product"})
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

// UpdateProduct handles PUT /v1/brands/:brandId/products/:productId.
func UpdateProduct(registry *brand.Registry, store ProductStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		brandID, ok := requireBrand(c, registry)
		if !ok {
			return
		}
		productID := c.Param("productId")

		var req datatypes.ProductUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		product, err := store.Update(c.Request.Context(), brandID, productID, &req)
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
				return
			}
			slog.Error("Product update failed", "brandId", brandID, "productId", productID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update product"})
			return
		}

		slog.Info("Product updated", "brandId", brandID, "productId", productID)
		c.JSON(http.StatusOK, product)
	}
}

// DeleteProduct handles DELETE /v1/brands/:brandId/products/:productId.
func DeleteProduct(registry *brand.Registry, store ProductStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		brandID, ok := requireBrand(c, registry)
		if !ok {
			return
		}
		productID := c.Param("productId")

		if err := store.Delete(c.Request.Context(), brandID, productID); err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
				return
			}
			slog.Error("Product deletion failed", "brandId", brandID, "productId", productID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete product"})
			return
		}

		slog.Info("Product deleted", "brandId", brandID, "productId", productID)
		c.JSON(http.StatusOK, gin.H{"status": "success", "deleted_product_id": productID})
	}
}

// SearchProducts handles POST /v1/brands/:brandId/products/search.
func SearchProducts(registry *brand.Registry, store ProductStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		brandID, ok := requireBrand(c, registry)
		if !ok {
			return
		}

		var req datatypes.ProductSearchRequest
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

		results, err := store.Search(c.Request.Context(), brandID, &req)
		if err != nil {
			slog.Error("Product search failed", "brandId", brandID, "query", req.Query, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to search products"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
	}
}

// ListCategories handles GET /v1/brands/:brandId/categories.
func ListCategories(registry *brand.Registry, store ProductStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		brandID, ok := requireBrand(c, registry)
		if !ok {
			return
		}

		categories, err := store.Categories(c.Request.Context(), brandID)
		if err != nil {
			slog.Error("Category listing failed", "brandId", brandID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list categories"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"categories": categories, "count": len(categories)})
	}
}
