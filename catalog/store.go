// Package catalog persists brand product catalogs in Weaviate and serves
// semantic search over them.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/brandchat-io/brandchat/datatypes"
	"github.com/brandchat-io/brandchat/llm"
)

var tracer = otel.Tracer("brandchat.catalog")

// ErrStoreUnavailable is returned by every operation when the service was
// started without a vector store connection.
var ErrStoreUnavailable = errors.New("vector store not configured")

// ErrProductNotFound is returned when a product id does not exist under the
// requested brand.
var ErrProductNotFound = errors.New("product not found")

// listPageSize bounds non-search listing queries.
const listPageSize = 1000

// Store persists products in the shared Product class and runs vector
// search over them.
//
// # Description
//
// Every write embeds the product text through the configured Embedder and
// stores the vector alongside the object, keyed by the product's UUID as
// the Weaviate object ID. Every read and search filters on brand_id, so a
// brand can never observe another brand's products.
//
// # Thread Safety
//
// Store is safe for concurrent use. The underlying Weaviate client handles
// connection pooling.
type Store struct {
	client   *weaviate.Client
	embedder llm.Embedder
}

// NewStore creates a catalog store backed by the given Weaviate client and
// embedding provider.
func NewStore(client *weaviate.Client, embedder llm.Embedder) *Store {
	return &Store{client: client, embedder: embedder}
}

// productQueryResponse is the typed shape of Product GraphQL results.
type productQueryResponse struct {
	Get struct {
		Product []productResult `json:"Product"`
	} `json:"Get"`
}

type productResult struct {
	BrandID     string   `json:"brand_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Price       float64  `json:"price"`
	Features    []string `json:"features"`
	ImageURL    string   `json:"image_url"`
	IsAvailable bool     `json:"is_available"`
	CreatedAt   float64  `json:"created_at"`
	UpdatedAt   float64  `json:"updated_at"`
	Additional  struct {
		ID        string   `json:"id"`
		Certainty *float32 `json:"certainty"`
	} `json:"_additional"`
}

func (r *productResult) toProduct() datatypes.Product {
	return datatypes.Product{
		ID:          r.Additional.ID,
		BrandID:     r.BrandID,
		Name:        r.Name,
		Description: r.Description,
		Category:    r.Category,
		Price:       r.Price,
		Features:    r.Features,
		ImageURL:    r.ImageURL,
		IsAvailable: r.IsAvailable,
		CreatedAt:   time.UnixMilli(int64(r.CreatedAt)),
		UpdatedAt:   time.UnixMilli(int64(r.UpdatedAt)),
	}
}

func productProperties(p *datatypes.Product) map[string]interface{} {
	return map[string]interface{}{
		"brand_id":     p.BrandID,
		"name":         p.Name,
		"description":  p.Description,
		"category":     p.Category,
		"price":        p.Price,
		"features":     p.Features,
		"image_url":    p.ImageURL,
		"is_available": p.IsAvailable,
		"created_at":   p.CreatedAt.UnixMilli(),
		"updated_at":   p.UpdatedAt.UnixMilli(),
	}
}

func brandFilter(brandID string) *filters.WhereBuilder {
	return filters.Where().
		WithPath([]string{"brand_id"}).
		WithOperator(filters.Equal).
		WithValueString(brandID)
}

var productFields = []graphql.Field{
	{Name: "brand_id"},
	{Name: "name"},
	{Name: "description"},
	{Name: "category"},
	{Name: "price"},
	{Name: "features"},
	{Name: "image_url"},
	{Name: "is_available"},
	{Name: "created_at"},
	{Name: "updated_at"},
	{Name: "_additional", Fields: []graphql.Field{
		{Name: "id"},
		{Name: "certainty"},
	}},
}

// Create stores a new product for the brand and returns it with its
// generated ID and timestamps filled in.
func (s *Store) Create(ctx context.Context, brandID string, req *datatypes.ProductCreateRequest) (*datatypes.Product, error) {
	ctx, span := tracer.Start(ctx, "Store.Create")
	defer span.End()
	span.SetAttributes(attribute.String("brand.id", brandID))

	if s.client == nil {
		return nil, ErrStoreUnavailable
	}

	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}
	now := time.Now().UTC()
	product := &datatypes.Product{
		ID:          uuid.NewString(),
		BrandID:     brandID,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		Features:    req.Features,
		ImageURL:    req.ImageURL,
		IsAvailable: available,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	vector, err := s.embedder.Embed(ctx, product.EmbeddingText())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to embed product: %w", err)
	}

	_, err = s.client.Data().Creator().
		WithClassName(ProductClass).
		WithID(product.ID).
		WithProperties(productProperties(product)).
		WithVector(vector).
		Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to store product: %w", err)
	}

	slog.Info("Created product", "brandId", brandID, "productId", product.ID, "name", product.Name)
	return product, nil
}

// Get returns one product by id, scoped to the brand. Returns
// ErrProductNotFound if the id does not exist or belongs to another brand.
func (s *Store) Get(ctx context.Context, brandID, productID string) (*datatypes.Product, error) {
	ctx, span := tracer.Start(ctx, "Store.Get")
	defer span.End()

	if s.client == nil {
		return nil, ErrStoreUnavailable
	}

	idFilter := filters.Where().
		WithPath([]string{"_id"}).
		WithOperator(filters.Equal).
		WithValueString(productID)
	combined := filters.Where().
		WithOperator(filters.And).
		WithOperands([]*filters.WhereBuilder{brandFilter(brandID), idFilter})

	result, err := s.client.GraphQL().Get().
		WithClassName(ProductClass).
		WithFields(productFields...).
		WithWhere(combined).
		WithLimit(1).
		Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("weaviate query failed: %w", err)
	}

	parsed, err := ParseGraphQLResponse[productQueryResponse](result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse product result: %w", err)
	}
	if len(parsed.Get.Product) == 0 {
		return nil, ErrProductNotFound
	}
	product := parsed.Get.Product[0].toProduct()
	return &product, nil
}

// List returns the brand's products, optionally filtered by category.
func (s *Store) List(ctx context.Context, brandID, category string) ([]datatypes.Product, error) {
	ctx, span := tracer.Start(ctx, "Store.List")
	defer span.End()
	span.SetAttributes(attribute.String("brand.id", brandID))

	if s.client == nil {
		return nil, ErrStoreUnavailable
	}

	where := brandFilter(brandID)
	if category != "" {
		categoryFilter := filters.Where().
			WithPath([]string{"category"}).
			WithOperator(filters.Equal).
			WithValueString(category)
		where = filters.Where().
			WithOperator(filters.And).
			WithOperands([]*filters.WhereBuilder{brandFilter(brandID), categoryFilter})
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(ProductClass).
		WithFields(productFields...).
		WithWhere(where).
		WithLimit(listPageSize).
		Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("weaviate query failed: %w", err)
	}

	parsed, err := ParseGraphQLResponse[productQueryResponse](result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse product results: %w", err)
	}

	products := make([]datatypes.Product, 0, len(parsed.Get.Product))
	for i := range parsed.Get.Product {
		products = append(products, parsed.Get.Product[i].toProduct())
	}
	return products, nil
}

// Update applies a partial update and re-embeds the product when any of the
// embedded text fields changed.
func (s *Store) Update(ctx context.Context, brandID, productID string, req *datatypes.ProductUpdateRequest) (*datatypes.Product, error) {
	ctx, span := tracer.Start(ctx, "Store.Update")
	defer span.End()

	product, err := s.Get(ctx, brandID, productID)
	if err != nil {
		return nil, err
	}

	reembed := false
	if req.Name != nil && *req.Name != product.Name {
		product.Name = *req.Name
		reembed = true
	}
	if req.Description != nil && *req.Description != product.Description {
		product.Description = *req.Description
		reembed = true
	}
	if req.Category != nil && *req.Category != product.Category {
		product.Category = *req.Category
		reembed = true
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.Features != nil {
		product.Features = *req.Features
	}
	if req.ImageURL != nil {
		product.ImageURL = *req.ImageURL
	}
	if req.IsAvailable != nil {
		product.IsAvailable = *req.IsAvailable
	}
	product.UpdatedAt = time.Now().UTC()

	updater := s.client.Data().Updater().
		WithClassName(ProductClass).
		WithID(productID).
		WithProperties(productProperties(product))
	if reembed {
		vector, err := s.embedder.Embed(ctx, product.EmbeddingText())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to re-embed product: %w", err)
		}
		updater = updater.WithVector(vector)
	}
	if err := updater.Do(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	slog.Info("Updated product", "brandId", brandID, "productId", productID, "reembedded", reembed)
	return product, nil
}

// Delete removes one product, scoped to the brand.
func (s *Store) Delete(ctx context.Context, brandID, productID string) error {
	ctx, span := tracer.Start(ctx, "Store.Delete")
	defer span.End()

	// Scope check first so a brand cannot delete another brand's product.
	if _, err := s.Get(ctx, brandID, productID); err != nil {
		return err
	}

	err := s.client.Data().Deleter().
		WithClassName(ProductClass).
		WithID(productID).
		Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to delete product: %w", err)
	}
	slog.Info("Deleted product", "brandId", brandID, "productId", productID)
	return nil
}

// DeleteBrand batch-deletes every product belonging to the brand. Used when
// a brand is removed from the registry.
func (s *Store) DeleteBrand(ctx context.Context, brandID string) error {
	ctx, span := tracer.Start(ctx, "Store.DeleteBrand")
	defer span.End()
	span.SetAttributes(attribute.String("brand.id", brandID))

	if s.client == nil {
		return ErrStoreUnavailable
	}

	response, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(ProductClass).
		WithOutput("minimal").
		WithWhere(brandFilter(brandID)).
		Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to delete brand catalog: %w", err)
	}
	slog.Info("Deleted brand catalog", "brandId", brandID, "response", &response.Output)
	return nil
}

// Search runs semantic vector search over the brand's catalog.
//
// # Description
//
// Embeds the query, filters by brand and the optional category and
// availability constraints inside Weaviate, then applies the price bounds
// to the returned candidates. Results are ordered by certainty descending.
//
// # Limitations
//
//   - Price filtering happens after retrieval, so a tight price window can
//     return fewer than limit results even when cheaper matches exist.
func (s *Store) Search(ctx context.Context, brandID string, req *datatypes.ProductSearchRequest) ([]datatypes.SearchResult, error) {
	ctx, span := tracer.Start(ctx, "Store.Search")
	defer span.End()
	span.SetAttributes(attribute.String("brand.id", brandID))

	if s.client == nil {
		return nil, ErrStoreUnavailable
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 5
	}

	vector, err := s.embedder.Embed(ctx, req.Query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	operands := []*filters.WhereBuilder{brandFilter(brandID)}
	if req.Category != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"category"}).
			WithOperator(filters.Equal).
			WithValueString(req.Category))
	}
	if req.OnlyInStock {
		operands = append(operands, filters.Where().
			WithPath([]string{"is_available"}).
			WithOperator(filters.Equal).
			WithValueBoolean(true))
	}
	where := operands[0]
	if len(operands) > 1 {
		where = filters.Where().
			WithOperator(filters.And).
			WithOperands(operands)
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(vector)

	// Over-fetch so the post-retrieval price filter has candidates to drop.
	fetchLimit := limit
	if req.MinPrice != nil || req.MaxPrice != nil {
		fetchLimit = limit * 3
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(ProductClass).
		WithFields(productFields...).
		WithWhere(where).
		WithNearVector(nearVector).
		WithLimit(fetchLimit).
		Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}

	parsed, err := ParseGraphQLResponse[productQueryResponse](result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}

	results := make([]datatypes.SearchResult, 0, len(parsed.Get.Product))
	for i := range parsed.Get.Product {
		r := &parsed.Get.Product[i]
		var score float64
		if r.Additional.Certainty != nil {
			score = float64(*r.Additional.Certainty)
		}
		results = append(results, datatypes.SearchResult{
			Product: r.toProduct(),
			Score:   score,
		})
	}

	results = filterByPrice(results, req.MinPrice, req.MaxPrice)
	if len(results) > limit {
		results = results[:limit]
	}
	slog.Debug("Catalog search complete", "brandId", brandID, "query", req.Query, "results", len(results))
	return results, nil
}

// filterByPrice drops results outside the inclusive price bounds, keeping
// the original certainty ordering.
func filterByPrice(results []datatypes.SearchResult, minPrice, maxPrice *float64) []datatypes.SearchResult {
	if minPrice == nil && maxPrice == nil {
		return results
	}
	filtered := results[:0]
	for _, r := range results {
		if minPrice != nil && r.Product.Price < *minPrice {
			continue
		}
		if maxPrice != nil && r.Product.Price > *maxPrice {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

// Categories returns the distinct categories in the brand's catalog,
// sorted alphabetically.
func (s *Store) Categories(ctx context.Context, brandID string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Store.Categories")
	defer span.End()

	products, err := s.List(ctx, brandID, "")
	if err != nil {
		return nil, err
	}
	return distinctCategories(products), nil
}

func distinctCategories(products []datatypes.Product) []string {
	seen := make(map[string]bool)
	categories := make([]string, 0)
	for _, p := range products {
		if p.Category == "" || seen[p.Category] {
			continue
		}
		seen[p.Category] = true
		categories = append(categories, p.Category)
	}
	sort.Strings(categories)
	return categories
}

// Counts returns the total and available product counts for a brand along
// with its category list. Used by the brand stats endpoint.
func (s *Store) Counts(ctx context.Context, brandID string) (total, available int, categories []string, err error) {
	ctx, span := tracer.Start(ctx, "Store.Counts")
	defer span.End()

	products, err := s.List(ctx, brandID, "")
	if err != nil {
		return 0, 0, nil, err
	}
	for _, p := range products {
		if p.IsAvailable {
			available++
		}
	}
	return len(products), available, distinctCategories(products), nil
}
