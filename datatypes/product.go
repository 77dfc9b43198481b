package datatypes

import (
	"time"
)

// Product is a single catalog item belonging to one brand.
//
// # Description
// Products are stored in Weaviate under a shared class with a brand_id
// property, so reads and searches always filter on the owning brand.
// Vector search embeds name, description, and category together.
//
// # Limitations
// Price is a plain float in the brand's implied currency. Multi-currency
// catalogs are out of scope.
type Product struct {
	ID          string    `json:"id"`
	BrandID     string    `json:"brand_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Price       float64   `json:"price"`
	Features    []string  `json:"features,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	IsAvailable bool      `json:"is_available"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// EmbeddingText returns the text that is vectorized for semantic search.
func (p *Product) EmbeddingText() string {
	return p.Name + ". " + p.Description + ". " + p.Category
}

// ProductCreateRequest is the body for POST /v1/brands/:brandId/products.
type ProductCreateRequest struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Category    string   `json:"category" validate:"required"`
	Price       float64  `json:"price" validate:"gte=0"`
	Features    []string `json:"features,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	IsAvailable *bool    `json:"is_available,omitempty"`
}

// Validate checks the request against its validation tags.
func (r *ProductCreateRequest) Validate() error {
	return sharedValidate.Struct(r)
}

// ProductUpdateRequest carries a partial product update. Nil fields are
// left untouched. Updates that change name, description, or category
// re-embed the product.
type ProductUpdateRequest struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Price       *float64  `json:"price,omitempty"`
	Features    *[]string `json:"features,omitempty"`
	ImageURL    *string   `json:"image_url,omitempty"`
	IsAvailable *bool     `json:"is_available,omitempty"`
}

// ProductSearchRequest is the body for POST /v1/brands/:brandId/products/search.
type ProductSearchRequest struct {
	Query       string   `json:"query" validate:"required"`
	Limit       int      `json:"limit,omitempty" validate:"omitempty,gte=1,lte=50"`
	Category    string   `json:"category,omitempty"`
	MaxPrice    *float64 `json:"max_price,omitempty"`
	MinPrice    *float64 `json:"min_price,omitempty"`
	OnlyInStock bool     `json:"only_in_stock,omitempty"`
}

// Validate checks the request against its validation tags.
func (r *ProductSearchRequest) Validate() error {
	return sharedValidate.Struct(r)
}

// SearchResult pairs a product with its semantic similarity to the query.
// Score is Weaviate certainty in [0,1].
type SearchResult struct {
	Product Product `json:"product"`
	Score   float64 `json:"score"`
}

// RecommendationRequest is the body for POST /v1/brands/:brandId/recommendations.
type RecommendationRequest struct {
	Query string `json:"query" validate:"required"`
	Limit int    `json:"limit,omitempty" validate:"omitempty,gte=1,lte=20"`
}

// Validate checks the request against its validation tags.
func (r *RecommendationRequest) Validate() error {
	return sharedValidate.Struct(r)
}

// ProductRecommendation is the response of the recommendations endpoint:
// the matched products, a model-written reasoning paragraph, and the mean
// similarity of the matches.
type ProductRecommendation struct {
	Products   []Product `json:"products"`
	Reasoning  string    `json:"reasoning"`
	MatchScore float64   `json:"match_score"`
}
