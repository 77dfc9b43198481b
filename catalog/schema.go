package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// ProductClass is the single Weaviate class holding every brand's catalog.
// Tenant isolation happens through the brand_id property, which every read
// and search filters on.
const ProductClass = "Product"

// GetProductSchema returns the schema for the Product class.
//
// # Description
//
// Products are stored with externally computed vectors (vectorizer "none"),
// embedded from name, description, and category at write time.
//
// # Properties
//
//   - brand_id: Owning brand. Tokenization "field" so IDs match exactly.
//   - name, description, category: Display and embedding text.
//   - price: Unit price in the brand's implied currency.
//   - features: Free-form feature strings.
//   - image_url: Optional display image.
//   - is_available: Stock flag, filterable for in-stock-only search.
//   - created_at, updated_at: Unix milliseconds.
func GetProductSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       ProductClass,
		Description: "A catalog item belonging to one brand, vectorized for semantic search.",
		Vectorizer:  "none",
		InvertedIndexConfig: &models.InvertedIndexConfig{
			IndexTimestamps: true,
		},
		Properties: []*models.Property{
			{
				Name:            "brand_id",
				DataType:        []string{"text"},
				Description:     "Identifier of the owning brand.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:        "name",
				DataType:    []string{"text"},
				Description: "Product display name.",
			},
			{
				Name:        "description",
				DataType:    []string{"text"},
				Description: "Product description used for embedding and display.",
			},
			{
				Name:            "category",
				DataType:        []string{"text"},
				Description:     "Product category.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "price",
				DataType:        []string{"number"},
				Description:     "Unit price.",
				IndexFilterable: indexFilterable,
			},
			{
				Name:        "features",
				DataType:    []string{"text[]"},
				Description: "Free-form feature strings.",
			},
			{
				Name:        "image_url",
				DataType:    []string{"text"},
				Description: "Optional product image URL.",
			},
			{
				Name:            "is_available",
				DataType:        []string{"boolean"},
				Description:     "Whether the product is currently in stock.",
				IndexFilterable: indexFilterable,
			},
			{
				Name:            "created_at",
				DataType:        []string{"number"},
				Description:     "Unix milliseconds when the product was created.",
				IndexFilterable: indexFilterable,
			},
			{
				Name:            "updated_at",
				DataType:        []string{"number"},
				Description:     "Unix milliseconds when the product was last modified.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

// EnsureSchema creates the Product class if it does not exist yet. Schema
// creation failure is fatal because nothing downstream can work without it.
func EnsureSchema(client *weaviate.Client) {
	class := GetProductSchema()
	slog.Info("Checking schema", "class", class.Class)

	_, err := client.Schema().ClassGetter().WithClassName(class.Class).Do(context.Background())
	if err != nil {
		slog.Info("Schema not found, creating it...", "class", class.Class)
		if err := client.Schema().ClassCreator().WithClass(class).Do(context.Background()); err != nil {
			log.Fatalf("Failed to create schema for class %s: %v", class.Class, err)
		}
		slog.Info("Successfully created schema", "class", class.Class)
	} else {
		slog.Info("Schema already exists", "class", class.Class)
	}
}

// ParseGraphQLResponse parses a Weaviate GraphQL response into the target
// type. The target type T must have json tags matching the response shape.
func ParseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}

	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL response data: %w", err)
	}

	var result T
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into target type: %w", err)
	}

	return &result, nil
}
