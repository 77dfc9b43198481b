// Package datatypes provides the shared data structures for the brandchat
// service.
//
// This file contains the tenant (brand) records and their configuration.
// Chat and product types live in chat.go and product.go.
package datatypes

import (
	"time"
)

// Brand is an isolated customer-facing tenant: one configuration namespace
// plus one product catalog.
//
// The ID is URL-safe (lowercase, hyphens instead of spaces) and unique
// across the registry. It is derived from the requested name unless an
// explicit id was supplied at creation time.
type Brand struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// BrandConfig holds the per-brand conversational configuration. There is
// exactly one config per brand, created together with the brand record.
//
// CompanyInfo and AppearanceSettings are open string maps: downstream
// consumers (prompt templating, frontends) treat them as opaque text, so
// no fixed schema is imposed.
type BrandConfig struct {
	BrandID            string            `json:"brand_id"`
	SystemPrompt       string            `json:"system_prompt"`
	PersonaPrompt      string            `json:"persona_prompt,omitempty"`
	WelcomeMessage     string            `json:"welcome_message"`
	CompanyInfo        map[string]string `json:"company_info"`
	AppearanceSettings map[string]string `json:"appearance_settings"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// BrandCreateRequest is the body for POST /v1/brands.
type BrandCreateRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	ID          string `json:"id,omitempty"`
}

// Validate checks the request against its validation tags.
func (r *BrandCreateRequest) Validate() error {
	return sharedValidate.Struct(r)
}

// BrandUpdateRequest carries a partial brand update. Nil fields are left
// untouched.
type BrandUpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// BrandConfigUpdateRequest carries a partial config update. Nil fields are
// left untouched. Any successful update evicts the brand's cached engine.
type BrandConfigUpdateRequest struct {
	SystemPrompt       *string            `json:"system_prompt,omitempty"`
	PersonaPrompt      *string            `json:"persona_prompt,omitempty"`
	WelcomeMessage     *string            `json:"welcome_message,omitempty"`
	CompanyInfo        *map[string]string `json:"company_info,omitempty"`
	AppearanceSettings *map[string]string `json:"appearance_settings,omitempty"`
}

// BrandStats summarizes a brand's catalog and conversation activity.
type BrandStats struct {
	BrandID             string   `json:"brand_id"`
	BrandName           string   `json:"brand_name"`
	TotalProducts       int      `json:"total_products"`
	AvailableProducts   int      `json:"available_products"`
	Categories          int      `json:"categories"`
	ActiveConversations int      `json:"active_conversations"`
	CategoryList        []string `json:"category_list"`
}
