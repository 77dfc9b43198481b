// Package brand holds the tenant registry: brand records, their
// conversational configs, and the JSON snapshot they persist to.
package brand

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/brandchat-io/brandchat/datatypes"
)

var (
	// ErrBrandNotFound is returned for unknown brand IDs.
	ErrBrandNotFound = errors.New("brand not found")
	// ErrBrandInactive is returned when a deactivated brand is addressed
	// through a conversational operation.
	ErrBrandInactive = errors.New("brand is not active")
)

// DefaultBrandID is the brand seeded into an empty registry so the service
// is usable immediately after first boot.
const DefaultBrandID = "techpro"

// Registry is the in-memory brand registry with JSON file persistence.
//
// # Description
//
// All reads are served from memory under a read lock. Every mutation
// persists the full snapshot before returning and notifies the registered
// change listener, which the conversation layer uses to evict cached
// engines for the affected brand.
//
// # Thread Safety
//
// Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	brands   map[string]*datatypes.Brand
	configs  map[string]*datatypes.BrandConfig
	store    *FileStore
	onChange func(brandID string)
}

// NewRegistry loads the snapshot from the store and seeds the default
// brand when the registry comes up empty.
func NewRegistry(store *FileStore) (*Registry, error) {
	brands, configs, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load brand registry: %w", err)
	}
	r := &Registry{
		brands:  brands,
		configs: configs,
		store:   store,
	}
	if len(r.brands) == 0 {
		r.createDefaultBrand()
	}
	return r, nil
}

// SetChangeListener registers the callback fired after any mutation of a
// brand or its config. Must be called before the registry is shared.
func (r *Registry) SetChangeListener(fn func(brandID string)) {
	r.onChange = fn
}

func (r *Registry) notify(brandID string) {
	if r.onChange != nil {
		r.onChange(brandID)
	}
}

// persistLocked writes the snapshot. Callers hold the write lock. A failed
// save is logged but does not roll back the in-memory state.
func (r *Registry) persistLocked() {
	if err := r.store.Save(r.brands, r.configs); err != nil {
		slog.Error("Failed to persist brand registry", "error", err)
	}
}

func (r *Registry) createDefaultBrand() {
	now := time.Now().UTC()
	brand := &datatypes.Brand{
		ID:          DefaultBrandID,
		Name:        "TechPro Solutions",
		Description: "Premium technology retailer specializing in business and professional equipment",
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	config := &datatypes.BrandConfig{
		BrandID: DefaultBrandID,
		SystemPrompt: "You are a helpful customer service chatbot for TechPro Solutions, " +
			"a premium technology retailer specializing in business and professional equipment.\n\n" +
			"You can communicate in both English and Indonesian (Bahasa Indonesia). " +
			"Always respond in the same language the customer uses.\n\n" +
			"About TechPro Solutions:\n" +
			"- Founded in 2018, we serve businesses, professionals, and tech enthusiasts across North America\n" +
			"- We specialize in business laptops, workstations, creative systems, and professional accessories\n" +
			"- We partner with top brands like Apple, Dell, HP, Lenovo, ASUS, and more\n\n" +
			"Always be professional, knowledgeable, and helpful.",
		WelcomeMessage: "Welcome to TechPro Solutions! How can I help you find the perfect technology solution today?",
		CompanyInfo: map[string]string{
			"name":      "TechPro Solutions",
			"founded":   "2018",
			"specialty": "Business and professional technology equipment",
			"location":  "North America",
		},
		AppearanceSettings: map[string]string{
			"primary_color":   "#007bff",
			"secondary_color": "#6c757d",
		},
		UpdatedAt: now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.brands[DefaultBrandID] = brand
	r.configs[DefaultBrandID] = config
	r.persistLocked()
	slog.Info("Created default brand", "brandId", DefaultBrandID)
}

// SanitizeID converts a brand name into a URL-safe registry ID.
func SanitizeID(source string) string {
	id := strings.ToLower(strings.TrimSpace(source))
	id = strings.Join(strings.Fields(id), "-")
	return id
}

// Create registers a new brand with a default config derived from its name
// and description.
//
// # Description
//
// The ID comes from the request's explicit ID when set, otherwise from the
// name. A candidate that collides gets a numeric suffix (-1, -2, ...) to
// stay unique, whichever way it was derived.
func (r *Registry) Create(req *datatypes.BrandCreateRequest) (*datatypes.Brand, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idSource := req.Name
	if req.ID != "" {
		idSource = req.ID
	}
	sanitized := SanitizeID(idSource)
	if sanitized == "" {
		return nil, fmt.Errorf("brand name %q produces an empty id", req.Name)
	}

	finalID := sanitized
	if _, taken := r.brands[finalID]; taken {
		for counter := 1; ; counter++ {
			finalID = fmt.Sprintf("%s-%d", sanitized, counter)
			if _, taken := r.brands[finalID]; !taken {
				break
			}
		}
	}

	now := time.Now().UTC()
	brand := &datatypes.Brand{
		ID:          finalID,
		Name:        req.Name,
		Description: req.Description,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	config := defaultConfig(brand, now)

	r.brands[finalID] = brand
	r.configs[finalID] = config
	r.persistLocked()
	slog.Info("Created brand", "brandId", finalID, "name", req.Name)

	out := *brand
	return &out, nil
}

func defaultConfig(brand *datatypes.Brand, now time.Time) *datatypes.BrandConfig {
	return &datatypes.BrandConfig{
		BrandID: brand.ID,
		SystemPrompt: fmt.Sprintf("You are a helpful customer service chatbot for %s.\n\n"+
			"About %s:\n%s\n\n"+
			"Your role:\n"+
			"- Help customers with their inquiries\n"+
			"- Provide information about products and services\n"+
			"- Be professional, knowledgeable, and helpful\n"+
			"- Respond in the same language as the customer",
			brand.Name, brand.Name, brand.Description),
		WelcomeMessage: fmt.Sprintf("Welcome to %s! How can I assist you today?", brand.Name),
		CompanyInfo: map[string]string{
			"name":        brand.Name,
			"description": brand.Description,
		},
		AppearanceSettings: map[string]string{
			"primary_color":   "#007bff",
			"secondary_color": "#6c757d",
		},
		UpdatedAt: now,
	}
}

// Get returns one brand by ID.
func (r *Registry) Get(brandID string) (*datatypes.Brand, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	brand, ok := r.brands[brandID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBrandNotFound, brandID)
	}
	out := *brand
	return &out, nil
}

// GetActive returns the brand only if it is active. Conversational
// operations go through this so deactivated brands stop serving chat.
func (r *Registry) GetActive(brandID string) (*datatypes.Brand, error) {
	brand, err := r.Get(brandID)
	if err != nil {
		return nil, err
	}
	if !brand.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrBrandInactive, brandID)
	}
	return brand, nil
}

// List returns brands sorted by ID. Inactive brands are included only when
// includeInactive is set.
func (r *Registry) List(includeInactive bool) []datatypes.Brand {
	r.mu.RLock()
	defer r.mu.RUnlock()

	brands := make([]datatypes.Brand, 0, len(r.brands))
	for _, b := range r.brands {
		if !b.IsActive && !includeInactive {
			continue
		}
		brands = append(brands, *b)
	}
	sort.Slice(brands, func(i, j int) bool { return brands[i].ID < brands[j].ID })
	return brands
}

// Update applies a partial update to a brand. Deactivation takes effect on
// the next conversational request for the brand.
func (r *Registry) Update(brandID string, req *datatypes.BrandUpdateRequest) (*datatypes.Brand, error) {
	r.mu.Lock()
	brand, ok := r.brands[brandID]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrBrandNotFound, brandID)
	}

	if req.Name != nil {
		brand.Name = *req.Name
	}
	if req.Description != nil {
		brand.Description = *req.Description
	}
	if req.IsActive != nil {
		brand.IsActive = *req.IsActive
	}
	brand.UpdatedAt = time.Now().UTC()
	r.persistLocked()
	out := *brand
	r.mu.Unlock()

	r.notify(brandID)
	slog.Info("Updated brand", "brandId", brandID, "active", out.IsActive)
	return &out, nil
}

// Delete removes a brand and its config. The caller is responsible for
// cascading the catalog delete.
func (r *Registry) Delete(brandID string) error {
	r.mu.Lock()
	if _, ok := r.brands[brandID]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrBrandNotFound, brandID)
	}
	delete(r.brands, brandID)
	delete(r.configs, brandID)
	r.persistLocked()
	r.mu.Unlock()

	r.notify(brandID)
	slog.Info("Deleted brand", "brandId", brandID)
	return nil
}

// GetConfig returns the brand's conversational config.
func (r *Registry) GetConfig(brandID string) (*datatypes.BrandConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	config, ok := r.configs[brandID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBrandNotFound, brandID)
	}
	out := cloneConfig(config)
	return out, nil
}

// UpdateConfig applies a partial config update and notifies the change
// listener so cached engines pick up the new prompts.
func (r *Registry) UpdateConfig(brandID string, req *datatypes.BrandConfigUpdateRequest) (*datatypes.BrandConfig, error) {
	r.mu.Lock()
	config, ok := r.configs[brandID]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrBrandNotFound, brandID)
	}

	if req.SystemPrompt != nil {
		config.SystemPrompt = *req.SystemPrompt
	}
	if req.PersonaPrompt != nil {
		config.PersonaPrompt = *req.PersonaPrompt
	}
	if req.WelcomeMessage != nil {
		config.WelcomeMessage = *req.WelcomeMessage
	}
	if req.CompanyInfo != nil {
		config.CompanyInfo = *req.CompanyInfo
	}
	if req.AppearanceSettings != nil {
		config.AppearanceSettings = *req.AppearanceSettings
	}
	config.UpdatedAt = time.Now().UTC()
	r.persistLocked()
	out := cloneConfig(config)
	r.mu.Unlock()

	r.notify(brandID)
	slog.Info("Updated brand config", "brandId", brandID)
	return out, nil
}

func cloneConfig(c *datatypes.BrandConfig) *datatypes.BrandConfig {
	out := *c
	out.CompanyInfo = make(map[string]string, len(c.CompanyInfo))
	for k, v := range c.CompanyInfo {
		out.CompanyInfo[k] = v
	}
	out.AppearanceSettings = make(map[string]string, len(c.AppearanceSettings))
	for k, v := range c.AppearanceSettings {
		out.AppearanceSettings[k] = v
	}
	return &out
}
