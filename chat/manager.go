package chat

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/brandchat-io/brandchat/brand"
	"github.com/brandchat-io/brandchat/llm"
)

// Manager lazily constructs and caches one Engine per active brand.
//
// # Description
//
// Engines hold conversation state in memory, so the cache is the unit of
// both reuse and invalidation: a brand or config mutation evicts the
// engine, and the next access rebuilds it from a fresh registry snapshot.
// Eviction discards the evicted engine's conversations deliberately; a
// deactivated or reconfigured brand starts clean.
//
// # Thread Safety
//
// Manager is safe for concurrent use.
type Manager struct {
	registry *brand.Registry
	llm      llm.Client
	catalog  ProductSearcher

	mu      sync.Mutex
	engines map[string]*Engine
}

// NewManager creates the engine cache and registers itself as the
// registry's change listener so mutations evict stale engines.
func NewManager(registry *brand.Registry, client llm.Client, searcher ProductSearcher) *Manager {
	m := &Manager{
		registry: registry,
		llm:      client,
		catalog:  searcher,
		engines:  make(map[string]*Engine),
	}
	registry.SetChangeListener(m.Evict)
	return m
}

// GetEngine returns the cached engine for the brand, building one if
// needed. Unknown and inactive brands fail with the registry's errors.
func (m *Manager) GetEngine(brandID string) (*Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if engine, ok := m.engines[brandID]; ok {
		return engine, nil
	}

	b, err := m.registry.GetActive(brandID)
	if err != nil {
		return nil, err
	}
	config, err := m.registry.GetConfig(brandID)
	if err != nil {
		return nil, fmt.Errorf("brand %s has no config: %w", brandID, err)
	}

	engine := NewEngine(*b, *config, m.llm, m.catalog)
	m.engines[brandID] = engine
	slog.Info("Built conversation engine", "brandId", brandID)
	return engine, nil
}

// Evict drops the brand's cached engine, if any.
func (m *Manager) Evict(brandID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.engines[brandID]; ok {
		delete(m.engines, brandID)
		slog.Info("Evicted conversation engine", "brandId", brandID)
	}
}

// ActiveConversations reports the brand's in-memory conversation count
// without building an engine for brands that have none cached.
func (m *Manager) ActiveConversations(brandID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if engine, ok := m.engines[brandID]; ok {
		return engine.ActiveConversationCount()
	}
	return 0
}

// SweepIdle removes idle conversations across all cached engines and
// returns the total dropped.
func (m *Manager) SweepIdle(cutoff time.Time) int {
	m.mu.Lock()
	engines := make([]*Engine, 0, len(m.engines))
	for _, e := range m.engines {
		engines = append(engines, e)
	}
	m.mu.Unlock()

	removed := 0
	for _, e := range engines {
		removed += e.SweepIdle(cutoff)
	}
	return removed
}
