package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/brandchat-io/brandchat/brand"
	"github.com/brandchat-io/brandchat/catalog"
	"github.com/brandchat-io/brandchat/chat"
	"github.com/brandchat-io/brandchat/datatypes"
	"github.com/brandchat-io/brandchat/llm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ============================================================================
// Registry / Manager helpers
// ============================================================================

func newTestRegistry(t *testing.T) *brand.Registry {
	t.Helper()
	registry, err := brand.NewRegistry(brand.NewFileStore(t.TempDir() + "/brands.json"))
	require.NoError(t, err)
	return registry
}

// fakeLLM answers the intent classifier with a scripted verdict and
// streams or returns a scripted reply for completions.
type fakeLLM struct {
	classify  string
	reply     string
	streamToks []string
}

func (f *fakeLLM) Chat(ctx context.Context, messages []llm.Message, params llm.GenerationParams) (string, error) {
	if len(messages) > 0 && bytes.Contains([]byte(messages[0].Content), []byte("exactly one word")) {
		if f.classify == "" {
			return "false", nil
		}
		return f.classify, nil
	}
	if f.reply == "" {
		return "Happy to help!", nil
	}
	return f.reply, nil
}

func (f *fakeLLM) ChatStream(ctx context.Context, messages []llm.Message, params llm.GenerationParams, callback llm.StreamCallback) error {
	toks := f.streamToks
	if len(toks) == 0 {
		toks = []string{"Happy", " to help!"}
	}
	for _, tok := range toks {
		if err := callback(llm.StreamEvent{Type: llm.StreamEventToken, Content: tok}); err != nil {
			return err
		}
	}
	return callback(llm.StreamEvent{Type: llm.StreamEventDone})
}

type fakeSearcher struct {
	results []datatypes.SearchResult
}

func (f *fakeSearcher) Search(ctx context.Context, brandID string, req *datatypes.ProductSearchRequest) ([]datatypes.SearchResult, error) {
	return f.results, nil
}

func newTestManager(t *testing.T, registry *brand.Registry, client llm.Client, searcher chat.ProductSearcher) *chat.Manager {
	t.Helper()
	if client == nil {
		client = &fakeLLM{}
	}
	if searcher == nil {
		searcher = &fakeSearcher{}
	}
	return chat.NewManager(registry, client, searcher)
}

// ============================================================================
// Fake ProductStore
// ============================================================================

// fakeStore is an in-memory ProductStore.
type fakeStore struct {
	mu            sync.Mutex
	products      map[string]map[string]datatypes.Product // brandID -> productID -> product
	searchResults []datatypes.SearchResult
	err           error // injected into every call when non-nil
}

func newFakeStore() *fakeStore {
	return &fakeStore{products: make(map[string]map[string]datatypes.Product)}
}

func (f *fakeStore) Create(ctx context.Context, brandID string, req *datatypes.ProductCreateRequest) (*datatypes.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}
	p := datatypes.Product{
		ID:          uuid.NewString(),
		BrandID:     brandID,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		Features:    req.Features,
		ImageURL:    req.ImageURL,
		IsAvailable: available,
	}
	if f.products[brandID] == nil {
		f.products[brandID] = make(map[string]datatypes.Product)
	}
	f.products[brandID][p.ID] = p
	return &p, nil
}

func (f *fakeStore) Get(ctx context.Context, brandID, productID string) (*datatypes.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.products[brandID][productID]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return &p, nil
}

func (f *fakeStore) List(ctx context.Context, brandID, category string) ([]datatypes.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []datatypes.Product
	for _, p := range f.products[brandID] {
		if category == "" || p.Category == category {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) Update(ctx context.Context, brandID, productID string, req *datatypes.ProductUpdateRequest) (*datatypes.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.products[brandID][productID]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.IsAvailable != nil {
		p.IsAvailable = *req.IsAvailable
	}
	f.products[brandID][productID] = p
	return &p, nil
}

func (f *fakeStore) Delete(ctx context.Context, brandID, productID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.products[brandID][productID]; !ok {
		return catalog.ErrProductNotFound
	}
	delete(f.products[brandID], productID)
	return nil
}

func (f *fakeStore) DeleteBrand(ctx context.Context, brandID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	delete(f.products, brandID)
	return nil
}

func (f *fakeStore) Search(ctx context.Context, brandID string, req *datatypes.ProductSearchRequest) ([]datatypes.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	results := f.searchResults
	if req.Limit > 0 && len(results) > req.Limit {
		results = results[:req.Limit]
	}
	return results, nil
}

func (f *fakeStore) Categories(ctx context.Context, brandID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	seen := make(map[string]bool)
	for _, p := range f.products[brandID] {
		if p.Category != "" {
			seen[p.Category] = true
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeStore) Counts(ctx context.Context, brandID string) (int, int, []string, error) {
	if f.err != nil {
		return 0, 0, nil, f.err
	}
	categories, _ := f.Categories(context.Background(), brandID)
	f.mu.Lock()
	defer f.mu.Unlock()
	total, available := 0, 0
	for _, p := range f.products[brandID] {
		total++
		if p.IsAvailable {
			available++
		}
	}
	return total, available, categories, nil
}

var _ ProductStore = (*fakeStore)(nil)

// ============================================================================
// Request helpers
// ============================================================================

func performRequest(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}
