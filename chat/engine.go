// Package chat implements the per-brand conversation engine: history
// management, retrieval gating, prompt assembly, and the batch and
// streaming completion paths.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/brandchat-io/brandchat/datatypes"
	"github.com/brandchat-io/brandchat/llm"
)

var tracer = otel.Tracer("brandchat.chat")

// apologyText is the fixed bilingual fallback reply for any failure on the
// chat path. The caller still gets a valid session id alongside it.
const apologyText = "I'm sorry, I'm having trouble processing your request right now. " +
	"Please try again. / Maaf, saya mengalami kendala memproses permintaan Anda. " +
	"Silakan coba lagi."

const (
	chatMaxTokens       = 600
	chatTemperature     = float32(0.7)
	searchLimit         = 5
	suggestedLimit      = 3
	summaryTurns        = 6
	summaryPreviewChars = 100
)

// ProductSearcher is the catalog dependency of the engine. Satisfied by
// *catalog.Store.
type ProductSearcher interface {
	Search(ctx context.Context, brandID string, req *datatypes.ProductSearchRequest) ([]datatypes.SearchResult, error)
}

// Engine runs conversations for exactly one brand.
//
// # Description
//
// Conversations live in memory, keyed by session id. Each history starts
// with one system turn holding the brand's resolved system prompt (persona
// text appended when configured) before any user or assistant turn. The
// engine is built from a config snapshot; config changes evict the engine
// through the Manager rather than mutating it in place.
//
// # Thread Safety
//
// Engine is safe for concurrent use across sessions. Two concurrent turns
// against the same session id interleave their history appends and are not
// supported.
type Engine struct {
	brand  datatypes.Brand
	config datatypes.BrandConfig

	llm        llm.Client
	classifier *IntentClassifier
	catalog    ProductSearcher

	mu            sync.RWMutex
	conversations map[string][]datatypes.ChatMessage
	lastActive    map[string]time.Time
}

// NewEngine creates an engine from a brand and config snapshot.
func NewEngine(brand datatypes.Brand, config datatypes.BrandConfig, client llm.Client, searcher ProductSearcher) *Engine {
	return &Engine{
		brand:         brand,
		config:        config,
		llm:           client,
		classifier:    NewIntentClassifier(client),
		catalog:       searcher,
		conversations: make(map[string][]datatypes.ChatMessage),
		lastActive:    make(map[string]time.Time),
	}
}

// Brand returns the brand snapshot this engine was built from.
func (e *Engine) Brand() datatypes.Brand { return e.brand }

// Config returns the config snapshot this engine was built from.
func (e *Engine) Config() datatypes.BrandConfig { return e.config }

// systemPrompt resolves the seeded system turn text: the brand's system
// prompt with the persona modifier appended when present.
func (e *Engine) systemPrompt() string {
	if e.config.PersonaPrompt == "" {
		return e.config.SystemPrompt
	}
	return e.config.SystemPrompt + "\n\n" + e.config.PersonaPrompt
}

// ensureConversation returns the session id (minting one if absent) and
// seeds the history with the system turn on first contact.
func (e *Engine) ensureConversation(sessionID string) string {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.conversations[sessionID]; !ok {
		e.conversations[sessionID] = []datatypes.ChatMessage{{
			Role:      datatypes.RoleSystem,
			Content:   e.systemPrompt(),
			Timestamp: time.Now().UTC(),
		}}
	}
	e.lastActive[sessionID] = time.Now().UTC()
	return sessionID
}

func (e *Engine) appendTurn(sessionID, role, content string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.conversations[sessionID] = append(e.conversations[sessionID], datatypes.ChatMessage{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	e.lastActive[sessionID] = time.Now().UTC()
}

func (e *Engine) historySnapshot(sessionID string) []datatypes.ChatMessage {
	e.mu.RLock()
	defer e.mu.RUnlock()
	history := e.conversations[sessionID]
	out := make([]datatypes.ChatMessage, len(history))
	copy(out, history)
	return out
}

// retrieval holds the per-turn outcome of the retrieval gate.
type retrieval struct {
	ran        bool
	context    string
	suggested  []datatypes.Product
	confidence float64
}

// runRetrieval executes steps 3-4 of the turn: gate through the
// classifier, search the catalog, and derive the context block, suggested
// products, and confidence score.
func (e *Engine) runRetrieval(ctx context.Context, message string, history []datatypes.ChatMessage) (*retrieval, error) {
	// history already ends with the current user turn; the classifier
	// receives that message separately, so hand it only the prior turns.
	prior := history
	if n := len(prior); n > 0 && prior[n-1].Role == datatypes.RoleUser && prior[n-1].Content == message {
		prior = prior[:n-1]
	}
	if !e.classifier.ShouldRetrieve(ctx, message, prior) {
		return &retrieval{ran: false}, nil
	}

	results, err := e.catalog.Search(ctx, e.brand.ID, &datatypes.ProductSearchRequest{
		Query: message,
		Limit: searchLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("catalog search failed: %w", err)
	}

	r := &retrieval{
		ran:        true,
		context:    BuildProductContext(results, searchLimit),
		suggested:  make([]datatypes.Product, 0, suggestedLimit),
		confidence: meanScore(results),
	}
	for i, res := range results {
		if i >= suggestedLimit {
			break
		}
		r.suggested = append(r.suggested, res.Product)
	}
	return r, nil
}

// meanScore is the arithmetic mean of the similarity scores, 0.0 for an
// empty result set.
func meanScore(results []datatypes.SearchResult) float64 {
	if len(results) == 0 {
		return 0.0
	}
	var sum float64
	for _, r := range results {
		sum += r.Score
	}
	return sum / float64(len(results))
}

// composeMessages builds the completion input: optional voice directive,
// the full history in order, and the grounding turn when retrieval yielded
// a non-empty context.
func (e *Engine) composeMessages(message string, history []datatypes.ChatMessage, r *retrieval, voiceMode bool) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	if voiceMode {
		messages = append(messages, llm.Message{Role: datatypes.RoleSystem, Content: voiceDirective})
	}
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	if r.ran && r.context != NoProductsSentinel {
		messages = append(messages, llm.Message{
			Role:    datatypes.RoleSystem,
			Content: groundingInstruction(message, r.context),
		})
	}
	return messages
}

func generationParams(voiceMode bool) llm.GenerationParams {
	temperature := chatTemperature
	maxTokens := chatMaxTokens
	if voiceMode {
		maxTokens = voiceMaxTokens
	}
	return llm.GenerationParams{Temperature: &temperature, MaxTokens: &maxTokens}
}

// apologyResponse is the fixed failure reply carrying a usable session id.
func (e *Engine) apologyResponse(sessionID string) *datatypes.ChatResponse {
	return &datatypes.ChatResponse{
		Response:  apologyText,
		SessionID: sessionID,
		BrandID:   e.brand.ID,
		Timestamp: time.Now().UTC(),
	}
}

// Chat runs one single-shot turn.
//
// # Description
//
// Appends the user turn, gates retrieval, composes the prompt, calls the
// model, appends the assistant turn, and returns the reply. Any failure
// after the user turn was appended degrades to the apology reply instead
// of an error; the session id is always valid for a retry.
func (e *Engine) Chat(ctx context.Context, req *datatypes.ChatRequest) *datatypes.ChatResponse {
	ctx, span := tracer.Start(ctx, "Engine.Chat")
	defer span.End()
	span.SetAttributes(attribute.String("brand.id", e.brand.ID))

	sessionID := e.ensureConversation(req.SessionID)
	span.SetAttributes(attribute.String("session.id", sessionID))
	e.appendTurn(sessionID, datatypes.RoleUser, req.Message)
	history := e.historySnapshot(sessionID)

	r, err := e.runRetrieval(ctx, req.Message, history)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Retrieval failed, returning apology", "brandId", e.brand.ID, "sessionId", sessionID, "error", err)
		return e.apologyResponse(sessionID)
	}

	responseText, err := e.llm.Chat(ctx, e.composeMessages(req.Message, history, r, req.VoiceMode), generationParams(req.VoiceMode))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Completion failed, returning apology", "brandId", e.brand.ID, "sessionId", sessionID, "error", err)
		return e.apologyResponse(sessionID)
	}
	if req.VoiceMode {
		responseText = TruncateToSentence(responseText)
	}

	e.appendTurn(sessionID, datatypes.RoleAssistant, responseText)

	resp := &datatypes.ChatResponse{
		Response:  responseText,
		SessionID: sessionID,
		BrandID:   e.brand.ID,
		Timestamp: time.Now().UTC(),
	}
	if r.ran {
		resp.SuggestedProducts = r.suggested
		confidence := r.confidence
		resp.ConfidenceScore = &confidence
	}
	return resp
}

// ChatStream runs one streaming turn, delivering chunks through send in
// generation order.
//
// # Description
//
// Non-final chunks carry content deltas. The final chunk carries Done plus
// the suggested products and confidence score, and the accumulated reply
// is appended to history exactly as in the single-shot path. A mid-stream
// failure emits one terminal error chunk and stops; the turn is not
// retried.
func (e *Engine) ChatStream(ctx context.Context, req *datatypes.ChatRequest, send func(chunk datatypes.StreamChunk) error) error {
	ctx, span := tracer.Start(ctx, "Engine.ChatStream")
	defer span.End()
	span.SetAttributes(attribute.String("brand.id", e.brand.ID))

	sessionID := e.ensureConversation(req.SessionID)
	span.SetAttributes(attribute.String("session.id", sessionID))
	e.appendTurn(sessionID, datatypes.RoleUser, req.Message)
	history := e.historySnapshot(sessionID)

	r, err := e.runRetrieval(ctx, req.Message, history)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Retrieval failed mid-stream", "brandId", e.brand.ID, "sessionId", sessionID, "error", err)
		return send(datatypes.StreamChunk{Done: true, SessionID: sessionID, Error: apologyText})
	}

	var full strings.Builder
	streamErr := e.llm.ChatStream(ctx, e.composeMessages(req.Message, history, r, req.VoiceMode),
		generationParams(req.VoiceMode), func(event llm.StreamEvent) error {
			switch event.Type {
			case llm.StreamEventToken:
				full.WriteString(event.Content)
				return send(datatypes.StreamChunk{Content: event.Content, SessionID: sessionID})
			case llm.StreamEventError:
				return nil // terminal error chunk is emitted below
			default:
				return nil
			}
		})
	if streamErr != nil {
		span.RecordError(streamErr)
		span.SetStatus(codes.Error, streamErr.Error())
		slog.Error("Completion stream failed", "brandId", e.brand.ID, "sessionId", sessionID, "error", streamErr)
		return send(datatypes.StreamChunk{Done: true, SessionID: sessionID, Error: apologyText})
	}

	responseText := full.String()
	if req.VoiceMode {
		responseText = TruncateToSentence(responseText)
	}
	e.appendTurn(sessionID, datatypes.RoleAssistant, responseText)

	final := datatypes.StreamChunk{Done: true, SessionID: sessionID}
	if r.ran {
		final.SuggestedProducts = r.suggested
		confidence := r.confidence
		final.ConfidenceScore = &confidence
	}
	return send(final)
}

// Recommendations returns the top catalog matches for a query with a
// model-written reasoning paragraph.
func (e *Engine) Recommendations(ctx context.Context, query string, limit int) (*datatypes.ProductRecommendation, error) {
	ctx, span := tracer.Start(ctx, "Engine.Recommendations")
	defer span.End()

	if limit <= 0 {
		limit = searchLimit
	}
	results, err := e.catalog.Search(ctx, e.brand.ID, &datatypes.ProductSearchRequest{Query: query, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("catalog search failed: %w", err)
	}
	if len(results) == 0 {
		return &datatypes.ProductRecommendation{
			Products: []datatypes.Product{},
			Reasoning: "No products found matching your criteria. Please try a different " +
				"search term or contact our support team for personalized assistance.",
			MatchScore: 0.0,
		}, nil
	}

	products := make([]datatypes.Product, 0, len(results))
	for _, r := range results {
		products = append(products, r.Product)
	}

	reasoning := e.recommendationReasoning(ctx, query, results)
	return &datatypes.ProductRecommendation{
		Products:   products,
		Reasoning:  reasoning,
		MatchScore: meanScore(results),
	}, nil
}

// recommendationReasoning asks the model to explain the matches. A model
// failure degrades to a generic line rather than failing the request.
func (e *Engine) recommendationReasoning(ctx context.Context, query string, results []datatypes.SearchResult) string {
	productContext := BuildProductContext(results, searchLimit)
	maxTokens := 200
	reasoning, err := e.llm.Chat(ctx, []llm.Message{
		{Role: datatypes.RoleSystem, Content: e.systemPrompt()},
		{Role: datatypes.RoleUser, Content: fmt.Sprintf(
			"A customer searched for %q. Briefly explain in two or three sentences why "+
				"these products match their search. Reply in the customer's language.\n\n%s",
			query, productContext)},
	}, llm.GenerationParams{MaxTokens: &maxTokens})
	if err != nil {
		slog.Warn("Recommendation reasoning failed, using generic text", "error", err)
		return "These products most closely match your search based on their descriptions and categories."
	}
	return reasoning
}

// History returns the conversation's turns excluding system turns. The
// second return is false for an unknown session id.
func (e *Engine) History(sessionID string) ([]datatypes.ChatMessage, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	history, ok := e.conversations[sessionID]
	if !ok {
		return nil, false
	}
	out := make([]datatypes.ChatMessage, 0, len(history))
	for _, turn := range history {
		if turn.Role == datatypes.RoleSystem {
			continue
		}
		out = append(out, turn)
	}
	return out, true
}

// Summary renders the last 6 non-system turns as role-prefixed previews,
// each truncated to 100 characters.
func (e *Engine) Summary(sessionID string) (string, bool) {
	turns, ok := e.History(sessionID)
	if !ok {
		return "", false
	}
	if len(turns) > summaryTurns {
		turns = turns[len(turns)-summaryTurns:]
	}
	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		content := turn.Content
		if runes := []rune(content); len(runes) > summaryPreviewChars {
			content = string(runes[:summaryPreviewChars]) + "..."
		}
		lines = append(lines, fmt.Sprintf("%s: %s", turn.Role, content))
	}
	return strings.Join(lines, "\n"), true
}

// Clear removes all state for the session id. Returns false for an
// unknown id.
func (e *Engine) Clear(sessionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.conversations[sessionID]; !ok {
		return false
	}
	delete(e.conversations, sessionID)
	delete(e.lastActive, sessionID)
	return true
}

// ActiveConversationCount is the number of session ids currently held in
// memory.
func (e *Engine) ActiveConversationCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.conversations)
}

// SweepIdle removes conversations whose last activity is before the
// cutoff and returns how many were dropped.
func (e *Engine) SweepIdle(cutoff time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	removed := 0
	for id, last := range e.lastActive {
		if last.Before(cutoff) {
			delete(e.conversations, id)
			delete(e.lastActive, id)
			removed++
		}
	}
	return removed
}
