package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type OpenAIClient struct {
	client         *openai.Client
	model          string
	embeddingModel openai.EmbeddingModel
}

var _ Client = (*OpenAIClient)(nil)
var _ Embedder = (*OpenAIClient)(nil)

func NewOpenAIClient() (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_MODEL")
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the OpenAI API key from container secrets")
		} else {
			slog.Error("OPENAI_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	}
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}
	embeddingModel := openai.EmbeddingModel(os.Getenv("OPENAI_EMBEDDING_MODEL"))
	if embeddingModel == "" {
		embeddingModel = openai.SmallEmbedding3
	}
	slog.Info("Initializing OpenAI client", "model", model, "embedding_model", embeddingModel)
	return &OpenAIClient{
		client:         openai.NewClient(apiKey),
		model:          model,
		embeddingModel: embeddingModel,
	}, nil
}

func (o *OpenAIClient) buildRequest(messages []Message, params GenerationParams) openai.ChatCompletionRequest {
	oaMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		oaMessages = append(oaMessages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	req := openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: oaMessages,
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}
	return req
}

// Chat implements the Client interface.
func (o *OpenAIClient) Chat(ctx context.Context, messages []Message,
	params GenerationParams) (string, error) {

	ctx, span := tracer.Start(ctx, "OpenAIClient.Chat")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.model))
	span.SetAttributes(attribute.Int("llm.num_messages", len(messages)))

	slog.Debug("Generating text via OpenAI", "model", o.model)
	resp, err := o.client.CreateChatCompletion(ctx, o.buildRequest(messages, params))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("OpenAI API call failed", "error", err)
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("OpenAI returned no choices")
		return "", fmt.Errorf("OpenAI returned no choices")
	}
	slog.Debug("Received response from OpenAI", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}

// ChatStream implements the Client interface.
func (o *OpenAIClient) ChatStream(ctx context.Context, messages []Message,
	params GenerationParams, callback StreamCallback) error {

	ctx, span := tracer.Start(ctx, "OpenAIClient.ChatStream")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.model))

	req := o.buildRequest(messages, params)
	req.Stream = true
	stream, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("OpenAI stream open failed", "error", err)
		return fmt.Errorf("OpenAI stream open failed: %w", err)
	}
	defer stream.Close()

	tokenCount := 0
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if cbErr := callback(StreamEvent{Type: StreamEventError, Error: err.Error()}); cbErr != nil {
				slog.Warn("Stream error callback failed", "error", cbErr)
			}
			return fmt.Errorf("OpenAI stream receive failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		tokenCount++
		if err := callback(StreamEvent{Type: StreamEventToken, Content: delta}); err != nil {
			return fmt.Errorf("stream callback aborted: %w", err)
		}
	}
	span.SetAttributes(attribute.Int("llm.stream_tokens", tokenCount))
	if err := callback(StreamEvent{Type: StreamEventDone}); err != nil {
		return fmt.Errorf("stream callback aborted: %w", err)
	}
	return nil
}

// Embed implements the Embedder interface.
func (o *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, span := tracer.Start(ctx, "OpenAIClient.Embed")
	defer span.End()

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: o.embeddingModel,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("OpenAI embedding call failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("OpenAI returned no embedding data")
	}
	return resp.Data[0].Embedding, nil
}
