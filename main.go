package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"google.golang.org/grpc/credentials/insecure"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"

	"github.com/brandchat-io/brandchat/bootstrap"
	"github.com/brandchat-io/brandchat/brand"
	"github.com/brandchat-io/brandchat/catalog"
	"github.com/brandchat-io/brandchat/chat"
	"github.com/brandchat-io/brandchat/llm"
	"github.com/brandchat-io/brandchat/observability"
	"github.com/brandchat-io/brandchat/pkg/logging"
	"github.com/brandchat-io/brandchat/routes"
	"github.com/brandchat-io/brandchat/session"
	"github.com/brandchat-io/brandchat/ttl"
)

const serviceName = "brandchat"

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "localhost:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// newWeaviateClient builds the vector store client from
// WEAVIATE_SERVICE_URL. Returns nil for a missing or malformed URL; the
// service then runs without retrieval and catalog endpoints fail fast.
func newWeaviateClient() *weaviate.Client {
	// Trim quotes and whitespace in case the container runtime passes
	// them literally.
	rawURL := strings.Trim(os.Getenv("WEAVIATE_SERVICE_URL"), "\"' ")
	if rawURL == "" || !strings.Contains(rawURL, "http") {
		slog.Info("WEAVIATE_SERVICE_URL not set, running without product retrieval")
		return nil
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		slog.Warn("WEAVIATE_SERVICE_URL is invalid, running without product retrieval",
			"url", rawURL, "error", err)
		return nil
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		slog.Error("Failed to create Weaviate client", "error", err)
		return nil
	}
	catalog.EnsureSchema(client)
	return client
}

// newLLMClient selects the model backend from LLM_BACKEND_TYPE. The
// returned client doubles as the catalog embedder.
func newLLMClient() (llm.Client, llm.Embedder, error) {
	switch backend := os.Getenv("LLM_BACKEND_TYPE"); backend {
	case "openai":
		slog.Info("Using OpenAI LLM backend")
		client, err := llm.NewOpenAIClient()
		return client, client, err
	case "ollama":
		slog.Info("Using Ollama LLM backend")
		client, err := llm.NewOllamaClient()
		return client, client, err
	default:
		if backend != "" {
			slog.Warn("Unknown LLM_BACKEND_TYPE, defaulting to ollama", "backend", backend)
		} else {
			slog.Info("LLM_BACKEND_TYPE not set, defaulting to ollama")
		}
		client, err := llm.NewOllamaClient()
		return client, client, err
	}
}

func main() {
	// Missing .env is fine; real deployments inject environment directly.
	_ = godotenv.Load()

	logger, logCloser, err := logging.Setup(logging.FromEnv(serviceName))
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}
	defer logCloser()
	slog.SetDefault(logger)

	port := os.Getenv("BRANDCHAT_PORT")
	if port == "" {
		port = "8080"
	}

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to set up the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	observability.InitMetrics()

	weaviateClient := newWeaviateClient()

	llmClient, embedder, err := newLLMClient()
	if err != nil {
		log.Fatalf("failed to initialize LLM client: %v", err)
	}

	brandsPath := os.Getenv("BRANDS_CONFIG_FILE")
	if brandsPath == "" {
		brandsPath = "brands.json"
	}
	registry, err := brand.NewRegistry(brand.NewFileStore(brandsPath))
	if err != nil {
		log.Fatalf("failed to load brand registry: %v", err)
	}

	store := catalog.NewStore(weaviateClient, embedder)
	engines := chat.NewManager(registry, llmClient, store)
	hub := session.NewHub(registry, engines)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := ttl.NewConversationSweeper(engines, ttl.SweeperConfigFromEnv())
	if err := sweeper.Start(ctx); err != nil {
		log.Fatalf("failed to start conversation sweeper: %v", err)
	}
	defer sweeper.Stop()

	if weaviateClient != nil && os.Getenv("SEED_SAMPLE_DATA") == "true" {
		created, err := bootstrap.SeedSampleData(ctx, store, brand.DefaultBrandID)
		if err != nil {
			slog.Error("Sample data seeding failed", "error", err)
		} else if created > 0 {
			slog.Info("Seeded sample catalog", "brandId", brand.DefaultBrandID, "count", created)
		}
	}

	router := gin.Default()
	router.Use(otelgin.Middleware(serviceName))
	routes.SetupRoutes(router, weaviateClient, registry, store, engines, hub)

	srv := &http.Server{Addr: ":" + port, Handler: router}
	go func() {
		slog.Info("Starting the chat server", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
}
