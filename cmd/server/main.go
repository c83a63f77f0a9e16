package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/sentrysystems/incident-engine/internal/analytics"
	"github.com/sentrysystems/incident-engine/internal/api/middleware"
	"github.com/sentrysystems/incident-engine/internal/api/rest"
	"github.com/sentrysystems/incident-engine/internal/cluster"
	"github.com/sentrysystems/incident-engine/internal/config"
	"github.com/sentrysystems/incident-engine/internal/extract"
	"github.com/sentrysystems/incident-engine/internal/incident"
	"github.com/sentrysystems/incident-engine/internal/ingest"
	"github.com/sentrysystems/incident-engine/internal/pkg/logger"
	"github.com/sentrysystems/incident-engine/internal/pkg/tracing"
)

func main() {
	log.Println("🚨 Incident evidence engine starting...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Printf("⚠️  Warning: failed to load config: %v. Using defaults.", err)
		cfg = &config.Config{
			Port:               8080,
			LogLevel:           "info",
			LogFormat:          "json",
			AllowedOrigins:     []string{"*"},
			ShutdownTimeoutSec: 15,
			ClusterThreshold:   0.65,
			ClusterWeights:     "0.35,0.35,0.15,0.15",
			AnalyticsTimeoutSec: 2,
		}
	}
	log.Printf("📋 Configuration loaded: port=%d, cluster_threshold=%.2f", cfg.Port, cfg.ClusterThreshold)

	stdLog := logger.StdLogger()

	if cfg.TracingEnabled {
		log.Printf("🔭 Tracing enabled: endpoint=%s", cfg.TracingEndpoint)
		cleanup, err := tracing.Init(cfg.TracingServiceName, cfg.TracingEndpoint, cfg.TracingSamplingRate)
		if err != nil {
			log.Printf("⚠️  Failed to initialize tracing: %v", err)
		} else {
			defer cleanup()
		}
	}

	store := incident.NewStore()

	var extractor extract.Extractor
	var embedder cluster.Embedder
	var judge cluster.Judge
	openAIConfigured := cfg.OpenAIAPIKey != ""

	if openAIConfigured {
		log.Println("🧠 OPENAI_API_KEY configured: using LLM extractor with deterministic fallback")
		completer := extract.NewOpenAIChatCompleter(cfg.OpenAIAPIKey, cfg.OpenAIChatModel)
		extractor = extract.NewLLM(completer, extract.NewDeterministic(), stdLog)

		rawEmbedder := cluster.NewOpenAIEmbedder(cfg.OpenAIAPIKey)
		rawJudge := cluster.NewLLMJudge(cfg.OpenAIAPIKey, cfg.OpenAIChatModel)
		embedder = cluster.NewLimitedEmbedder(rawEmbedder, cfg.EmbeddingRatePerSec, cfg.EmbeddingBurst)
		judge = cluster.NewLimitedJudge(rawJudge, cfg.JudgeRatePerSec, cfg.JudgeBurst)
	} else {
		log.Println("🔧 OPENAI_API_KEY not set: using deterministic extractor, clustering on time+geo only")
		extractor = extract.NewDeterministic()
	}

	embWeight, llmWeight, timeWeight, geoWeight := cfg.ParsedClusterWeights()
	weights := cluster.Weights{Embedding: embWeight, LLM: llmWeight, Time: timeWeight, Geo: geoWeight}
	clusterEngine := cluster.NewEngine(embedder, judge, weights, cfg.ClusterThreshold, stdLog)
	clusterEngine.MinEmbedding = cfg.ClusterMinEmbedding
	clusterEngine.MinLLM = cfg.ClusterMinLLM

	var sink analytics.Sink = analytics.NoopSink{}
	if cfg.AnalyticsConnectionString != "" {
		log.Println("📊 Connecting to analytics warehouse...")
		pg, err := analytics.NewPostgresSink(cfg.AnalyticsConnectionString)
		if err != nil {
			log.Printf("⚠️  Failed to connect to analytics warehouse: %v. Falling back to no-op sink.", err)
		} else {
			if err := pg.RunMigrations(ctx); err != nil {
				log.Printf("⚠️  Failed to run analytics migrations: %v", err)
			}
			sink = pg
			defer pg.Close()
		}
	} else {
		log.Println("📊 No analytics connection string configured: using no-op sink")
	}

	coordinator := ingest.New(store, extractor, clusterEngine, sink, stdLog)

	log.Println("✅ Engine initialized")

	router := mux.NewRouter()
	handler := rest.NewHandler(coordinator, store)
	handler.Register(router)

	healthz := rest.NewHealthzHandler(openAIConfigured)
	router.HandleFunc("/health", healthz.Ready).Methods(http.MethodGet)
	router.HandleFunc("/healthz/live", healthz.Live).Methods(http.MethodGet)
	router.HandleFunc("/healthz/ready", healthz.Ready).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
	})

	if cfg.TracingEnabled {
		router.Use(middleware.Tracing)
	}
	router.Use(middleware.SecureHeaders)
	router.Use(middleware.RequestID)
	router.Use(middleware.StructuredLog)
	router.Use(middleware.RateLimit())
	router.Use(middleware.MaxBodySize(middleware.DefaultMaxBodyBytes))
	router.Use(recoveryMiddleware)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	})
	handlerWithCORS := c.Handler(router)

	shutdownTimeout := 15 * time.Second
	if cfg.ShutdownTimeoutSec > 0 {
		shutdownTimeout = time.Duration(cfg.ShutdownTimeoutSec) * time.Second
	}

	// Bind to first available port in [cfg.Port, cfg.Port+99], cap at 8199.
	maxPort := cfg.Port + 99
	if maxPort > 8199 {
		maxPort = 8199
	}
	var listener net.Listener
	var actualPort int
	for port := cfg.Port; port <= maxPort; port++ {
		l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			var errno *syscall.Errno
			if errors.As(err, &errno) && *errno == syscall.EADDRINUSE {
				continue
			}
			log.Fatalf("❌ Failed to listen: %v", err)
		}
		listener = l
		actualPort = port
		break
	}
	if listener == nil {
		log.Fatalf("❌ No port available in range %d..%d", cfg.Port, maxPort)
	}
	defer listener.Close()

	srv := &http.Server{
		Handler:      handlerWithCORS,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Printf("🌐 Server listening on http://localhost:%d", actualPort)
		log.Printf("📥 Ingest at POST http://localhost:%d/chunk", actualPort)
		log.Printf("❤️  Health check at http://localhost:%d/health", actualPort)
		log.Printf("📊 Metrics at http://localhost:%d/metrics", actualPort)
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("")
	log.Println("🛑 Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server exited gracefully")
}

func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Default().Error("panic recovered", "error", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
