package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port           int      `mapstructure:"port"`
	LogLevel       string   `mapstructure:"log_level"`  // debug | info | warn | error
	LogFormat      string   `mapstructure:"log_format"` // json | text
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	ShutdownTimeoutSec int `mapstructure:"shutdown_timeout_sec"`

	// OpenAI: absent key disables the LLM extractor/embedder/judge entirely
	// and the engine falls back to the deterministic extractor with
	// clustering run on time+geo signals alone.
	OpenAIAPIKey       string `mapstructure:"openai_api_key"`
	OpenAIChatModel    string `mapstructure:"openai_chat_model"`
	OpenAIEmbedModel   string `mapstructure:"openai_embed_model"`
	LLMTimeoutSec      int    `mapstructure:"llm_timeout_sec"`
	EmbeddingTimeoutSec int   `mapstructure:"embedding_timeout_sec"`

	// Outbound rate limits on the OpenAI provider calls the clustering
	// engine makes while scoring candidates concurrently.
	EmbeddingRatePerSec float64 `mapstructure:"embedding_rate_per_sec"`
	EmbeddingBurst      int     `mapstructure:"embedding_burst"`
	JudgeRatePerSec     float64 `mapstructure:"judge_rate_per_sec"`
	JudgeBurst          int     `mapstructure:"judge_burst"`

	// Clustering decision thresholds (§4.6). Weights are emb,llm,time,geo.
	ClusterThreshold    float64 `mapstructure:"cluster_threshold"`
	ClusterWeights      string  `mapstructure:"cluster_weights"`
	ClusterMinEmbedding float64 `mapstructure:"cluster_min_embedding"`
	ClusterMinLLM       float64 `mapstructure:"cluster_min_llm"`

	// Analytics warehouse credentials: absent connection string disables the
	// sink and NoopSink is used instead.
	AnalyticsConnectionString string `mapstructure:"analytics_connection_string"`
	AnalyticsTimeoutSec       int    `mapstructure:"analytics_timeout_sec"`

	// Tracing: OpenTelemetry distributed tracing.
	TracingEnabled      bool    `mapstructure:"tracing_enabled"`
	TracingEndpoint     string  `mapstructure:"tracing_endpoint"`
	TracingServiceName  string  `mapstructure:"tracing_service_name"`
	TracingSamplingRate float64 `mapstructure:"tracing_sampling_rate"`
}

// ParsedClusterWeights parses the "emb,llm,time,geo" CSV format of
// ClusterWeights. A malformed value falls back to the documented default.
func (c *Config) ParsedClusterWeights() (emb, llm, tproximity, geo float64) {
	parts := strings.Split(c.ClusterWeights, ",")
	defaults := []float64{0.35, 0.35, 0.15, 0.15}
	values := make([]float64, 4)
	copy(values, defaults)
	if len(parts) == 4 {
		for i, p := range parts {
			var v float64
			if _, err := fmt.Sscanf(strings.TrimSpace(p), "%g", &v); err == nil {
				values[i] = v
			}
		}
	}
	return values[0], values[1], values[2], values[3]
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/incident-engine/")
	viper.AddConfigPath("$HOME/.incident-engine")
	viper.AddConfigPath(".")

	viper.SetDefault("port", 8080)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "json")
	viper.SetDefault("allowed_origins", []string{
		"http://localhost:5173",
		"http://localhost:8080",
	})
	viper.SetDefault("shutdown_timeout_sec", 15)

	viper.SetDefault("openai_api_key", "")
	viper.SetDefault("openai_chat_model", "gpt-4o-mini")
	viper.SetDefault("openai_embed_model", "text-embedding-3-small")
	viper.SetDefault("llm_timeout_sec", 8)
	viper.SetDefault("embedding_timeout_sec", 4)
	viper.SetDefault("embedding_rate_per_sec", 10.0)
	viper.SetDefault("embedding_burst", 10)
	viper.SetDefault("judge_rate_per_sec", 5.0)
	viper.SetDefault("judge_burst", 5)

	viper.SetDefault("cluster_threshold", 0.65)
	viper.SetDefault("cluster_weights", "0.35,0.35,0.15,0.15")
	viper.SetDefault("cluster_min_embedding", 0.0)
	viper.SetDefault("cluster_min_llm", 0.0)

	viper.SetDefault("analytics_connection_string", "")
	viper.SetDefault("analytics_timeout_sec", 2)

	viper.SetDefault("tracing_enabled", false)
	viper.SetDefault("tracing_endpoint", "")
	viper.SetDefault("tracing_service_name", "incident-engine")
	viper.SetDefault("tracing_sampling_rate", 1.0)

	viper.SetEnvPrefix("SENTRY")
	viper.AutomaticEnv()

	// These five names are the engine's documented external configuration
	// surface and are also read unprefixed: OPENAI_API_KEY,
	// CLUSTER_THRESHOLD, CLUSTER_WEIGHTS, CLUSTER_MIN_EMBEDDING,
	// CLUSTER_MIN_LLM. AutomaticEnv still resolves their SENTRY_-prefixed
	// form first. Every other setting is read only under SENTRY_.
	for key, env := range map[string]string{
		"openai_api_key":        "OPENAI_API_KEY",
		"cluster_threshold":     "CLUSTER_THRESHOLD",
		"cluster_weights":       "CLUSTER_WEIGHTS",
		"cluster_min_embedding": "CLUSTER_MIN_EMBEDDING",
		"cluster_min_llm":       "CLUSTER_MIN_LLM",
	} {
		if err := viper.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// SENTRY_ALLOWED_ORIGINS is typically a comma-separated string (e.g. from
	// a process manager's env file); viper's AutomaticEnv doesn't split it.
	if len(cfg.AllowedOrigins) == 1 && strings.Contains(cfg.AllowedOrigins[0], ",") {
		parts := strings.Split(cfg.AllowedOrigins[0], ",")
		cfg.AllowedOrigins = make([]string, 0, len(parts))
		for _, p := range parts {
			if o := strings.TrimSpace(p); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	if !cfg.TracingEnabled && os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		cfg.TracingEnabled = true
		if cfg.TracingEndpoint == "" {
			cfg.TracingEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		}
	}

	return &cfg, nil
}
