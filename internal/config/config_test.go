package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("expected default log format 'json', got %s", cfg.LogFormat)
	}
	if cfg.OpenAIAPIKey != "" {
		t.Error("expected OpenAI API key to be unset by default")
	}
	if cfg.ClusterThreshold != 0.65 {
		t.Errorf("expected default cluster threshold 0.65, got %v", cfg.ClusterThreshold)
	}
}

func TestLoadEnvironmentVariables(t *testing.T) {
	os.Clearenv()
	os.Setenv("SENTRY_PORT", "9000")
	os.Setenv("SENTRY_LOG_LEVEL", "debug")
	os.Setenv("SENTRY_OPENAI_API_KEY", "sk-test")
	os.Setenv("SENTRY_CLUSTER_THRESHOLD", "0.8")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Port != 9000 {
		t.Errorf("expected port 9000 from env, got %d", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level 'debug' from env, got %s", cfg.LogLevel)
	}
	if cfg.OpenAIAPIKey != "sk-test" {
		t.Errorf("expected OpenAI key from env, got %s", cfg.OpenAIAPIKey)
	}
	if cfg.ClusterThreshold != 0.8 {
		t.Errorf("expected cluster threshold 0.8 from env, got %v", cfg.ClusterThreshold)
	}
}

func TestLoadAllowedOriginsCommaSeparated(t *testing.T) {
	os.Clearenv()
	os.Setenv("SENTRY_ALLOWED_ORIGINS", " http://localhost:3000 , https://example.com ")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Fatalf("expected 2 allowed origins, got %d: %v", len(cfg.AllowedOrigins), cfg.AllowedOrigins)
	}
	if cfg.AllowedOrigins[0] != "http://localhost:3000" || cfg.AllowedOrigins[1] != "https://example.com" {
		t.Errorf("expected trimmed origins, got %v", cfg.AllowedOrigins)
	}
}

func TestLoadMissingConfigFileIsNotAnError(t *testing.T) {
	os.Clearenv()
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load should not error when config file is missing: %v", err)
	}
	if cfg == nil {
		t.Fatal("config should not be nil even without a config file")
	}
}

func TestParsedClusterWeightsDefault(t *testing.T) {
	cfg := &Config{ClusterWeights: "0.35,0.35,0.15,0.15"}
	emb, llm, tproximity, geo := cfg.ParsedClusterWeights()
	if emb != 0.35 || llm != 0.35 || tproximity != 0.15 || geo != 0.15 {
		t.Errorf("parsed weights = (%v,%v,%v,%v), want (0.35,0.35,0.15,0.15)", emb, llm, tproximity, geo)
	}
}

func TestParsedClusterWeightsFallsBackOnMalformed(t *testing.T) {
	cfg := &Config{ClusterWeights: "not,a,valid,list,extra"}
	emb, llm, tproximity, geo := cfg.ParsedClusterWeights()
	if emb != 0.35 || llm != 0.35 || tproximity != 0.15 || geo != 0.15 {
		t.Errorf("expected fallback to defaults, got (%v,%v,%v,%v)", emb, llm, tproximity, geo)
	}
}
