package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.SetEnvPrefix("TRIBUNAL")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()
}

func TestLoadConfig_Defaults(t *testing.T) {
	resetViper(t)

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.LLM.Provider != "openai" || len(cfg.Sources) != 1 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	resetViper(t)
	t.Setenv("TRIBUNAL_LLM_MODEL", "llama3.1")
	t.Setenv("TRIBUNAL_CONCURRENCY_WORKERS", "7")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.LLM.Model != "llama3.1" {
		t.Errorf("model = %q", cfg.LLM.Model)
	}
	if cfg.Concurrency.Workers != 7 {
		t.Errorf("workers = %d", cfg.Concurrency.Workers)
	}
	if cfg.LLM.Timeout != 60 {
		t.Errorf("unrelated field lost its default: timeout = %d", cfg.LLM.Timeout)
	}
}

func TestLoadConfig_File(t *testing.T) {
	resetViper(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
llm:
  provider: ollama
  model: qwen2.5
sources:
  - name: ipcc
    authority: primary
    score_floor: 0.6
    store:
      kind: qdrant
      collection: ipcc
  - name: wiki
    store:
      kind: sqlite
      path: wiki.db
    expansion:
      enabled: true
      count: 2
cache:
  memory_ttl: 30m
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig failed: %v", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.LLM.Provider != "ollama" || cfg.LLM.Model != "qwen2.5" {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if len(cfg.Sources) != 2 {
		t.Fatalf("sources = %d", len(cfg.Sources))
	}
	if cfg.Sources[0].Store.Kind != "qdrant" || cfg.Sources[0].Authority != "primary" || cfg.Sources[0].ScoreFloor != 0.6 {
		t.Errorf("first source = %+v", cfg.Sources[0])
	}
	if !cfg.Sources[1].Expansion.Enabled || cfg.Sources[1].Expansion.Count != 2 {
		t.Errorf("second source expansion = %+v", cfg.Sources[1].Expansion)
	}
	if cfg.Cache.MemoryTTL != 30*time.Minute {
		t.Errorf("memory ttl = %v", cfg.Cache.MemoryTTL)
	}
}

func TestRedact(t *testing.T) {
	if redact("") != "" {
		t.Error("empty value should stay empty")
	}
	if redact("sk-secret") == "sk-secret" {
		t.Error("secret not redacted")
	}
}
