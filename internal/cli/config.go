package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/tribunal/internal/model"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

// bindDefaults registers the scalar keys that environment variables may
// override. viper only consults the environment for keys it already knows.
func bindDefaults(cfg *model.Config) {
	defaults := map[string]any{
		"llm.provider":                      cfg.LLM.Provider,
		"llm.model":                         cfg.LLM.Model,
		"llm.base_url":                      cfg.LLM.BaseURL,
		"llm.timeout":                       cfg.LLM.Timeout,
		"llm.max_tokens":                    cfg.LLM.MaxTokens,
		"llm.retries":                       cfg.LLM.Retries,
		"embedding.provider":                cfg.Embedding.Provider,
		"embedding.model":                   cfg.Embedding.Model,
		"embedding.base_url":                cfg.Embedding.BaseURL,
		"concurrency.advocates":             cfg.Concurrency.Advocates,
		"concurrency.workers":               cfg.Concurrency.Workers,
		"rate_limiting.requests_per_second": cfg.RateLimiting.RequestsPerSecond,
		"rate_limiting.burst_size":          cfg.RateLimiting.BurstSize,
		"cache.enabled":                     cfg.Cache.Enabled,
		"cache.disk_dir":                    cfg.Cache.DiskDir,
		"cache.redis_url":                   cfg.Cache.RedisURL,
		"kafka.topic":                       cfg.Kafka.Topic,
		"output.log_level":                  cfg.Output.LogLevel,
		"output.log_format":                 cfg.Output.LogFormat,
	}
	for key, value := range defaults {
		viper.SetDefault(key, value)
	}
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage Tribunal configuration",
	Long: `Manage Tribunal configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (TRIBUNAL_*, e.g. TRIBUNAL_LLM_MODEL)
3. Config file (~/.tribunal/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after merging defaults, the config file, .env and environment variables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		// Never echo secrets
		cfg.LLM.APIKey = redact(cfg.LLM.APIKey)
		cfg.Embedding.APIKey = redact(cfg.Embedding.APIKey)
		for i := range cfg.Sources {
			cfg.Sources[i].Store.APIKey = redact(cfg.Sources[i].Store.APIKey)
		}

		yamlData, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		fmt.Println(string(yamlData))
		return nil
	},
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.tribunal/config.yaml.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}

		configDir := filepath.Join(home, ".tribunal")
		configPath := filepath.Join(configDir, "config.yaml")

		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists: %s\nUse 'tribunal config show' to view it, or delete it first to recreate", configPath)
		}

		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}

		yamlData, err := yaml.Marshal(model.DefaultConfig())
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}

		f, err := os.Create(configPath)
		if err != nil {
			return fmt.Errorf("error creating config file: %w", err)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close config file: %w", closeErr)
			}
		}()

		printf := func(format string, a ...any) {
			if err != nil {
				return
			}
			_, err = fmt.Fprintf(f, format, a...)
		}

		printf("# Tribunal Configuration File\n")
		printf("#\n")
		printf("# Configuration hierarchy (highest to lowest priority):\n")
		printf("#   1. CLI flags\n")
		printf("#   2. Environment variables (TRIBUNAL_*)\n")
		printf("#   3. This config file\n")
		printf("#   4. Built-in defaults\n\n")
		printf("%s", yamlData)
		printf("\n# API Keys (recommended to use environment variables or .env instead):\n")
		printf("#   export OPENAI_API_KEY=sk-...\n")
		printf("#   export ANTHROPIC_API_KEY=sk-ant-...\n")
		printf("#   export OLLAMA_BASE_URL=http://localhost:11434\n")
		if err != nil {
			return fmt.Errorf("error writing config: %w", err)
		}

		fmt.Printf("✓ Created default configuration: %s\n", configPath)
		fmt.Printf("\nTo view the configuration:\n")
		fmt.Printf("  tribunal config show\n")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
