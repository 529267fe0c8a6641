package model

import "time"

// Config is the complete tribunal configuration. Field tags serve both
// yaml.v3 (config init/show) and viper's mapstructure decoding.
type Config struct {
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Embedding    EmbeddingConfig    `yaml:"embedding" mapstructure:"embedding"`
	Labels       LabelsConfig       `yaml:"labels" mapstructure:"labels"`
	Advocate     StepConfig         `yaml:"advocate" mapstructure:"advocate"`
	Mediator     StepConfig         `yaml:"mediator" mapstructure:"mediator"`
	Sources      []SourceConfig     `yaml:"sources" mapstructure:"sources"`
	Index        IndexConfig        `yaml:"index" mapstructure:"index"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Kafka        KafkaConfig        `yaml:"kafka" mapstructure:"kafka"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
}

// LLMConfig selects the chat provider
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	Retries   int    `yaml:"retries" mapstructure:"retries"` // extra attempts on 429/5xx
}

// EmbeddingConfig selects the embedding provider used by vector stores
type EmbeddingConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"` // openai, ollama
	Model    string `yaml:"model" mapstructure:"model"`
	APIKey   string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL  string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout  int    `yaml:"timeout" mapstructure:"timeout"` // seconds
}

// LabelsConfig is the label vocabulary
type LabelsConfig struct {
	Options      []LabelOption `yaml:"options" mapstructure:"options"`
	Insufficient string        `yaml:"insufficient" mapstructure:"insufficient"`
}

// StepConfig tunes an advocate or mediator step
type StepConfig struct {
	MaxRetries    int     `yaml:"max_retries" mapstructure:"max_retries"`
	Parser        string  `yaml:"parser" mapstructure:"parser"` // parens, xml, json
	Temperature   float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens     int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	ThinkingToken string  `yaml:"thinking_token,omitempty" mapstructure:"thinking_token"` // e.g. "think" strips <think>...</think>
	SystemPrompt  string  `yaml:"system_prompt,omitempty" mapstructure:"system_prompt"`
}

// SourceConfig describes one advocate's document source
type SourceConfig struct {
	Name          string          `yaml:"name" mapstructure:"name"`
	Store         StoreConfig     `yaml:"store" mapstructure:"store"`
	QueryTemplate string          `yaml:"query_template,omitempty" mapstructure:"query_template"`
	TopK          int             `yaml:"top_k" mapstructure:"top_k"`
	ScoreFloor    float64         `yaml:"score_floor" mapstructure:"score_floor"`
	MaxEvidences  int             `yaml:"max_evidences,omitempty" mapstructure:"max_evidences"`
	Authority     string          `yaml:"authority,omitempty" mapstructure:"authority"` // primary, secondary, tertiary
	Domain        DomainConfig    `yaml:"domain,omitempty" mapstructure:"domain"`
	Expansion     ExpansionConfig `yaml:"expansion" mapstructure:"expansion"`
	SystemPrompt  string          `yaml:"system_prompt,omitempty" mapstructure:"system_prompt"`
}

// StoreConfig selects and configures a document store backend
type StoreConfig struct {
	Kind       string `yaml:"kind" mapstructure:"kind"` // sqlite, qdrant
	Path       string `yaml:"path,omitempty" mapstructure:"path"`
	Collection string `yaml:"collection,omitempty" mapstructure:"collection"`
	Host       string `yaml:"host,omitempty" mapstructure:"host"`
	Port       int    `yaml:"port,omitempty" mapstructure:"port"`
	APIKey     string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	UseTLS     bool   `yaml:"use_tls,omitempty" mapstructure:"use_tls"`
}

// DomainConfig gives an advocate a field of expertise
type DomainConfig struct {
	Name        string   `yaml:"name,omitempty" mapstructure:"name"`
	Description string   `yaml:"description,omitempty" mapstructure:"description"`
	Keywords    []string `yaml:"keywords,omitempty" mapstructure:"keywords"`
}

// ExpansionConfig controls hypothetical-passage query expansion
type ExpansionConfig struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	Count       int     `yaml:"count" mapstructure:"count"`
	MaxLength   int     `yaml:"max_length" mapstructure:"max_length"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// IndexConfig controls chunking when building a store
type IndexConfig struct {
	ChunkSize    int `yaml:"chunk_size" mapstructure:"chunk_size"`       // words per chunk
	ChunkOverlap int `yaml:"chunk_overlap" mapstructure:"chunk_overlap"` // words shared with the previous chunk
	BatchSize    int `yaml:"batch_size" mapstructure:"batch_size"`       // chunks per embedding request
}

// ConcurrencyConfig bounds parallel work
type ConcurrencyConfig struct {
	Advocates int `yaml:"advocates" mapstructure:"advocates"` // advocates evaluated in parallel per claim (1 = sequential)
	Workers   int `yaml:"workers" mapstructure:"workers"`     // claims evaluated in parallel in batch mode
}

// RateLimitingConfig throttles language model calls per provider
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"` // 0 disables
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// CacheConfig controls the embedding cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskDir   string        `yaml:"disk_dir,omitempty" mapstructure:"disk_dir"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
	RedisURL  string        `yaml:"redis_url,omitempty" mapstructure:"redis_url"`
}

// KafkaConfig enables publishing evaluation records
type KafkaConfig struct {
	Brokers []string `yaml:"brokers,omitempty" mapstructure:"brokers"`
	Topic   string   `yaml:"topic,omitempty" mapstructure:"topic"`
}

// OutputConfig controls rendering and logging
type OutputConfig struct {
	Verbose   bool   `yaml:"verbose" mapstructure:"verbose"`
	LogLevel  string `yaml:"log_level" mapstructure:"log_level"`   // debug, info, warn, error
	LogFormat string `yaml:"log_format" mapstructure:"log_format"` // text, json
}

// DefaultConfig returns sensible defaults with a single local sqlite source
func DefaultConfig() *Config {
	step := StepConfig{
		MaxRetries:  3,
		Parser:      "parens",
		Temperature: 0.1,
		MaxTokens:   1024,
	}

	return &Config{
		LLM: LLMConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			Timeout:   60,
			MaxTokens: 1024,
			Retries:   2,
		},
		Embedding: EmbeddingConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
			Timeout:  30,
		},
		Labels: LabelsConfig{
			Options:      DefaultLabelOptions(),
			Insufficient: LabelNotEnoughInformation,
		},
		Advocate: step,
		Mediator: step,
		Sources: []SourceConfig{
			{
				Name:          "default",
				Store:         StoreConfig{Kind: "sqlite", Path: "tribunal.db"},
				QueryTemplate: "{{.Claim}}",
				TopK:          5,
				ScoreFloor:    0.75,
				Expansion: ExpansionConfig{
					Enabled:     true,
					Count:       1,
					MaxLength:   500,
					Temperature: 0.7,
				},
			},
		},
		Index: IndexConfig{
			ChunkSize:    150,
			ChunkOverlap: 20,
			BatchSize:    64,
		},
		Concurrency: ConcurrencyConfig{
			Advocates: 4,
			Workers:   2,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 0,
			BurstSize:         5,
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Output: OutputConfig{
			LogLevel:  "warn",
			LogFormat: "text",
		},
	}
}
