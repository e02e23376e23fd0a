package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (DOCPIPE_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: DOCPIPE_DATA_DIR -> data_dir, and
	// DOCPIPE_WORKER__ENGINE_URL -> worker.engine_url for nested keys.
	if err := k.Load(env.Provider("DOCPIPE_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "DOCPIPE_"))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized embedding provider values.
var validProviders = map[ProviderType]bool{
	ProviderOpenAI: true,
	ProviderMock:   true,
}

// validTopics is the set of stage topics a worker may be configured for.
var validTopics = func() map[string]bool {
	m := make(map[string]bool, len(DefaultTopics))
	for _, t := range DefaultTopics {
		m[t] = true
	}
	return m
}()

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.EmbeddingProvider == "" {
		return fmt.Errorf("embedding_provider is required")
	}
	if !validProviders[c.EmbeddingProvider] {
		return fmt.Errorf("invalid embedding_provider %q: must be one of openai, mock", c.EmbeddingProvider)
	}
	if c.EmbeddingModel == "" {
		return fmt.Errorf("embedding_model is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Validation.MaxSizeBytes <= 0 {
		return fmt.Errorf("validation.max_size_bytes must be positive")
	}

	ch := c.Chunking
	if ch.TargetSize <= 0 {
		return fmt.Errorf("chunking.target_size must be positive")
	}
	if ch.OverlapSize < 0 {
		return fmt.Errorf("chunking.overlap_size must be non-negative")
	}
	if ch.MinSize < 0 || ch.MaxSize < ch.MinSize {
		return fmt.Errorf("chunking.min_size/max_size must satisfy 0 <= min <= max")
	}

	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding.batch_size must be positive")
	}

	if c.Dedup.Threshold < 0 || c.Dedup.Threshold > 1 {
		return fmt.Errorf("dedup.threshold must be within [0,1]")
	}

	if c.Retrieval.MaxResults <= 0 {
		return fmt.Errorf("retrieval.max_results must be positive")
	}

	w := c.Worker
	if w.EngineURL == "" {
		return fmt.Errorf("worker.engine_url is required")
	}
	if len(w.Topics) == 0 {
		return fmt.Errorf("worker.topics must not be empty")
	}
	for _, t := range w.Topics {
		if !validTopics[t] {
			return fmt.Errorf("unknown worker topic %q", t)
		}
	}
	if w.PollIntervalMS <= 0 {
		return fmt.Errorf("worker.poll_interval_ms must be positive")
	}
	if w.LockDurationMS <= 0 {
		return fmt.Errorf("worker.lock_duration_ms must be positive")
	}
	if w.MaxTasksPerPoll <= 0 {
		return fmt.Errorf("worker.max_tasks_per_poll must be positive")
	}
	if w.TopicConcurrency < 0 {
		return fmt.Errorf("worker.topic_concurrency must be non-negative")
	}

	if c.Server.Enabled && (c.Server.Port < 1 || c.Server.Port > 65535) {
		return fmt.Errorf("server.port must be a valid TCP port")
	}

	return nil
}
