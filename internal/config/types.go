package config

// ProviderType identifies an embedding provider.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderMock   ProviderType = "mock"
)

// Config is the top-level docpipe configuration, corresponding to .docpipe.yml.
type Config struct {
	EmbeddingProvider ProviderType     `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string           `yaml:"embedding_model" koanf:"embedding_model"`
	DataDir           string           `yaml:"data_dir" koanf:"data_dir"`
	Validation        ValidationConfig `yaml:"validation" koanf:"validation"`
	Chunking          ChunkingConfig   `yaml:"chunking" koanf:"chunking"`
	Embedding         EmbeddingConfig  `yaml:"embedding" koanf:"embedding"`
	Dedup             DedupConfig      `yaml:"dedup" koanf:"dedup"`
	Retrieval         RetrievalConfig  `yaml:"retrieval" koanf:"retrieval"`
	Worker            WorkerConfig     `yaml:"worker" koanf:"worker"`
	Server            ServerConfig     `yaml:"server" koanf:"server"`
}

// ValidationConfig bounds what the document validator accepts.
type ValidationConfig struct {
	MaxSizeBytes int64    `yaml:"max_size_bytes" koanf:"max_size_bytes"`
	AllowedTypes []string `yaml:"allowed_types" koanf:"allowed_types"`
}

// ChunkingConfig controls how document text is split into chunks.
type ChunkingConfig struct {
	TargetSize        int  `yaml:"target_size" koanf:"target_size"`
	OverlapSize       int  `yaml:"overlap_size" koanf:"overlap_size"`
	MinSize           int  `yaml:"min_size" koanf:"min_size"`
	MaxSize           int  `yaml:"max_size" koanf:"max_size"`
	PreserveSentences bool `yaml:"preserve_sentences" koanf:"preserve_sentences"`
}

// EmbeddingConfig controls batching of embedding provider calls.
type EmbeddingConfig struct {
	BatchSize int `yaml:"batch_size" koanf:"batch_size"`
	TimeoutMS int `yaml:"timeout_ms" koanf:"timeout_ms"`
}

// DedupConfig holds the duplicate-detection score bands. The band values
// are empirical defaults, tunable per deployment.
type DedupConfig struct {
	Threshold      float64 `yaml:"threshold" koanf:"threshold"`
	ExactMatch     float64 `yaml:"exact_match" koanf:"exact_match"`
	VerySimilar    float64 `yaml:"very_similar" koanf:"very_similar"`
	SimilarContent float64 `yaml:"similar_content" koanf:"similar_content"`
}

// RetrievalConfig holds context-retrieval defaults.
type RetrievalConfig struct {
	MinSimilarity float64 `yaml:"min_similarity" koanf:"min_similarity"`
	MaxResults    int     `yaml:"max_results" koanf:"max_results"`
}

// WorkerConfig configures the stage worker polling loop.
type WorkerConfig struct {
	EngineURL        string   `yaml:"engine_url" koanf:"engine_url"`
	WorkerID         string   `yaml:"worker_id" koanf:"worker_id"`
	Topics           []string `yaml:"topics" koanf:"topics"`
	PollIntervalMS   int      `yaml:"poll_interval_ms" koanf:"poll_interval_ms"`
	LockDurationMS   int      `yaml:"lock_duration_ms" koanf:"lock_duration_ms"`
	MaxTasksPerPoll  int      `yaml:"max_tasks_per_poll" koanf:"max_tasks_per_poll"`
	TopicConcurrency int      `yaml:"topic_concurrency" koanf:"topic_concurrency"`
}

// ServerConfig configures the read-only ops HTTP server.
type ServerConfig struct {
	Enabled  bool `yaml:"enabled" koanf:"enabled"`
	Port     int  `yaml:"port" koanf:"port"`
	AllowAll bool `yaml:"allow_all" koanf:"allow_all"`
}
