package config

// DefaultTopics lists every pipeline stage topic the worker can serve.
var DefaultTopics = []string{
	"document-validate",
	"document-chunk",
	"document-embed",
	"asset-assemble",
	"duplicate-check",
	"query-process",
	"context-retrieve",
}

// DefaultAllowedTypes are the MIME types accepted by the document validator.
var DefaultAllowedTypes = []string{
	"text/plain",
	"text/markdown",
	"text/html",
	"text/csv",
	"application/json",
	"application/xml",
	"application/pdf",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		EmbeddingProvider: ProviderOpenAI,
		EmbeddingModel:    "text-embedding-3-small",
		DataDir:           ".docpipe",
		Validation: ValidationConfig{
			MaxSizeBytes: 10 << 20,
			AllowedTypes: DefaultAllowedTypes,
		},
		Chunking: ChunkingConfig{
			TargetSize:        1000,
			OverlapSize:       200,
			MinSize:           100,
			MaxSize:           2000,
			PreserveSentences: true,
		},
		Embedding: EmbeddingConfig{
			BatchSize: 10,
			TimeoutMS: 30000,
		},
		Dedup: DedupConfig{
			Threshold:      0.75,
			ExactMatch:     0.95,
			VerySimilar:    0.85,
			SimilarContent: 0.75,
		},
		Retrieval: RetrievalConfig{
			MinSimilarity: 0.6,
			MaxResults:    20,
		},
		Worker: WorkerConfig{
			EngineURL:        "http://localhost:8080/engine-rest",
			Topics:           DefaultTopics,
			PollIntervalMS:   2000,
			LockDurationMS:   30000,
			MaxTasksPerPoll:  5,
			TopicConcurrency: 1,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    7070,
		},
	}
}
