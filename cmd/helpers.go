package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/docpipe/docpipe/internal/assets"
	"github.com/docpipe/docpipe/internal/chunker"
	"github.com/docpipe/docpipe/internal/config"
	"github.com/docpipe/docpipe/internal/db"
	"github.com/docpipe/docpipe/internal/dedup"
	"github.com/docpipe/docpipe/internal/document"
	"github.com/docpipe/docpipe/internal/embeddings"
	"github.com/docpipe/docpipe/internal/jobs"
	"github.com/docpipe/docpipe/internal/objstore"
	"github.com/docpipe/docpipe/internal/query"
	"github.com/docpipe/docpipe/internal/retriever"
	"github.com/docpipe/docpipe/internal/vectordb"
	"github.com/docpipe/docpipe/internal/worker"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `docpipe init` to create a config file", err)
	}
	return cfg, nil
}

// createEmbedder builds the configured embedding provider.
func createEmbedder(cfg *config.Config) (embeddings.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case config.ProviderOpenAI:
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for OpenAI embeddings")
		}
		return embeddings.NewOpenAIEmbedder(apiKey, embeddings.OpenAIModel(cfg.EmbeddingModel)), nil
	case config.ProviderMock:
		return embeddings.NewMockEmbedder(384), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
}

// collectionFor names the chunk collection for an embedder. Collections are
// keyed per model dimension; routing to the wrong one fails at upsert.
func collectionFor(e embeddings.Embedder) string {
	return fmt.Sprintf("chunks-%s-%d", e.Name(), e.Dimensions())
}

// pipeline bundles every opened store and component the commands share.
type pipeline struct {
	cfg        *config.Config
	database   *db.DB
	objects    *objstore.Store
	vectors    vectordb.VectorStore
	embedder   embeddings.Embedder
	collection string
	stages     *worker.Stages
	jobs       *jobs.Store
	assets     *assets.Store
}

// openPipeline wires the full stage pipeline from config.
func openPipeline(cfg *config.Config, logger *slog.Logger) (*pipeline, error) {
	embedder, err := createEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	database, err := db.Open(filepath.Join(cfg.DataDir, "docpipe.db"))
	if err != nil {
		return nil, err
	}

	objects, err := objstore.NewStore(filepath.Join(cfg.DataDir, "documents"))
	if err != nil {
		database.Close()
		return nil, err
	}

	vectors, err := vectordb.NewChromemStore(filepath.Join(cfg.DataDir, "vectors"))
	if err != nil {
		database.Close()
		return nil, err
	}

	collection := collectionFor(embedder)
	jobStore := jobs.NewStore(database)
	assetStore := assets.NewStore(database)

	stages := &worker.Stages{
		Validator: document.NewValidator(cfg.Validation.MaxSizeBytes, cfg.Validation.AllowedTypes),
		ChunkConfig: chunker.Config{
			TargetSize:        cfg.Chunking.TargetSize,
			OverlapSize:       cfg.Chunking.OverlapSize,
			MinSize:           cfg.Chunking.MinSize,
			MaxSize:           cfg.Chunking.MaxSize,
			PreserveSentences: cfg.Chunking.PreserveSentences,
		},
		Embedder: embedder,
		Batcher: embeddings.NewBatcher(embedder, cfg.Embedding.BatchSize,
			time.Duration(cfg.Embedding.TimeoutMS)*time.Millisecond),
		Vectors:    vectors,
		Collection: collection,
		Detector: dedup.NewDetector(embedder, vectors, collection, dedup.Bands{
			ExactMatch:     cfg.Dedup.ExactMatch,
			VerySimilar:    cfg.Dedup.VerySimilar,
			SimilarContent: cfg.Dedup.SimilarContent,
			TitleOverlap:   dedup.DefaultBands().TitleOverlap,
		}),
		Processor: query.NewProcessor(query.Options{
			MinSimilarity: cfg.Retrieval.MinSimilarity,
			MaxResults:    cfg.Retrieval.MaxResults,
		}),
		Retriever:      retriever.NewRetriever(embedder, vectors, collection),
		Assets:         assetStore,
		Jobs:           jobStore,
		Objects:        objects,
		DedupThreshold: cfg.Dedup.Threshold,
		Logger:         logger,
	}

	return &pipeline{
		cfg:        cfg,
		database:   database,
		objects:    objects,
		vectors:    vectors,
		embedder:   embedder,
		collection: collection,
		stages:     stages,
		jobs:       jobStore,
		assets:     assetStore,
	}, nil
}

func (p *pipeline) Close() {
	p.database.Close()
}
