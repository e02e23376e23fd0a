package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/docpipe/docpipe/internal/assets"
	"github.com/docpipe/docpipe/internal/chunker"
	"github.com/docpipe/docpipe/internal/dedup"
	"github.com/docpipe/docpipe/internal/document"
	"github.com/docpipe/docpipe/internal/embeddings"
	"github.com/docpipe/docpipe/internal/jobs"
	"github.com/docpipe/docpipe/internal/objstore"
	"github.com/docpipe/docpipe/internal/query"
	"github.com/docpipe/docpipe/internal/retriever"
	"github.com/docpipe/docpipe/internal/taskengine"
	"github.com/docpipe/docpipe/internal/vectordb"
)

// Pipeline stage topics. Each maps 1:1 to a handler.
const (
	TopicValidate        = "document-validate"
	TopicChunk           = "document-chunk"
	TopicEmbed           = "document-embed"
	TopicAssemble        = "asset-assemble"
	TopicDuplicateCheck  = "duplicate-check"
	TopicQueryProcess    = "query-process"
	TopicContextRetrieve = "context-retrieve"
)

// ChunkResult is the chunk stage's task output.
type ChunkResult struct {
	DocumentHash string          `json:"document_hash"`
	Chunks       []chunker.Chunk `json:"chunks"`
}

// EmbedResult is the embed stage's task output. Warnings carry quality
// findings that did not fail the stage.
type EmbedResult struct {
	Records    []embeddings.Record  `json:"records"`
	Dimensions int                  `json:"dimensions"`
	Warnings   []embeddings.Warning `json:"warnings,omitempty"`
}

// DuplicateResult is the duplicate-check stage's task output.
type DuplicateResult struct {
	IsDuplicate bool              `json:"is_duplicate"`
	Candidates  []dedup.Candidate `json:"candidates"`
}

// RetrieveResult is the context-retrieve stage's task output.
type RetrieveResult struct {
	Chunks []retriever.RetrievedChunk `json:"chunks"`
}

// Stages wires the pipeline components into topic handlers.
type Stages struct {
	Validator   *document.Validator
	ChunkConfig chunker.Config
	Embedder    embeddings.Embedder
	Batcher     *embeddings.Batcher
	Vectors     vectordb.VectorStore
	Collection  string
	Detector    *dedup.Detector
	Processor   *query.Processor
	Retriever   *retriever.Retriever
	Assets      *assets.Store
	Jobs        *jobs.Store
	Objects     *objstore.Store

	DedupThreshold float64
	Logger         *slog.Logger
}

// Registry builds the immutable topic registry over these stages.
func (s *Stages) Registry() *Registry {
	return NewRegistry(map[string]Handler{
		TopicValidate:        s.tracked(TopicValidate, s.handleValidate),
		TopicChunk:           s.tracked(TopicChunk, s.handleChunk),
		TopicEmbed:           s.tracked(TopicEmbed, s.handleEmbed),
		TopicAssemble:        s.tracked(TopicAssemble, s.handleAssemble),
		TopicDuplicateCheck:  s.handleDuplicateCheck,
		TopicQueryProcess:    s.handleQueryProcess,
		TopicContextRetrieve: s.handleContextRetrieve,
	})
}

// tracked wraps a document-pipeline handler with a processing-job record.
// Query-side stages skip this: they leave no durable trace.
func (s *Stages) tracked(stage string, h Handler) Handler {
	return func(ctx context.Context, task taskengine.Task) (taskengine.Variables, error) {
		if s.Jobs == nil {
			return h(ctx, task)
		}
		job, err := s.Jobs.Create(ctx, task.Variables.String("documentHash"), stage)
		if err != nil {
			return nil, fmt.Errorf("recording job: %w", err)
		}
		if err := s.Jobs.Start(ctx, job.ID); err != nil {
			return nil, fmt.Errorf("starting job: %w", err)
		}

		output, err := h(ctx, task)
		if err != nil {
			if failErr := s.Jobs.Fail(context.WithoutCancel(ctx), job.ID, err.Error()); failErr != nil {
				s.logger().Warn("recording job failure", "job_id", job.ID, "error", failErr)
			}
			return nil, err
		}
		if err := s.Jobs.Complete(ctx, job.ID); err != nil {
			s.logger().Warn("recording job completion", "job_id", job.ID, "error", err)
		}
		return output, nil
	}
}

func (s *Stages) handleValidate(_ context.Context, task taskengine.Task) (taskengine.Variables, error) {
	data, fileName, err := s.loadDocument(task.Variables)
	if err != nil {
		return nil, err
	}

	result, err := s.Validator.Validate(data, fileName, task.Variables.String("mimeType"))
	if err != nil {
		return nil, err
	}

	resultVar, err := taskengine.JSONVar(result)
	if err != nil {
		return nil, err
	}
	return taskengine.Variables{
		"validationResult": resultVar,
		"valid":            taskengine.BoolVar(result.Valid),
		"documentHash":     taskengine.StringVar(result.Hash),
	}, nil
}

func (s *Stages) handleChunk(_ context.Context, task taskengine.Task) (taskengine.Variables, error) {
	data, _, err := s.loadDocument(task.Variables)
	if err != nil {
		return nil, err
	}
	text, err := document.DecodeText(data)
	if err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}

	hash := document.HashBytes(data)
	result := ChunkResult{
		DocumentHash: hash,
		Chunks:       chunker.Split(hash, text, s.ChunkConfig),
	}

	resultVar, err := taskengine.JSONVar(result)
	if err != nil {
		return nil, err
	}
	return taskengine.Variables{
		"chunkResult": resultVar,
		"chunkCount":  taskengine.IntVar(int64(len(result.Chunks))),
	}, nil
}

func (s *Stages) handleEmbed(ctx context.Context, task taskengine.Task) (taskengine.Variables, error) {
	var chunkResult ChunkResult
	if err := task.Variables.JSON("chunkResult", &chunkResult); err != nil {
		return nil, err
	}

	texts := make([]string, len(chunkResult.Chunks))
	for i, c := range chunkResult.Chunks {
		texts[i] = c.Content
	}

	batch, err := s.Batcher.EmbedAll(ctx, texts)
	if err != nil {
		return nil, err
	}
	if !batch.Complete() {
		// Partial output would break the chunk/embedding count
		// invariant downstream; surface it as a stage failure and let
		// the engine decide on a retry.
		return nil, fmt.Errorf("embedded %d of %d chunks: %w", len(batch.Vectors), len(texts), batch.Errors[0])
	}

	records := make([]embeddings.Record, len(batch.Vectors))
	for i, vec := range batch.Vectors {
		c := chunkResult.Chunks[batch.Indexes[i]]
		records[i] = embeddings.NewRecord(c.ID, c.Content, vec)
	}

	warnings := embeddings.ValidateRecords(records)
	dims, shared := embeddings.SharedDimension(records)
	if !shared {
		return nil, fmt.Errorf("mixed embedding dimensions across chunk set")
	}

	resultVar, err := taskengine.JSONVar(EmbedResult{Records: records, Dimensions: dims, Warnings: warnings})
	if err != nil {
		return nil, err
	}
	return taskengine.Variables{"embedResult": resultVar}, nil
}

func (s *Stages) handleAssemble(ctx context.Context, task taskengine.Task) (taskengine.Variables, error) {
	var validation document.ValidationResult
	if err := task.Variables.JSON("validationResult", &validation); err != nil {
		return nil, err
	}
	var chunkResult ChunkResult
	if err := task.Variables.JSON("chunkResult", &chunkResult); err != nil {
		return nil, err
	}
	var embedResult EmbedResult
	if err := task.Variables.JSON("embedResult", &embedResult); err != nil {
		return nil, err
	}

	asset, err := assets.Assemble(validation, chunkResult.Chunks, embedResult.Records, assets.Metadata{
		Title:   task.Variables.String("title"),
		DocType: task.Variables.String("docType"),
	})
	if err != nil {
		return nil, err
	}

	if err := s.Assets.Save(ctx, asset); err != nil {
		return nil, fmt.Errorf("persisting asset: %w", err)
	}

	entries := make([]vectordb.Entry, len(embedResult.Records))
	for i, rec := range embedResult.Records {
		c := chunkResult.Chunks[i]
		entries[i] = vectordb.Entry{
			ID:      asset.ID + ":" + strconv.Itoa(c.Index),
			Content: c.Content,
			Vector:  rec.Vector,
			Payload: vectordb.Payload{
				DocumentHash: asset.SourceHash,
				AssetID:      asset.ID,
				ChunkID:      c.ID,
				Seq:          c.Index,
				Title:        asset.Title,
				DocType:      asset.DocType,
				Project:      task.Variables.String("project"),
				Category:     task.Variables.String("category"),
			},
		}
	}
	if err := s.Vectors.Upsert(ctx, s.Collection, entries); err != nil {
		// The asset row is already committed; roll it back so a failed
		// ingestion leaves nothing visible to listing or search. The
		// stage context may be past its deadline here.
		s.unwindAssemble(context.WithoutCancel(ctx), asset.ID, entries)
		return nil, fmt.Errorf("indexing vectors: %w", err)
	}

	return taskengine.Variables{
		"assetId":      taskengine.StringVar(asset.ID),
		"assetVersion": taskengine.IntVar(int64(asset.Version)),
	}, nil
}

// unwindAssemble removes the asset row and any vectors a failed assemble
// left behind. Best effort: a failure here is logged, the stage failure
// already on its way out is the one the engine sees.
func (s *Stages) unwindAssemble(ctx context.Context, assetID string, entries []vectordb.Entry) {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	if err := s.Vectors.Delete(ctx, s.Collection, ids...); err != nil {
		s.logger().Warn("removing partial vectors", "asset_id", assetID, "error", err)
	}
	if err := s.Assets.Delete(ctx, assetID); err != nil {
		s.logger().Warn("removing partial asset", "asset_id", assetID, "error", err)
	}
}

func (s *Stages) handleDuplicateCheck(ctx context.Context, task taskengine.Task) (taskengine.Variables, error) {
	data, _, err := s.loadDocument(task.Variables)
	if err != nil {
		return nil, err
	}
	text, err := document.DecodeText(data)
	if err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}

	threshold := s.DedupThreshold
	if raw := task.Variables.String("threshold"); raw != "" {
		if parsed, perr := strconv.ParseFloat(raw, 64); perr == nil {
			threshold = parsed
		}
	}

	var scope *dedup.Scope
	if p, c := task.Variables.String("project"), task.Variables.String("category"); p != "" || c != "" {
		scope = &dedup.Scope{Project: p, Category: c}
	}

	meta := dedup.Metadata{
		Title:        task.Variables.String("title"),
		DocumentHash: document.HashBytes(data),
	}
	candidates, err := s.Detector.Check(ctx, text, meta, threshold, scope)
	if err != nil {
		return nil, err
	}

	resultVar, err := taskengine.JSONVar(DuplicateResult{
		IsDuplicate: len(candidates) > 0,
		Candidates:  candidates,
	})
	if err != nil {
		return nil, err
	}
	return taskengine.Variables{
		"duplicateResult": resultVar,
		"isDuplicate":     taskengine.BoolVar(len(candidates) > 0),
	}, nil
}

func (s *Stages) handleQueryProcess(_ context.Context, task taskengine.Task) (taskengine.Variables, error) {
	processed, err := s.Processor.Process(task.Variables.String("query"), query.Metadata{
		Project:  task.Variables.String("project"),
		Category: task.Variables.String("category"),
	})
	if err != nil {
		return nil, err
	}

	resultVar, err := taskengine.JSONVar(processed)
	if err != nil {
		return nil, err
	}
	return taskengine.Variables{"processedQuery": resultVar}, nil
}

func (s *Stages) handleContextRetrieve(ctx context.Context, task taskengine.Task) (taskengine.Variables, error) {
	var processed query.ProcessedQuery
	if err := task.Variables.JSON("processedQuery", &processed); err != nil {
		// A raw query is accepted too; process it inline.
		p, perr := s.Processor.Process(task.Variables.String("query"), query.Metadata{
			Project:  task.Variables.String("project"),
			Category: task.Variables.String("category"),
		})
		if perr != nil {
			return nil, err
		}
		processed = *p
	}

	chunks, err := s.Retriever.Retrieve(ctx, &processed, retriever.FromQuery(&processed))
	if err != nil {
		return nil, err
	}

	resultVar, err := taskengine.JSONVar(RetrieveResult{Chunks: chunks})
	if err != nil {
		return nil, err
	}
	return taskengine.Variables{
		"retrieveResult": resultVar,
		"resultCount":    taskengine.IntVar(int64(len(chunks))),
	}, nil
}

// loadDocument resolves the task's document either inline or from the
// object store by hash.
func (s *Stages) loadDocument(vars taskengine.Variables) ([]byte, string, error) {
	fileName := vars.String("fileName")
	if content := vars.String("content"); content != "" {
		return []byte(content), fileName, nil
	}
	hash := vars.String("documentHash")
	if hash == "" {
		return nil, "", fmt.Errorf("task carries neither content nor documentHash")
	}
	data, err := s.Objects.Get(hash)
	if err != nil {
		return nil, "", fmt.Errorf("loading document %s: %w", hash, err)
	}
	return data, fileName, nil
}

func (s *Stages) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
