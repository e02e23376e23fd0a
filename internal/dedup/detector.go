// Package dedup scores candidate documents against stored knowledge using
// combined vector and lexical similarity. Its verdicts are advisory: callers
// decide whether a duplicate blocks ingestion.
package dedup

import (
	"context"
	"fmt"
	"sort"

	"github.com/docpipe/docpipe/internal/embeddings"
	"github.com/docpipe/docpipe/internal/vectordb"
)

// topK is how many nearest stored chunks the vector store is asked for.
const topK = 10

// relaxedFloorDelta widens the vector query below the final threshold so a
// single weak signal cannot cause a false negative.
const relaxedFloorDelta = 0.2

// minQueryFloor is the lowest score floor ever sent to the vector store.
const minQueryFloor = 0.5

// Classification tags how closely a candidate matches stored knowledge.
type Classification string

const (
	ExactMatch         Classification = "exact_match"
	VerySimilar        Classification = "very_similar"
	ContentDuplicate   Classification = "content_duplicate"
	SimilarContent     Classification = "similar_content"
	PotentiallyRelated Classification = "potentially_related"
)

// Bands holds the classification score bands. The values are empirical
// defaults, not fixed contracts.
type Bands struct {
	ExactMatch     float64
	VerySimilar    float64
	SimilarContent float64
	TitleOverlap   float64
}

// DefaultBands returns the standard classification bands.
func DefaultBands() Bands {
	return Bands{ExactMatch: 0.95, VerySimilar: 0.85, SimilarContent: 0.75, TitleOverlap: 0.8}
}

// Metadata describes the candidate document being checked.
type Metadata struct {
	Title        string `json:"title"`
	DocumentHash string `json:"document_hash"`
}

// Scope optionally narrows the comparison to one project or category. It
// affects only which stored vectors are queried, never the scoring formula.
type Scope struct {
	Project  string `json:"project,omitempty"`
	Category string `json:"category,omitempty"`
}

// Candidate is the comparison result against one stored asset. Ephemeral:
// computed per call, never persisted.
type Candidate struct {
	AssetID        string         `json:"asset_id"`
	Title          string         `json:"title"`
	VectorScore    float64        `json:"vector_score"`
	ContentOverlap float64        `json:"content_overlap"`
	TitleOverlap   float64        `json:"title_overlap"`
	CombinedScore  float64        `json:"combined_score"`
	Classification Classification `json:"classification"`
}

// Detector finds stored assets similar to a candidate document.
type Detector struct {
	embedder   embeddings.Embedder
	store      vectordb.VectorStore
	collection string
	bands      Bands
}

// NewDetector creates a Detector searching the given collection.
func NewDetector(embedder embeddings.Embedder, store vectordb.VectorStore, collection string, bands Bands) *Detector {
	return &Detector{embedder: embedder, store: store, collection: collection, bands: bands}
}

// Check compares the candidate text against stored knowledge and returns all
// assets whose combined score reaches the threshold, best match first.
func (d *Detector) Check(ctx context.Context, text string, meta Metadata, threshold float64, scope *Scope) ([]Candidate, error) {
	vectors, err := d.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding candidate: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding candidate: empty result")
	}

	floor := threshold - relaxedFloorDelta
	if floor < minQueryFloor {
		floor = minQueryFloor
	}

	var filter *vectordb.Filter
	if scope != nil {
		filter = &vectordb.Filter{Project: scope.Project, Category: scope.Category}
	}

	hits, err := d.store.Search(ctx, d.collection, vectors[0], topK, float32(floor), filter)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	// Hits are chunk-level; keep the best-scoring candidate per asset.
	byAsset := make(map[string]Candidate)

	// A stored document with the same content hash is an exact match no
	// matter how its chunk vectors score, so probe for it directly. The
	// caller's scope still applies: an identical document in another
	// project is not this scope's duplicate.
	if meta.DocumentHash != "" {
		probeFilter := &vectordb.Filter{DocumentHash: meta.DocumentHash}
		if scope != nil {
			probeFilter.Project = scope.Project
			probeFilter.Category = scope.Category
		}
		probe, err := d.store.Search(ctx, d.collection, vectors[0], 1, -1, probeFilter)
		if err != nil {
			return nil, fmt.Errorf("hash probe: %w", err)
		}
		for _, hit := range probe {
			c := d.scoreHit(text, meta, hit)
			byAsset[c.AssetID] = c
		}
	}

	for _, hit := range hits {
		c := d.scoreHit(text, meta, hit)
		if c.CombinedScore < threshold {
			continue
		}
		if prev, ok := byAsset[c.AssetID]; !ok || c.CombinedScore > prev.CombinedScore {
			byAsset[c.AssetID] = c
		}
	}

	candidates := make([]Candidate, 0, len(byAsset))
	for _, c := range byAsset {
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CombinedScore > candidates[j].CombinedScore
	})
	return candidates, nil
}

// scoreHit combines the vector score with lexical overlaps for one stored
// chunk. An exact content-hash match overrides everything at score 1.0.
func (d *Detector) scoreHit(text string, meta Metadata, hit vectordb.Result) Candidate {
	c := Candidate{
		AssetID:        hit.Entry.Payload.AssetID,
		Title:          hit.Entry.Payload.Title,
		VectorScore:    float64(hit.Score),
		ContentOverlap: ContentOverlap(text, hit.Entry.Content),
		TitleOverlap:   ContentOverlap(meta.Title, hit.Entry.Payload.Title),
	}

	if meta.DocumentHash != "" && meta.DocumentHash == hit.Entry.Payload.DocumentHash {
		c.CombinedScore = 1.0
		c.Classification = ExactMatch
		return c
	}

	lexical := (c.ContentOverlap + c.TitleOverlap) / 2
	c.CombinedScore = c.VectorScore
	if lexical > c.CombinedScore {
		c.CombinedScore = lexical
	}
	c.Classification = d.classify(c.CombinedScore, c.TitleOverlap)
	return c
}

func (d *Detector) classify(combined, titleOverlap float64) Classification {
	switch {
	case combined >= d.bands.ExactMatch:
		return ExactMatch
	case combined >= d.bands.VerySimilar && titleOverlap >= d.bands.TitleOverlap:
		return VerySimilar
	case combined >= d.bands.VerySimilar:
		return ContentDuplicate
	case combined >= d.bands.SimilarContent:
		return SimilarContent
	default:
		return PotentiallyRelated
	}
}
