package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/docpipe/docpipe/internal/assets"
	"github.com/docpipe/docpipe/internal/chunker"
	"github.com/docpipe/docpipe/internal/db"
	"github.com/docpipe/docpipe/internal/document"
	"github.com/docpipe/docpipe/internal/embeddings"
	"github.com/docpipe/docpipe/internal/jobs"
	"github.com/docpipe/docpipe/internal/vectordb"
)

func newTestServer(t *testing.T) (*Server, *jobs.Store, *assets.Store) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })

	jobStore := jobs.NewStore(database)
	assetStore := assets.NewStore(database)
	srv := New(Config{Port: 0}, jobStore, assetStore, vectordb.NewMemoryStore(), "chunks", nil)
	return srv, jobStore, assetStore
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := get(t, srv, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("unexpected health body: %v", body)
	}
}

func TestJobEndpoints(t *testing.T) {
	srv, jobStore, _ := newTestServer(t)
	ctx := context.Background()

	job, err := jobStore.Create(ctx, "hash-1", "document-chunk")
	if err != nil {
		t.Fatal(err)
	}
	if err := jobStore.Complete(ctx, job.ID); err != nil {
		t.Fatal(err)
	}

	rec := get(t, srv, "/api/jobs")
	if rec.Code != http.StatusOK {
		t.Fatalf("list jobs: expected 200, got %d", rec.Code)
	}
	var list []jobs.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 job, got %d", len(list))
	}

	rec = get(t, srv, "/api/jobs/"+job.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("get job: expected 200, got %d", rec.Code)
	}

	rec = get(t, srv, "/api/jobs/missing")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing job: expected 404, got %d", rec.Code)
	}

	rec = get(t, srv, "/api/jobs?status=failed")
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("status filter ignored: %v", list)
	}
}

func TestAssetEndpoints(t *testing.T) {
	srv, _, assetStore := newTestServer(t)
	ctx := context.Background()

	content := "The uplink shall operate at S-band frequencies."
	chunks := chunker.Split("hash-x", content, chunker.Config{TargetSize: 100, MinSize: 1, MaxSize: 200})
	records := make([]embeddings.Record, len(chunks))
	for i, c := range chunks {
		records[i] = embeddings.NewRecord(c.ID, c.Content, []float32{1, 0})
	}
	asset, err := assets.Assemble(document.ValidationResult{Valid: true, Hash: "hash-x"},
		chunks, records, assets.Metadata{Title: "Uplink Spec", DocType: "text"})
	if err != nil {
		t.Fatal(err)
	}
	if err := assetStore.Save(ctx, asset); err != nil {
		t.Fatal(err)
	}

	rec := get(t, srv, "/api/assets")
	if rec.Code != http.StatusOK {
		t.Fatalf("list assets: expected 200, got %d", rec.Code)
	}
	var list []assets.KnowledgeAsset
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Title != "Uplink Spec" {
		t.Fatalf("unexpected asset list: %+v", list)
	}

	rec = get(t, srv, "/api/assets/"+asset.ID+"/chunks")
	if rec.Code != http.StatusOK {
		t.Fatalf("get chunks: expected 200, got %d", rec.Code)
	}
	var gotChunks []chunker.Chunk
	if err := json.Unmarshal(rec.Body.Bytes(), &gotChunks); err != nil {
		t.Fatal(err)
	}
	if len(gotChunks) != len(chunks) {
		t.Errorf("expected %d chunks, got %d", len(chunks), len(gotChunks))
	}

	rec = get(t, srv, "/api/assets/missing")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing asset: expected 404, got %d", rec.Code)
	}
}
