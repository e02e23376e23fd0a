package vectordb

// Payload holds the metadata stored alongside a chunk vector. It carries
// enough attribution for retrieval results to name their source.
type Payload struct {
	DocumentHash string `json:"document_hash"`
	AssetID      string `json:"asset_id"`
	ChunkID      string `json:"chunk_id"`
	Seq          int    `json:"seq"`
	Title        string `json:"title"`
	DocType      string `json:"doc_type"`
	Project      string `json:"project"`
	Category     string `json:"category"`
}

// Entry is one stored vector with its chunk content and payload.
type Entry struct {
	ID      string
	Content string
	Vector  []float32
	Payload Payload
}

// Result pairs an entry with its similarity score.
type Result struct {
	Entry Entry
	Score float32
}
