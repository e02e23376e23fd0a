// Package chunker splits normalized document text into bounded,
// quality-scored segments.
package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// sentenceWindow is how far back from the target cut the chunker looks for a
// sentence terminator when PreserveSentences is set.
const sentenceWindow = 100

// nonTrivialMinAlnum is the minimum count of alphanumeric characters for a
// chunk to be considered non-trivial.
const nonTrivialMinAlnum = 10

// Config controls chunk sizing and boundary behavior.
type Config struct {
	TargetSize        int
	OverlapSize       int
	MinSize           int
	MaxSize           int
	PreserveSentences bool
}

// Quality holds the per-chunk quality indicators.
type Quality struct {
	SizeAppropriate bool `json:"size_appropriate"`
	EndsAtSentence  bool `json:"ends_at_sentence"`
	NonTrivial      bool `json:"non_trivial"`
}

// Chunk is a bounded slice of document text. Chunks form an ordered,
// append-only sequence per document; the sequence index is authoritative for
// reconstructing document order.
type Chunk struct {
	ID          string  `json:"id"`
	DocumentID  string  `json:"document_id"`
	Index       int     `json:"index"`
	Content     string  `json:"content"`
	CharCount   int     `json:"char_count"`
	WordCount   int     `json:"word_count"`
	StartOffset int     `json:"start_offset"`
	EndOffset   int     `json:"end_offset"`
	Quality     Quality `json:"quality"`
}

var (
	spaceRunRe  = regexp.MustCompile(` {2,}`)
	blankLineRe = regexp.MustCompile(`\n[ \t]*\n(?:[ \t]*\n)+`)
)

// Normalize collapses runs of spaces and consecutive blank lines. Chunk
// offsets refer to positions in the normalized text.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = spaceRunRe.ReplaceAllString(text, " ")
	text = blankLineRe.ReplaceAllString(text, "\n\n")
	return text
}

// ChunkID builds the deterministic chunk identifier for a document and
// sequence index.
func ChunkID(docID string, index int) string {
	return fmt.Sprintf("%s:%04d", docID, index)
}

// Split divides the document text into chunks. Identical input and config
// always yield identical chunk boundaries; chunk IDs derive from the
// document ID and sequence index, so re-chunking is idempotent. An empty
// input yields zero chunks, not an error.
func Split(docID, text string, cfg Config) []Chunk {
	text = Normalize(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []Chunk
	start := 0
	index := 0

	for start < len(text) {
		end := start + cfg.TargetSize
		if end > len(text) {
			end = len(text)
		}

		if cfg.PreserveSentences && end < len(text) {
			if snapped := snapToSentence(text, start, end); snapped > start {
				end = snapped
			}
		}

		content := strings.TrimSpace(text[start:end])
		if content != "" {
			chunks = append(chunks, Chunk{
				ID:          ChunkID(docID, index),
				DocumentID:  docID,
				Index:       index,
				Content:     content,
				CharCount:   len(content),
				WordCount:   len(strings.Fields(content)),
				StartOffset: start,
				EndOffset:   end,
				Quality:     scoreQuality(content, cfg),
			})
			index++
		}

		if end >= len(text) {
			break
		}

		next := end - cfg.OverlapSize
		if next <= start {
			// Forward progress even when overlap >= chunk length.
			next = start + 1
		}
		start = next
	}

	return chunks
}

// snapToSentence returns the cut position just after the last sentence
// terminator within the boundary window before end, or 0 when none exists.
func snapToSentence(text string, start, end int) int {
	searchFrom := end - sentenceWindow
	if searchFrom < start {
		searchFrom = start
	}
	for i := end - 1; i >= searchFrom; i-- {
		if isTerminator(text[i]) {
			return i + 1
		}
	}
	return 0
}

func isTerminator(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

func scoreQuality(content string, cfg Config) Quality {
	alnum := 0
	for _, r := range content {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}
	last := content[len(content)-1]
	return Quality{
		SizeAppropriate: len(content) >= cfg.MinSize && len(content) <= cfg.MaxSize,
		EndsAtSentence:  isTerminator(last),
		NonTrivial:      alnum > nonTrivialMinAlnum,
	}
}
