package document

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Input validation errors. These are terminal for the offending upload:
// the engine must not retry them, a corrected document has to be re-uploaded.
var (
	ErrEmptyDocument   = errors.New("document is empty")
	ErrSizeExceeded    = errors.New("document exceeds maximum size")
	ErrUnsupportedType = errors.New("unsupported document type")
	ErrEmptyContent    = errors.New("document has no decodable content")
)

// Document is a raw uploaded document. Immutable once validated; the bytes
// live in the object store and are referenced by content hash elsewhere.
type Document struct {
	Content      []byte
	Filename     string
	DeclaredMIME string
	Hash         string
	Size         int64
}

// FailureReason is a typed validation failure.
type FailureReason string

const (
	ReasonEmpty           FailureReason = "empty"
	ReasonSizeExceeded    FailureReason = "size_exceeded"
	ReasonUnsupportedType FailureReason = "unsupported_type"
	ReasonEmptyContent    FailureReason = "empty_content"
)

// Structure holds lightweight content-structure flags extracted during
// validation.
type Structure struct {
	HasHeadings    bool `json:"has_headings"`
	HasLists       bool `json:"has_lists"`
	ParagraphCount int  `json:"paragraph_count"`
}

// ValidationResult is the outcome of validating one document. Created once,
// never mutated.
type ValidationResult struct {
	Valid     bool            `json:"valid"`
	Reasons   []FailureReason `json:"reasons,omitempty"`
	Hash      string          `json:"hash,omitempty"`
	Size      int64           `json:"size"`
	MIMEType  string          `json:"mime_type,omitempty"`
	Structure Structure       `json:"structure"`
}

// HashBytes returns the hex-encoded SHA-256 of the given content.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
