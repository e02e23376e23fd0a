package document

import (
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
)

// Validator checks uploaded documents before any pipeline processing. It has
// no side effects: it never touches the object store, callers do.
type Validator struct {
	maxSizeBytes int64
	allowed      map[string]bool
}

// NewValidator creates a Validator with the given size cap and MIME
// allow-list.
func NewValidator(maxSizeBytes int64, allowedTypes []string) *Validator {
	allowed := make(map[string]bool, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[strings.ToLower(t)] = true
	}
	return &Validator{maxSizeBytes: maxSizeBytes, allowed: allowed}
}

// extensionMIME maps well-known file extensions to MIME types. Used when
// magic-byte sniffing yields only a generic type.
var extensionMIME = map[string]string{
	".txt":  "text/plain",
	".md":   "text/markdown",
	".html": "text/html",
	".htm":  "text/html",
	".csv":  "text/csv",
	".json": "application/json",
	".xml":  "application/xml",
	".pdf":  "application/pdf",
}

// Validate runs the ordered validation checks, short-circuiting on the first
// failure: non-empty, size cap, MIME allow-list, decodable non-empty text.
// The returned error is one of the package sentinel errors on failure; the
// result carries the typed reason either way.
func (v *Validator) Validate(data []byte, filename, declaredMIME string) (*ValidationResult, error) {
	res := &ValidationResult{Size: int64(len(data))}

	if len(data) == 0 {
		res.Reasons = append(res.Reasons, ReasonEmpty)
		return res, ErrEmptyDocument
	}

	if res.Size > v.maxSizeBytes {
		res.Reasons = append(res.Reasons, ReasonSizeExceeded)
		return res, ErrSizeExceeded
	}

	mimeType := detectMIME(data, filename, declaredMIME)
	res.MIMEType = mimeType
	if !v.allowed[mimeType] {
		res.Reasons = append(res.Reasons, ReasonUnsupportedType)
		return res, ErrUnsupportedType
	}

	if isTextLike(mimeType) {
		text, err := DecodeText(data)
		if err != nil || strings.TrimSpace(text) == "" {
			res.Reasons = append(res.Reasons, ReasonEmptyContent)
			return res, ErrEmptyContent
		}
		res.Structure = detectStructure(text)
	}

	res.Valid = true
	res.Hash = HashBytes(data)
	return res, nil
}

// detectMIME sniffs the content's magic bytes and falls back to the file
// extension (then the declared type) when sniffing is inconclusive.
func detectMIME(data []byte, filename, declaredMIME string) string {
	sniffed := http.DetectContentType(data)
	// Strip parameters such as "; charset=utf-8".
	if i := strings.Index(sniffed, ";"); i >= 0 {
		sniffed = sniffed[:i]
	}
	sniffed = strings.TrimSpace(strings.ToLower(sniffed))

	// text/plain and application/octet-stream are sniffing's generic
	// answers; the extension is more specific there.
	if sniffed == "text/plain" || sniffed == "application/octet-stream" {
		if ext, ok := extensionMIME[strings.ToLower(filepath.Ext(filename))]; ok {
			return ext
		}
		if declaredMIME != "" {
			if i := strings.Index(declaredMIME, ";"); i >= 0 {
				declaredMIME = declaredMIME[:i]
			}
			return strings.TrimSpace(strings.ToLower(declaredMIME))
		}
	}
	return sniffed
}

func isTextLike(mimeType string) bool {
	return strings.HasPrefix(mimeType, "text/") ||
		mimeType == "application/json" ||
		mimeType == "application/xml"
}

var (
	markdownHeadingRe  = regexp.MustCompile(`(?m)^#{1,6}\s+\S`)
	underlineHeadingRe = regexp.MustCompile(`(?m)^\S.*\n(=+|-{2,})\s*$`)
	listMarkerRe       = regexp.MustCompile(`(?m)^\s*([-*+]|\d+[.)])\s+\S`)
)

// detectStructure extracts lightweight structure flags from decoded text.
func detectStructure(text string) Structure {
	paragraphs := 0
	for _, block := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(block) != "" {
			paragraphs++
		}
	}
	return Structure{
		HasHeadings:    markdownHeadingRe.MatchString(text) || underlineHeadingRe.MatchString(text),
		HasLists:       listMarkerRe.MatchString(text),
		ParagraphCount: paragraphs,
	}
}
