package embeddings

import "fmt"

// Warning flags a degenerate embedding without failing the batch. A single
// bad vector should not discard an otherwise-successful run; mixed
// dimensions across a whole ingestion run are escalated to a hard error by
// the caller.
type Warning struct {
	ChunkID string `json:"chunk_id"`
	Kind    string `json:"kind"`
	Detail  string `json:"detail"`
}

const (
	WarnZeroVector     = "zero_vector"
	WarnMixedDimension = "mixed_dimension"
)

// ValidateRecords inspects a record set for quality problems: vectors whose
// dimension differs from the majority, and all-zero vectors.
func ValidateRecords(records []Record) []Warning {
	if len(records) == 0 {
		return nil
	}

	expected := dominantDimension(records)
	var warnings []Warning
	for _, r := range records {
		if len(r.Vector) != expected {
			warnings = append(warnings, Warning{
				ChunkID: r.ChunkID,
				Kind:    WarnMixedDimension,
				Detail:  fmt.Sprintf("dimension %d, expected %d", len(r.Vector), expected),
			})
		}
		if isZeroVector(r.Vector) {
			warnings = append(warnings, Warning{
				ChunkID: r.ChunkID,
				Kind:    WarnZeroVector,
				Detail:  "all vector components are zero",
			})
		}
	}
	return warnings
}

// SharedDimension returns the single dimension shared by all records, or
// false when dimensions are mixed (a consistency error for the run).
func SharedDimension(records []Record) (int, bool) {
	if len(records) == 0 {
		return 0, true
	}
	dim := len(records[0].Vector)
	for _, r := range records[1:] {
		if len(r.Vector) != dim {
			return 0, false
		}
	}
	return dim, true
}

func dominantDimension(records []Record) int {
	counts := make(map[int]int)
	for _, r := range records {
		counts[len(r.Vector)]++
	}
	best, bestCount := 0, 0
	for dim, n := range counts {
		if n > bestCount {
			best, bestCount = dim, n
		}
	}
	return best
}

func isZeroVector(v []float32) bool {
	if len(v) == 0 {
		return true
	}
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
