// Package query turns raw questions into a structured form the retriever can
// act on: key terms, intent tags, a classification, and derived search
// parameters.
package query

import (
	"errors"
	"regexp"
	"sort"
	"strings"
)

// ErrEmptyQuery is returned for empty or whitespace-only input. It is the
// only failure mode of Process.
var ErrEmptyQuery = errors.New("query is empty")

// Classification tags the broad shape of a query.
type Classification string

const (
	Definition    Classification = "definition"
	Procedural    Classification = "procedural"
	Comparison    Classification = "comparison"
	Enumeration   Classification = "enumeration"
	Question      Classification = "question"
	Informational Classification = "informational"
)

// whWords are matched independently; a query can carry several intents.
var whWords = []string{"what", "how", "why", "when", "where", "who", "which"}

// Cue phrases checked in priority order. The first matching group decides
// the classification.
var (
	definitionCues  = []string{"define ", "definition of", "meaning of", "what does", "stand for"}
	proceduralCues  = []string{"how to", "how do", "how can", "steps to", "procedure for", "process for"}
	comparisonCues  = []string{"compare", "difference between", "differences between", " versus ", " vs ", "better than"}
	enumerationCues = []string{"list of", "list all", "list the", "enumerate", "what are the types", "examples of"}
)

var tokenRe = regexp.MustCompile(`[a-zA-Z0-9][a-zA-Z0-9_-]*`)

// SearchParameters is the retrieval tuning derived from a processed query.
type SearchParameters struct {
	PrimaryTerms   []string `json:"primary_terms"`
	SecondaryTerms []string `json:"secondary_terms"`
	SemanticWeight float64  `json:"semantic_weight"`
	LexicalWeight  float64  `json:"lexical_weight"`
	MinSimilarity  float64  `json:"min_similarity"`
	MaxResults     int      `json:"max_results"`
}

// ProcessedQuery is the structured decomposition of one raw query.
// Ephemeral: computed per call, never persisted.
type ProcessedQuery struct {
	Original       string           `json:"original"`
	Cleaned        string           `json:"cleaned"`
	KeyTerms       []string         `json:"key_terms"`
	Intents        []string         `json:"intents"`
	DomainTerms    []string         `json:"domain_terms"`
	Classification Classification   `json:"classification"`
	Complexity     float64          `json:"complexity"`
	Specificity    float64          `json:"specificity"`
	Scope          Metadata         `json:"scope"`
	Parameters     SearchParameters `json:"parameters"`
}

// Metadata narrows search parameters without changing term extraction.
type Metadata struct {
	Project  string `json:"project,omitempty"`
	Category string `json:"category,omitempty"`
}

// Options tunes the processor. Zero values fall back to defaults.
type Options struct {
	DomainVocabulary []string
	MinSimilarity    float64
	MaxResults       int
}

// Processor extracts structure from raw queries. Stateless and safe for
// concurrent use.
type Processor struct {
	domainVocab   map[string]struct{}
	minSimilarity float64
	maxResults    int
}

// NewProcessor builds a Processor from opts.
func NewProcessor(opts Options) *Processor {
	vocab := opts.DomainVocabulary
	if len(vocab) == 0 {
		vocab = defaultDomainVocabulary
	}
	set := make(map[string]struct{}, len(vocab))
	for _, term := range vocab {
		set[strings.ToLower(term)] = struct{}{}
	}
	minSim := opts.MinSimilarity
	if minSim == 0 {
		minSim = 0.6
	}
	maxResults := opts.MaxResults
	if maxResults == 0 {
		maxResults = 20
	}
	return &Processor{domainVocab: set, minSimilarity: minSim, maxResults: maxResults}
}

// Process decomposes a raw query. Fails only on empty input.
func (p *Processor) Process(raw string, meta Metadata) (*ProcessedQuery, error) {
	cleaned := strings.Join(strings.Fields(raw), " ")
	if cleaned == "" {
		return nil, ErrEmptyQuery
	}
	lower := strings.ToLower(cleaned)

	tokens := tokenRe.FindAllString(lower, -1)
	keyTerms := extractKeyTerms(tokens)

	var domainTerms []string
	for _, term := range keyTerms {
		if _, ok := p.domainVocab[term]; ok {
			domainTerms = append(domainTerms, term)
		}
	}

	q := &ProcessedQuery{
		Original:       raw,
		Cleaned:        cleaned,
		KeyTerms:       keyTerms,
		Intents:        detectIntents(tokens),
		DomainTerms:    domainTerms,
		Classification: classify(lower),
		Complexity:     complexity(cleaned, tokens, keyTerms),
		Specificity:    specificity(tokens, keyTerms, domainTerms),
		Scope:          meta,
	}
	q.Parameters = p.deriveParameters(keyTerms)
	return q, nil
}

// extractKeyTerms drops stop words and short tokens, then orders the
// remainder by frequency, ties broken by first appearance.
func extractKeyTerms(tokens []string) []string {
	counts := make(map[string]int)
	first := make(map[string]int)
	for i, tok := range tokens {
		if len(tok) <= 2 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if _, seen := counts[tok]; !seen {
			first[tok] = i
		}
		counts[tok]++
	}
	terms := make([]string, 0, len(counts))
	for term := range counts {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return first[terms[i]] < first[terms[j]]
	})
	return terms
}

func detectIntents(tokens []string) []string {
	present := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		present[tok] = true
	}
	var intents []string
	for _, wh := range whWords {
		if present[wh] {
			intents = append(intents, wh)
		}
	}
	return intents
}

func classify(lower string) Classification {
	switch {
	case containsAny(lower, definitionCues):
		return Definition
	case containsAny(lower, proceduralCues):
		return Procedural
	case containsAny(lower, comparisonCues):
		return Comparison
	case containsAny(lower, enumerationCues):
		return Enumeration
	case strings.Contains(lower, "?"):
		return Question
	default:
		return Informational
	}
}

func containsAny(s string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(s, cue) {
			return true
		}
	}
	return false
}

func complexity(cleaned string, tokens, keyTerms []string) float64 {
	lengthScore := float64(len(cleaned)) / 200
	if lengthScore > 1 {
		lengthScore = 1
	}
	termScore := float64(len(keyTerms)) / 10
	if termScore > 1 {
		termScore = 1
	}
	clauseScore := 0.3
	if multiClause(cleaned, tokens) {
		clauseScore = 0.5
	}
	return (lengthScore + termScore + clauseScore) / 3
}

func multiClause(cleaned string, tokens []string) bool {
	if strings.Contains(cleaned, ";") || strings.Contains(cleaned, ",") {
		return true
	}
	for _, tok := range tokens {
		if tok == "and" || tok == "or" || tok == "but" {
			return true
		}
	}
	return false
}

func specificity(tokens, keyTerms, domainTerms []string) float64 {
	if len(tokens) == 0 || len(keyTerms) == 0 {
		return 0
	}
	domainRatio := float64(len(domainTerms)) / float64(len(keyTerms))
	distinct := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		distinct[tok] = struct{}{}
	}
	distinctRatio := float64(len(distinct)) / float64(len(tokens))
	return (domainRatio + distinctRatio) / 2
}

func (p *Processor) deriveParameters(keyTerms []string) SearchParameters {
	params := SearchParameters{
		SemanticWeight: 0.7,
		LexicalWeight:  0.3,
		MinSimilarity:  p.minSimilarity,
		MaxResults:     p.maxResults,
	}
	if len(keyTerms) > 5 {
		params.PrimaryTerms = keyTerms[:5]
		rest := keyTerms[5:]
		if len(rest) > 5 {
			rest = rest[:5]
		}
		params.SecondaryTerms = rest
	} else {
		params.PrimaryTerms = keyTerms
	}
	return params
}
