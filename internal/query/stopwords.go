package query

// stopWords is the fixed set of tokens dropped during term extraction.
// Wh-words stay out of the key terms but are still seen by intent detection,
// which runs on the raw lowercased query.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "been": {}, "but": {}, "by": {},
	"can": {}, "could": {},
	"do": {}, "does": {}, "did": {},
	"for": {}, "from": {},
	"had": {}, "has": {}, "have": {}, "how": {},
	"if": {}, "in": {}, "into": {}, "is": {}, "it": {}, "its": {},
	"me": {}, "my": {},
	"no": {}, "not": {},
	"of": {}, "on": {}, "or": {}, "our": {},
	"shall": {}, "should": {}, "so": {}, "such": {},
	"that": {}, "the": {}, "their": {}, "them": {}, "then": {}, "there": {},
	"these": {}, "they": {}, "this": {}, "those": {}, "to": {},
	"was": {}, "we": {}, "were": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "who": {}, "why": {}, "will": {}, "with": {}, "would": {},
	"you": {}, "your": {},
}

// defaultDomainVocabulary covers common systems-engineering terms. Callers
// with a richer vocabulary pass their own via Options.
var defaultDomainVocabulary = []string{
	"requirement", "requirements", "specification", "specifications",
	"interface", "interfaces", "system", "subsystem", "component",
	"architecture", "design", "protocol", "verification", "validation",
	"accuracy", "precision", "latency", "throughput", "tolerance",
	"constraint", "constraints", "compliance", "standard", "standards",
}
