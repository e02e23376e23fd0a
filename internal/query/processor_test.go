package query

import (
	"errors"
	"testing"
)

func TestProcess_QuestionIntent(t *testing.T) {
	p := NewProcessor(Options{})

	q, err := p.Process("What is the GPS accuracy requirement?", Metadata{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Classification != Question {
		t.Errorf("expected question, got %s", q.Classification)
	}
	found := false
	for _, intent := range q.Intents {
		if intent == "what" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected intents to contain \"what\", got %v", q.Intents)
	}
	if !containsTerm(q.KeyTerms, "gps") || !containsTerm(q.KeyTerms, "accuracy") {
		t.Errorf("expected gps and accuracy in key terms, got %v", q.KeyTerms)
	}
	if containsTerm(q.KeyTerms, "what") || containsTerm(q.KeyTerms, "the") {
		t.Errorf("stop words leaked into key terms: %v", q.KeyTerms)
	}
	if !containsTerm(q.DomainTerms, "requirement") {
		t.Errorf("expected requirement as domain term, got %v", q.DomainTerms)
	}
}

func TestProcess_EmptyQuery(t *testing.T) {
	p := NewProcessor(Options{})
	for _, raw := range []string{"", "   ", "\t\n"} {
		if _, err := p.Process(raw, Metadata{}); !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("input %q: expected ErrEmptyQuery, got %v", raw, err)
		}
	}
}

func TestProcess_Classification(t *testing.T) {
	cases := []struct {
		raw  string
		want Classification
	}{
		{"Define the telemetry protocol", Definition},
		{"What does MTBF stand for?", Definition},
		{"How to calibrate the sensor array", Procedural},
		{"What are the steps to deploy the payload?", Procedural},
		{"Compare the primary and backup antennas", Comparison},
		{"Difference between hard and soft requirements", Comparison},
		{"List all interface requirements", Enumeration},
		{"Is the uplink encrypted?", Question},
		{"Telemetry downlink budget overview", Informational},
	}
	p := NewProcessor(Options{})
	for _, tc := range cases {
		q, err := p.Process(tc.raw, Metadata{})
		if err != nil {
			t.Fatalf("%q: %v", tc.raw, err)
		}
		if q.Classification != tc.want {
			t.Errorf("%q: expected %s, got %s", tc.raw, tc.want, q.Classification)
		}
	}
}

func TestProcess_MultipleIntents(t *testing.T) {
	p := NewProcessor(Options{})
	q, err := p.Process("What changed and why did the latency increase?", Metadata{})
	if err != nil {
		t.Fatal(err)
	}
	if len(q.Intents) < 2 {
		t.Errorf("expected multiple intents, got %v", q.Intents)
	}
}

func TestProcess_SearchParameters(t *testing.T) {
	p := NewProcessor(Options{})
	q, err := p.Process(
		"attitude control thruster gimbal torque reaction wheel momentum desaturation propellant margin",
		Metadata{})
	if err != nil {
		t.Fatal(err)
	}
	if len(q.Parameters.PrimaryTerms) != 5 {
		t.Errorf("expected 5 primary terms, got %v", q.Parameters.PrimaryTerms)
	}
	if len(q.Parameters.SecondaryTerms) == 0 {
		t.Errorf("expected secondary terms, got none")
	}
	if q.Parameters.SemanticWeight != 0.7 || q.Parameters.LexicalWeight != 0.3 {
		t.Errorf("unexpected weights: %+v", q.Parameters)
	}
	if q.Parameters.MinSimilarity != 0.6 || q.Parameters.MaxResults != 20 {
		t.Errorf("unexpected defaults: %+v", q.Parameters)
	}
}

func TestProcess_TermFrequencyOrdering(t *testing.T) {
	p := NewProcessor(Options{})
	q, err := p.Process("sensor calibration sensor drift sensor noise", Metadata{})
	if err != nil {
		t.Fatal(err)
	}
	if len(q.KeyTerms) == 0 || q.KeyTerms[0] != "sensor" {
		t.Errorf("most frequent term should rank first, got %v", q.KeyTerms)
	}
}

func TestProcess_ComplexityAndSpecificity(t *testing.T) {
	p := NewProcessor(Options{})

	simple, err := p.Process("uplink status", Metadata{})
	if err != nil {
		t.Fatal(err)
	}
	complexQ, err := p.Process(
		"Explain the interface requirements for the telemetry subsystem, and compare the downlink latency constraints against the uplink throughput specification for the ground segment",
		Metadata{})
	if err != nil {
		t.Fatal(err)
	}
	if complexQ.Complexity <= simple.Complexity {
		t.Errorf("longer multi-clause query should score higher complexity: %f vs %f",
			complexQ.Complexity, simple.Complexity)
	}
	if complexQ.Specificity <= 0 {
		t.Errorf("domain-heavy query should have positive specificity, got %f", complexQ.Specificity)
	}
}

func TestProcess_ScopeCarried(t *testing.T) {
	p := NewProcessor(Options{})
	q, err := p.Process("antenna gain pattern", Metadata{Project: "apollo", Category: "rf"})
	if err != nil {
		t.Fatal(err)
	}
	if q.Scope.Project != "apollo" || q.Scope.Category != "rf" {
		t.Errorf("scope not carried through: %+v", q.Scope)
	}
}

func containsTerm(terms []string, want string) bool {
	for _, term := range terms {
		if term == want {
			return true
		}
	}
	return false
}
