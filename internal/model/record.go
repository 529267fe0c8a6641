package model

import "time"

// Verdict is a (label, reasoning) pair
type Verdict struct {
	Label     string `json:"label"`
	Reasoning string `json:"reasoning"`
}

// AdvocateStatus records how an advocate's evaluation finished
type AdvocateStatus string

const (
	StatusOK                   AdvocateStatus = "ok"
	StatusInsufficientEvidence AdvocateStatus = "insufficient_evidence"
	StatusParseError           AdvocateStatus = "parse_error"
)

// AdvocateResult is one advocate's final state for a claim
type AdvocateResult struct {
	Name        string               `json:"name"`
	Authority   string               `json:"authority,omitempty"` // Source authority tier as configured
	Verdict     Verdict              `json:"verdict"`
	Status      AdvocateStatus       `json:"status"`
	Evidence    []EvidenceItem       `json:"evidence"`
	Queries     []string             `json:"queries,omitempty"`     // Queries issued (primary first, then expansions)
	Annotations []EvidenceAnnotation `json:"annotations,omitempty"` // Per-evidence relevance reported by the model
	Attempts    int                  `json:"attempts"`              // Language model calls made
}

// ReliedEvidence returns annotations with relevance at or above min
func (r AdvocateResult) ReliedEvidence(min float64) []EvidenceAnnotation {
	var out []EvidenceAnnotation
	for _, a := range r.Annotations {
		if a.Relevance >= min {
			out = append(out, a)
		}
	}
	return out
}

// EvaluationRecord is the immutable outcome of one claim evaluation
type EvaluationRecord struct {
	ID               string           `json:"id"`
	Claim            Claim            `json:"claim"`
	Advocates        []AdvocateResult `json:"advocates"` // Source-configuration order
	Final            Verdict          `json:"final"`
	MediatorAttempts int              `json:"mediator_attempts"`
	StartedAt        time.Time        `json:"started_at"`
	Duration         time.Duration    `json:"duration"`

	GoldLabel string `json:"gold_label,omitempty"` // Expected label when evaluating a labelled dataset
}

// PerAdvocateVerdicts returns each advocate's label in source order
func (r *EvaluationRecord) PerAdvocateVerdicts() []string {
	out := make([]string, len(r.Advocates))
	for i, a := range r.Advocates {
		out[i] = a.Verdict.Label
	}
	return out
}

// PerAdvocateReasonings returns each advocate's reasoning in source order
func (r *EvaluationRecord) PerAdvocateReasonings() []string {
	out := make([]string, len(r.Advocates))
	for i, a := range r.Advocates {
		out[i] = a.Verdict.Reasoning
	}
	return out
}

// PerAdvocateEvidence returns each advocate's evidence in source order
func (r *EvaluationRecord) PerAdvocateEvidence() [][]EvidenceItem {
	out := make([][]EvidenceItem, len(r.Advocates))
	for i, a := range r.Advocates {
		out[i] = a.Evidence
	}
	return out
}
