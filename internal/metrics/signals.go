package metrics

import (
	"fmt"

	"github.com/ppiankov/tribunal/internal/model"
)

// SignalType names a diagnostic
type SignalType string

const (
	SignalAgreement        SignalType = "advocate_agreement"
	SignalEvidenceCoverage SignalType = "evidence_coverage"
	SignalAuthority        SignalType = "authority_distribution"
	SignalExpansion        SignalType = "expansion_reliance"
	SignalParseFailures    SignalType = "parse_failures"
	SignalConflict         SignalType = "conflict"
)

// Severity of a signal
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Signal is one diagnostic observation about an evaluation
type Signal struct {
	Type        SignalType     `json:"type"`
	Severity    Severity       `json:"severity"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
}

// Assessment is the diagnostic view of one record
type Assessment struct {
	Confidence string   `json:"confidence"` // high, medium, low-medium, low
	Conflict   bool     `json:"conflict"`
	Signals    []Signal `json:"signals"`
}

// Assessor derives signals from evaluation records
type Assessor struct {
	insufficient string
}

// NewAssessor creates an assessor for a label set
func NewAssessor(labels model.LabelSet) *Assessor {
	return &Assessor{insufficient: labels.Insufficient()}
}

// Assess computes the diagnostic signals and a confidence level
func (a *Assessor) Assess(rec *model.EvaluationRecord) Assessment {
	var signals []Signal

	coverage, coverageSignal := a.coverage(rec)
	signals = append(signals, coverageSignal)

	agreement, agreementSignal := a.agreement(rec)
	signals = append(signals, agreementSignal)

	signals = append(signals, a.authority(rec))

	if s := a.expansion(rec); s.Type != "" {
		signals = append(signals, s)
	}
	if s := a.parseFailures(rec); s.Type != "" {
		signals = append(signals, s)
	}

	conflict, conflictSignal := a.conflict(rec)
	if conflict {
		signals = append(signals, conflictSignal)
	}

	return Assessment{
		Confidence: a.confidence(rec, coverage, agreement, conflict),
		Conflict:   conflict,
		Signals:    signals,
	}
}

// concrete reports whether an advocate reached a label from evidence
func (a *Assessor) concrete(r model.AdvocateResult) bool {
	return r.Status == model.StatusOK && r.Verdict.Label != a.insufficient
}

// coverage is the share of advocates that found any evidence
func (a *Assessor) coverage(rec *model.EvaluationRecord) (float64, Signal) {
	total := len(rec.Advocates)
	withEvidence := 0
	for _, r := range rec.Advocates {
		if len(r.Evidence) > 0 {
			withEvidence++
		}
	}
	if total == 0 {
		return 0, Signal{
			Type:        SignalEvidenceCoverage,
			Severity:    SeverityCritical,
			Description: "No advocates evaluated the claim",
			Data:        map[string]any{"advocates": 0},
		}
	}

	ratio := float64(withEvidence) / float64(total)
	severity := SeverityInfo
	if withEvidence == 0 {
		severity = SeverityCritical
	} else if ratio < 0.5 {
		severity = SeverityWarning
	}
	return ratio, Signal{
		Type:        SignalEvidenceCoverage,
		Severity:    severity,
		Description: fmt.Sprintf("Evidence found by %d/%d advocates", withEvidence, total),
		Data: map[string]any{
			"with_evidence": withEvidence,
			"advocates":     total,
			"ratio":         ratio,
		},
	}
}

// agreement is the share of concrete advocates whose label matches the final one
func (a *Assessor) agreement(rec *model.EvaluationRecord) (float64, Signal) {
	concrete, agree := 0, 0
	for _, r := range rec.Advocates {
		if !a.concrete(r) {
			continue
		}
		concrete++
		if r.Verdict.Label == rec.Final.Label {
			agree++
		}
	}
	if concrete == 0 {
		return 0, Signal{
			Type:        SignalAgreement,
			Severity:    SeverityWarning,
			Description: "No advocate reached a concrete verdict",
			Data:        map[string]any{"concrete": 0},
		}
	}

	ratio := float64(agree) / float64(concrete)
	severity := SeverityInfo
	if ratio < 0.5 {
		severity = SeverityCritical
	} else if ratio < 1 {
		severity = SeverityWarning
	}
	return ratio, Signal{
		Type:        SignalAgreement,
		Severity:    severity,
		Description: fmt.Sprintf("%d/%d concrete verdicts match the final verdict", agree, concrete),
		Data: map[string]any{
			"agree":    agree,
			"concrete": concrete,
			"ratio":    ratio,
		},
	}
}

// authority weighs concrete verdicts by their source tier
func (a *Assessor) authority(rec *model.EvaluationRecord) Signal {
	var primary, secondary, tertiary, unknown int
	for _, r := range rec.Advocates {
		if !a.concrete(r) {
			continue
		}
		switch model.ParseAuthorityTier(r.Authority) {
		case model.TierPrimary:
			primary++
		case model.TierSecondary:
			secondary++
		case model.TierTertiary:
			tertiary++
		default:
			unknown++
		}
	}

	total := primary + secondary + tertiary
	if total == 0 {
		return Signal{
			Type:        SignalAuthority,
			Severity:    SeverityInfo,
			Description: "No tiered source reached a concrete verdict",
			Data:        map[string]any{"unclassified": unknown},
		}
	}

	weighted := float64(primary*3+secondary*2+tertiary) / float64(total*3)
	severity := SeverityInfo
	if primary == 0 {
		severity = SeverityWarning
	}
	return Signal{
		Type:        SignalAuthority,
		Severity:    severity,
		Description: fmt.Sprintf("Concrete verdicts by tier: %d primary, %d secondary, %d tertiary", primary, secondary, tertiary),
		Data: map[string]any{
			"primary":      primary,
			"secondary":    secondary,
			"tertiary":     tertiary,
			"unclassified": unknown,
			"weighted":     weighted,
		},
	}
}

// expansion reports advocates that only found evidence through query expansion
func (a *Assessor) expansion(rec *model.EvaluationRecord) Signal {
	var names []string
	for _, r := range rec.Advocates {
		if len(r.Evidence) == 0 {
			continue
		}
		expandedOnly := true
		for _, e := range r.Evidence {
			if !e.Expanded {
				expandedOnly = false
				break
			}
		}
		if expandedOnly {
			names = append(names, r.Name)
		}
	}
	if len(names) == 0 {
		return Signal{}
	}
	return Signal{
		Type:        SignalExpansion,
		Severity:    SeverityWarning,
		Description: fmt.Sprintf("%d advocate(s) relied on hypothetical-passage retrieval", len(names)),
		Data:        map[string]any{"advocates": names},
	}
}

func (a *Assessor) parseFailures(rec *model.EvaluationRecord) Signal {
	var names []string
	for _, r := range rec.Advocates {
		if r.Status == model.StatusParseError {
			names = append(names, r.Name)
		}
	}
	mediatorFailed := rec.Final.Label == model.ParseErrorLabel
	if len(names) == 0 && !mediatorFailed {
		return Signal{}
	}

	severity := SeverityWarning
	if mediatorFailed {
		severity = SeverityCritical
	}
	return Signal{
		Type:        SignalParseFailures,
		Severity:    severity,
		Description: fmt.Sprintf("%d advocate(s) gave no parseable verdict", len(names)),
		Data: map[string]any{
			"advocates":         names,
			"mediator_failed":   mediatorFailed,
			"mediator_attempts": rec.MediatorAttempts,
		},
	}
}

// conflict reports concrete advocates that disagree with each other
func (a *Assessor) conflict(rec *model.EvaluationRecord) (bool, Signal) {
	labels := make(map[string]int)
	for _, r := range rec.Advocates {
		if a.concrete(r) {
			labels[r.Verdict.Label]++
		}
	}
	if len(labels) < 2 {
		return false, Signal{}
	}
	return true, Signal{
		Type:        SignalConflict,
		Severity:    SeverityWarning,
		Description: fmt.Sprintf("Advocates with evidence reached %d different verdicts", len(labels)),
		Data:        map[string]any{"labels": labels},
	}
}

func (a *Assessor) confidence(rec *model.EvaluationRecord, coverage, agreement float64, conflict bool) string {
	if rec.Final.Label == model.ParseErrorLabel || coverage == 0 {
		return "low"
	}
	if conflict {
		return "low-medium"
	}
	switch {
	case agreement >= 0.8 && coverage >= 0.5:
		return "high"
	case agreement >= 0.5:
		return "medium"
	default:
		return "low"
	}
}
