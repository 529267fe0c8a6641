package model

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"correct", "CORRECT"},
		{"  Not enough information ", "NOT_ENOUGH_INFORMATION"},
		{"not-enough_information", "NOT_ENOUGH_INFORMATION"},
		{"NOT\tENOUGH\nINFORMATION", "NOT_ENOUGH_INFORMATION"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeLabel(tt.in); got != tt.want {
			t.Errorf("NormalizeLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewLabelSet(t *testing.T) {
	tests := []struct {
		name         string
		options      []LabelOption
		insufficient string
		wantErr      string
	}{
		{"default", DefaultLabelOptions(), LabelNotEnoughInformation, ""},
		{"too few", []LabelOption{{Label: "A"}}, "A", "at least 2"},
		{"duplicate after normalization", []LabelOption{{Label: "yes"}, {Label: "YES "}}, "yes", "duplicate"},
		{"empty label", []LabelOption{{Label: "a"}, {Label: " "}}, "a", "empty label"},
		{"reserved sentinel", []LabelOption{{Label: "a"}, {Label: ParseErrorLabel}}, "a", "reserved"},
		{"insufficient not a member", []LabelOption{{Label: "a"}, {Label: "b"}}, "c", "not a member"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLabelSet(tt.options, tt.insufficient)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLabelSet_Membership(t *testing.T) {
	set := DefaultLabelSet()

	if set.Len() != 3 || set.Insufficient() != LabelNotEnoughInformation {
		t.Fatalf("unexpected default set: %v", set.Labels())
	}
	if !set.Contains("not enough information") {
		t.Error("expected normalized match")
	}
	if set.Contains(ParseErrorLabel) {
		t.Error("parse-error sentinel must never be a member")
	}
	if label, ok := set.Resolve(" incorrect "); !ok || label != LabelIncorrect {
		t.Errorf("Resolve = %q, %v", label, ok)
	}

	opts := set.Options()
	opts[0].Label = "MUTATED"
	if set.Labels()[0] != LabelCorrect {
		t.Error("Options must return a copy")
	}
}

func TestLabelMapper(t *testing.T) {
	m := DefaultLabelMapper()
	if got := m.Map("supports"); got != LabelCorrect {
		t.Errorf("Map(supports) = %q", got)
	}
	if got := m.Map("not enough info"); got != LabelNotEnoughInformation {
		t.Errorf("Map(not enough info) = %q", got)
	}
	if got := m.Map("maybe"); got != "MAYBE" {
		t.Errorf("unmapped labels should pass through normalized, got %q", got)
	}

	var empty LabelMapper
	if got := empty.Map("correct"); got != LabelCorrect {
		t.Errorf("nil mapper Map = %q", got)
	}
}

func TestParseAuthorityTier(t *testing.T) {
	for s, want := range map[string]AuthorityTier{
		"primary":   TierPrimary,
		"secondary": TierSecondary,
		"tertiary":  TierTertiary,
		"":          TierUnknown,
		"gossip":    TierUnknown,
	} {
		if got := ParseAuthorityTier(s); got != want {
			t.Errorf("ParseAuthorityTier(%q) = %v, want %v", s, got, want)
		}
	}
	if TierSecondary.String() != "secondary" {
		t.Errorf("String() = %s", TierSecondary)
	}
}

func TestEvaluationRecord_PerAdvocate(t *testing.T) {
	rec := &EvaluationRecord{
		Advocates: []AdvocateResult{
			{Name: "A", Verdict: Verdict{Label: "X", Reasoning: "rx"}, Evidence: []EvidenceItem{{Text: "e1"}}},
			{Name: "B", Verdict: Verdict{Label: "Y", Reasoning: "ry"}},
		},
	}
	if v := rec.PerAdvocateVerdicts(); v[0] != "X" || v[1] != "Y" {
		t.Errorf("verdicts = %v", v)
	}
	if r := rec.PerAdvocateReasonings(); r[1] != "ry" {
		t.Errorf("reasonings = %v", r)
	}
	if e := rec.PerAdvocateEvidence(); len(e[0]) != 1 || e[1] != nil {
		t.Errorf("evidence = %v", e)
	}
}

func TestReliedEvidence(t *testing.T) {
	r := AdvocateResult{Annotations: []EvidenceAnnotation{
		{SourceID: "a", Relevance: 9},
		{SourceID: "b", Relevance: 3},
		{SourceID: "c", Relevance: 7},
	}}
	got := r.ReliedEvidence(7)
	if len(got) != 2 || got[0].SourceID != "a" || got[1].SourceID != "c" {
		t.Errorf("ReliedEvidence = %+v", got)
	}
}

func TestErrors(t *testing.T) {
	inner := errors.New("boom")

	cfgErr := &ConfigError{Field: "labels", Reason: "bad", Err: inner}
	if !errors.Is(cfgErr, inner) {
		t.Error("ConfigError should unwrap")
	}
	if cfgErr.Error() != "configuration error (labels): bad: boom" {
		t.Errorf("ConfigError.Error() = %q", cfgErr.Error())
	}

	stageErr := &StageError{Stage: StageAdvocate, Name: "wiki", Err: inner}
	if !errors.Is(stageErr, inner) {
		t.Error("StageError should unwrap")
	}
	if stageErr.Error() != `advocate "wiki": boom` {
		t.Errorf("StageError.Error() = %q", stageErr.Error())
	}
	if (&StageError{Stage: StageMediator, Err: inner}).Error() != "mediator: boom" {
		t.Error("mediator StageError format")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if len(cfg.Sources) != 1 || cfg.Sources[0].ScoreFloor != 0.75 || cfg.Sources[0].TopK != 5 {
		t.Errorf("unexpected default source: %+v", cfg.Sources)
	}
	if _, err := NewLabelSet(cfg.Labels.Options, cfg.Labels.Insufficient); err != nil {
		t.Errorf("default labels invalid: %v", err)
	}
}
