package model

import (
	"fmt"
	"strings"
)

// Claim is the statement under verification. It is never mutated during a run.
type Claim string

// Sentinel labels that live outside any LabelSet
const (
	// ParseErrorLabel is returned when a model never produced a parseable verdict
	ParseErrorLabel = "ERROR_PARSING_RESPONSE"

	// NoEvidenceReasoning accompanies a forced insufficient-evidence verdict
	NoEvidenceReasoning = "NO EVIDENCE FOUND"

	// NoReasoning accompanies a parse-error verdict
	NoReasoning = "No reasoning available"
)

// Default label vocabulary
const (
	LabelCorrect              = "CORRECT"
	LabelIncorrect            = "INCORRECT"
	LabelNotEnoughInformation = "NOT_ENOUGH_INFORMATION"
)

// LabelOption is one outcome category together with its human-readable definition
type LabelOption struct {
	Label      string `json:"label" yaml:"label" mapstructure:"label"`
	Definition string `json:"definition,omitempty" yaml:"definition" mapstructure:"definition"`
}

// LabelSet is an ordered collection of unique labels with a designated
// insufficient-evidence member.
type LabelSet struct {
	options      []LabelOption
	index        map[string]int
	insufficient string
}

// NormalizeLabel canonicalizes a raw label: trimmed, upper-case, inner
// whitespace and hyphens collapsed to underscores.
func NormalizeLabel(raw string) string {
	fields := strings.FieldsFunc(strings.TrimSpace(raw), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '-' || r == '_'
	})
	return strings.ToUpper(strings.Join(fields, "_"))
}

// NewLabelSet validates options and returns a LabelSet. The insufficient label
// must be one of the options.
func NewLabelSet(options []LabelOption, insufficient string) (LabelSet, error) {
	if len(options) < 2 {
		return LabelSet{}, &ConfigError{Field: "labels", Reason: fmt.Sprintf("at least 2 labels required, got %d", len(options))}
	}

	set := LabelSet{
		options: make([]LabelOption, 0, len(options)),
		index:   make(map[string]int, len(options)),
	}
	for _, opt := range options {
		label := NormalizeLabel(opt.Label)
		if label == "" {
			return LabelSet{}, &ConfigError{Field: "labels", Reason: "empty label"}
		}
		if label == ParseErrorLabel {
			return LabelSet{}, &ConfigError{Field: "labels", Reason: fmt.Sprintf("%s is reserved", ParseErrorLabel)}
		}
		if _, dup := set.index[label]; dup {
			return LabelSet{}, &ConfigError{Field: "labels", Reason: fmt.Sprintf("duplicate label %q", label)}
		}
		set.index[label] = len(set.options)
		set.options = append(set.options, LabelOption{Label: label, Definition: opt.Definition})
	}

	insufficient = NormalizeLabel(insufficient)
	if _, ok := set.index[insufficient]; !ok {
		return LabelSet{}, &ConfigError{Field: "labels.insufficient", Reason: fmt.Sprintf("%q is not a member of the label set", insufficient)}
	}
	set.insufficient = insufficient

	return set, nil
}

// DefaultLabelOptions returns the correct/incorrect/not-enough-information vocabulary
func DefaultLabelOptions() []LabelOption {
	return []LabelOption{
		{Label: LabelCorrect, Definition: "The evidence supports the claim."},
		{Label: LabelIncorrect, Definition: "The evidence contradicts the claim."},
		{Label: LabelNotEnoughInformation, Definition: "The evidence is insufficient, indirect, or contradictory without resolution."},
	}
}

// DefaultLabelSet returns the default vocabulary as a LabelSet
func DefaultLabelSet() LabelSet {
	set, err := NewLabelSet(DefaultLabelOptions(), LabelNotEnoughInformation)
	if err != nil {
		panic(err)
	}
	return set
}

// Options returns a copy of the ordered options
func (s LabelSet) Options() []LabelOption {
	out := make([]LabelOption, len(s.options))
	copy(out, s.options)
	return out
}

// Labels returns the ordered label identifiers
func (s LabelSet) Labels() []string {
	out := make([]string, len(s.options))
	for i, opt := range s.options {
		out[i] = opt.Label
	}
	return out
}

// Len returns the number of labels
func (s LabelSet) Len() int {
	return len(s.options)
}

// Insufficient returns the insufficient-evidence label
func (s LabelSet) Insufficient() string {
	return s.insufficient
}

// Resolve normalizes raw and reports whether it names a member of the set
func (s LabelSet) Resolve(raw string) (string, bool) {
	label := NormalizeLabel(raw)
	_, ok := s.index[label]
	return label, ok
}

// Contains reports whether raw names a member of the set
func (s LabelSet) Contains(raw string) bool {
	_, ok := s.Resolve(raw)
	return ok
}

// LabelMapper folds label variants into a canonical vocabulary, e.g.
// SUPPORTS -> CORRECT. Unmapped labels pass through normalized.
type LabelMapper map[string]string

// Map returns the canonical form of raw
func (m LabelMapper) Map(raw string) string {
	label := NormalizeLabel(raw)
	if mapped, ok := m[label]; ok {
		return NormalizeLabel(mapped)
	}
	return label
}

// DefaultLabelMapper folds the SUPPORTS/REFUTES/NOT_ENOUGH_INFO vocabulary into the default one
func DefaultLabelMapper() LabelMapper {
	return LabelMapper{
		"SUPPORTS":        LabelCorrect,
		"SUPPORTED":       LabelCorrect,
		"TRUE":            LabelCorrect,
		"REFUTES":         LabelIncorrect,
		"REFUTED":         LabelIncorrect,
		"FALSE":           LabelIncorrect,
		"NOT_ENOUGH_INFO": LabelNotEnoughInformation,
		"DISPUTED":        LabelNotEnoughInformation,
	}
}
