package parse

import (
	"fmt"
	"strings"

	"github.com/ppiankov/tribunal/internal/model"
)

// ParensParser reads the label from the first ((label)) marker
type ParensParser struct{}

// Name returns "parens"
func (ParensParser) Name() string { return NameParens }

// Parse finds the first "((" and the first "))" after it
func (ParensParser) Parse(text string) (Result, bool) {
	start := strings.Index(text, "((")
	if start < 0 {
		return Result{}, false
	}
	end := strings.Index(text[start+2:], "))")
	if end < 0 {
		return Result{}, false
	}
	end += start + 2

	label := model.NormalizeLabel(text[start+2 : end])
	if label == "" {
		return Result{}, false
	}

	reasoning := collapseBlank(text[:start] + text[end+2:])
	return Result{Label: label, Reasoning: reasoning}, true
}

// ContractInstructions asks for the label in doubled parentheses
func (ParensParser) ContractInstructions(labels []model.LabelOption) string {
	choices := labelList(labels, func(l string) string { return "((" + l + "))" })
	return fmt.Sprintf("Explain your reasoning, then give your verdict exactly once in the format %s.", choices)
}
