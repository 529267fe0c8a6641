package parse

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/tribunal/internal/model"
)

// JSONParser reads a {"label": ..., "reasoning": ...} object, optionally fenced
// or surrounded by prose
type JSONParser struct{}

type jsonVerdict struct {
	Label     string `json:"label"`
	Reasoning string `json:"reasoning"`
	Evidence  []struct {
		SourceID    string  `json:"source_id"`
		Relevance   float64 `json:"relevance"`
		Explanation string  `json:"explanation"`
	} `json:"evidence,omitempty"`
}

// Name returns "json"
func (JSONParser) Name() string { return NameJSON }

// Parse decodes the outermost {...} span of the text
func (JSONParser) Parse(text string) (Result, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Result{}, false
	}

	var v jsonVerdict
	if err := json.Unmarshal([]byte(text[start:end+1]), &v); err != nil {
		return Result{}, false
	}

	label := model.NormalizeLabel(v.Label)
	if label == "" {
		return Result{}, false
	}

	res := Result{Label: label, Reasoning: strings.TrimSpace(v.Reasoning)}
	for _, e := range v.Evidence {
		res.Annotations = append(res.Annotations, model.EvidenceAnnotation{
			SourceID:    e.SourceID,
			Relevance:   e.Relevance,
			Explanation: e.Explanation,
		})
	}
	return res, true
}

// ContractInstructions asks for a single JSON object
func (JSONParser) ContractInstructions(labels []model.LabelOption) string {
	choices := labelList(labels, func(l string) string { return `"` + strings.ToUpper(l) + `"` })
	return fmt.Sprintf(`Respond with a single JSON object and nothing else: {"label": <one of %s>, "reasoning": "<your reasoning>"}.`, choices)
}
