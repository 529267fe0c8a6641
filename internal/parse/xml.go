package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/tribunal/internal/model"
)

var (
	verdictPattern   = regexp.MustCompile(`(?s)<verdict>(.*?)</verdict>`)
	reasoningPattern = regexp.MustCompile(`(?s)<reasoning>(.*?)</reasoning>`)
	paperPattern     = regexp.MustCompile(`(?s)<paper\s+id="([^"]*)"\s+relevance="([^"]*)"\s*>(.*?)</paper>`)
	tagPattern       = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
)

// XMLParser reads <verdict>LABEL</verdict>, an optional <reasoning> element and
// any <paper id="..." relevance="...">explanation</paper> annotations
type XMLParser struct{}

// Name returns "xml"
func (XMLParser) Name() string { return NameXML }

// Parse extracts the first verdict element
func (XMLParser) Parse(text string) (Result, bool) {
	m := verdictPattern.FindStringSubmatch(text)
	if m == nil {
		return Result{}, false
	}
	label := model.NormalizeLabel(m[1])
	if label == "" {
		return Result{}, false
	}

	var annotations []model.EvidenceAnnotation
	for _, pm := range paperPattern.FindAllStringSubmatch(text, -1) {
		relevance, err := strconv.ParseFloat(strings.TrimSpace(pm[2]), 64)
		if err != nil {
			continue
		}
		annotations = append(annotations, model.EvidenceAnnotation{
			SourceID:    pm[1],
			Relevance:   relevance,
			Explanation: strings.TrimSpace(pm[3]),
		})
	}

	var reasoning string
	if rm := reasoningPattern.FindStringSubmatch(text); rm != nil {
		reasoning = strings.TrimSpace(rm[1])
	} else {
		rest := verdictPattern.ReplaceAllString(text, "")
		rest = paperPattern.ReplaceAllString(rest, "")
		reasoning = collapseBlank(tagPattern.ReplaceAllString(rest, ""))
	}

	return Result{Label: label, Reasoning: reasoning, Annotations: annotations}, true
}

// ContractInstructions asks for XML-tagged reasoning, paper relevance and verdict
func (XMLParser) ContractInstructions(labels []model.LabelOption) string {
	choices := labelList(labels, func(l string) string { return strings.ToUpper(l) })
	return fmt.Sprintf(`Rate each evidence passage you relied on from 0 to 10 as <paper id="SOURCE_ID" relevance="SCORE">short explanation</paper>.
Then explain your reasoning inside <reasoning></reasoning>.
Finish with exactly one <verdict></verdict> element containing %s.`, choices)
}
