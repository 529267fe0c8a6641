// Package parse extracts verdicts from raw language model responses.
//
// A parser owns one response contract: the delimiter the model must use for
// its label. Any response that deviates from the contract is a parse failure;
// label-set membership is checked by the caller.
package parse

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/tribunal/internal/model"
)

// Result is what a parser extracted from one response
type Result struct {
	Label       string // Normalized, not yet checked against a label set
	Reasoning   string // Response text with structural markup removed
	Annotations []model.EvidenceAnnotation
}

// ResponseParser extracts a verdict from raw model text
type ResponseParser interface {
	// Name identifies the contract in configuration ("parens", "xml", "json")
	Name() string

	// Parse returns false when the text does not follow the contract
	Parse(text string) (Result, bool)

	// ContractInstructions tells the model how to format its answer for the given labels
	ContractInstructions(labels []model.LabelOption) string
}

// Parser names accepted by New
const (
	NameParens = "parens"
	NameXML    = "xml"
	NameJSON   = "json"
)

// New returns the parser registered under name. An empty name selects parens.
func New(name string) (ResponseParser, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameParens:
		return ParensParser{}, nil
	case NameXML:
		return XMLParser{}, nil
	case NameJSON:
		return JSONParser{}, nil
	default:
		return nil, &model.ConfigError{
			Field:  "parser",
			Reason: fmt.Sprintf("unknown parser %q (supported: parens, xml, json)", name),
		}
	}
}

// StripThinking removes <token>...</token> blocks emitted by reasoning models.
// An unterminated opening block swallows the rest of the text. An empty token is a no-op.
func StripThinking(text, token string) string {
	if token == "" {
		return text
	}
	open := "<" + token + ">"
	closeTag := "</" + token + ">"

	var b strings.Builder
	rest := text
	for {
		i := strings.Index(rest, open)
		if i < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:i])
		after := rest[i+len(open):]
		j := strings.Index(after, closeTag)
		if j < 0 {
			break
		}
		rest = after[j+len(closeTag):]
	}
	return strings.TrimSpace(b.String())
}

var passagePattern = regexp.MustCompile(`(?s)<passage>(.*?)</passage>`)

// ExtractPassage returns the trimmed content of the first <passage> element
func ExtractPassage(text string) (string, bool) {
	m := passagePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	passage := strings.TrimSpace(m[1])
	if passage == "" {
		return "", false
	}
	return passage, true
}

// collapseBlank squeezes runs of blank lines left behind after markup removal
func collapseBlank(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	blank := false
	for _, l := range lines {
		l = strings.TrimRight(l, " \t")
		if l == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func labelList(labels []model.LabelOption, format func(string) string) string {
	parts := make([]string, len(labels))
	for i, o := range labels {
		parts[i] = format(strings.ToLower(o.Label))
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + ", or " + parts[len(parts)-1]
	}
}
