// Package prompts holds the default request templates for advocates, the
// mediator and query expansion. Templates use text/template syntax and can be
// overridden from configuration.
package prompts

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/ppiankov/tribunal/internal/model"
)

// Template is a compiled prompt template
type Template struct {
	name string
	tmpl *template.Template
}

var funcs = template.FuncMap{
	"inc":   func(i int) int { return i + 1 },
	"lower": strings.ToLower,
	"upper": strings.ToUpper,
	"join":  strings.Join,
}

// Parse compiles text; a syntax error is reported as a *model.ConfigError
func Parse(name, text string) (*Template, error) {
	t, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, &model.ConfigError{Field: name, Reason: "invalid prompt template", Err: err}
	}
	return &Template{name: name, tmpl: t}, nil
}

// Must is Parse for built-in templates
func Must(name, text string) *Template {
	t, err := Parse(name, text)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseOr compiles text, or returns def when text is blank
func ParseOr(name, text string, def *Template) (*Template, error) {
	if strings.TrimSpace(text) == "" {
		return def, nil
	}
	return Parse(name, text)
}

// Render executes the template with data
func (t *Template) Render(data any) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Domain is the field of expertise an advocate or expansion speaks for
type Domain struct {
	Name        string
	Description string
	Keywords    []string
}

// IsZero reports whether no domain is configured
func (d Domain) IsZero() bool {
	return d.Name == "" && d.Description == "" && len(d.Keywords) == 0
}

// Expertise is the phrase used to introduce the domain in prompts
func (d Domain) Expertise() string {
	switch {
	case d.Description != "":
		return d.Description
	case d.Name != "":
		return d.Name
	default:
		return "scientific"
	}
}

// AdvocateData feeds the advocate system and user templates
type AdvocateData struct {
	Claim     string
	Source    string
	Authority string
	Domain    Domain
	Evidence  []model.EvidenceItem
	Labels    []model.LabelOption
	Contract  string
}

// MediatorData feeds the mediator system and user templates
type MediatorData struct {
	Claim    string
	Verdicts string // One <verdict>..</verdict><reasoning>..</reasoning> line per advocate
	Count    int
	Labels   []model.LabelOption
	Contract string
}

// ExpansionData feeds the query expansion templates
type ExpansionData struct {
	Claim     string
	Domain    Domain
	MaxLength int
}
