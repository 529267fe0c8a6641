// Package report renders evaluation records as files, terminal summaries and
// Kafka messages.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ppiankov/tribunal/internal/metrics"
	"github.com/ppiankov/tribunal/internal/model"
	"github.com/ppiankov/tribunal/internal/util"
)

// Format is an output file format
type Format string

const (
	FormatJSON     Format = "json"
	FormatJSONL    Format = "jsonl"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
)

// ParseFormat maps a name or file extension onto a Format
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "json":
		return FormatJSON, nil
	case "jsonl", "ndjson":
		return FormatJSONL, nil
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	default:
		return "", &model.ConfigError{Field: "output.format", Reason: fmt.Sprintf("unknown format %q", s)}
	}
}

// FormatForPath picks the format from a file extension
func FormatForPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// Document is everything a report file can carry
type Document struct {
	Records        []*model.EvaluationRecord `json:"records"`
	Classification *metrics.Report           `json:"classification,omitempty"`
}

// Writer renders documents
type Writer struct {
	assessor *metrics.Assessor
}

// NewWriter creates a writer that annotates records using labels
func NewWriter(labels model.LabelSet) *Writer {
	return &Writer{assessor: metrics.NewAssessor(labels)}
}

// WriteFile renders doc to path, picking the format from its extension
func (w *Writer) WriteFile(path string, doc Document) (err error) {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()

	return w.Write(f, format, doc)
}

// Write renders doc in the given format
func (w *Writer) Write(out io.Writer, format Format, doc Document) error {
	switch format {
	case FormatJSON:
		return w.writeJSON(out, doc)
	case FormatJSONL:
		return w.writeJSONL(out, doc.Records)
	case FormatCSV:
		return w.writeCSV(out, doc.Records)
	case FormatMarkdown:
		return w.writeMarkdown(out, doc)
	default:
		return &model.ConfigError{Field: "output.format", Reason: fmt.Sprintf("unknown format %q", format)}
	}
}

// annotated is a record with its diagnostic assessment
type annotated struct {
	*model.EvaluationRecord
	Assessment metrics.Assessment `json:"assessment"`
}

func (w *Writer) annotate(records []*model.EvaluationRecord) []annotated {
	out := make([]annotated, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		out = append(out, annotated{EvaluationRecord: r, Assessment: w.assessor.Assess(r)})
	}
	return out
}

func (w *Writer) writeJSON(out io.Writer, doc Document) error {
	payload := struct {
		Records        []annotated     `json:"records"`
		Classification *metrics.Report `json:"classification,omitempty"`
	}{
		Records:        w.annotate(doc.Records),
		Classification: doc.Classification,
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func (w *Writer) writeJSONL(out io.Writer, records []*model.EvaluationRecord) error {
	enc := json.NewEncoder(out)
	for _, r := range w.annotate(records) {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode record %s: %w", r.ID, err)
		}
	}
	return nil
}

var csvHeader = []string{
	"id", "claim", "gold_label", "final_label", "final_reasoning",
	"confidence", "advocates", "mediator_attempts", "duration_ms",
}

func (w *Writer) writeCSV(out io.Writer, records []*model.EvaluationRecord) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, r := range w.annotate(records) {
		row := []string{
			r.ID,
			string(r.Claim),
			r.GoldLabel,
			r.Final.Label,
			r.Final.Reasoning,
			r.Assessment.Confidence,
			advocateSummary(r.EvaluationRecord),
			strconv.Itoa(r.MediatorAttempts),
			strconv.FormatInt(r.Duration.Milliseconds(), 10),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// advocateSummary renders name=label pairs in source order
func advocateSummary(r *model.EvaluationRecord) string {
	parts := make([]string, len(r.Advocates))
	for i, a := range r.Advocates {
		parts[i] = a.Name + "=" + a.Verdict.Label
	}
	return strings.Join(parts, ";")
}

func (w *Writer) writeMarkdown(out io.Writer, doc Document) (err error) {
	printf := func(format string, a ...any) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(out, format, a...)
	}

	printf("# Claim Evaluation Report\n\n")

	if cls := doc.Classification; cls != nil && cls.Evaluated > 0 {
		printf("## Classification\n\n")
		printf("- Evaluated: %d of %d\n", cls.Evaluated, cls.Total)
		printf("- Accuracy: %.3f\n", cls.Accuracy)
		printf("- Macro F1: %.3f\n\n", cls.MacroF1)
		printf("| Label | Precision | Recall | F1 | Support |\n")
		printf("|---|---|---|---|---|\n")
		for _, l := range cls.Labels {
			printf("| %s | %.3f | %.3f | %.3f | %d |\n", l.Label, l.Precision, l.Recall, l.F1, l.Support)
		}
		printf("\n")
	}

	for i, r := range w.annotate(doc.Records) {
		printf("## %d. %s\n\n", i+1, mdEscape(util.Truncate(string(r.Claim), 120)))
		printf("**Verdict:** %s (confidence: %s)\n\n", r.Final.Label, r.Assessment.Confidence)
		if r.GoldLabel != "" {
			printf("**Expected:** %s\n\n", r.GoldLabel)
		}
		if r.Final.Reasoning != "" {
			printf("%s\n\n", r.Final.Reasoning)
		}

		printf("| Advocate | Verdict | Evidence | Attempts |\n")
		printf("|---|---|---|---|\n")
		for _, a := range r.Advocates {
			printf("| %s | %s | %d | %d |\n", mdEscape(a.Name), a.Verdict.Label, len(a.Evidence), a.Attempts)
		}
		printf("\n")

		var notable []metrics.Signal
		for _, s := range r.Assessment.Signals {
			if s.Severity != metrics.SeverityInfo {
				notable = append(notable, s)
			}
		}
		if len(notable) > 0 {
			printf("**Signals:**\n\n")
			for _, s := range notable {
				printf("- [%s] %s\n", s.Severity, s.Description)
			}
			printf("\n")
		}
	}

	return err
}

func mdEscape(s string) string {
	return strings.NewReplacer("|", "\\|", "\n", " ").Replace(s)
}
