package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ppiankov/tribunal/internal/metrics"
	"github.com/ppiankov/tribunal/internal/model"
	"github.com/ppiankov/tribunal/internal/util"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA"))
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E5C07B"))
	critStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
)

var verdictColors = map[string]lipgloss.Color{
	model.LabelCorrect:              lipgloss.Color("#98C379"),
	model.LabelIncorrect:            lipgloss.Color("#FF6B6B"),
	model.LabelNotEnoughInformation: lipgloss.Color("#E5C07B"),
	model.ParseErrorLabel:           lipgloss.Color("#888888"),
}

func verdictStyle(label string) lipgloss.Style {
	style := lipgloss.NewStyle().Bold(true)
	if c, ok := verdictColors[label]; ok {
		style = style.Foreground(c)
	}
	return style
}

// RenderRecord renders one evaluation as a terminal box
func (w *Writer) RenderRecord(rec *model.EvaluationRecord) string {
	assessment := w.assessor.Assess(rec)

	lines := []string{
		titleStyle.Render(util.Truncate(string(rec.Claim), 100)),
		"",
		labelStyle.Render("Verdict:    ") + verdictStyle(rec.Final.Label).Render(rec.Final.Label),
		labelStyle.Render("Confidence: ") + assessment.Confidence,
	}
	if rec.Final.Reasoning != "" {
		lines = append(lines, "", lipgloss.NewStyle().Width(80).Render(rec.Final.Reasoning))
	}

	lines = append(lines, "")
	for _, a := range rec.Advocates {
		lines = append(lines, fmt.Sprintf("  %-20s %s  %s",
			util.Truncate(a.Name, 20),
			verdictStyle(a.Verdict.Label).Render(a.Verdict.Label),
			labelStyle.Render(fmt.Sprintf("(%d evidence, %d calls)", len(a.Evidence), a.Attempts)),
		))
	}

	for _, s := range assessment.Signals {
		switch s.Severity {
		case metrics.SeverityCritical:
			lines = append(lines, critStyle.Render("  ! "+s.Description))
		case metrics.SeverityWarning:
			lines = append(lines, warnStyle.Render("  ~ "+s.Description))
		}
	}

	return boxStyle.Render(strings.Join(lines, "\n"))
}

// BatchStats counts batch outcomes
type BatchStats struct {
	Total    int
	Failed   int
	Duration string
}

// RenderSummary renders a batch summary with optional classification figures
func (w *Writer) RenderSummary(records []*model.EvaluationRecord, stats BatchStats, cls *metrics.Report) string {
	counts := make(map[string]int)
	var order []string
	for _, r := range records {
		if r == nil {
			continue
		}
		if counts[r.Final.Label] == 0 {
			order = append(order, r.Final.Label)
		}
		counts[r.Final.Label]++
	}

	lines := []string{
		titleStyle.Render("Batch Complete"),
		"",
		labelStyle.Render("Claims:    ") + fmt.Sprintf("%d", stats.Total),
		labelStyle.Render("Evaluated: ") + fmt.Sprintf("%d", len(records)),
	}
	if stats.Failed > 0 {
		lines = append(lines, labelStyle.Render("Failed:    ")+critStyle.Render(fmt.Sprintf("%d", stats.Failed)))
	}
	if stats.Duration != "" {
		lines = append(lines, labelStyle.Render("Elapsed:   ")+stats.Duration)
	}

	if len(order) > 0 {
		lines = append(lines, "")
		for _, label := range order {
			lines = append(lines, fmt.Sprintf("  %s %d", verdictStyle(label).Render(fmt.Sprintf("%-24s", label)), counts[label]))
		}
	}

	if cls != nil && cls.Evaluated > 0 {
		lines = append(lines,
			"",
			labelStyle.Render("Accuracy:  ")+fmt.Sprintf("%.3f (%d/%d)", cls.Accuracy, cls.Correct, cls.Evaluated),
			labelStyle.Render("Macro F1:  ")+fmt.Sprintf("%.3f", cls.MacroF1),
		)
		for _, l := range cls.Labels {
			if l.Support == 0 {
				continue
			}
			lines = append(lines, fmt.Sprintf("  %-24s P=%.2f R=%.2f F1=%.2f n=%d", l.Label, l.Precision, l.Recall, l.F1, l.Support))
		}
	}

	return boxStyle.Render(strings.Join(lines, "\n"))
}
