// Package metrics scores evaluation records: classification quality against
// gold labels for datasets, and per-claim diagnostic signals.
package metrics

import (
	"sort"

	"github.com/ppiankov/tribunal/internal/model"
)

// Sample pairs an expected label with the predicted one
type Sample struct {
	Gold      string
	Predicted string
}

// LabelStats holds one-vs-rest figures for a label
type LabelStats struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`   // gold occurrences
	Predicted int     `json:"predicted"` // predicted occurrences
}

// Report summarizes predictions against gold labels
type Report struct {
	Total     int          `json:"total"`
	Evaluated int          `json:"evaluated"` // samples with a gold label
	Correct   int          `json:"correct"`
	Accuracy  float64      `json:"accuracy"`
	MacroF1   float64      `json:"macro_f1"`
	Labels    []LabelStats `json:"labels"`

	// Confusion[gold][predicted] counts
	Confusion map[string]map[string]int `json:"confusion"`
}

// SamplesFromRecords builds samples from records that carry a gold label
func SamplesFromRecords(records []*model.EvaluationRecord) []Sample {
	samples := make([]Sample, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		samples = append(samples, Sample{Gold: r.GoldLabel, Predicted: r.Final.Label})
	}
	return samples
}

// Classify compares predictions with gold labels after folding both through
// mapper. Samples without a gold label count towards Total only.
func Classify(samples []Sample, mapper model.LabelMapper) Report {
	report := Report{
		Total:     len(samples),
		Confusion: make(map[string]map[string]int),
	}

	support := make(map[string]int)
	predicted := make(map[string]int)
	hits := make(map[string]int)

	for _, s := range samples {
		if s.Gold == "" {
			continue
		}
		gold := mapper.Map(s.Gold)
		pred := mapper.Map(s.Predicted)
		if pred == "" {
			pred = model.ParseErrorLabel
		}

		report.Evaluated++
		support[gold]++
		predicted[pred]++
		if report.Confusion[gold] == nil {
			report.Confusion[gold] = make(map[string]int)
		}
		report.Confusion[gold][pred]++
		if gold == pred {
			report.Correct++
			hits[gold]++
		}
	}

	if report.Evaluated == 0 {
		return report
	}
	report.Accuracy = float64(report.Correct) / float64(report.Evaluated)

	seen := make(map[string]bool)
	var labels []string
	for l := range support {
		seen[l] = true
		labels = append(labels, l)
	}
	for l := range predicted {
		if !seen[l] {
			labels = append(labels, l)
		}
	}
	sort.Strings(labels)

	var f1Sum float64
	var f1Count int
	for _, l := range labels {
		st := LabelStats{Label: l, Support: support[l], Predicted: predicted[l]}
		if st.Predicted > 0 {
			st.Precision = float64(hits[l]) / float64(st.Predicted)
		}
		if st.Support > 0 {
			st.Recall = float64(hits[l]) / float64(st.Support)
		}
		if st.Precision+st.Recall > 0 {
			st.F1 = 2 * st.Precision * st.Recall / (st.Precision + st.Recall)
		}
		report.Labels = append(report.Labels, st)

		// Macro average over gold labels only; sentinels predicted but never
		// expected would otherwise drag it down twice
		if st.Support > 0 {
			f1Sum += st.F1
			f1Count++
		}
	}
	if f1Count > 0 {
		report.MacroF1 = f1Sum / float64(f1Count)
	}

	return report
}
