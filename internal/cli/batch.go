package cli

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/tribunal/internal/metrics"
	"github.com/ppiankov/tribunal/internal/model"
	"github.com/ppiankov/tribunal/internal/pipeline"
	"github.com/ppiankov/tribunal/internal/report"
	"github.com/ppiankov/tribunal/internal/worker"
)

var (
	batchWorkers int
	batchOut     string
	batchReport  string
	batchTimeout time.Duration
	noLabelMap   bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Evaluate many claims from a file in parallel",
	Long: `Batch evaluates claims read from a file:
- Plain text: one claim per line (blank lines and # comments skipped)
- CSV: a claim column and an optional label column for gold labels

When gold labels are present, accuracy and per-label precision, recall
and F1 are reported. SUPPORTS/REFUTES/NOT_ENOUGH_INFO style labels are
folded into the default vocabulary unless --no-label-map is set.

Example:
  tribunal batch claims.txt
  tribunal batch dataset.csv --workers 4 --out results.jsonl --report report.md`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&batchWorkers, "workers", 0, "claims evaluated concurrently (default: concurrency.workers)")
	batchCmd.Flags().StringVar(&batchOut, "out", "tribunal-results.jsonl", "results file (.json, .jsonl, .csv, .md)")
	batchCmd.Flags().StringVar(&batchReport, "report", "", "additional report file, e.g. report.md")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", time.Hour, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&noLabelMap, "no-label-map", false, "compare gold labels verbatim")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if batchWorkers > 0 {
		cfg.Concurrency.Workers = batchWorkers
	}
	if cfg.Concurrency.Workers <= 0 {
		cfg.Concurrency.Workers = 1
	}

	inputs, err := worker.ReadClaimsFromFile(file)
	if err != nil {
		return fmt.Errorf("read claims: %w", err)
	}

	p, err := pipeline.New(ctx, cfg, pipeline.Options{Logger: newLogger(cfg)})
	if err != nil {
		return fmt.Errorf("initialize pipeline: %w", err)
	}
	defer func() { _ = p.Close() }()

	fmt.Fprintf(os.Stderr, "⚙️  Evaluating %d claims with %d workers and %d advocate(s)...\n",
		len(inputs), cfg.Concurrency.Workers, len(p.Advocates()))

	started := time.Now()
	var done atomic.Int64
	processor := worker.NewBatchProcessor(p, cfg.Concurrency.Workers)
	processor.Progress = func(_ int, r *worker.ClaimResult) {
		n := done.Add(1)
		if r.Error != nil {
			fmt.Fprintf(os.Stderr, "✗ [%d/%d] %s: %v\n", n, len(inputs), r.Input.Claim, r.Error)
		} else if cfg.Output.Verbose {
			fmt.Fprintf(os.Stderr, "✓ [%d/%d] %s\n", n, len(inputs), r.Record.Final.Label)
		}
	}
	results := processor.ProcessClaims(ctx, inputs)

	var records []*model.EvaluationRecord
	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
			continue
		}
		records = append(records, r.Record)
	}

	var cls *metrics.Report
	if hasGold(records) {
		mapper := model.DefaultLabelMapper()
		if noLabelMap {
			mapper = nil
		}
		c := metrics.Classify(metrics.SamplesFromRecords(records), mapper)
		cls = &c
	}

	writer := report.NewWriter(p.Labels())
	doc := report.Document{Records: records, Classification: cls}
	for _, path := range []string{batchOut, batchReport} {
		if path == "" {
			continue
		}
		if err := writer.WriteFile(path, doc); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", path)
	}

	fmt.Println(writer.RenderSummary(records, report.BatchStats{
		Total:    len(inputs),
		Failed:   failed,
		Duration: time.Since(started).Round(time.Second).String(),
	}, cls))

	if failed > 0 && len(records) == 0 {
		return fmt.Errorf("all %d claims failed", failed)
	}
	return nil
}

func hasGold(records []*model.EvaluationRecord) bool {
	for _, r := range records {
		if r.GoldLabel != "" {
			return true
		}
	}
	return false
}
