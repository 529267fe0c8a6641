package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/tribunal/internal/model"
	"github.com/ppiankov/tribunal/internal/pipeline"
	"github.com/ppiankov/tribunal/internal/report"
)

var (
	checkOut     string
	checkTimeout time.Duration
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check <claim>",
	Short: "Evaluate a single claim",
	Long: `Check runs every configured advocate against the claim, then asks the
mediator for a final verdict.

Example:
  tribunal check "Global sea level rose about 20 cm since 1900"
  tribunal check "Vaccines cause autism" --out verdict.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkOut, "out", "", "write the record to a file (.json, .jsonl, .csv, .md)")
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 5*time.Minute, "overall evaluation timeout")
}

func runCheck(cmd *cobra.Command, args []string) error {
	claim := model.Claim(strings.TrimSpace(strings.Join(args, " ")))
	if claim == "" {
		return fmt.Errorf("claim is empty")
	}

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	p, err := pipeline.New(ctx, cfg, pipeline.Options{Logger: newLogger(cfg)})
	if err != nil {
		return fmt.Errorf("initialize pipeline: %w", err)
	}
	defer func() { _ = p.Close() }()

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "⚙️  Evaluating with %d advocate(s): %s\n", len(p.Advocates()), strings.Join(p.Advocates(), ", "))
	}

	rec, err := p.EvaluateClaim(ctx, claim)
	if err != nil {
		return fmt.Errorf("evaluate claim: %w", err)
	}

	writer := report.NewWriter(p.Labels())
	fmt.Println(writer.RenderRecord(rec))

	if checkOut != "" {
		if err := writer.WriteFile(checkOut, report.Document{Records: []*model.EvaluationRecord{rec}}); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if cfg.Output.Verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", checkOut)
		}
	}

	return nil
}
