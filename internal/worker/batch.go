package worker

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/tribunal/internal/model"
)

// Evaluator evaluates one claim end to end
type Evaluator interface {
	EvaluateClaim(ctx context.Context, claim model.Claim) (*model.EvaluationRecord, error)
}

// ClaimInput is one claim from a batch file, with an optional gold label
type ClaimInput struct {
	Claim     model.Claim
	GoldLabel string
}

// ClaimJob evaluates a single claim
type ClaimJob struct {
	Input     ClaimInput
	Evaluator Evaluator
}

// Execute runs the evaluation
func (j *ClaimJob) Execute(ctx context.Context) Result {
	record, err := j.Evaluator.EvaluateClaim(ctx, j.Input.Claim)
	if err != nil {
		return &ClaimResult{Input: j.Input, Error: err}
	}
	record.GoldLabel = j.Input.GoldLabel
	return &ClaimResult{Input: j.Input, Record: record}
}

// ClaimResult is the outcome of a ClaimJob
type ClaimResult struct {
	Input  ClaimInput
	Record *model.EvaluationRecord
	Error  error
}

// GetError returns the evaluation error, if any
func (r *ClaimResult) GetError() error {
	return r.Error
}

// BatchProcessor evaluates many claims concurrently
type BatchProcessor struct {
	evaluator   Evaluator
	concurrency int

	// Progress, when set, is called as each claim finishes (from worker goroutines)
	Progress func(index int, r *ClaimResult)
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(evaluator Evaluator, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		evaluator:   evaluator,
		concurrency: concurrency,
	}
}

// ProcessClaims evaluates claims and returns results in input order.
// A failed claim is reported in its result and does not stop the batch.
func (b *BatchProcessor) ProcessClaims(ctx context.Context, inputs []ClaimInput) []*ClaimResult {
	if len(inputs) == 0 {
		return []*ClaimResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	if b.Progress != nil {
		pool.OnResult = func(index int, r Result) {
			b.Progress(index, r.(*ClaimResult))
		}
	}
	pool.Start()

	for _, in := range inputs {
		if pool.Submit(&ClaimJob{Input: in, Evaluator: b.evaluator}) < 0 {
			break
		}
	}

	results := pool.Wait()

	out := make([]*ClaimResult, len(inputs))
	for i := range inputs {
		if i < len(results) && results[i] != nil {
			out[i] = results[i].(*ClaimResult)
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = errors.New("claim not evaluated")
		}
		out[i] = &ClaimResult{Input: inputs[i], Error: err}
	}

	return out
}

// ReadClaimsFromFile reads claims from a file. Files ending in .csv are read as
// CSV with a claim column and an optional label column (a header row naming
// "claim" is skipped); anything else is one claim per line, with blank lines
// and lines starting with # ignored. Duplicate claims are dropped.
func ReadClaimsFromFile(filePath string) ([]ClaimInput, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if strings.EqualFold(filepath.Ext(filePath), ".csv") {
		return readClaimsCSV(file)
	}
	return readClaimsLines(file)
}

func readClaimsLines(r io.Reader) ([]ClaimInput, error) {
	var inputs []ClaimInput
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			inputs = append(inputs, ClaimInput{Claim: model.Claim(line)})
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return inputs, nil
}

func readClaimsCSV(r io.Reader) ([]ClaimInput, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var inputs []ClaimInput
	seen := make(map[string]bool)
	claimCol, labelCol := 0, 1

	for row := 0; ; row++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}

		if row == 0 {
			if c, l, ok := csvHeader(rec); ok {
				claimCol, labelCol = c, l
				continue
			}
		}

		if claimCol >= len(rec) {
			continue
		}
		claim := strings.TrimSpace(rec[claimCol])
		if claim == "" || seen[claim] {
			continue
		}
		seen[claim] = true

		in := ClaimInput{Claim: model.Claim(claim)}
		if labelCol >= 0 && labelCol < len(rec) {
			in.GoldLabel = model.NormalizeLabel(rec[labelCol])
		}
		inputs = append(inputs, in)
	}

	return inputs, nil
}

// csvHeader locates the claim and label columns when rec is a header row
func csvHeader(rec []string) (claimCol, labelCol int, ok bool) {
	claimCol, labelCol = -1, -1
	for i, name := range rec {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "claim":
			claimCol = i
		case "label", "verdict", "gold":
			labelCol = i
		}
	}
	if claimCol < 0 {
		return 0, 1, false
	}
	return claimCol, labelCol, true
}
