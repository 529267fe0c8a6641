package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/tribunal/internal/pipeline"
)

var (
	indexSource  string
	indexTimeout time.Duration
)

// indexCmd represents the index command
var indexCmd = &cobra.Command{
	Use:   "index <path>",
	Short: "Chunk, embed and store documents for a source",
	Long: `Index loads .txt, .md and .html files from a file or directory, splits
them into overlapping word chunks, embeds the chunks and writes them to the
source's document store (sqlite or qdrant).

Chunk size, overlap and embedding batch size come from the index section
of the configuration.

Example:
  tribunal index ./papers
  tribunal index ./wiki-dump --source wikipedia`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().StringVar(&indexSource, "source", "", "source to index into (default: first configured source)")
	indexCmd.Flags().DurationVar(&indexTimeout, "timeout", time.Hour, "overall indexing timeout")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	embedder, closeEmbedder, err := pipeline.NewEmbedder(cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = closeEmbedder() }()

	indexer, st, err := pipeline.NewIndexer(ctx, cfg, indexSource, embedder, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	fmt.Fprintf(os.Stderr, "⚙️  Indexing %s...\n", args[0])
	stats, err := indexer.IndexPath(ctx, args[0])
	if err != nil {
		return fmt.Errorf("index %s: %w", args[0], err)
	}

	fmt.Fprintf(os.Stderr, "✓ Indexed %d documents as %d chunks in %d batches\n", stats.Documents, stats.Chunks, stats.Batches)
	return nil
}
