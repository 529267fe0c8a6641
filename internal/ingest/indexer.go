package ingest

import (
	"context"
	"fmt"

	"github.com/ppiankov/tribunal/internal/llm"
	"github.com/ppiankov/tribunal/internal/logging"
	"github.com/ppiankov/tribunal/internal/store"
)

// DefaultBatchSize is the number of chunks embedded per request
const DefaultBatchSize = 64

// Stats summarizes one indexing run
type Stats struct {
	Documents int
	Chunks    int
	Batches   int
}

// Indexer embeds document chunks and writes them to a store
type Indexer struct {
	chunker   *Chunker
	embedder  llm.Embedder
	writer    store.Writer
	batchSize int
	logger    *logging.Logger
}

// NewIndexer wires a chunker, embedder and store writer together
func NewIndexer(chunker *Chunker, embedder llm.Embedder, writer store.Writer, batchSize int, logger *logging.Logger) *Indexer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Indexer{
		chunker:   chunker,
		embedder:  embedder,
		writer:    writer,
		batchSize: batchSize,
		logger:    logger,
	}
}

// IndexPath loads every supported file under path and indexes it
func (ix *Indexer) IndexPath(ctx context.Context, path string) (Stats, error) {
	docs, err := LoadDir(path)
	if err != nil {
		return Stats{}, err
	}
	return ix.IndexDocuments(ctx, docs)
}

// IndexDocuments chunks, embeds and upserts docs batch by batch
func (ix *Indexer) IndexDocuments(ctx context.Context, docs []Document) (Stats, error) {
	stats := Stats{Documents: len(docs)}

	var pending []store.Chunk
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		texts := make([]string, len(pending))
		for i, c := range pending {
			texts[i] = c.Text
		}
		vecs, err := ix.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch %d: %w", stats.Batches+1, err)
		}
		if len(vecs) != len(pending) {
			return fmt.Errorf("embed batch %d: got %d vectors for %d chunks", stats.Batches+1, len(vecs), len(pending))
		}
		for i := range pending {
			pending[i].Vector = vecs[i]
		}
		if err := ix.writer.Upsert(ctx, pending); err != nil {
			return fmt.Errorf("upsert batch %d: %w", stats.Batches+1, err)
		}
		stats.Chunks += len(pending)
		stats.Batches++
		ix.logger.Debug("indexed batch", "batch", stats.Batches, "chunks", len(pending))
		pending = nil
		return nil
	}

	for _, doc := range docs {
		for _, c := range ix.chunker.Split(doc) {
			pending = append(pending, c)
			if len(pending) >= ix.batchSize {
				if err := flush(); err != nil {
					return stats, err
				}
			}
		}
		ix.logger.Info("indexed document", "source", doc.SourceID)
	}
	if err := flush(); err != nil {
		return stats, err
	}
	return stats, nil
}
