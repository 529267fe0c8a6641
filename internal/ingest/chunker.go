package ingest

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ppiankov/tribunal/internal/model"
	"github.com/ppiankov/tribunal/internal/store"
)

// Default chunking parameters, in words
const (
	DefaultChunkSize    = 150
	DefaultChunkOverlap = 20
)

// Chunker splits documents into overlapping word windows
type Chunker struct {
	size    int
	overlap int
}

// NewChunker validates the window parameters. Zero values take the defaults.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size == 0 {
		size = DefaultChunkSize
	}
	if size < 0 {
		return nil, &model.ConfigError{Field: "index.chunk_size", Reason: "must be positive"}
	}
	if overlap < 0 || overlap >= size {
		return nil, &model.ConfigError{
			Field:  "index.chunk_overlap",
			Reason: fmt.Sprintf("must be in [0, %d), got %d", size, overlap),
		}
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split returns the chunks of doc without vectors. Chunk ids derive from the
// source id and position, so re-indexing a file replaces its chunks.
func (c *Chunker) Split(doc Document) []store.Chunk {
	words := strings.Fields(doc.Text)
	if len(words) == 0 {
		return nil
	}

	step := c.size - c.overlap
	var chunks []store.Chunk
	for start := 0; start < len(words); start += step {
		end := start + c.size
		if end > len(words) {
			end = len(words)
		}
		n := len(chunks)
		chunks = append(chunks, store.Chunk{
			ID:       chunkID(doc.SourceID, n),
			SourceID: doc.SourceID,
			Text:     strings.Join(words[start:end], " "),
		})
		if end == len(words) {
			break
		}
	}
	return chunks
}

func chunkID(sourceID string, n int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", sourceID, n))).String()
}
