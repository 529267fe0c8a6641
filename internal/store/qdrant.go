package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/ppiankov/tribunal/internal/llm"
	"github.com/ppiankov/tribunal/internal/model"
)

const (
	// DefaultQdrantHost is the default Qdrant host.
	DefaultQdrantHost = "localhost"

	// DefaultQdrantPort is the default Qdrant gRPC port.
	DefaultQdrantPort = 6334

	// DefaultQdrantTimeout is the default operation timeout.
	DefaultQdrantTimeout = 30 * time.Second
)

// Payload keys written for every point
const (
	payloadText     = "text"
	payloadSourceID = "source_id"
)

// QdrantConfig holds configuration for a Qdrant-backed store.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Timeout    time.Duration
	Collection string
}

// DefaultQdrantConfig returns sensible defaults for local development.
func DefaultQdrantConfig() QdrantConfig {
	return QdrantConfig{
		Host:    DefaultQdrantHost,
		Port:    DefaultQdrantPort,
		Timeout: DefaultQdrantTimeout,
	}
}

func (c QdrantConfig) withDefaults() QdrantConfig {
	if c.Host == "" {
		c.Host = DefaultQdrantHost
	}
	if c.Port == 0 {
		c.Port = DefaultQdrantPort
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultQdrantTimeout
	}
	return c
}

// QdrantStore searches a single dense-vector collection.
type QdrantStore struct {
	client   *qdrant.Client
	config   QdrantConfig
	embedder llm.Embedder

	mu     sync.RWMutex
	closed bool
	ready  bool // collection known to exist
}

// NewQdrantStore creates a store for cfg.Collection. The connection is
// established lazily on the first call.
func NewQdrantStore(cfg QdrantConfig, embedder llm.Embedder) (*QdrantStore, error) {
	cfg = cfg.withDefaults()
	if cfg.Collection == "" {
		return nil, &model.ConfigError{Field: "store.collection", Reason: "collection is required"}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &QdrantStore{
		client:   client,
		config:   cfg,
		embedder: embedder,
	}, nil
}

// Close closes the client connection.
func (s *QdrantStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

// HealthCheck verifies the Qdrant server is reachable.
func (s *QdrantStore) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("client is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check failed: %w", err)
	}
	return nil
}

// EnsureCollection creates the collection with cosine distance when it
// does not exist yet.
func (s *QdrantStore) EnsureCollection(ctx context.Context, size int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("client is closed")
	}
	if s.ready {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, name := range names {
		if name == s.config.Collection {
			s.ready = true
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.config.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(size),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", s.config.Collection, err)
	}
	s.ready = true
	return nil
}

// Upsert writes chunks as points, creating the collection on first use.
func (s *QdrantStore) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := s.EnsureCollection(ctx, len(chunks[0].Vector)); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("client is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, c := range chunks {
		points = append(points, chunkToPoint(c))
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.config.Collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

// Retrieve embeds query and returns the topK nearest points
func (s *QdrantStore) Retrieve(ctx context.Context, query string, topK int) ([]model.EvidenceItem, error) {
	qvec, err := embedQuery(ctx, s.embedder, query)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 5
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("client is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.config.Collection,
		Query:          qdrant.NewQueryDense(qvec),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query failed: %w", err)
	}

	items := make([]model.EvidenceItem, 0, len(results))
	for _, p := range results {
		item, ok := pointToEvidence(p)
		if ok {
			items = append(items, item)
		}
	}
	return items, nil
}

func chunkToPoint(c Chunk) *qdrant.PointStruct {
	id := c.ID
	if _, err := uuid.Parse(id); err != nil {
		// Qdrant only accepts UUID or integer ids
		id = uuid.NewSHA1(uuid.NameSpaceURL, []byte(c.SourceID+"#"+c.ID)).String()
	}
	return &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(id),
		Vectors: qdrant.NewVectors(c.Vector...),
		Payload: qdrant.NewValueMap(map[string]any{
			payloadText:     c.Text,
			payloadSourceID: c.SourceID,
		}),
	}
}

func pointToEvidence(p *qdrant.ScoredPoint) (model.EvidenceItem, bool) {
	text := getStringValue(p.GetPayload(), payloadText)
	if text == "" {
		return model.EvidenceItem{}, false
	}

	sourceID := getStringValue(p.GetPayload(), payloadSourceID)
	if sourceID == "" && p.GetId() != nil {
		switch id := p.GetId().PointIdOptions.(type) {
		case *qdrant.PointId_Uuid:
			sourceID = id.Uuid
		case *qdrant.PointId_Num:
			sourceID = fmt.Sprintf("%d", id.Num)
		}
	}

	return model.EvidenceItem{
		Text:     text,
		SourceID: sourceID,
		Score:    clampScore(float64(p.GetScore())),
		Scored:   true,
	}, true
}

func getStringValue(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok && v != nil {
		if sv, ok := v.Kind.(*qdrant.Value_StringValue); ok {
			return sv.StringValue
		}
	}
	return ""
}
