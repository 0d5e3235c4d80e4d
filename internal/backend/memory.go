package backend

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"vecbench/internal/corpus"
)

// MemoryStore is an exact, in-process backend. It scores every stored
// vector by cosine similarity, so the top-1 of a record's own vector is
// always that record.
type MemoryStore struct {
	name    string
	dim     int
	records []corpus.Record
	mutex   sync.RWMutex
}

// NewMemoryStore creates an empty in-memory backend
func NewMemoryStore(name string) *MemoryStore {
	if name == "" {
		name = "Memory"
	}
	return &MemoryStore{name: name}
}

func (m *MemoryStore) Name() string { return m.name }

func (m *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (m *MemoryStore) MatchBy() Match { return MatchID }

func (m *MemoryStore) Close() error { return nil }

// Ingest replaces the stored records with the corpus
func (m *MemoryStore) Ingest(ctx context.Context, c *corpus.Corpus) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	records := make([]corpus.Record, 0, c.Len())
	for _, r := range c.Records {
		if len(r.Vector) != c.Dim {
			return fmt.Errorf("%w: record %d has dimension %d, expected %d",
				ErrDataMismatch, r.ID, len(r.Vector), c.Dim)
		}
		records = append(records, r)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.dim = c.Dim
	m.records = records
	return nil
}

// Search finds the most similar vectors to the query
func (m *MemoryStore) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if m.records == nil {
		return nil, fmt.Errorf("%w: collection %q not ingested", ErrSchema, m.name)
	}
	if len(vector) != m.dim {
		return nil, fmt.Errorf("%w: query dimension %d, expected %d", ErrDataMismatch, len(vector), m.dim)
	}

	hits := make([]Hit, 0, len(m.records))
	for _, r := range m.records {
		hits = append(hits, Hit{
			ID:    r.ID,
			Label: r.Label,
			Score: cosineSimilarity(vector, r.Vector),
		})
	}

	// Stable keeps the lower ID first among duplicate vectors.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// count returns the number of stored records
func (m *MemoryStore) count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.records)
}

// cosineSimilarity calculates the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float32

	for i := 0; i < len(a); i++ {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0.0 || normB == 0.0 {
		return 0.0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
