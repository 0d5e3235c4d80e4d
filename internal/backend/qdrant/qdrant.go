// Package qdrant drives a Qdrant collection through the official gRPC client.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/qdrant/go-client/qdrant"

	"vecbench/internal/backend"
	"vecbench/internal/config"
	"vecbench/internal/corpus"
)

const wordField = "word"

// Store is the Qdrant adapter. Point IDs are the numeric record IDs.
type Store struct {
	client     *qdrant.Client
	collection string
	batchSize  int
	log        *slog.Logger
}

// New connects to Qdrant's gRPC port
func New(cfg config.QdrantConfig, batchSize int, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Host,
		Port: cfg.GRPCPort,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant %s:%d: %w", backend.ErrConnection, cfg.Host, cfg.GRPCPort, err)
	}
	return &Store{
		client:     client,
		collection: cfg.Collection,
		batchSize:  batchSize,
		log:        log.With("backend", "qdrant", "collection", cfg.Collection),
	}, nil
}

func (s *Store) Name() string { return "Qdrant" }

func (s *Store) MatchBy() backend.Match { return backend.MatchID }

func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%w: qdrant health check: %w", backend.ErrConnection, err)
	}
	return nil
}

// Ingest recreates the collection and upserts every record in batches
func (s *Store) Ingest(ctx context.Context, c *corpus.Corpus) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("%w: check collection %s: %w", backend.ErrConnection, s.collection, err)
	}
	if exists {
		if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
			return fmt.Errorf("%w: delete collection %s: %w", backend.ErrSchema, s.collection, err)
		}
		s.log.Info("deleted existing collection")
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(c.Dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: create collection %s: %w", backend.ErrSchema, s.collection, err)
	}

	wait := true
	for _, batch := range backend.Batches(c.Records, s.batchSize) {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Wait:           &wait,
			Points:         toPoints(batch),
		})
		if err != nil {
			return fmt.Errorf("%w: upsert into %s: %w", backend.ErrDataMismatch, s.collection, err)
		}
		s.log.Debug("upserted batch", "first_id", batch[0].ID, "count", len(batch))
	}
	return nil
}

// Search queries the collection with the vector and returns up to k points
func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]backend.Hit, error) {
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %w", backend.ErrConnection, s.collection, err)
	}
	return toHits(points), nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func toPoints(records []corpus.Record) []*qdrant.PointStruct {
	points := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		p := &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(r.ID)),
			Vectors: qdrant.NewVectors(r.Vector...),
		}
		if r.Label != "" {
			p.Payload = map[string]*qdrant.Value{wordField: qdrant.NewValueString(r.Label)}
		}
		points[i] = p
	}
	return points
}

func toHits(points []*qdrant.ScoredPoint) []backend.Hit {
	hits := make([]backend.Hit, len(points))
	for i, p := range points {
		id := -1
		if num, ok := p.GetId().GetPointIdOptions().(*qdrant.PointId_Num); ok {
			id = int(num.Num)
		}
		hits[i] = backend.Hit{
			ID:    id,
			Label: p.GetPayload()[wordField].GetStringValue(),
			Score: p.GetScore(),
		}
	}
	return hits
}
