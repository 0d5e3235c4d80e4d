// Package weaviate drives a Weaviate class through weaviate-go-client.
package weaviate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	wgrpc "github.com/weaviate/weaviate-go-client/v4/weaviate/grpc"
	"github.com/weaviate/weaviate/entities/models"

	"vecbench/internal/backend"
	"vecbench/internal/config"
	"vecbench/internal/corpus"
)

const (
	wordProperty  = "word"
	indexProperty = "index"
)

// namespace seeds the per-record object UUIDs so re-ingesting keeps them stable
var namespace = uuid.MustParse("6f1c1c1e-2a4b-4f3e-9a55-7b0e6d2c8f10")

// Store is the Weaviate adapter. Records are matched by their word.
type Store struct {
	client    *weaviate.Client
	class     string
	batchSize int
	log       *slog.Logger
}

// New creates a client for the REST and gRPC endpoints
func New(cfg config.WeaviateConfig, batchSize int, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	client, err := weaviate.NewClient(weaviate.Config{
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.HTTPPort),
		Scheme: "http",
		GrpcConfig: &wgrpc.Config{
			Host: fmt.Sprintf("%s:%d", cfg.Host, cfg.GRPCPort),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: weaviate %s: %w", backend.ErrConnection, cfg.HTTPURL(), err)
	}
	return &Store{
		client:    client,
		class:     cfg.Class,
		batchSize: batchSize,
		log:       log.With("backend", "weaviate", "class", cfg.Class),
	}, nil
}

func (s *Store) Name() string { return "Weaviate" }

func (s *Store) MatchBy() backend.Match { return backend.MatchLabel }

func (s *Store) Ping(ctx context.Context) error {
	ready, err := s.client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return fmt.Errorf("%w: weaviate ready check: %w", backend.ErrConnection, err)
	}
	if !ready {
		return fmt.Errorf("%w: weaviate is not ready", backend.ErrConnection)
	}
	return nil
}

// Ingest recreates the class and batch-imports every record
func (s *Store) Ingest(ctx context.Context, c *corpus.Corpus) error {
	exists, err := s.client.Schema().ClassExistenceChecker().WithClassName(s.class).Do(ctx)
	if err != nil {
		return fmt.Errorf("%w: check class %s: %w", backend.ErrConnection, s.class, err)
	}
	if exists {
		if err := s.client.Schema().ClassDeleter().WithClassName(s.class).Do(ctx); err != nil {
			return fmt.Errorf("%w: delete class %s: %w", backend.ErrSchema, s.class, err)
		}
		s.log.Info("deleted existing class")
	}

	if err := s.client.Schema().ClassCreator().WithClass(classDefinition(s.class)).Do(ctx); err != nil {
		return fmt.Errorf("%w: create class %s: %w", backend.ErrSchema, s.class, err)
	}
	s.log.Info("created class")

	var failed []error
	for _, batch := range backend.Batches(c.Records, s.batchSize) {
		resp, err := s.client.Batch().ObjectsBatcher().WithObjects(toObjects(s.class, batch)...).Do(ctx)
		if err != nil {
			return fmt.Errorf("%w: batch import into %s: %w", backend.ErrConnection, s.class, err)
		}
		failed = append(failed, batchErrors(resp)...)
	}

	if len(failed) > 0 {
		return fmt.Errorf("%w: %d failed imports, first: %w", backend.ErrDataMismatch, len(failed), failed[0])
	}
	return nil
}

// Search runs a nearVector GraphQL query and returns up to k objects
func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]backend.Hit, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)
	resp, err := s.client.GraphQL().Get().
		WithClassName(s.class).
		WithFields(
			graphql.Field{Name: wordProperty},
			graphql.Field{Name: indexProperty},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
		).
		WithNearVector(nearVector).
		WithLimit(k).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: nearVector on %s: %w", backend.ErrConnection, s.class, err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("%w: nearVector on %s: %s", backend.ErrSchema, s.class, resp.Errors[0].Message)
	}
	return parseHits(resp.Data, s.class)
}

func (s *Store) Close() error {
	return nil
}

func classDefinition(name string) *models.Class {
	return &models.Class{
		Class:           name,
		Vectorizer:      "none",
		VectorIndexType: "hnsw",
		VectorIndexConfig: map[string]interface{}{
			"distance": "cosine",
		},
		Properties: []*models.Property{
			{Name: wordProperty, DataType: []string{"text"}},
			{Name: indexProperty, DataType: []string{"int"}},
		},
	}
}

// ObjectID is the deterministic UUID for a record ID
func ObjectID(id int) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(namespace, []byte(strconv.Itoa(id))).String())
}

func toObjects(class string, records []corpus.Record) []*models.Object {
	objs := make([]*models.Object, len(records))
	for i, r := range records {
		objs[i] = &models.Object{
			Class: class,
			ID:    ObjectID(r.ID),
			Properties: map[string]interface{}{
				wordProperty:  r.Label,
				indexProperty: r.ID,
			},
			Vector: models.C11yVector(r.Vector),
		}
	}
	return objs
}

func batchErrors(resp []models.ObjectsGetResponse) []error {
	var errs []error
	for _, r := range resp {
		if r.Result == nil || r.Result.Errors == nil {
			continue
		}
		for _, e := range r.Result.Errors.Error {
			errs = append(errs, fmt.Errorf("object %s: %s", r.ID, e.Message))
		}
	}
	return errs
}

// parseHits digs the objects out of a GraphQL Get response:
// {"Get": {"<Class>": [{"word": ..., "index": ..., "_additional": {"distance": ...}}]}}
func parseHits(data map[string]models.JSONObject, class string) ([]backend.Hit, error) {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil, errors.New("weaviate: response has no Get section")
	}
	items, ok := get[class].([]interface{})
	if !ok {
		return nil, nil
	}

	hits := make([]backend.Hit, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		hit := backend.Hit{ID: -1}
		if word, ok := obj[wordProperty].(string); ok {
			hit.Label = word
		}
		// JSON numbers decode as float64.
		if idx, ok := obj[indexProperty].(float64); ok {
			hit.ID = int(idx)
		}
		if extra, ok := obj["_additional"].(map[string]interface{}); ok {
			if d, ok := extra["distance"].(float64); ok {
				hit.Score = float32(1 - d)
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
