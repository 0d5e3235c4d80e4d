// Package chroma drives a Chroma collection through the chroma-go v2 HTTP client.
package chroma

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"

	"vecbench/internal/backend"
	"vecbench/internal/config"
	"vecbench/internal/corpus"
)

const documentPrefix = "word_"

// Store is the Chroma adapter. Document IDs are decimal record IDs.
type Store struct {
	client     chroma.Client
	collection string
	col        chroma.Collection
	ef         embeddings.EmbeddingFunction
	batchSize  int
	log        *slog.Logger
}

// New creates an HTTP client for the Chroma server
func New(cfg config.ChromaConfig, batchSize int, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	client, err := chroma.NewHTTPClient(chroma.WithBaseURL(cfg.BaseURL()))
	if err != nil {
		return nil, fmt.Errorf("%w: chroma %s: %w", backend.ErrConnection, cfg.BaseURL(), err)
	}
	return &Store{
		client:     client,
		collection: cfg.Collection,
		ef:         embeddings.NewConsistentHashEmbeddingFunction(),
		batchSize:  batchSize,
		log:        log.With("backend", "chroma", "collection", cfg.Collection),
	}, nil
}

func (s *Store) Name() string { return "Chroma" }

func (s *Store) MatchBy() backend.Match { return backend.MatchID }

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("%w: chroma heartbeat: %w", backend.ErrConnection, err)
	}
	return nil
}

// Ingest recreates the collection with cosine space and adds every record
func (s *Store) Ingest(ctx context.Context, c *corpus.Corpus) error {
	// Chroma reports a missing collection as an error; that is the normal first run.
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		s.log.Info("could not delete collection (might not exist)", "error", err)
	}
	s.col = nil

	// Vectors are always supplied, so the embedding function is never called.
	// Without one chroma-go downloads its default ONNX model.
	col, err := s.client.GetOrCreateCollection(ctx, s.collection,
		chroma.WithCollectionMetadataCreate(
			chroma.NewMetadata(chroma.NewStringAttribute("hnsw:space", "cosine")),
		),
		chroma.WithEmbeddingFunctionCreate(s.ef),
	)
	if err != nil {
		return fmt.Errorf("%w: create collection %s: %w", backend.ErrSchema, s.collection, err)
	}
	s.col = col

	for _, batch := range backend.Batches(c.Records, s.batchSize) {
		ids, embs, docs := toDocuments(batch)
		if err := col.Add(ctx,
			chroma.WithIDs(ids...),
			chroma.WithEmbeddings(embs...),
			chroma.WithTexts(docs...),
		); err != nil {
			return fmt.Errorf("%w: add to %s: %w", backend.ErrDataMismatch, s.collection, err)
		}
		s.log.Debug("added batch", "first_id", batch[0].ID, "count", len(batch))
	}
	return nil
}

// Search queries the collection and returns up to k documents
func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]backend.Hit, error) {
	col, err := s.collectionHandle(ctx)
	if err != nil {
		return nil, err
	}

	qr, err := col.Query(ctx,
		chroma.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(vector)),
		chroma.WithNResults(k),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %w", backend.ErrConnection, s.collection, err)
	}

	var ids []string
	if groups := qr.GetIDGroups(); len(groups) > 0 {
		for _, id := range groups[0] {
			ids = append(ids, string(id))
		}
	}
	var distances []float32
	if groups := qr.GetDistancesGroups(); len(groups) > 0 {
		for _, d := range groups[0] {
			distances = append(distances, float32(d))
		}
	}
	var docs []string
	if groups := qr.GetDocumentsGroups(); len(groups) > 0 {
		for _, d := range groups[0] {
			if d == nil {
				docs = append(docs, "")
				continue
			}
			docs = append(docs, d.ContentString())
		}
	}
	return toHits(ids, distances, docs), nil
}

// collectionHandle returns the collection from the last Ingest, or looks it
// up once when this Store only queries
func (s *Store) collectionHandle(ctx context.Context) (chroma.Collection, error) {
	if s.col != nil {
		return s.col, nil
	}
	col, err := s.client.GetCollection(ctx, s.collection, chroma.WithEmbeddingFunctionGet(s.ef))
	if err != nil {
		return nil, fmt.Errorf("%w: get collection %s: %w", backend.ErrSchema, s.collection, err)
	}
	s.col = col
	return col, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func toDocuments(records []corpus.Record) ([]chroma.DocumentID, []embeddings.Embedding, []string) {
	ids := make([]chroma.DocumentID, len(records))
	embs := make([]embeddings.Embedding, len(records))
	docs := make([]string, len(records))
	for i, r := range records {
		ids[i] = chroma.DocumentID(strconv.Itoa(r.ID))
		embs[i] = embeddings.NewEmbeddingFromFloat32(r.Vector)
		docs[i] = documentPrefix + r.Label
	}
	return ids, embs, docs
}

// toHits pairs IDs with distances and documents. Chroma reports distance,
// so the score is 1-distance; documents map back to labels.
func toHits(ids []string, distances []float32, docs []string) []backend.Hit {
	hits := make([]backend.Hit, len(ids))
	for i, id := range ids {
		var score float32
		if i < len(distances) {
			score = 1 - distances[i]
		}
		var label string
		if i < len(docs) {
			label = strings.TrimPrefix(docs[i], documentPrefix)
		}
		hits[i] = backend.Hit{ID: backend.ParseID(id), Label: label, Score: score}
	}
	return hits
}
