package backend

import (
	"context"
	"errors"
	"strconv"

	"vecbench/internal/corpus"
)

// Error taxonomy shared by every adapter. Adapters wrap the SDK error with
// one of these so the runner can report what kind of failure it saw.
var (
	// ErrConnection means the service could not be reached or dropped the call.
	ErrConnection = errors.New("backend: connection failed")
	// ErrSchema means creating, dropping or opening a collection/table failed.
	ErrSchema = errors.New("backend: schema operation failed")
	// ErrDataMismatch means the service accepted the call but the data was wrong.
	ErrDataMismatch = errors.New("backend: data mismatch")
)

// Match selects which field of a hit is compared against the query record
type Match int

const (
	MatchID Match = iota
	MatchLabel
)

func (m Match) String() string {
	switch m {
	case MatchID:
		return "id"
	case MatchLabel:
		return "label"
	default:
		return "unknown"
	}
}

// Hit is one nearest-neighbour result. ID is -1 when the backend did not report it.
type Hit struct {
	ID    int     `json:"id" yaml:"id"`
	Label string  `json:"label,omitempty" yaml:"label,omitempty"`
	Score float32 `json:"score" yaml:"score"`
}

// Backend defines one vector database the benchmark drives
type Backend interface {
	// Name is the display name used in reports
	Name() string

	// Ping checks the service is reachable
	Ping(ctx context.Context) error

	// Ingest drops any existing collection, recreates it for the corpus
	// dimension with cosine distance, and inserts every record
	Ingest(ctx context.Context, c *corpus.Corpus) error

	// Search returns up to k nearest neighbours, best first
	Search(ctx context.Context, vector []float32, k int) ([]Hit, error)

	// MatchBy reports which hit field identifies a record for this backend
	MatchBy() Match

	// Close releases the client connection
	Close() error
}

// Matches reports whether hit identifies rec under the given policy.
// Label matching falls back to the ID when the record carries no label.
func Matches(hit Hit, rec corpus.Record, by Match) bool {
	if by == MatchLabel && rec.Label != "" {
		return hit.Label == rec.Label
	}
	return hit.ID == rec.ID
}

// Batches splits records into consecutive chunks of at most size
func Batches(records []corpus.Record, size int) [][]corpus.Record {
	if size <= 0 {
		size = len(records)
	}
	var out [][]corpus.Record
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		out = append(out, records[start:end])
	}
	return out
}

// ParseID turns a string point ID back into a record ID, -1 if it is not numeric
func ParseID(s string) int {
	id, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return id
}
