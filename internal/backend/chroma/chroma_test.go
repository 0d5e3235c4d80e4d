package chroma

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vecbench/internal/config"
	"vecbench/internal/corpus"
)

func TestToDocuments(t *testing.T) {
	ids, embs, docs := toDocuments([]corpus.Record{
		{ID: 0, Vector: []float32{0.1, 0.2}, Label: "the"},
		{ID: 12, Vector: []float32{0.3, 0.4}, Label: "of"},
	})

	require.Len(t, ids, 2)
	assert.Equal(t, "0", string(ids[0]))
	assert.Equal(t, "12", string(ids[1]))
	assert.Len(t, embs, 2)
	assert.Equal(t, []string{"word_the", "word_of"}, docs)
}

func TestToHits(t *testing.T) {
	hits := toHits([]string{"4", "x", "9"}, []float32{0, 0.25}, []string{"word_cat", "word_"})
	require.Len(t, hits, 3)

	assert.Equal(t, 4, hits[0].ID)
	assert.Equal(t, "cat", hits[0].Label)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, -1, hits[1].ID)
	assert.Empty(t, hits[1].Label)
	assert.InDelta(t, 0.75, hits[1].Score, 1e-6)
	assert.Equal(t, 9, hits[2].ID)
	assert.Empty(t, hits[2].Label)
	assert.Zero(t, hits[2].Score)
}

const collectionJSON = `{"id":"8ecf0f7e-e806-47f8-96a1-4732ef42359e","name":"test_glove",` +
	`"metadata":{"hnsw:space":"cosine"},"tenant":"default_tenant","database":"default_database"}`

// fakeChroma answers the v2 REST calls the adapter makes and records them
type fakeChroma struct {
	mu       sync.Mutex
	requests []string
}

func (f *fakeChroma) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, "/pre-flight-checks"):
		w.Write([]byte(`{"max_batch_size":1000}`))
	case r.Method == http.MethodDelete:
		w.Write([]byte(`{}`))
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/collections"):
		w.Write([]byte(collectionJSON))
	case r.Method == http.MethodGet && strings.Contains(path, "/collections/"):
		w.Write([]byte(collectionJSON))
	case strings.HasSuffix(path, "/add"):
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	case strings.HasSuffix(path, "/query"):
		w.Write([]byte(`{"ids":[["1","0"]],"distances":[[0.0,0.5]],` +
			`"documents":[["word_of","word_the"]],"include":["documents","distances"]}`))
	default:
		http.NotFound(w, r)
	}
}

// seen counts recorded requests with the method whose path ends in suffix
func (f *fakeChroma) seen(method, suffix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		m, path, _ := strings.Cut(r, " ")
		if m == method && strings.HasSuffix(path, suffix) {
			n++
		}
	}
	return n
}

func newFakeStore(t *testing.T) (*Store, *fakeChroma) {
	// chroma-go caches downloaded embedding models under HOME.
	t.Setenv("HOME", t.TempDir())

	fake := &fakeChroma{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	addr := srv.Listener.Addr().(*net.TCPAddr)
	s, err := New(config.ChromaConfig{Host: addr.IP.String(), Port: addr.Port, Collection: "test_glove"}, 2, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, fake
}

func TestIngestAndSearchAgainstServer(t *testing.T) {
	s, fake := newFakeStore(t)
	ctx := context.Background()

	c := &corpus.Corpus{Dim: 2, Records: []corpus.Record{
		{ID: 0, Vector: []float32{1, 0}, Label: "the"},
		{ID: 1, Vector: []float32{0, 1}, Label: "of"},
		{ID: 2, Vector: []float32{1, 1}, Label: "and"},
	}}
	require.NoError(t, s.Ingest(ctx, c))
	assert.Equal(t, 1, fake.seen(http.MethodDelete, "/collections/test_glove"))
	assert.Equal(t, 1, fake.seen(http.MethodPost, "/collections"))
	assert.Equal(t, 2, fake.seen(http.MethodPost, "/add"))
	assert.NoDirExists(t, filepath.Join(os.Getenv("HOME"), ".cache", "chroma"))

	hits, err := s.Search(ctx, []float32{0, 1}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 1, hits[0].ID)
	assert.Equal(t, "of", hits[0].Label)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, 1, fake.seen(http.MethodPost, "/query"))
	assert.Zero(t, fake.seen(http.MethodGet, "/collections/test_glove"))
}

func TestSearchWithoutIngestLooksUpCollectionOnce(t *testing.T) {
	s, fake := newFakeStore(t)
	ctx := context.Background()

	for range 3 {
		hits, err := s.Search(ctx, []float32{0.1, 0.2}, 1)
		require.NoError(t, err)
		require.NotEmpty(t, hits)
	}
	assert.Equal(t, 1, fake.seen(http.MethodGet, "/collections/test_glove"))
	assert.Equal(t, 3, fake.seen(http.MethodPost, "/query"))
}

