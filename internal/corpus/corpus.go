package corpus

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
)

// ErrNotFound is returned by Check when the corpus file is missing
var ErrNotFound = errors.New("corpus: file not found")

// Record is one sample vector. ID is its 0-based position in the corpus.
type Record struct {
	ID     int       `json:"id"`
	Vector []float32 `json:"vector"`
	Label  string    `json:"label,omitempty"`
}

// Corpus is an ordered set of records sharing one dimensionality
type Corpus struct {
	Dim     int
	Records []Record
}

// Len returns the number of records
func (c *Corpus) Len() int {
	return len(c.Records)
}

// Check verifies the corpus file exists before any backend is touched
func Check(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("failed to stat corpus %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("corpus %s is a directory", path)
	}
	return nil
}

// Load reads at most n lines of a GloVe-style text file. Each line is a label
// followed by dim floats. Lines with the wrong number of floats, or floats that
// do not parse, are skipped with a warning and do not consume an ID.
func Load(path string, n, dim int, log *slog.Logger) (*Corpus, error) {
	if log == nil {
		log = slog.Default()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus %s: %w", path, err)
	}
	defer f.Close()

	c := &Corpus{Dim: dim}
	scanner := bufio.NewScanner(f)
	// GloVe lines run to a few KB; the largest files use 300 dims.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for line := 0; line < n && scanner.Scan(); line++ {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		word := fields[0]
		values := fields[1:]
		if len(values) != dim {
			log.Warn("skipping vector with wrong dimension",
				"word", word,
				"line", line+1,
				"dimension", len(values),
				"expected", dim,
			)
			continue
		}

		vector, err := parseVector(values)
		if err != nil {
			log.Warn("skipping unparsable vector", "word", word, "line", line+1, "error", err)
			continue
		}

		c.Records = append(c.Records, Record{
			ID:     len(c.Records),
			Vector: vector,
			Label:  word,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read corpus %s: %w", path, err)
	}

	return c, nil
}

func parseVector(values []string) ([]float32, error) {
	vector := make([]float32, len(values))
	for i, v := range values {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return nil, err
		}
		vector[i] = float32(f)
	}
	return vector, nil
}

// Random generates n unlabeled records with floats drawn uniformly from [0,1).
// The same seed always yields the same corpus.
func Random(n, dim int, seed uint64) *Corpus {
	rng := rand.New(rand.NewPCG(seed, seed))
	c := &Corpus{Dim: dim, Records: make([]Record, n)}
	for i := range c.Records {
		c.Records[i] = Record{ID: i, Vector: RandomVector(dim, rng)}
	}
	return c
}

// RandomVector returns one query vector drawn uniformly from [0,1)
func RandomVector(dim int, rng *rand.Rand) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = rng.Float32()
	}
	return v
}
