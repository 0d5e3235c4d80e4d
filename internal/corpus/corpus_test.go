package corpus

import (
	"bytes"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gloveLine(word string, dim int, base float32) string {
	parts := []string{word}
	for i := 0; i < dim; i++ {
		parts = append(parts, fmt.Sprintf("%.4f", base+float32(i)*0.001))
	}
	return strings.Join(parts, " ")
}

func writeCorpus(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "glove.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestLoad(t *testing.T) {
	lines := []string{gloveLine("cat", 100, 0.1)}
	for i := 1; i < 1000; i++ {
		lines = append(lines, gloveLine(fmt.Sprintf("w%d", i), 100, float32(i)))
	}
	path := writeCorpus(t, lines...)

	c, err := Load(path, 1000, 100, quietLogger())
	require.NoError(t, err)
	require.Equal(t, 1000, c.Len())
	assert.Equal(t, 100, c.Dim)
	assert.Equal(t, "cat", c.Records[0].Label)
	assert.Equal(t, "cat", labels(c)[0])
	assert.InDelta(t, 0.1, c.Records[0].Vector[0], 1e-6)
	for i, r := range c.Records {
		assert.Equal(t, i, r.ID)
		assert.Len(t, r.Vector, 100)
	}
}

func TestLoadSkipsWrongDimension(t *testing.T) {
	var logs bytes.Buffer
	path := writeCorpus(t,
		gloveLine("the", 4, 0.1),
		gloveLine("short", 3, 0.2),
		gloveLine("long", 5, 0.3),
		"broken 0.1 0.2 abc 0.4",
		"",
		gloveLine("of", 4, 0.5),
	)

	c, err := Load(path, 100, 4, slog.New(slog.NewTextHandler(&logs, nil)))
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"the", "of"}, labels(c))
	assert.Equal(t, 1, c.Records[1].ID)
	assert.Contains(t, logs.String(), "word=short")
	assert.Contains(t, logs.String(), "word=long")
	assert.Contains(t, logs.String(), "word=broken")
}

func TestLoadCountsLinesNotRecords(t *testing.T) {
	path := writeCorpus(t,
		gloveLine("a", 2, 0.1),
		gloveLine("bad", 3, 0.1),
		gloveLine("b", 2, 0.1),
		gloveLine("c", 2, 0.1),
	)

	c, err := Load(path, 3, 2, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, labels(c))
}

func TestLoadDeterministic(t *testing.T) {
	var lines []string
	for i := 0; i < 50; i++ {
		lines = append(lines, gloveLine(fmt.Sprintf("w%d", i), 8, float32(i)/10))
	}
	path := writeCorpus(t, lines...)

	first, err := Load(path, 20, 8, quietLogger())
	require.NoError(t, err)
	second, err := Load(path, 20, 8, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 20, first.Len())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.txt"), 10, 100, quietLogger())
	assert.Error(t, err)
}

func TestCheck(t *testing.T) {
	path := writeCorpus(t, gloveLine("a", 2, 0.1))
	assert.NoError(t, Check(path))

	err := Check(filepath.Join(t.TempDir(), "glove.6B.100d.txt"))
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, Check(t.TempDir()))
}

func TestRandom(t *testing.T) {
	c := Random(10, 128, 7)
	require.Equal(t, 10, c.Len())
	assert.Equal(t, 128, c.Dim)
	for i, r := range c.Records {
		assert.Equal(t, i, r.ID)
		assert.Empty(t, r.Label)
		require.Len(t, r.Vector, 128)
		for _, f := range r.Vector {
			assert.GreaterOrEqual(t, f, float32(0))
			assert.Less(t, f, float32(1))
		}
	}

	assert.Equal(t, c, Random(10, 128, 7))
	assert.NotEqual(t, c.Records[0].Vector, Random(10, 128, 8).Records[0].Vector)
}

func TestRandomVector(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	v := RandomVector(100, rng)
	assert.Len(t, v, 100)
	assert.NotEqual(t, v, RandomVector(100, rng))
}

func labels(c *Corpus) []string {
	out := make([]string, len(c.Records))
	for i, r := range c.Records {
		out[i] = r.Label
	}
	return out
}
