package cmd

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vecbench/internal/config"
	"vecbench/internal/report"
	"vecbench/internal/restore"
)

func TestParseBackends(t *testing.T) {
	tests := []struct {
		name    string
		raw     []string
		want    []string
		wantErr bool
	}{
		{"defaults", defaultBackends, []string{"qdrant", "chroma", "weaviate", "pgvector"}, false},
		{"comma separated", []string{"Qdrant,pgvector"}, []string{"qdrant", "pgvector"}, false},
		{"space separated env value", []string{"chroma memory"}, []string{"chroma", "memory"}, false},
		{"duplicates dropped", []string{"qdrant", "qdrant,chroma"}, []string{"qdrant", "chroma"}, false},
		{"unknown", []string{"milvus"}, nil, true},
		{"empty", []string{""}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBackends(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectPlans(t *testing.T) {
	plans := []restore.Plan{{Name: "Qdrant"}, {Name: "Chroma"}, {Name: "Weaviate"}, {Name: "pgvector"}}

	got := selectPlans(plans, []string{"pgvector", "memory", "qdrant"})
	require.Len(t, got, 2)
	assert.Equal(t, "Qdrant", got[0].Name)
	assert.Equal(t, "pgvector", got[1].Name)

	assert.Empty(t, selectPlans(plans, []string{"memory"}))
}

func TestNewLogger(t *testing.T) {
	log, err := newLogger("debug")
	require.NoError(t, err)
	assert.True(t, log.Enabled(t.Context(), slog.LevelDebug))

	log, err = newLogger("WARN")
	require.NoError(t, err)
	assert.False(t, log.Enabled(t.Context(), slog.LevelInfo))

	_, err = newLogger("loud")
	assert.Error(t, err)
}

func TestOutputFormat(t *testing.T) {
	t.Cleanup(func() { viper.Set("output", nil) })

	viper.Set("output", "JSON")
	f, err := outputFormat()
	require.NoError(t, err)
	assert.Equal(t, report.FormatJSON, f)

	viper.Set("output", "xml")
	_, err = outputFormat()
	assert.Error(t, err)
}

func TestOpenBackendsMemory(t *testing.T) {
	var out bytes.Buffer
	backends := openBackends(&out, []string{"memory"}, config.Config{}, slog.Default())
	require.Len(t, backends, 1)
	assert.Equal(t, "memory", backends[0].Name())
	assert.Empty(t, out.String())
}

func TestIngestAndVerifyInMemory(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("VECBENCH_CORPUS_DIM", "3")

	path := filepath.Join(t.TempDir(), "tiny.txt")
	require.NoError(t, os.WriteFile(path, []byte("x 1 0 0\ny 0 1 0\nbad 1 1\nz 0 0 1\n"), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"ingest", "--backends", "memory", "--verify", "--corpus", path, "-n", "10"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "📚 Loaded 3 GloVe vectors.")
	assert.Contains(t, out.String(), "✅ memory insertion complete (3 vectors).")
	assert.Contains(t, out.String(), "✅ memory accuracy: 3/3 = 100.00%")
}

func TestIngestMissingCorpus(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"ingest", "--backends", "memory", "--corpus", filepath.Join(t.TempDir(), "absent.txt")})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.NotContains(t, out.String(), "insertion")
}

func TestQuickDim(t *testing.T) {
	cfg := config.CorpusConfig{Dim: 100, RandomDim: 128}
	tests := []struct {
		name   string
		random bool
		dim    int
		want   int
	}{
		{"glove corpus", false, 0, 100},
		{"random corpus", true, 0, 128},
		{"explicit dim wins", true, 64, 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, quickDim(cfg, tt.random, tt.dim))
		})
	}
}

func TestSeedFlagReachesRandomCorpus(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"ingest", "--random", "--seed", "7", "-n", "5", "--backends", "memory", "--verify"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "🎲 Generated 5 random vectors (dim 128, seed 7).")
	assert.Contains(t, out.String(), "✅ memory accuracy: 5/5 = 100.00%")
}
