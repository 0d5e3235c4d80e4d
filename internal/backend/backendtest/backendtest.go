// Package backendtest holds the round-trip checks shared by the adapter tests.
package backendtest

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vecbench/internal/backend"
	"vecbench/internal/corpus"
)

// IntegrationEnv must be set to 1 for tests that need live services
const IntegrationEnv = "VECBENCH_INTEGRATION"

// RequireIntegration skips the test unless live backends were requested
func RequireIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv(IntegrationEnv) != "1" {
		t.Skipf("set %s=1 to run against live backends", IntegrationEnv)
	}
}

// Corpus returns a small labeled corpus of random vectors
func Corpus(n, dim int) *corpus.Corpus {
	c := corpus.Random(n, dim, 99)
	for i := range c.Records {
		c.Records[i].Label = fmt.Sprintf("w%d", i)
	}
	return c
}

// RoundTrip ingests a corpus and checks every record comes back as its own top-1
func RoundTrip(t *testing.T, b backend.Backend) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	require.NoError(t, b.Ping(ctx))

	c := Corpus(50, 16)
	require.NoError(t, b.Ingest(ctx, c))

	// Ingesting twice must replace, not append.
	require.NoError(t, b.Ingest(ctx, c))

	for _, r := range c.Records {
		hits, err := b.Search(ctx, r.Vector, 3)
		require.NoError(t, err)
		require.NotEmpty(t, hits, "record %d", r.ID)
		assert.True(t, backend.Matches(hits[0], r, b.MatchBy()),
			"record %d (%s): top-1 was %+v", r.ID, r.Label, hits[0])
	}
}
