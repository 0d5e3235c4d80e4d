package qdrant

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vecbench/internal/corpus"
)

func TestToPoints(t *testing.T) {
	points := toPoints([]corpus.Record{
		{ID: 7, Vector: []float32{0.1, 0.2}, Label: "cat"},
		{ID: 8, Vector: []float32{0.3, 0.4}},
	})
	require.Len(t, points, 2)

	assert.Equal(t, uint64(7), points[0].GetId().GetNum())
	assert.Equal(t, []float32{0.1, 0.2}, points[0].GetVectors().GetVector().GetData())
	assert.Equal(t, "cat", points[0].GetPayload()[wordField].GetStringValue())

	assert.Equal(t, uint64(8), points[1].GetId().GetNum())
	assert.Empty(t, points[1].GetPayload())
}

func TestToHits(t *testing.T) {
	hits := toHits([]*qdrant.ScoredPoint{
		{
			Id:      qdrant.NewIDNum(3),
			Score:   0.98,
			Payload: map[string]*qdrant.Value{wordField: qdrant.NewValueString("dog")},
		},
		{
			Id:    qdrant.NewIDUUID("5c56c793-69f3-4fbf-87e6-c4bf54c28c26"),
			Score: 0.5,
		},
	})
	require.Len(t, hits, 2)

	assert.Equal(t, 3, hits[0].ID)
	assert.Equal(t, "dog", hits[0].Label)
	assert.InDelta(t, 0.98, hits[0].Score, 1e-6)

	assert.Equal(t, -1, hits[1].ID)
	assert.Empty(t, hits[1].Label)
}
