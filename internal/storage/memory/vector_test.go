package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x5457/repograph/internal/storage"
)

func TestQueryOrdersByScoreThenID(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryVectorStore()
	require.NoError(t, s.Upsert(ctx,
		[]string{"b", "a", "c"},
		[][]float32{{1, 0}, {1, 0}, {0, 1}},
	))
	got, err := s.Query(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)

	require.NoError(t, s.Delete(ctx, []string{"a"}))
	assert.Equal(t, 2, s.Len())
	require.NoError(t, s.Reset(ctx))
	assert.Zero(t, s.Len())
}

func TestUpsertLengthMismatch(t *testing.T) {
	var s storage.VectorStore = NewInMemoryVectorStore()
	assert.Error(t, s.Upsert(context.Background(), []string{"a"}, nil))
}
