package embeddings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchProcessing(t *testing.T) {
	t.Run("default sequential implementation", func(t *testing.T) {
		provider := NewMockProvider()
		texts := []string{"one", "two", "three"}

		results, err := DefaultGenerateBatchEmbeddings(context.Background(), provider, texts)
		require.NoError(t, err)
		require.Equal(t, 3, len(results))

		assert.Equal(t, []float32{3.0, 1.0, 2.0}, results[0])
		assert.Equal(t, []float32{3.0, 1.0, 2.0}, results[1])
		assert.Equal(t, []float32{5.0, 1.0, 2.0}, results[2])
	})

	t.Run("parallel implementation keeps order", func(t *testing.T) {
		provider := NewMockProvider()
		texts := []string{"one", "two", "three", "four", "five"}

		results, err := ParallelGenerateBatchEmbeddings(context.Background(), provider, texts, 2)
		require.NoError(t, err)
		require.Equal(t, 5, len(results))

		assert.Equal(t, []float32{3.0, 1.0, 2.0}, results[0])
		assert.Equal(t, []float32{5.0, 1.0, 2.0}, results[2])
		assert.Equal(t, []float32{4.0, 1.0, 2.0}, results[3])
		assert.Equal(t, []float32{4.0, 1.0, 2.0}, results[4])
	})

	t.Run("parallel implementation reports errors", func(t *testing.T) {
		provider := NewMockProvider()
		provider.failOn = "three"

		_, err := ParallelGenerateBatchEmbeddings(context.Background(), provider, []string{"one", "three"}, 0)
		assert.Error(t, err)
	})

	t.Run("empty input", func(t *testing.T) {
		provider := NewMockProvider()

		results1, err := DefaultGenerateBatchEmbeddings(context.Background(), provider, []string{})
		require.NoError(t, err)
		assert.Equal(t, 0, len(results1))

		results2, err := ParallelGenerateBatchEmbeddings(context.Background(), provider, []string{}, 2)
		require.NoError(t, err)
		assert.Equal(t, 0, len(results2))
	})
}
