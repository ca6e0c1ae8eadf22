package embeddings

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultGenerateBatchEmbeddings embeds texts one after the other.
func DefaultGenerateBatchEmbeddings(ctx context.Context, p Provider, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		embedding, err := p.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = embedding
	}
	return results, nil
}

// ParallelGenerateBatchEmbeddings embeds texts with at most maxConcurrency
// requests in flight. The first error cancels the remaining requests.
func ParallelGenerateBatchEmbeddings(ctx context.Context, p Provider, texts []string, maxConcurrency int) ([][]float32, error) {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}

	results := make([][]float32, len(texts))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrency)

	for i, text := range texts {
		i, text := i, text
		eg.Go(func() error {
			embedding, err := p.GenerateEmbedding(ctx, text)
			if err != nil {
				return err
			}
			results[i] = embedding
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
