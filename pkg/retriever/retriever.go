// Package retriever finds knowledge base snippets relevant to a query.
package retriever

import (
	"context"

	"github.com/pkg/errors"
)

var ErrRetrieval = errors.New("knowledge retrieval failure")

const DefaultK = 3

type Retriever interface {
	// Search returns up to k snippets, best match first.
	Search(ctx context.Context, query string, k int) ([]string, error)
}

// Static returns the same snippets for every query. It backs the chat when no
// knowledge base is configured.
type Static []string

func (s Static) Search(_ context.Context, _ string, k int) ([]string, error) {
	if k <= 0 || k > len(s) {
		k = len(s)
	}
	ret := make([]string, k)
	copy(ret, s[:k])
	return ret, nil
}
