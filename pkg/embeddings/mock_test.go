package embeddings

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

type MockProvider struct {
	mu         sync.Mutex
	model      EmbeddingModel
	calls      []string
	batchCalls [][]string
	failOn     string
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		model: EmbeddingModel{
			Name:       "test-model",
			Dimensions: 3,
		},
	}
}

// predictable embedding based on text length
func (m *MockProvider) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, text)
	if text == m.failOn {
		return nil, errors.Errorf("cannot embed %q", text)
	}
	return []float32{float32(len(text)), 1.0, 2.0}, nil
}

func (m *MockProvider) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.batchCalls = append(m.batchCalls, append([]string(nil), texts...))
	m.mu.Unlock()
	return DefaultGenerateBatchEmbeddings(ctx, m, texts)
}

func (m *MockProvider) GetModel() EmbeddingModel {
	return m.model
}
