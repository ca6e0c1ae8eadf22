package embeddings

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

type OpenAIProvider struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

var _ Provider = &OpenAIProvider{}

func NewOpenAIProvider(apiKey string, model openai.EmbeddingModel, dimensions int) *OpenAIProvider {
	return NewOpenAIProviderWithConfig(openai.DefaultConfig(apiKey), model, dimensions)
}

// NewOpenAIProviderWithConfig allows pointing the provider at a compatible
// endpoint through config.BaseURL.
func NewOpenAIProviderWithConfig(config openai.ClientConfig, model openai.EmbeddingModel, dimensions int) *OpenAIProvider {
	if model == "" {
		model = openai.SmallEmbedding3
	}
	if dimensions <= 0 {
		dimensions = 1536
	}

	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(config),
		model:      model,
		dimensions: dimensions,
	}
}

// text-embedding-3-* can shorten vectors server side, older models reject the field.
func supportsOpenAIDimensionsOverride(model openai.EmbeddingModel) bool {
	return strings.HasPrefix(string(model), "text-embedding-3")
}

func (p *OpenAIProvider) newRequest(texts []string) openai.EmbeddingRequest {
	req := openai.EmbeddingRequest{
		Input: texts,
		Model: p.model,
	}
	if supportsOpenAIDimensionsOverride(p.model) {
		req.Dimensions = p.dimensions
	}
	return req
}

func (p *OpenAIProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, p.newRequest([]string{text}))
	if err != nil {
		return nil, errors.Wrap(err, "openai embeddings")
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data received from OpenAI")
	}

	return resp.Data[0].Embedding, nil
}

func (p *OpenAIProvider) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := p.client.CreateEmbeddings(ctx, p.newRequest(texts))
	if err != nil {
		return nil, errors.Wrap(err, "openai batch embeddings")
	}
	if len(resp.Data) != len(texts) {
		return nil, errors.Errorf("expected %d embeddings from OpenAI, got %d", len(texts), len(resp.Data))
	}

	// the API does not promise to return items in request order
	results := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, errors.Errorf("embedding index %d out of range", d.Index)
		}
		results[d.Index] = d.Embedding
	}
	return results, nil
}

func (p *OpenAIProvider) GetModel() EmbeddingModel {
	return EmbeddingModel{
		Name:       string(p.model),
		Dimensions: p.dimensions,
	}
}
