package retriever

import (
	"context"
	"strings"

	"github.com/go-go-golems/mnemo/pkg/embeddings"
	"github.com/iancoleman/strcase"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
)

const (
	DefaultClass          = "Document"
	ContentProperty       = "content"
	SourceProperty        = "source"
	additionalProperty    = "_additional"
	distanceAdditionalKey = "distance"
)

type WeaviateConfig struct {
	Scheme string
	Host   string
	APIKey string
	Class  string
	// Headers are forwarded with every request, e.g. X-OpenAI-Api-Key for
	// server side vectorizer modules.
	Headers map[string]string
}

// Snippet is one search hit.
type Snippet struct {
	Content  string
	Source   string
	Distance float64
}

// Weaviate searches a Weaviate class with vectors from an embeddings provider.
// The same type writes ingested chunks, so reads and writes agree on the
// class name, property names and vector space.
type Weaviate struct {
	client   *weaviate.Client
	provider embeddings.Provider
	class    string
}

var _ Retriever = (*Weaviate)(nil)

// ClassName normalises a user supplied name into a valid Weaviate class name.
func ClassName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultClass
	}
	return strcase.ToCamel(name)
}

func NewWeaviate(cfg WeaviateConfig, provider embeddings.Provider) (*Weaviate, error) {
	if provider == nil {
		return nil, errors.New("weaviate retriever requires an embeddings provider")
	}
	if cfg.Host == "" {
		cfg.Host = "localhost:8080"
	}
	if cfg.Scheme == "" {
		cfg.Scheme = "http"
	}

	wcfg := weaviate.Config{
		Host:    cfg.Host,
		Scheme:  cfg.Scheme,
		Headers: cfg.Headers,
	}
	if cfg.APIKey != "" {
		wcfg.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}

	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, errors.Wrap(err, "create weaviate client")
	}

	return &Weaviate{
		client:   client,
		provider: provider,
		class:    ClassName(cfg.Class),
	}, nil
}

func (w *Weaviate) Class() string {
	return w.class
}

func (w *Weaviate) Search(ctx context.Context, query string, k int) ([]string, error) {
	snippets, err := w.SearchSnippets(ctx, query, k)
	if err != nil {
		return nil, err
	}
	ret := make([]string, len(snippets))
	for i, s := range snippets {
		ret[i] = s.Content
	}
	return ret, nil
}

func (w *Weaviate) SearchSnippets(ctx context.Context, query string, k int) ([]Snippet, error) {
	if k <= 0 {
		k = DefaultK
	}

	vector, err := w.provider.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(ErrRetrieval, "embed query: %v", err)
	}

	nearVector := w.client.GraphQL().NearVectorArgBuilder().WithVector(vector)
	resp, err := w.client.GraphQL().Get().
		WithClassName(w.class).
		WithFields(
			graphql.Field{Name: ContentProperty},
			graphql.Field{Name: SourceProperty},
			graphql.Field{Name: additionalProperty, Fields: []graphql.Field{{Name: distanceAdditionalKey}}},
		).
		WithNearVector(nearVector).
		WithLimit(k).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(ErrRetrieval, "weaviate query: %v", err)
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			if e != nil {
				msgs = append(msgs, e.Message)
			}
		}
		return nil, errors.Wrapf(ErrRetrieval, "weaviate graphql: %s", strings.Join(msgs, "; "))
	}

	snippets, err := parseGetResult(resp.Data["Get"], w.class)
	if err != nil {
		return nil, errors.Wrapf(ErrRetrieval, "%v", err)
	}

	log.Debug().Str("class", w.class).Int("k", k).Int("hits", len(snippets)).Msg("Retrieved knowledge base context")
	return snippets, nil
}

// Add writes one chunk and its vector to the class.
func (w *Weaviate) Add(ctx context.Context, content string, source string, vector []float32) (string, error) {
	created, err := w.client.Data().Creator().
		WithClassName(w.class).
		WithProperties(map[string]interface{}{
			ContentProperty: content,
			SourceProperty:  source,
		}).
		WithVector(vector).
		Do(ctx)
	if err != nil {
		return "", errors.Wrap(err, "weaviate create object")
	}
	if created == nil || created.Object == nil {
		return "", nil
	}
	return string(created.Object.ID), nil
}

// parseGetResult reads {"<Class>": [{"content": ..., "source": ..., "_additional": {"distance": ...}}]}.
func parseGetResult(get interface{}, class string) ([]Snippet, error) {
	if get == nil {
		return []Snippet{}, nil
	}
	classes, ok := get.(map[string]interface{})
	if !ok {
		return nil, errors.Errorf("unexpected Get payload %T", get)
	}
	raw, ok := classes[class]
	if !ok || raw == nil {
		return []Snippet{}, nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, errors.Errorf("unexpected %s payload %T", class, raw)
	}

	ret := make([]Snippet, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		content, _ := obj[ContentProperty].(string)
		if content == "" {
			continue
		}
		s := Snippet{Content: content}
		s.Source, _ = obj[SourceProperty].(string)
		if additional, ok := obj[additionalProperty].(map[string]interface{}); ok {
			s.Distance, _ = additional[distanceAdditionalKey].(float64)
		}
		ret = append(ret, s)
	}
	return ret, nil
}
