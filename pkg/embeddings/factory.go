package embeddings

import (
	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

type Config struct {
	// Type is "openai" or "ollama".
	Type       string
	Engine     string
	Dimensions int
	APIKey     string
	BaseURL    string
	// CacheSize bounds the in-memory LRU. Zero disables caching.
	CacheSize int
}

func NewProvider(cfg Config) (Provider, error) {
	var p Provider
	switch cfg.Type {
	case "", "openai":
		if cfg.APIKey == "" {
			return nil, errors.New("openai embeddings require an API key")
		}
		config := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			config.BaseURL = cfg.BaseURL
		}
		p = NewOpenAIProviderWithConfig(config, openai.EmbeddingModel(cfg.Engine), cfg.Dimensions)
	case "ollama":
		p = NewOllamaProvider(cfg.BaseURL, cfg.Engine, cfg.Dimensions)
	default:
		return nil, errors.Errorf("unsupported embeddings type %q", cfg.Type)
	}

	if cfg.CacheSize > 0 {
		p = NewCachedProvider(p, cfg.CacheSize)
	}
	return p, nil
}
