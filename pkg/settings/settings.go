// Package settings collects everything the mnemo commands can be configured
// with. Values come from flags, MNEMO_* environment variables and the config
// file, all resolved through viper.
package settings

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-go-golems/mnemo/pkg/connectivity"
	"github.com/go-go-golems/mnemo/pkg/embeddings"
	"github.com/go-go-golems/mnemo/pkg/generator"
	"github.com/go-go-golems/mnemo/pkg/retriever"
	"github.com/go-go-golems/mnemo/pkg/security"
	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	StoreJSON   = "json"
	StoreSQLite = "sqlite"
)

type StoreSettings struct {
	Backend    string `yaml:"backend"`
	HistoryDir string `yaml:"history-dir"`
	SQLiteDSN  string `yaml:"sqlite-dsn"`
	MediaDir   string `yaml:"media-dir"`
}

type ProbeSettings struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
	// Disabled skips the network check and always treats the network as up.
	Disabled bool `yaml:"disabled"`
}

type OpenAISettings struct {
	APIKey      string        `yaml:"api-key"`
	BaseURL     string        `yaml:"base-url"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max-tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

type EmbeddingsSettings struct {
	Type       string `yaml:"type"`
	Engine     string `yaml:"engine"`
	Dimensions int    `yaml:"dimensions"`
	BaseURL    string `yaml:"base-url"`
	CacheSize  int    `yaml:"cache-size"`
}

type WeaviateSettings struct {
	Scheme string `yaml:"scheme"`
	Host   string `yaml:"host"`
	APIKey string `yaml:"api-key"`
	Class  string `yaml:"class"`
	// Disabled runs the chat without a knowledge base.
	Disabled bool `yaml:"disabled"`
}

type PromptSettings struct {
	System      string `yaml:"system"`
	Template    string `yaml:"template"`
	TokenBudget int    `yaml:"token-budget"`
	K           int    `yaml:"k"`
}

type IngestSettings struct {
	ChunkSize    int `yaml:"chunk-size"`
	ChunkOverlap int `yaml:"chunk-overlap"`
	BatchSize    int `yaml:"batch-size"`
}

type Settings struct {
	Store      StoreSettings      `yaml:"store"`
	Probe      ProbeSettings      `yaml:"probe"`
	OpenAI     OpenAISettings     `yaml:"openai"`
	Embeddings EmbeddingsSettings `yaml:"embeddings"`
	Weaviate   WeaviateSettings   `yaml:"weaviate"`
	Prompt     PromptSettings     `yaml:"prompt"`
	Ingest     IngestSettings     `yaml:"ingest"`
}

// Clone returns a deep copy.
func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}

func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".mnemo")
}

// AddFlags registers every setting as a flag. Flag names double as viper keys
// and, upper-cased with '-' turned into '_', as MNEMO_ environment variables.
func AddFlags(fs *pflag.FlagSet) {
	dataDir := DefaultDataDir()

	fs.String("store", StoreJSON, "Transcript store backend (json, sqlite)")
	fs.String("history-dir", filepath.Join(dataDir, "history"), "Directory holding one JSON transcript per session")
	fs.String("sqlite-dsn", filepath.Join(dataDir, "history.db"), "SQLite database for the sqlite store")
	fs.String("media-dir", filepath.Join(dataDir, "media"), "Directory attachments are copied into")

	fs.String("probe-url", connectivity.DefaultURL, "URL used to check network connectivity")
	fs.Duration("probe-timeout", connectivity.DefaultTimeout, "Connectivity check timeout")
	fs.Bool("offline-check-disabled", false, "Skip the connectivity check")

	fs.String("openai-api-key", "", "OpenAI API key")
	fs.String("openai-base-url", "", "OpenAI compatible API base URL")
	fs.String("model", generator.DefaultModel, "Chat completion model")
	fs.Float32("temperature", 0, "Sampling temperature")
	fs.Int("max-tokens", 0, "Maximum reply tokens, 0 for the model default")
	fs.Duration("generation-timeout", generator.DefaultTimeout, "Timeout for one chat completion call")

	fs.String("embeddings-type", "openai", "Embeddings provider (openai, ollama)")
	fs.String("embeddings-engine", "text-embedding-3-small", "Embeddings model")
	fs.Int("embeddings-dimensions", 0, "Embedding dimensions, 0 for the model default")
	fs.String("embeddings-base-url", "", "Embeddings API base URL")
	fs.Int("embeddings-cache-size", 256, "In-memory embeddings cache entries, 0 to disable")

	fs.String("weaviate-scheme", "http", "Weaviate scheme")
	fs.String("weaviate-host", "localhost:8080", "Weaviate host")
	fs.String("weaviate-api-key", "", "Weaviate API key")
	fs.String("weaviate-class", retriever.DefaultClass, "Weaviate class holding the knowledge base")
	fs.Bool("no-knowledge-base", false, "Answer without retrieving context")

	fs.String("system-prompt", generator.DefaultSystemPrompt, "System instruction sent with every query")
	fs.String("prompt-template", generator.DefaultPromptTemplate, "Go template for the user prompt (.Query, .Context, .Snippets)")
	fs.Int("context-token-budget", 0, "Maximum tokens of retrieved context, 0 for no limit")
	fs.Int("k", retriever.DefaultK, "Number of knowledge base snippets per query")

	fs.Int("chunk-size", 1000, "Ingest chunk size in runes")
	fs.Int("chunk-overlap", 200, "Ingest chunk overlap in runes")
	fs.Int("ingest-batch-size", 16, "Chunks embedded per request when ingesting")
}

func FromViper(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		Store: StoreSettings{
			Backend:    strings.ToLower(v.GetString("store")),
			HistoryDir: v.GetString("history-dir"),
			SQLiteDSN:  v.GetString("sqlite-dsn"),
			MediaDir:   v.GetString("media-dir"),
		},
		Probe: ProbeSettings{
			URL:      v.GetString("probe-url"),
			Timeout:  v.GetDuration("probe-timeout"),
			Disabled: v.GetBool("offline-check-disabled"),
		},
		OpenAI: OpenAISettings{
			APIKey:      v.GetString("openai-api-key"),
			BaseURL:     v.GetString("openai-base-url"),
			Model:       v.GetString("model"),
			Temperature: float32(v.GetFloat64("temperature")),
			MaxTokens:   v.GetInt("max-tokens"),
			Timeout:     v.GetDuration("generation-timeout"),
		},
		Embeddings: EmbeddingsSettings{
			Type:       v.GetString("embeddings-type"),
			Engine:     v.GetString("embeddings-engine"),
			Dimensions: v.GetInt("embeddings-dimensions"),
			BaseURL:    v.GetString("embeddings-base-url"),
			CacheSize:  v.GetInt("embeddings-cache-size"),
		},
		Weaviate: WeaviateSettings{
			Scheme:   v.GetString("weaviate-scheme"),
			Host:     v.GetString("weaviate-host"),
			APIKey:   v.GetString("weaviate-api-key"),
			Class:    v.GetString("weaviate-class"),
			Disabled: v.GetBool("no-knowledge-base"),
		},
		Prompt: PromptSettings{
			System:      v.GetString("system-prompt"),
			Template:    v.GetString("prompt-template"),
			TokenBudget: v.GetInt("context-token-budget"),
			K:           v.GetInt("k"),
		},
		Ingest: IngestSettings{
			ChunkSize:    v.GetInt("chunk-size"),
			ChunkOverlap: v.GetInt("chunk-overlap"),
			BatchSize:    v.GetInt("ingest-batch-size"),
		},
	}

	// the embeddings endpoint usually is the chat endpoint
	if s.Embeddings.Type == "openai" && s.Embeddings.BaseURL == "" {
		s.Embeddings.BaseURL = s.OpenAI.BaseURL
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) Validate() error {
	switch s.Store.Backend {
	case StoreJSON, StoreSQLite:
	default:
		return errors.Errorf("unknown store backend %q", s.Store.Backend)
	}
	if s.Prompt.K < 0 {
		return errors.New("k must not be negative")
	}
	if s.Ingest.ChunkSize > 0 && s.Ingest.ChunkOverlap >= s.Ingest.ChunkSize {
		return errors.Errorf("chunk overlap %d must be smaller than chunk size %d", s.Ingest.ChunkOverlap, s.Ingest.ChunkSize)
	}

	// a probe answered by the local network says nothing about being online
	if !s.Probe.Disabled {
		if err := security.ValidateEndpoint(s.Probe.URL, security.EndpointOptions{AllowHTTP: true}); err != nil {
			return errors.Wrap(err, "probe-url")
		}
	}
	local := security.EndpointOptions{AllowHTTP: true, AllowLocalNetworks: true}
	for name, u := range map[string]string{
		"openai-base-url":     s.OpenAI.BaseURL,
		"embeddings-base-url": s.Embeddings.BaseURL,
	} {
		if u == "" {
			continue
		}
		if err := security.ValidateEndpoint(u, local); err != nil {
			return errors.Wrap(err, name)
		}
	}
	return nil
}

func (s *Settings) EmbeddingsConfig() embeddings.Config {
	return embeddings.Config{
		Type:       s.Embeddings.Type,
		Engine:     s.Embeddings.Engine,
		Dimensions: s.Embeddings.Dimensions,
		APIKey:     s.OpenAI.APIKey,
		BaseURL:    s.Embeddings.BaseURL,
		CacheSize:  s.Embeddings.CacheSize,
	}
}

func (s *Settings) WeaviateConfig() retriever.WeaviateConfig {
	cfg := retriever.WeaviateConfig{
		Scheme: s.Weaviate.Scheme,
		Host:   s.Weaviate.Host,
		APIKey: s.Weaviate.APIKey,
		Class:  s.Weaviate.Class,
	}
	if s.OpenAI.APIKey != "" {
		cfg.Headers = map[string]string{"X-OpenAI-Api-Key": s.OpenAI.APIKey}
	}
	return cfg
}

func (s *Settings) GeneratorSettings() generator.OpenAISettings {
	return generator.OpenAISettings{
		APIKey:      s.OpenAI.APIKey,
		BaseURL:     s.OpenAI.BaseURL,
		Model:       s.OpenAI.Model,
		Temperature: s.OpenAI.Temperature,
		MaxTokens:   s.OpenAI.MaxTokens,
		Timeout:     s.OpenAI.Timeout,
	}
}
