package settings

import (
	"testing"
	"time"

	"github.com/go-go-golems/mnemo/pkg/generator"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T, args ...string) *viper.Viper {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse(args))
	v := viper.New()
	require.NoError(t, v.BindPFlags(fs))
	return v
}

func TestDefaults(t *testing.T) {
	s, err := FromViper(newViper(t))
	require.NoError(t, err)

	assert.Equal(t, StoreJSON, s.Store.Backend)
	assert.Equal(t, "https://www.google.com", s.Probe.URL)
	assert.Equal(t, 3*time.Second, s.Probe.Timeout)
	assert.Equal(t, 60*time.Second, s.OpenAI.Timeout)
	assert.Equal(t, generator.DefaultModel, s.OpenAI.Model)
	assert.Equal(t, 3, s.Prompt.K)
	assert.Equal(t, generator.DefaultSystemPrompt, s.Prompt.System)
	assert.Equal(t, "Document", s.Weaviate.Class)
	assert.Equal(t, 1000, s.Ingest.ChunkSize)
	assert.Equal(t, 200, s.Ingest.ChunkOverlap)
}

func TestFlagsAndOverrides(t *testing.T) {
	v := newViper(t, "--store", "SQLite", "--k", "5", "--openai-api-key", "sk-test", "--openai-base-url", "http://llm.local/v1")
	v.Set("generation-timeout", "10s")

	s, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, StoreSQLite, s.Store.Backend)
	assert.Equal(t, 5, s.Prompt.K)
	assert.Equal(t, 10*time.Second, s.OpenAI.Timeout)

	ec := s.EmbeddingsConfig()
	assert.Equal(t, "sk-test", ec.APIKey)
	assert.Equal(t, "http://llm.local/v1", ec.BaseURL)

	wc := s.WeaviateConfig()
	assert.Equal(t, "sk-test", wc.Headers["X-OpenAI-Api-Key"])

	gs := s.GeneratorSettings()
	assert.Equal(t, "sk-test", gs.APIKey)
	assert.Equal(t, 10*time.Second, gs.Timeout)
}

func TestValidate(t *testing.T) {
	_, err := FromViper(newViper(t, "--store", "postgres"))
	assert.Error(t, err)

	_, err = FromViper(newViper(t, "--chunk-size", "100", "--chunk-overlap", "100"))
	assert.Error(t, err)

	_, err = FromViper(newViper(t, "--k=-1"))
	assert.Error(t, err)

	_, err = FromViper(newViper(t, "--probe-url", "http://127.0.0.1:8080"))
	assert.Error(t, err)

	_, err = FromViper(newViper(t, "--probe-url", "http://127.0.0.1:8080", "--offline-check-disabled"))
	assert.NoError(t, err)

	_, err = FromViper(newViper(t, "--openai-base-url", "ftp://llm.example.com"))
	assert.Error(t, err)

	_, err = FromViper(newViper(t, "--embeddings-type", "ollama", "--embeddings-base-url", "http://localhost:11434"))
	assert.NoError(t, err)
}

func TestClone(t *testing.T) {
	s, err := FromViper(newViper(t, "--openai-api-key", "sk-test"))
	require.NoError(t, err)

	c := s.Clone()
	c.OpenAI.APIKey = "other"
	c.Prompt.K = 9
	assert.Equal(t, "sk-test", s.OpenAI.APIKey)
	assert.Equal(t, 3, s.Prompt.K)
	assert.Equal(t, s.Store, c.Store)
}
