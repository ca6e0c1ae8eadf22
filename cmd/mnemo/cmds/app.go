package cmds

import (
	"github.com/go-go-golems/mnemo/pkg/connectivity"
	"github.com/go-go-golems/mnemo/pkg/conversation"
	"github.com/go-go-golems/mnemo/pkg/embeddings"
	"github.com/go-go-golems/mnemo/pkg/events"
	"github.com/go-go-golems/mnemo/pkg/generator"
	"github.com/go-go-golems/mnemo/pkg/media"
	"github.com/go-go-golems/mnemo/pkg/retriever"
	"github.com/go-go-golems/mnemo/pkg/settings"
	"github.com/go-go-golems/mnemo/pkg/transcript"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func loadSettings() (*settings.Settings, error) {
	return settings.FromViper(viper.GetViper())
}

func openStore(s *settings.Settings) (transcript.Store, error) {
	switch s.Store.Backend {
	case settings.StoreSQLite:
		return transcript.NewSQLiteStore(s.Store.SQLiteDSN)
	default:
		return transcript.NewJSONFileStore(s.Store.HistoryDir)
	}
}

func newEmbeddingsProvider(s *settings.Settings) (embeddings.Provider, error) {
	p, err := embeddings.NewProvider(s.EmbeddingsConfig())
	if err != nil {
		return nil, errors.Wrap(err, "create embeddings provider")
	}
	return p, nil
}

func newWeaviate(s *settings.Settings) (*retriever.Weaviate, error) {
	p, err := newEmbeddingsProvider(s)
	if err != nil {
		return nil, err
	}
	return retriever.NewWeaviate(s.WeaviateConfig(), p)
}

func newRetriever(s *settings.Settings) (retriever.Retriever, error) {
	if s.Weaviate.Disabled {
		log.Info().Msg("Knowledge base disabled, answering without context")
		return retriever.Static(nil), nil
	}
	return newWeaviate(s)
}

func newProber(s *settings.Settings) connectivity.Prober {
	if s.Probe.Disabled {
		return connectivity.Always(true)
	}
	return connectivity.NewHTTPProber(
		connectivity.WithURL(s.Probe.URL),
		connectivity.WithTimeout(s.Probe.Timeout),
	)
}

// newController wires a controller from settings. The caller closes the
// returned store.
func newController(s *settings.Settings, sink events.Sink) (*conversation.Controller, transcript.Store, error) {
	store, err := openStore(s)
	if err != nil {
		return nil, nil, err
	}

	c, err := func() (*conversation.Controller, error) {
		r, err := newRetriever(s)
		if err != nil {
			return nil, err
		}
		g, err := generator.NewOpenAI(s.GeneratorSettings())
		if err != nil {
			return nil, err
		}
		prompts, err := generator.NewPromptBuilder(
			generator.WithTemplate(s.Prompt.Template),
			generator.WithTokenBudget(s.Prompt.TokenBudget),
		)
		if err != nil {
			return nil, err
		}
		mediaStore, err := media.NewStore(s.Store.MediaDir)
		if err != nil {
			return nil, err
		}

		return conversation.NewController(store, r, g, newProber(s),
			conversation.WithSink(sink),
			conversation.WithMediaStore(mediaStore),
			conversation.WithPromptBuilder(prompts),
			conversation.WithK(s.Prompt.K),
			conversation.WithSystemPrompt(s.Prompt.System),
		)
	}()
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return c, store, nil
}
