package ingest

import (
	"context"

	"github.com/go-go-golems/mnemo/pkg/embeddings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Writer stores one embedded chunk. retriever.Weaviate implements it.
type Writer interface {
	Add(ctx context.Context, content string, source string, vector []float32) (string, error)
}

type Stats struct {
	Files  int
	Chunks int
}

type Ingester struct {
	provider  embeddings.Provider
	writer    Writer
	chunker   *Chunker
	batchSize int
	exts      []string
}

type Option func(*Ingester)

func WithChunker(c *Chunker) Option {
	return func(i *Ingester) {
		i.chunker = c
	}
}

func WithBatchSize(n int) Option {
	return func(i *Ingester) {
		if n > 0 {
			i.batchSize = n
		}
	}
}

func WithExtensions(exts ...string) Option {
	return func(i *Ingester) {
		i.exts = exts
	}
}

func NewIngester(provider embeddings.Provider, writer Writer, opts ...Option) *Ingester {
	i := &Ingester{
		provider:  provider,
		writer:    writer,
		chunker:   NewChunker(1000, 200),
		batchSize: 16,
		exts:      DefaultExtensions,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Ingest loads, chunks, embeds and writes every supported file under paths.
// progress, if set, is called after each file.
func (i *Ingester) Ingest(ctx context.Context, paths []string, progress func(source string, chunks int)) (*Stats, error) {
	files, err := CollectFiles(paths, i.exts)
	if err != nil {
		return nil, err
	}

	stats := &Stats{}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		doc, err := LoadFile(f)
		if err != nil {
			return stats, err
		}
		chunks := i.chunker.Split(doc.Source, doc.Text)
		if err := i.write(ctx, chunks); err != nil {
			return stats, errors.Wrapf(err, "ingest %s", f)
		}

		stats.Files++
		stats.Chunks += len(chunks)
		log.Info().Str("source", f).Int("chunks", len(chunks)).Msg("Ingested document")
		if progress != nil {
			progress(f, len(chunks))
		}
	}
	return stats, nil
}

func (i *Ingester) write(ctx context.Context, chunks []Chunk) error {
	for start := 0; start < len(chunks); start += i.batchSize {
		end := start + i.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.Content
		}
		vectors, err := i.provider.GenerateBatchEmbeddings(ctx, texts)
		if err != nil {
			return errors.Wrap(err, "embed chunks")
		}
		if len(vectors) != len(batch) {
			return errors.Errorf("got %d embeddings for %d chunks", len(vectors), len(batch))
		}

		for j, c := range batch {
			if _, err := i.writer.Add(ctx, c.Content, c.Source, vectors[j]); err != nil {
				return errors.Wrapf(err, "write chunk %d", c.Index)
			}
		}
	}
	return nil
}
