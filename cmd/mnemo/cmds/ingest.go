package cmds

import (
	"fmt"

	"github.com/go-go-golems/mnemo/pkg/ingest"
	"github.com/spf13/cobra"
)

func NewIngestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <paths...>",
		Short: "Add text, markdown and HTML files to the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			p, err := newEmbeddingsProvider(s)
			if err != nil {
				return err
			}
			w, err := newWeaviate(s)
			if err != nil {
				return err
			}

			ing := ingest.NewIngester(p, w,
				ingest.WithChunker(ingest.NewChunker(s.Ingest.ChunkSize, s.Ingest.ChunkOverlap)),
				ingest.WithBatchSize(s.Ingest.BatchSize),
			)

			out := cmd.OutOrStdout()
			stats, err := ing.Ingest(cmd.Context(), args, func(source string, chunks int) {
				_, _ = fmt.Fprintf(out, "%s\t%d chunks\n", source, chunks)
			})
			if stats != nil {
				_, _ = fmt.Fprintf(out, "Ingested %d files, %d chunks into %s\n", stats.Files, stats.Chunks, w.Class())
			}
			return err
		},
	}
}
