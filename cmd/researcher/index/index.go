// Package indexcmder provides the index command, which builds the contextual
// vector database from a processed dataset.
package indexcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/researcher/cmd/researcher/stack"
	"github.com/papercomputeco/researcher/pkg/cliui"
	"github.com/papercomputeco/researcher/pkg/config"
	"github.com/papercomputeco/researcher/pkg/dataset"
	"github.com/papercomputeco/researcher/pkg/rag"
)

const indexLongDesc string = `Build the contextual vector database from a processed dataset.

Every chunk of every document is sent to the chat model together with its
whole document, and the model writes a short context that situates the chunk.
The context is prepended to the chunk, the result is embedded and both are
stored. Documents share their prompt prefix so providers with prompt caching
read most input tokens from the cache.

With --debug only the first two documents are indexed unless --limit is
given. Indexing is skipped when the database already holds data. Use --rebuild to
start over. Any failure rolls the load back so a partial index is never left
behind.

Examples:
  researcher index --dataset data/processed.jsonl
  researcher index --parallel-requests 10 --sample-query "permafrost thaw"
  researcher index --rebuild --model claude-3-5-haiku-20241022`

const indexShortDesc string = "Build the contextual vector database"

// debugLimit is the number of documents indexed with --debug unless --limit
// says otherwise.
const debugLimit = 2

// Flags are the registry flags of the index command on top of
// stack.QueryFlags.
var Flags = append(append([]string{}, stack.QueryFlags...),
	config.FlagTemperature,
	config.FlagMaxTokens,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagDataset,
	config.FlagParallelRequests,
)

type indexCommander struct {
	flags stack.Flags

	temperature       float64
	maxTokens         uint
	embeddingProvider string
	embeddingTarget   string
	embeddingModel    string
	embeddingDims     uint
	datasetPath       string
	parallel          uint

	limit       int
	rebuild     bool
	sampleQuery string
}

func NewIndexCmd() *cobra.Command {
	cmder := &indexCommander{}

	cmd := &cobra.Command{
		Use:   "index",
		Short: indexShortDesc,
		Long:  indexLongDesc,
		Args:  cobra.NoArgs,
		RunE:  cmder.run,
	}

	cmder.flags.AddQueryFlags(cmd)
	config.AddFloatFlag(cmd, config.Registry, config.FlagTemperature, &cmder.temperature)
	config.AddUintFlag(cmd, config.Registry, config.FlagMaxTokens, &cmder.maxTokens)
	config.AddStringFlag(cmd, config.Registry, config.FlagEmbeddingProv, &cmder.embeddingProvider)
	config.AddStringFlag(cmd, config.Registry, config.FlagEmbeddingTgt, &cmder.embeddingTarget)
	config.AddStringFlag(cmd, config.Registry, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, config.Registry, config.FlagEmbeddingDims, &cmder.embeddingDims)
	config.AddStringFlag(cmd, config.Registry, config.FlagDataset, &cmder.datasetPath)
	config.AddUintFlag(cmd, config.Registry, config.FlagParallelRequests, &cmder.parallel)

	cmd.Flags().IntVar(&cmder.limit, "limit", 0, "Index only the first n documents (0 for all)")
	cmd.Flags().BoolVar(&cmder.rebuild, "rebuild", false, "Delete the existing index before loading")
	cmd.Flags().StringVar(&cmder.sampleQuery, "sample-query", "", "Run a search after indexing to check the result")

	return cmd
}

func (c *indexCommander) run(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	log := stack.NewLogger(cmd)
	s, err := stack.OpenForCommand(ctx, cmd, Flags, log)
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()

	limit := c.limit
	if debug, _ := cmd.Flags().GetBool("debug"); debug && limit == 0 {
		limit = debugLimit
	}

	var docs []dataset.Document
	err = cliui.Step(out, fmt.Sprintf("Reading %s", s.Config.Ingest.Dataset), func() error {
		var readErr error
		docs, readErr = dataset.ReadFile(s.Config.Ingest.Dataset, limit)
		return readErr
	})
	if err != nil {
		return err
	}

	return Run(ctx, s.DB, docs, Options{
		Parallel:    int(s.Config.Ingest.ParallelRequests),
		Rebuild:     c.rebuild,
		SampleQuery: c.sampleQuery,
		TopK:        int(s.Config.Research.TopK),
	}, out)
}

// Options configures Run.
type Options struct {
	Parallel int
	Rebuild  bool

	// SampleQuery, when set, is searched once loading is done.
	SampleQuery string
	TopK        int
}

// Run loads docs into db, reporting each step on w.
func Run(ctx context.Context, db *rag.DB, docs []dataset.Document, opts Options, w io.Writer) error {
	if len(docs) == 0 {
		return errors.New("dataset has no documents")
	}
	chunks := dataset.ChunkCount(docs)
	lipgloss.Fprintf(w, "  %s\n\n", cliui.DimStyle.Render(fmt.Sprintf("%d documents, %d chunks", len(docs), chunks)))

	if opts.Rebuild {
		if err := cliui.Step(w, "Clearing existing index", func() error {
			return db.Reset(ctx)
		}); err != nil {
			return err
		}
	}

	loaded, err := db.Loaded(ctx)
	if err != nil {
		return err
	}
	if loaded {
		lipgloss.Fprintf(w, "  %s\n\n",
			cliui.WarnStyle.Render("Index already loaded, use --rebuild to start over"))
		return sample(ctx, db, opts, w)
	}

	if err := situateFirst(ctx, db, docs, w); err != nil {
		return err
	}

	var summary *rag.LoadSummary
	err = cliui.RunProgress(ctx, w, "Indexing", func(ctx context.Context, report cliui.ReportFunc) error {
		var loadErr error
		summary, loadErr = db.LoadData(ctx, docs, rag.LoadOptions{
			Parallel: opts.Parallel,
			OnProgress: func(p rag.Progress) {
				report(p.Stage, p.Done, p.Total)
			},
		})
		return loadErr
	})
	if err != nil {
		return err
	}

	lipgloss.Fprintf(w, "  %s Indexed %d chunks\n\n", cliui.SuccessMark, summary.Chunks)
	summary.Tokens.WriteSummary(w)
	fmt.Fprintln(w)

	return sample(ctx, db, opts, w)
}

// situateFirst contextualizes the first chunk before the full load so a bad
// model or key fails fast.
func situateFirst(ctx context.Context, db *rag.DB, docs []dataset.Document, w io.Writer) error {
	var doc *dataset.Document
	for i := range docs {
		if len(docs[i].Chunks) > 0 {
			doc = &docs[i]
			break
		}
	}
	if doc == nil {
		return errors.New("dataset has no chunks")
	}

	var text string
	err := cliui.Step(w, "Checking contextualization", func() error {
		var err error
		text, _, err = db.SituateContext(ctx, doc.Content, doc.Chunks[0].Content)
		return err
	})
	if err != nil {
		return err
	}

	lipgloss.Fprintf(w, "  %s %s\n\n",
		cliui.KeyStyle.Render(doc.Chunks[0].ChunkID+":"),
		cliui.DimStyle.Render(cliui.Truncate(text, cliui.TerminalWidth(100)-len(doc.Chunks[0].ChunkID)-4)),
	)
	return nil
}

func sample(ctx context.Context, db *rag.DB, opts Options, w io.Writer) error {
	if opts.SampleQuery == "" {
		return nil
	}

	k := opts.TopK
	if k <= 0 {
		k = rag.DefaultTopK
	}
	results, err := db.Search(ctx, opts.SampleQuery, k)
	if err != nil {
		return fmt.Errorf("sample search: %w", err)
	}

	lipgloss.Fprintf(w, "%s %s\n\n",
		cliui.HeaderStyle.Render("Sample results for:"),
		cliui.SourceStyle.Render(fmt.Sprintf("%q", opts.SampleQuery)),
	)
	for i, r := range results {
		lipgloss.Fprintf(w, "  %s  %s  %s\n",
			cliui.RankStyle.Render(fmt.Sprintf("#%d", i+1)),
			cliui.ScoreStyle.Render(fmt.Sprintf("similarity: %.4f", r.Similarity)),
			cliui.SourceStyle.Render(r.Chunk.DocID+"/"+r.Chunk.ChunkID),
		)
	}
	fmt.Fprintln(w)
	return nil
}
