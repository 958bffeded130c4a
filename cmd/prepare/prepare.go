// Package preparecmder provides the prepare command, which chunks raw
// documents into the processed-documents dataset read by "researcher index".
package preparecmder

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/researcher/cmd/researcher/stack"
	"github.com/papercomputeco/researcher/pkg/cliui"
	"github.com/papercomputeco/researcher/pkg/config"
	"github.com/papercomputeco/researcher/pkg/dataset"
	"github.com/papercomputeco/researcher/pkg/preprocess"
)

const prepareLongDesc string = `Chunk raw documents into a processed dataset.

The input is a directory or a single file. Supported files are plain text,
Markdown, JSON, JSONL and YAML. Structured files may hold one document or a
list of records with a "content" or "text" field. Each document is split into
overlapping chunks and written as one JSONL line with stable ids.

With --watch the dataset is rebuilt whenever a file under the input changes.

Examples:
  researcher prepare --input docs/
  researcher prepare --input papers.jsonl --output data/papers.jsonl --chunk-size 1500
  researcher prepare --input docs/ --watch`

const prepareShortDesc string = "Chunk raw documents into a dataset"

// Flags are the registry flags of the prepare command. The output path
// falls back to ingest.dataset so index reads what prepare wrote.
var Flags = []string{
	config.FlagChunkSize,
	config.FlagChunkOverlap,
}

type prepareCommander struct {
	input        string
	output       string
	chunkSize    uint
	chunkOverlap uint
	limit        int
	watch        bool
}

func NewPrepareCmd() *cobra.Command {
	cmder := &prepareCommander{}

	cmd := &cobra.Command{
		Use:   "prepare",
		Short: prepareShortDesc,
		Long:  prepareLongDesc,
		Args:  cobra.NoArgs,
		RunE:  cmder.run,
	}

	cmd.Flags().StringVarP(&cmder.input, "input", "i", "", "Directory or file of raw documents")
	_ = cmd.MarkFlagRequired("input")
	cmd.Flags().StringVarP(&cmder.output, "output", "o", "", "Dataset JSONL file to write (default: ingest.dataset from config)")
	config.AddUintFlag(cmd, config.Registry, config.FlagChunkSize, &cmder.chunkSize)
	config.AddUintFlag(cmd, config.Registry, config.FlagChunkOverlap, &cmder.chunkOverlap)
	cmd.Flags().IntVar(&cmder.limit, "limit", 0, "Keep only the first n documents (0 for all)")
	cmd.Flags().BoolVarP(&cmder.watch, "watch", "w", false, "Rebuild the dataset when input files change")

	return cmd
}

func (c *prepareCommander) run(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := stack.LoadConfig(cmd, Flags)
	if err != nil {
		return err
	}
	log := stack.NewLogger(cmd)

	output := c.output
	if output == "" {
		output = cfg.Ingest.Dataset
	}

	p, err := preprocess.New(preprocess.Options{
		Input:        c.input,
		Output:       output,
		ChunkSize:    int(cfg.Ingest.ChunkSize),
		ChunkOverlap: int(cfg.Ingest.ChunkOverlap),
		Limit:        c.limit,
	}, log)
	if err != nil {
		return err
	}

	if c.watch {
		log.Info("watching for changes", "input", c.input, "output", output)
		return p.Watch(ctx, preprocess.DefaultDebounce)
	}

	return Run(ctx, p, output, cmd.OutOrStdout())
}

// Run writes the dataset once and reports what was written.
func Run(ctx context.Context, p *preprocess.Preprocessor, output string, w io.Writer) error {
	var docs []dataset.Document
	err := cliui.Step(w, "Chunking documents", func() error {
		var err error
		docs, err = p.Run(ctx)
		return err
	})
	if err != nil {
		return err
	}

	lipgloss.Fprintf(w, "  %s %s %s\n",
		cliui.SuccessMark,
		fmt.Sprintf("Wrote %d documents, %d chunks to", len(docs), dataset.ChunkCount(docs)),
		cliui.SourceStyle.Render(output),
	)
	return nil
}
