// Package preprocess turns a directory of raw documents into the
// processed-documents dataset: one record per document with its content
// split into overlapping chunks.
package preprocess

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/papercomputeco/researcher/pkg/dataset"
)

// uuidNamespace seeds original_uuid so the same file always gets the same id.
var uuidNamespace = uuid.MustParse("6f2b1d4e-8c3a-5e7f-9a1b-2c3d4e5f6a7b")

// Options configures a preprocessing run.
type Options struct {
	// Input is a directory or a single file.
	Input string

	// Output is the JSONL file written by Run.
	Output string

	ChunkSize    int
	ChunkOverlap int

	// Limit caps the number of documents. Zero means no limit.
	Limit int
}

// Preprocessor loads, chunks and writes documents.
type Preprocessor struct {
	opts    Options
	chunker *Chunker
	logger  *slog.Logger
}

// New validates opts and fills defaults.
func New(opts Options, logger *slog.Logger) (*Preprocessor, error) {
	if opts.Input == "" {
		return nil, fmt.Errorf("input path is required")
	}
	if opts.Output == "" {
		opts.Output = dataset.DefaultPath
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = DefaultChunkSize
	}

	chunker, err := NewChunker(opts.ChunkSize, opts.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	return &Preprocessor{opts: opts, chunker: chunker, logger: logger}, nil
}

// Documents loads Input, minus Output, and returns the dataset records in
// lexical path order, numbered doc_1, doc_2, and so on. Empty documents are
// dropped before numbering.
func (p *Preprocessor) Documents(ctx context.Context) ([]dataset.Document, error) {
	sources, err := Load(p.opts.Input, p.opts.Output)
	if err != nil {
		return nil, err
	}

	var docs []dataset.Document
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if p.opts.Limit > 0 && len(docs) >= p.opts.Limit {
			break
		}

		parts := p.chunker.Split(src.Text)
		if len(parts) == 0 {
			p.logger.Debug("skipping empty document", "path", src.Path, "index", src.Index)
			continue
		}

		docID := "doc_" + strconv.Itoa(len(docs)+1)
		chunks := make([]dataset.Chunk, len(parts))
		for i, part := range parts {
			chunks[i] = dataset.Chunk{
				ChunkID:       fmt.Sprintf("%s_chunk_%d", docID, i),
				OriginalIndex: i,
				Content:       part,
			}
		}

		docs = append(docs, dataset.Document{
			DocID:        docID,
			OriginalUUID: OriginalUUID(src.Path, src.Index),
			Content:      src.Text,
			Chunks:       chunks,
		})
	}
	return docs, nil
}

// Run builds the dataset and writes it to Output.
func (p *Preprocessor) Run(ctx context.Context) ([]dataset.Document, error) {
	docs, err := p.Documents(ctx)
	if err != nil {
		return nil, err
	}
	if err := dataset.WriteFile(p.opts.Output, docs); err != nil {
		return nil, err
	}

	p.logger.Info("wrote dataset",
		"path", p.opts.Output,
		"documents", len(docs),
		"chunks", dataset.ChunkCount(docs),
	)
	return docs, nil
}

// OriginalUUID derives the stable id of the record at index in path.
func OriginalUUID(path string, index int) string {
	return uuid.NewSHA1(uuidNamespace, []byte(path+"#"+strconv.Itoa(index))).String()
}
