// Package dataset reads and writes the processed-documents JSONL file that
// prepare produces and the index command consumes.
package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DefaultPath is where prepare writes and index reads by default.
const DefaultPath = "my_data/processed_documents.jsonl"

// maxLineSize bounds a single JSONL record.
const maxLineSize = 64 * 1024 * 1024

// Document is one source document and its chunks.
type Document struct {
	DocID        string  `json:"doc_id"`
	OriginalUUID string  `json:"original_uuid"`
	Content      string  `json:"content"`
	Chunks       []Chunk `json:"chunks"`
}

// Chunk is a slice of a document's content.
type Chunk struct {
	ChunkID       string `json:"chunk_id"`
	OriginalIndex int    `json:"original_index"`
	Content       string `json:"content"`
}

// ChunkCount returns the total number of chunks across docs.
func ChunkCount(docs []Document) int {
	n := 0
	for _, d := range docs {
		n += len(d.Chunks)
	}
	return n
}

// Read decodes one document per line from r. A positive limit stops after
// that many documents. Blank lines are skipped.
func Read(r io.Reader, limit int) ([]Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var docs []Document
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		if limit > 0 && len(docs) >= limit {
			break
		}

		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}
	return docs, nil
}

// ReadFile reads a dataset from path.
func ReadFile(path string, limit int) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()

	docs, err := Read(f, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return docs, nil
}

// Write encodes docs as JSONL.
func Write(w io.Writer, docs []Document) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for _, doc := range docs {
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encoding %s: %w", doc.DocID, err)
		}
	}
	return bw.Flush()
}

// WriteFile writes docs to path, creating parent directories. The file is
// written to a temporary name first and renamed into place.
func WriteFile(path string, docs []Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating dataset directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".dataset-*.jsonl")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, docs); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming dataset: %w", err)
	}
	return nil
}
