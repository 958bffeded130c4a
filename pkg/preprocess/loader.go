package preprocess

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Source is one raw document before chunking. Index is the record position
// inside multi-record files and zero otherwise.
type Source struct {
	Path  string
	Index int
	Title string
	Text  string
}

// record is the shape accepted in .json, .yaml and .jsonl files.
type record struct {
	Title   string `json:"title" yaml:"title"`
	Text    string `json:"text" yaml:"text"`
	Content string `json:"content" yaml:"content"`
}

func (r record) body() string {
	body := r.Content
	if body == "" {
		body = r.Text
	}
	body = strings.TrimSpace(body)
	if r.Title != "" && body != "" {
		return r.Title + "\n\n" + body
	}
	return body
}

// SupportedExtensions lists the file extensions Load reads.
var SupportedExtensions = []string{".txt", ".md", ".json", ".yaml", ".yml", ".jsonl"}

// isHidden reports whether the base name of path starts with a dot. Temp
// files of dataset.WriteFile are hidden.
func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// IsSupported reports whether path has an extension Load reads.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Load walks root, or reads root itself when it is a file, and returns every
// document in lexical path order. Unsupported files, hidden files and the
// paths in exclude are skipped, so a dataset written inside root is never
// read back as input.
func Load(root string, exclude ...string) ([]Source, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}

	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		if abs, err := filepath.Abs(e); err == nil {
			skip[abs] = true
		}
	}

	var paths []string
	if !info.IsDir() {
		paths = []string{root}
	} else {
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path != root && isHidden(path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !IsSupported(path) {
				return nil
			}
			if abs, err := filepath.Abs(path); err == nil && skip[abs] {
				return nil
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}
	sort.Strings(paths)

	var sources []Source
	for _, path := range paths {
		loaded, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		sources = append(sources, loaded...)
	}
	return sources, nil
}

func loadFile(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var records []record
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return []Source{{Path: path, Text: strings.TrimSpace(string(data))}}, nil
	case ".json":
		records, err = decodeJSON(data)
	case ".yaml", ".yml":
		records, err = decodeYAML(data)
	case ".jsonl":
		records, err = decodeJSONL(data)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	sources := make([]Source, 0, len(records))
	for i, r := range records {
		sources = append(sources, Source{Path: path, Index: i, Title: r.Title, Text: r.body()})
	}
	return sources, nil
}

func decodeJSON(data []byte) ([]record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var records []record
		err := json.Unmarshal(trimmed, &records)
		return records, err
	}
	var r record
	if err := json.Unmarshal(trimmed, &r); err != nil {
		return nil, err
	}
	return []record{r}, nil
}

func decodeYAML(data []byte) ([]record, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	doc := node.Content[0]
	if doc.Kind == yaml.SequenceNode {
		var records []record
		err := doc.Decode(&records)
		return records, err
	}
	var r record
	if err := doc.Decode(&r); err != nil {
		return nil, err
	}
	return []record{r}, nil
}

func decodeJSONL(data []byte) ([]record, error) {
	var records []record
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), len(data)+1)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var r record
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, r)
	}
	return records, scanner.Err()
}
