// Package ingest loads department documents from disk and splits them into
// overlapping chunks suitable for indexing.
package ingest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/finsolve/rbac-chat/common/logger"
	"github.com/finsolve/rbac-chat/schema"
)

// Options controls chunking behavior.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = 800
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		o.ChunkOverlap = 150
	}
	return o
}

// LoadDepartments walks <root>/<department>/* and returns one document per
// chunk. Unsupported file types are skipped with a warning; a missing root
// yields an empty corpus, not an error.
func LoadDepartments(root string, opts Options) ([]schema.Document, error) {
	opts = opts.withDefaults()

	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warnf("ingest: data root %s does not exist, skipping ingestion", root)
			return nil, nil
		}
		return nil, fmt.Errorf("stat data root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data root %s is not a directory", root)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read data root: %w", err)
	}

	var docs []schema.Document
	for _, dir := range entries {
		if !dir.IsDir() {
			continue
		}
		department := strings.ToLower(dir.Name())
		files, err := collectFiles(filepath.Join(root, dir.Name()))
		if err != nil {
			return nil, err
		}
		for _, path := range files {
			text, err := readFile(path)
			if err != nil {
				logger.Warnf("ingest: failed to read %s: %v", path, err)
				continue
			}
			source := filepath.ToSlash(filepath.Join(department, filepath.Base(path)))
			for i, chunk := range ChunkText(text, opts.ChunkSize, opts.ChunkOverlap) {
				docs = append(docs, schema.Document{
					ID:         fmt.Sprintf("%s-%d", source, i),
					Content:    chunk,
					Source:     source,
					Department: department,
					ChunkIndex: i,
				})
			}
		}
	}
	logger.Infof("ingest: loaded %d chunks from %s", len(docs), root)
	return docs, nil
}

func collectFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".markdown", ".txt", ".csv":
			files = append(files, path)
		default:
			logger.Warnf("ingest: unsupported file type for %s, skipping", path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

func readFile(path string) (string, error) {
	if strings.ToLower(filepath.Ext(path)) == ".csv" {
		return readCSV(path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// readCSV flattens a CSV file into pipe-separated lines so tabular documents
// stay searchable as text.
func readCSV(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, strings.Join(row, " | "))
	}
	return strings.Join(lines, "\n"), nil
}

// ChunkText splits text into overlapping segments. Whitespace is collapsed
// first so chunk boundaries do not depend on the source formatting. Sizes
// are measured in runes so a boundary never lands inside a UTF-8 sequence.
func ChunkText(text string, chunkSize, overlap int) []string {
	sanitized := []rune(strings.Join(strings.Fields(text), " "))
	if len(sanitized) == 0 {
		return nil
	}
	if len(sanitized) <= chunkSize {
		return []string{string(sanitized)}
	}

	var chunks []string
	start := 0
	for start < len(sanitized) {
		end := start + chunkSize
		if end > len(sanitized) {
			end = len(sanitized)
		}
		chunk := strings.TrimSpace(string(sanitized[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(sanitized) {
			break
		}
		start = end - overlap
		if start < 0 {
			start = 0
		}
	}
	return chunks
}
