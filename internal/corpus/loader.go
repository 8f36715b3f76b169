// Package corpus loads guidance documents (SOPs, data review plan excerpts,
// edit check specs, query-writing memos) from a directory of YAML files into
// the document store.
package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"triagecopilot/internal/model"
)

// documentFile is one corpus YAML file. A file holds either a single document
// mapping or a "documents" list, so a seed corpus can live in one file or be
// split per source.
type documentFile struct {
	model.DocumentCreate `yaml:",inline"`
	Documents            []model.DocumentCreate `yaml:"documents"`
}

// LoadDir reads every .yaml/.yml file in dir and returns the documents it
// defines, in lexical file order. Entries without content are rejected rather
// than silently seeded as empty corpus entries.
func LoadDir(dir string) ([]model.DocumentCreate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading corpus directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var docs []model.DocumentCreate
	for _, name := range names {
		path := filepath.Join(dir, name)
		fileDocs, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, fileDocs...)
	}
	return docs, nil
}

// LoadFile parses one corpus YAML file.
func LoadFile(path string) ([]model.DocumentCreate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading corpus file: %w", err)
	}

	var f documentFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}

	var docs []model.DocumentCreate
	if len(f.Documents) > 0 {
		docs = f.Documents
	} else if f.Title != "" || f.Content != "" {
		docs = []model.DocumentCreate{f.DocumentCreate}
	}

	for i, d := range docs {
		if strings.TrimSpace(d.Content) == "" {
			return nil, fmt.Errorf("%s: document %d (%q) has no content", filepath.Base(path), i, d.Title)
		}
	}
	return docs, nil
}
