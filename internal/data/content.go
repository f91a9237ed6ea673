package data

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/bedlam520/hype-bridge/internal/biz/domain"
	"github.com/bedlam520/hype-bridge/internal/biz/repo"
)

// ContentFiles names the content sources; an empty path means "not configured"
type ContentFiles struct {
	Keywords  string
	General   string
	Idle      string
	Scheduled string
}

// fileContentRepo reads content tables from JSON or YAML files.
// Files are re-read on every call so edits are picked up by reloads.
type fileContentRepo struct {
	files ContentFiles
}

// NewFileContentRepo creates a content repository over the given files
func NewFileContentRepo(files ContentFiles) repo.ContentRepo {
	return &fileContentRepo{files: files}
}

// LoadKeywords reads an object of key -> [responses], keeping file order
func (r *fileContentRepo) LoadKeywords(ctx context.Context) (domain.KeywordTable, error) {
	raw, yamlFile, err := readContent(r.files.Keywords)
	if err != nil {
		return nil, err
	}

	var entries []domain.KeywordEntry
	if yamlFile {
		root, err := yamlRoot(raw, yaml.MappingNode)
		if err != nil {
			return nil, fmt.Errorf("invalid keywords file %s: %w", r.files.Keywords, err)
		}
		for i := 0; i+1 < len(root.Content); i += 2 {
			key, val := root.Content[i], root.Content[i+1]
			entries = append(entries, domain.KeywordEntry{Key: key.Value, Responses: yamlStrings(val)})
		}
	} else {
		doc, err := jsonRoot(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid keywords file %s: %w", r.files.Keywords, err)
		}
		if !doc.IsObject() {
			return nil, fmt.Errorf("invalid keywords file %s: expected an object", r.files.Keywords)
		}
		doc.ForEach(func(k, v gjson.Result) bool {
			entries = append(entries, domain.KeywordEntry{Key: k.String(), Responses: jsonStrings(v)})
			return true
		})
	}
	return domain.NewKeywordTable(entries...), nil
}

// LoadGeneral reads a list of general replies
func (r *fileContentRepo) LoadGeneral(ctx context.Context) ([]string, error) {
	return loadList(r.files.General)
}

// LoadIdle reads a list of idle prompts
func (r *fileContentRepo) LoadIdle(ctx context.Context) ([]string, error) {
	return loadList(r.files.Idle)
}

// LoadScheduled reads an object of slot -> [texts]. Unknown slots are ignored.
func (r *fileContentRepo) LoadScheduled(ctx context.Context, slots []string) (map[string][]string, error) {
	raw, yamlFile, err := readContent(r.files.Scheduled)
	if err != nil {
		return nil, err
	}

	found := make(map[string][]string)
	if yamlFile {
		root, err := yamlRoot(raw, yaml.MappingNode)
		if err != nil {
			return nil, fmt.Errorf("invalid scheduled file %s: %w", r.files.Scheduled, err)
		}
		for i := 0; i+1 < len(root.Content); i += 2 {
			found[root.Content[i].Value] = yamlStrings(root.Content[i+1])
		}
	} else {
		doc, err := jsonRoot(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid scheduled file %s: %w", r.files.Scheduled, err)
		}
		if !doc.IsObject() {
			return nil, fmt.Errorf("invalid scheduled file %s: expected an object", r.files.Scheduled)
		}
		doc.ForEach(func(k, v gjson.Result) bool {
			found[k.String()] = jsonStrings(v)
			return true
		})
	}

	out := make(map[string][]string, len(slots))
	for _, name := range slots {
		out[name] = found[name]
		if out[name] == nil {
			out[name] = []string{}
		}
	}
	return out, nil
}

func loadList(path string) ([]string, error) {
	raw, yamlFile, err := readContent(path)
	if err != nil {
		return nil, err
	}
	if yamlFile {
		root, err := yamlRoot(raw, yaml.SequenceNode)
		if err != nil {
			return nil, fmt.Errorf("invalid list file %s: %w", path, err)
		}
		return yamlStrings(root), nil
	}
	doc, err := jsonRoot(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid list file %s: %w", path, err)
	}
	if !doc.IsArray() {
		return nil, fmt.Errorf("invalid list file %s: expected an array", path)
	}
	return jsonStrings(doc), nil
}

// readContent reads path and reports whether it is YAML by extension
func readContent(path string) ([]byte, bool, error) {
	if path == "" {
		return nil, false, fs.ErrNotExist
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	return raw, ext == ".yaml" || ext == ".yml", nil
}

func jsonRoot(raw []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, fmt.Errorf("malformed JSON")
	}
	return gjson.ParseBytes(raw), nil
}

// jsonStrings returns the non-empty string elements of an array
func jsonStrings(v gjson.Result) []string {
	if !v.IsArray() {
		return nil
	}
	var out []string
	for _, item := range v.Array() {
		if item.Type == gjson.String && strings.TrimSpace(item.Str) != "" {
			out = append(out, item.Str)
		}
	}
	return out
}

func yamlRoot(raw []byte, kind yaml.Kind) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	root := doc.Content[0]
	if root.Kind != kind {
		return nil, fmt.Errorf("unexpected YAML node kind %d", root.Kind)
	}
	return root, nil
}

// yamlStrings returns the non-empty scalar elements of a sequence
func yamlStrings(n *yaml.Node) []string {
	if n.Kind != yaml.SequenceNode {
		return nil
	}
	var out []string
	for _, item := range n.Content {
		if item.Kind == yaml.ScalarNode && strings.TrimSpace(item.Value) != "" {
			out = append(out, item.Value)
		}
	}
	return out
}
