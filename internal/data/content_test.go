package data

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestFileContentRepo_KeywordsJSONKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "keywords.json", `{
		"zeta": ["Z1"],
		"@founder": ["F1", "F2"],
		"alpha": ["A1", 7, ""],
		"empty": [],
		"bad": "not a list"
	}`)
	r := NewFileContentRepo(ContentFiles{Keywords: path})

	table, err := r.LoadKeywords(context.Background())
	if err != nil {
		t.Fatalf("LoadKeywords failed: %v", err)
	}
	if len(table) != 3 {
		t.Fatalf("Expected 3 entries, got %d: %+v", len(table), table)
	}
	wantKeys := []string{"zeta", "@founder", "alpha"}
	for i, key := range wantKeys {
		if table[i].Key != key {
			t.Errorf("Entry %d: expected key %s, got %s", i, key, table[i].Key)
		}
	}
	if len(table[2].Responses) != 1 || table[2].Responses[0] != "A1" {
		t.Errorf("Expected non-string and empty responses dropped, got %v", table[2].Responses)
	}
}

func TestFileContentRepo_KeywordsYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "keywords.yaml", `
moon:
  - "To the moon"
  - "Moon mode"
"@dev":
  - "Ship it"
`)
	r := NewFileContentRepo(ContentFiles{Keywords: path})

	table, err := r.LoadKeywords(context.Background())
	if err != nil {
		t.Fatalf("LoadKeywords failed: %v", err)
	}
	if len(table) != 2 || table[0].Key != "moon" || table[1].Key != "@dev" {
		t.Fatalf("Unexpected table %+v", table)
	}
	if len(table[0].Responses) != 2 {
		t.Errorf("Expected 2 moon responses, got %v", table[0].Responses)
	}
}

func TestFileContentRepo_Errors(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	missing := NewFileContentRepo(ContentFiles{Keywords: filepath.Join(dir, "nope.json")})
	if _, err := missing.LoadKeywords(ctx); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected fs.ErrNotExist for missing file, got %v", err)
	}

	unset := NewFileContentRepo(ContentFiles{})
	if _, err := unset.LoadIdle(ctx); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected fs.ErrNotExist for unset path, got %v", err)
	}

	malformed := NewFileContentRepo(ContentFiles{
		Keywords: writeFile(t, dir, "kw.json", `{"moon": [`),
		General:  writeFile(t, dir, "general.json", `{"not": "a list"}`),
		Idle:     writeFile(t, dir, "idle.yaml", "key: value\n"),
	})
	if _, err := malformed.LoadKeywords(ctx); err == nil || errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected parse error for malformed keywords, got %v", err)
	}
	if _, err := malformed.LoadGeneral(ctx); err == nil {
		t.Error("Expected error for general file that is not a list")
	}
	if _, err := malformed.LoadIdle(ctx); err == nil {
		t.Error("Expected error for idle YAML that is not a sequence")
	}
}

func TestFileContentRepo_Lists(t *testing.T) {
	dir := t.TempDir()
	r := NewFileContentRepo(ContentFiles{
		General: writeFile(t, dir, "general.json", `["G1", "  ", "G2"]`),
		Idle:    writeFile(t, dir, "idle.yml", "- I1\n- I2\n- I3\n"),
	})
	ctx := context.Background()

	general, err := r.LoadGeneral(ctx)
	if err != nil {
		t.Fatalf("LoadGeneral failed: %v", err)
	}
	if len(general) != 2 || general[1] != "G2" {
		t.Errorf("Unexpected general replies %v", general)
	}

	idle, err := r.LoadIdle(ctx)
	if err != nil {
		t.Fatalf("LoadIdle failed: %v", err)
	}
	if len(idle) != 3 {
		t.Errorf("Expected 3 idle prompts, got %v", idle)
	}
}

func TestFileContentRepo_Scheduled(t *testing.T) {
	dir := t.TempDir()
	r := NewFileContentRepo(ContentFiles{
		Scheduled: writeFile(t, dir, "scheduled.json", `{"gm": ["GM1", "GM2"], "gn": ["GN1"], "extra": ["X"]}`),
	})

	got, err := r.LoadScheduled(context.Background(), []string{"gm", "noon", "gn"})
	if err != nil {
		t.Fatalf("LoadScheduled failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected exactly the configured slots, got %v", got)
	}
	if len(got["gm"]) != 2 || len(got["gn"]) != 1 {
		t.Errorf("Unexpected texts %v", got)
	}
	if got["noon"] == nil || len(got["noon"]) != 0 {
		t.Errorf("Expected empty list for noon, got %#v", got["noon"])
	}
	if _, ok := got["extra"]; ok {
		t.Error("Unknown slot should be ignored")
	}
}
