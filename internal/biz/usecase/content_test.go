package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/bedlam520/hype-bridge/internal/biz/domain"
)

var testSlots = []string{"gm", "noon", "gn"}

func TestContentStore_StartsWithDefaults(t *testing.T) {
	s := NewContentStore(&mockContentRepo{}, testSlots, zerolog.Nop())
	tables := s.Tables()
	if len(tables.Keywords) != len(domain.DefaultKeywords()) {
		t.Errorf("expected default keywords, got %d", len(tables.Keywords))
	}
	if len(tables.Scheduled) != 3 {
		t.Errorf("expected 3 scheduled slots, got %v", tables.Scheduled)
	}
}

func TestContentStore_ReloadKeywords(t *testing.T) {
	r := &mockContentRepo{keywords: domain.NewKeywordTable(domain.KeywordEntry{Key: "moon", Responses: []string{"M1"}})}
	s := NewContentStore(r, testSlots, zerolog.Nop())

	tables, err := s.ReloadKeywords(context.Background())
	if err != nil {
		t.Fatalf("ReloadKeywords: %v", err)
	}
	if len(tables.Keywords) != 1 || tables.Keywords[0].Key != "moon" {
		t.Errorf("unexpected table %+v", tables.Keywords)
	}
	if s.Tables() != tables {
		t.Error("reloaded tables were not published")
	}
}

func TestContentStore_ReloadKeywords_MalformedFallsBack(t *testing.T) {
	r := &mockContentRepo{keywordsErr: errors.New("bad json")}
	s := NewContentStore(r, testSlots, zerolog.Nop())

	tables, err := s.ReloadKeywords(context.Background())
	if err == nil {
		t.Error("expected reload error to be reported")
	}
	if len(tables.Keywords) != len(domain.DefaultKeywords()) {
		t.Errorf("expected defaults after failure, got %d entries", len(tables.Keywords))
	}
}

func TestContentStore_ReloadKeywords_MissingFileIsSilent(t *testing.T) {
	r := &mockContentRepo{keywordsErr: fmt.Errorf("open keywords.json: %w", fs.ErrNotExist)}
	s := NewContentStore(r, testSlots, zerolog.Nop())

	if _, err := s.ReloadKeywords(context.Background()); err != nil {
		t.Errorf("missing file should not be an error, got %v", err)
	}
}

func TestContentStore_ReloadKeywords_EmptyUsesDefaults(t *testing.T) {
	s := NewContentStore(&mockContentRepo{keywords: domain.KeywordTable{}}, testSlots, zerolog.Nop())
	tables, err := s.ReloadKeywords(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(tables.Keywords) == 0 {
		t.Error("empty keyword file should fall back to defaults")
	}
}

func TestContentStore_ReloadScheduled_FillsMissingSlots(t *testing.T) {
	r := &mockContentRepo{scheduled: map[string][]string{"gm": {"GM fam"}, "other": {"x"}}}
	s := NewContentStore(r, testSlots, zerolog.Nop())

	tables, err := s.ReloadScheduled(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(tables.Scheduled["gm"]) != 1 {
		t.Errorf("gm = %v", tables.Scheduled["gm"])
	}
	if list, ok := tables.Scheduled["noon"]; !ok || len(list) != 0 {
		t.Errorf("noon should be present and empty, got %v (%v)", list, ok)
	}
	if _, ok := tables.Scheduled["other"]; ok {
		t.Error("unknown slots must be ignored")
	}
}

func TestContentStore_ReloadAll_JoinsErrors(t *testing.T) {
	r := &mockContentRepo{err: errBoom}
	s := NewContentStore(r, testSlots, zerolog.Nop())
	err := s.ReloadAll(context.Background())
	if !errors.Is(err, errBoom) {
		t.Errorf("expected joined errBoom, got %v", err)
	}
	tables := s.Tables()
	if len(tables.Idle) == 0 || len(tables.General) == 0 {
		t.Error("defaults should be published after failed reload")
	}
}

func TestContentStore_ReloadIsCopyOnWrite(t *testing.T) {
	r := &mockContentRepo{idle: []string{"new idle"}}
	s := NewContentStore(r, testSlots, zerolog.Nop())

	before := s.Tables()
	oldIdle := before.Idle[0]
	if _, err := s.ReloadIdle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if before.Idle[0] != oldIdle {
		t.Error("published tables were modified in place")
	}
	if s.Tables().Idle[0] != "new idle" {
		t.Errorf("new tables not visible: %v", s.Tables().Idle)
	}
}

func TestContentStore_ConcurrentReadersSeeConsistentTables(t *testing.T) {
	tableA := domain.NewKeywordTable(
		domain.KeywordEntry{Key: "a1", Responses: []string{"A"}},
		domain.KeywordEntry{Key: "a2", Responses: []string{"A"}},
	)
	tableB := domain.NewKeywordTable(
		domain.KeywordEntry{Key: "b1", Responses: []string{"B"}},
		domain.KeywordEntry{Key: "b2", Responses: []string{"B"}},
	)
	repoA := &mockContentRepo{keywords: tableA}
	repoB := &mockContentRepo{keywords: tableB}
	s := NewContentStore(repoA, testSlots, zerolog.Nop())
	if _, err := s.ReloadKeywords(context.Background()); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	mixed := make(chan string, 1)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				kw := s.Tables().Keywords
				first := kw[0].Responses[0]
				for _, e := range kw {
					if e.Responses[0] != first {
						select {
						case mixed <- e.Key:
						default:
						}
						return
					}
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		s.repo = repoB
		if i%2 == 0 {
			s.repo = repoA
		}
		if _, err := s.ReloadKeywords(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	close(stop)
	wg.Wait()

	select {
	case key := <-mixed:
		t.Errorf("reader observed a mixed table at key %s", key)
	default:
	}
}
