package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/bedlam520/hype-bridge/internal/biz/domain"
	"github.com/bedlam520/hype-bridge/internal/biz/repo"
)

// ContentStore holds the published content tables.
// Readers take one snapshot per decision; reloads publish a modified copy.
type ContentStore struct {
	repo   repo.ContentRepo
	slots  []string
	tables atomic.Pointer[domain.ContentTables]
	mu     sync.Mutex // serializes reloads
	log    zerolog.Logger
}

// NewContentStore creates a store that starts with built-in defaults
func NewContentStore(r repo.ContentRepo, slots []string, log zerolog.Logger) *ContentStore {
	s := &ContentStore{
		repo:  r,
		slots: slots,
		log:   log.With().Str("component", "content").Logger(),
	}
	s.tables.Store(&domain.ContentTables{
		Keywords:  domain.DefaultKeywords(),
		General:   domain.DefaultGeneralReplies(),
		Idle:      domain.DefaultIdlePrompts(),
		Scheduled: domain.DefaultScheduledTexts(slots),
	})
	return s
}

// Tables returns the current snapshot. Callers must not modify it.
func (s *ContentStore) Tables() *domain.ContentTables {
	return s.tables.Load()
}

// SlotNames returns the configured broadcast slot names
func (s *ContentStore) SlotNames() []string {
	return s.slots
}

// fallback reports whether err should be surfaced to the caller.
// A missing source is not an error; defaults are used silently.
func (s *ContentStore) fallback(what string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		s.log.Info().Str("content", what).Msg("No content file, using defaults")
		return nil
	}
	s.log.Warn().Err(err).Str("content", what).Msg("Failed to load content, using defaults")
	return fmt.Errorf("load %s: %w", what, err)
}

func (s *ContentStore) publish(update func(cur domain.ContentTables) *domain.ContentTables) *domain.ContentTables {
	next := update(*s.tables.Load())
	s.tables.Store(next)
	return next
}

// ReloadKeywords reloads the keyword table. On failure the defaults are
// published and the error is returned.
func (s *ContentStore) ReloadKeywords(ctx context.Context) (*domain.ContentTables, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.repo.LoadKeywords(ctx)
	if err != nil {
		err = s.fallback("keywords", err)
		table = domain.DefaultKeywords()
	} else if len(table) == 0 {
		s.log.Warn().Msg("Keyword file has no usable entries, using defaults")
		table = domain.DefaultKeywords()
	}
	return s.publish(func(cur domain.ContentTables) *domain.ContentTables {
		return cur.WithKeywords(table)
	}), err
}

// ReloadGeneral reloads the general reply list
func (s *ContentStore) ReloadGeneral(ctx context.Context) (*domain.ContentTables, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.repo.LoadGeneral(ctx)
	if err != nil {
		err = s.fallback("general", err)
		list = domain.DefaultGeneralReplies()
	}
	return s.publish(func(cur domain.ContentTables) *domain.ContentTables {
		return cur.WithGeneral(list)
	}), err
}

// ReloadIdle reloads the idle prompt list
func (s *ContentStore) ReloadIdle(ctx context.Context) (*domain.ContentTables, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.repo.LoadIdle(ctx)
	if err != nil {
		err = s.fallback("idle", err)
		list = domain.DefaultIdlePrompts()
	} else if len(list) == 0 {
		s.log.Warn().Msg("Idle file has no prompts, using defaults")
		list = domain.DefaultIdlePrompts()
	}
	return s.publish(func(cur domain.ContentTables) *domain.ContentTables {
		return cur.WithIdle(list)
	}), err
}

// ReloadScheduled reloads the scheduled broadcast texts. Every configured
// slot is present in the result, possibly with an empty list.
func (s *ContentStore) ReloadScheduled(ctx context.Context) (*domain.ContentTables, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, err := s.repo.LoadScheduled(ctx, s.slots)
	if err != nil {
		err = s.fallback("scheduled", err)
		loaded = nil
	}
	texts := domain.DefaultScheduledTexts(s.slots)
	for name, list := range loaded {
		if _, ok := texts[name]; ok && list != nil {
			texts[name] = list
		}
	}
	return s.publish(func(cur domain.ContentTables) *domain.ContentTables {
		return cur.WithScheduled(texts)
	}), err
}

// ReloadAll reloads every table and joins the errors
func (s *ContentStore) ReloadAll(ctx context.Context) error {
	var errs []error
	for _, reload := range []func(context.Context) (*domain.ContentTables, error){
		s.ReloadKeywords,
		s.ReloadGeneral,
		s.ReloadIdle,
		s.ReloadScheduled,
	} {
		if _, err := reload(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
