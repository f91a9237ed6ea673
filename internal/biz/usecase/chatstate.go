package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/bedlam520/hype-bridge/internal/biz/domain"
	"github.com/bedlam520/hype-bridge/internal/biz/repo"
)

// MinIdleInterval is the smallest accepted idle interval override
const MinIdleInterval = time.Minute

const persistTimeout = 10 * time.Second

type chatEntry struct {
	mu    sync.Mutex
	state domain.ChatState
}

// ChatStateStore owns every chat's state. The per-chat mutex is the
// transaction unit; settings changes are persisted in the background.
type ChatStateStore struct {
	mu    sync.RWMutex
	chats map[domain.ChatID]*chatEntry

	repo repo.StateRepo
	now  func() time.Time
	log  zerolog.Logger

	persistMu sync.Mutex // serializes writes
	dirty     atomic.Uint64
	saved     uint64 // guarded by persistMu

	closeMu sync.Mutex // guards closed and pending.Add
	closed  bool
	pending sync.WaitGroup
}

// NewChatStateStore creates an empty store. r may be nil for a memory-only store.
func NewChatStateStore(r repo.StateRepo, now func() time.Time, log zerolog.Logger) *ChatStateStore {
	if now == nil {
		now = time.Now
	}
	return &ChatStateStore{
		chats: make(map[domain.ChatID]*chatEntry),
		repo:  r,
		now:   now,
		log:   log.With().Str("component", "chatstate").Logger(),
	}
}

// entry returns the chat's entry; created reports whether it was just added
func (s *ChatStateStore) entry(id domain.ChatID) (e *chatEntry, created bool) {
	s.mu.RLock()
	e, ok := s.chats[id]
	s.mu.RUnlock()
	if ok {
		return e, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.chats[id]; ok {
		return e, false
	}
	e = &chatEntry{state: domain.NewChatState(id)}
	s.chats[id] = e
	return e, true
}

// Get returns a copy of the chat's state, creating a default one if absent.
// A new chat is persisted so it survives a restart.
func (s *ChatStateStore) Get(id domain.ChatID) domain.ChatState {
	e, created := s.entry(id)
	e.mu.Lock()
	st := e.state
	e.mu.Unlock()

	if created {
		s.persistAsync()
	}
	return st
}

// Mutate applies fn atomically to the chat's state and returns the result.
// fn must not block or perform I/O.
func (s *ChatStateStore) Mutate(id domain.ChatID, fn func(*domain.ChatState)) domain.ChatState {
	e, created := s.entry(id)
	e.mu.Lock()
	before := e.state.ChatSettings
	fn(&e.state)
	after := e.state
	e.mu.Unlock()

	if created || after.ChatSettings != before {
		s.persistAsync()
	}
	return after
}

// ChatIDs returns every known chat id in sorted order
func (s *ChatStateStore) ChatIDs() []domain.ChatID {
	s.mu.RLock()
	ids := make([]domain.ChatID, 0, len(s.chats))
	for id := range s.chats {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Snapshot returns the persisted projection of every chat
func (s *ChatStateStore) Snapshot() *domain.StateSnapshot {
	s.mu.RLock()
	entries := make([]*chatEntry, 0, len(s.chats))
	for _, e := range s.chats {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	snap := domain.NewStateSnapshot()
	for _, e := range entries {
		e.mu.Lock()
		snap.Chats[e.state.ChatID] = e.state.ChatSettings
		e.mu.Unlock()
	}
	return snap
}

// Restore replaces the settings of every chat in snap. Runtime timestamps
// are left untouched and nothing is persisted.
func (s *ChatStateStore) Restore(snap *domain.StateSnapshot) {
	if snap == nil {
		return
	}
	for id, settings := range snap.Chats {
		e, _ := s.entry(id)
		e.mu.Lock()
		e.state.ChatSettings = settings
		e.mu.Unlock()
	}
}

// Load restores the persisted snapshot at startup
func (s *ChatStateStore) Load(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	snap, err := s.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	s.Restore(snap)
	s.log.Info().Int("chats", len(snap.Chats)).Msg("Restored chat state")
	return nil
}

func (s *ChatStateStore) persistAsync() {
	if s.repo == nil {
		return
	}
	s.dirty.Add(1)

	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		s.log.Debug().Msg("Store closed, change not persisted")
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.persist(ctx, false); err != nil {
			s.log.Warn().Err(err).Msg("Failed to persist chat state")
		}
	}()
}

// persist writes the latest snapshot. Unless force is set, it skips the
// write when a later writer already covered every pending change.
func (s *ChatStateStore) persist(ctx context.Context, force bool) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	gen := s.dirty.Load()
	if !force && gen <= s.saved {
		return nil
	}
	if err := s.repo.Save(ctx, s.Snapshot()); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	s.saved = gen
	return nil
}

// Flush synchronously writes the current snapshot
func (s *ChatStateStore) Flush(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	return s.persist(ctx, true)
}

// Close stops background writes, waits for the ones in flight and performs
// a final flush
func (s *ChatStateStore) Close(ctx context.Context) error {
	s.closeMu.Lock()
	s.closed = true
	s.closeMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.Flush(ctx)
}

// SetActive turns replies and broadcasts on or off for a chat
func (s *ChatStateStore) SetActive(id domain.ChatID, active bool) domain.ChatState {
	return s.Mutate(id, func(st *domain.ChatState) {
		st.Active = active
	})
}

// SetIdleInterval sets the chat's idle interval, raised to MinIdleInterval
func (s *ChatStateStore) SetIdleInterval(id domain.ChatID, d time.Duration) domain.ChatState {
	if d < MinIdleInterval {
		d = MinIdleInterval
	}
	return s.Mutate(id, func(st *domain.ChatState) {
		st.IdleInterval = domain.Some(d)
	})
}

// SetProbability sets one of the chat's probabilities, clamped to [0,1]
func (s *ChatStateStore) SetProbability(id domain.ChatID, kind domain.ProbabilityKind, v float64) (domain.ChatState, error) {
	var err error
	st := s.Mutate(id, func(st *domain.ChatState) {
		err = st.SetProbability(kind, v)
	})
	return st, err
}

// SetCooldown sets the chat's reply cooldown; negative values become zero
func (s *ChatStateStore) SetCooldown(id domain.ChatID, d time.Duration) domain.ChatState {
	if d < 0 {
		d = 0
	}
	return s.Mutate(id, func(st *domain.ChatState) {
		st.Cooldown = domain.Some(d)
	})
}

// CalmdownDelta is the default cooldown extension
const CalmdownDelta = 40 * time.Second

// ExtendCooldown pushes the cooldown to max(CooldownUntil, now) + delta
func (s *ChatStateStore) ExtendCooldown(id domain.ChatID, delta time.Duration) domain.ChatState {
	now := s.now()
	return s.Mutate(id, func(st *domain.ChatState) {
		base := st.CooldownUntil
		if base.Before(now) {
			base = now
		}
		st.ExtendCooldownUntil(base.Add(delta))
	})
}

// SetScheduledBroadcastEnabled opts a chat in or out of scheduled broadcasts
func (s *ChatStateStore) SetScheduledBroadcastEnabled(id domain.ChatID, enabled bool) domain.ChatState {
	return s.Mutate(id, func(st *domain.ChatState) {
		st.ScheduledBroadcastEnabled = enabled
	})
}

// ResetOverrides drops every per-chat override, keeping the active flags
func (s *ChatStateStore) ResetOverrides(id domain.ChatID) domain.ChatState {
	return s.Mutate(id, func(st *domain.ChatState) {
		st.ChatSettings = domain.ChatSettings{
			Active:                    st.Active,
			ScheduledBroadcastEnabled: st.ScheduledBroadcastEnabled,
		}
	})
}
