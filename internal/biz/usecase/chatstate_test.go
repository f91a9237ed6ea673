package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/bedlam520/hype-bridge/internal/biz/domain"
)

func newTestStore(r *mockStateRepo, clock *fakeClock) *ChatStateStore {
	if clock == nil {
		clock = newFakeClock(epoch)
	}
	if r == nil {
		return NewChatStateStore(nil, clock.Now, zerolog.Nop())
	}
	return NewChatStateStore(r, clock.Now, zerolog.Nop())
}

func TestChatStateStore_GetCreatesDefault(t *testing.T) {
	s := newTestStore(nil, nil)
	st := s.Get("42")
	if st.ChatID != "42" || !st.Active || !st.ScheduledBroadcastEnabled {
		t.Errorf("unexpected default state %+v", st)
	}
	if ids := s.ChatIDs(); len(ids) != 1 || ids[0] != "42" {
		t.Errorf("ChatIDs = %v", ids)
	}
}

func TestChatStateStore_ChatIDsSorted(t *testing.T) {
	s := newTestStore(nil, nil)
	for _, id := range []domain.ChatID{"c", "a", "b"} {
		s.Get(id)
	}
	ids := s.ChatIDs()
	if ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Errorf("ChatIDs not sorted: %v", ids)
	}
}

func TestChatStateStore_PersistsOnlySettingsChanges(t *testing.T) {
	r := &mockStateRepo{}
	s := newTestStore(r, nil)

	s.Get("1")
	s.pending.Wait()
	base := r.Saves()

	s.Mutate("1", func(st *domain.ChatState) { st.Touch(epoch) })
	s.pending.Wait()
	if r.Saves() != base {
		t.Errorf("activity-only change persisted %d times", r.Saves()-base)
	}

	s.SetActive("1", false)
	s.pending.Wait()
	if r.Saves() != base+1 {
		t.Fatalf("expected 1 save, got %d", r.Saves()-base)
	}
	if r.snap.Chats["1"].Active {
		t.Error("persisted snapshot should have Active=false")
	}
}

func TestChatStateStore_PersistsNewChat(t *testing.T) {
	r := &mockStateRepo{}
	s := newTestStore(r, nil)

	s.Mutate("1", func(st *domain.ChatState) { st.Touch(epoch) })
	s.pending.Wait()
	if r.Saves() != 1 {
		t.Fatalf("expected the new chat to be saved once, got %d", r.Saves())
	}
	if _, ok := r.Snapshot().Chats["1"]; !ok {
		t.Error("new chat missing from persisted snapshot")
	}

	s.Get("2")
	s.pending.Wait()
	if _, ok := r.Snapshot().Chats["2"]; !ok {
		t.Error("chat created by Get missing from persisted snapshot")
	}
}

func TestChatStateStore_RestoreDoesNotPersist(t *testing.T) {
	snap := domain.NewStateSnapshot()
	snap.Chats["1"] = domain.DefaultChatSettings()
	r := &mockStateRepo{}
	s := newTestStore(r, nil)

	s.Restore(snap)
	s.pending.Wait()
	if r.Saves() != 0 {
		t.Errorf("restore persisted %d times", r.Saves())
	}
}

func TestChatStateStore_ChangesAfterClose(t *testing.T) {
	r := &mockStateRepo{}
	s := newTestStore(r, nil)
	s.SetActive("1", false)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.SetCooldown(domain.ChatID(fmt.Sprintf("c%d", i)), time.Duration(i)*time.Second)
		}(i)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	wg.Wait()
	saves := r.Saves()

	s.SetActive("late", false)
	s.pending.Wait()
	if r.Saves() != saves {
		t.Errorf("change after Close started a write")
	}
	if s.Get("late").Active {
		t.Error("memory state must still be updated after Close")
	}
}

func TestChatStateStore_PersistFailureKeepsMemoryState(t *testing.T) {
	r := &mockStateRepo{err: errBoom}
	s := newTestStore(r, nil)

	s.SetActive("1", false)
	s.pending.Wait()
	if s.Get("1").Active {
		t.Error("in-memory state must stay authoritative after a failed write")
	}
}

func TestChatStateStore_AdminOps(t *testing.T) {
	s := newTestStore(nil, nil)

	st := s.SetIdleInterval("1", 10*time.Second)
	if st.IdleInterval.Value != MinIdleInterval {
		t.Errorf("idle interval = %v, want %v", st.IdleInterval.Value, MinIdleInterval)
	}

	st, err := s.SetProbability("1", domain.ProbabilityMention, 1.7)
	if err != nil {
		t.Fatal(err)
	}
	if st.MentionProb.Value != 1 {
		t.Errorf("mention prob = %v, want 1", st.MentionProb.Value)
	}
	if _, err := s.SetProbability("1", "bogus", 0.5); err == nil {
		t.Error("expected error for unknown kind")
	}

	st = s.SetCooldown("1", -time.Second)
	if !st.Cooldown.Valid || st.Cooldown.Value != 0 {
		t.Errorf("cooldown = %+v", st.Cooldown)
	}

	st = s.SetScheduledBroadcastEnabled("1", false)
	if st.ScheduledBroadcastEnabled {
		t.Error("broadcasts should be disabled")
	}

	st = s.ResetOverrides("1")
	if st.IdleInterval.Valid || st.MentionProb.Valid || st.Cooldown.Valid {
		t.Errorf("overrides not cleared: %+v", st.ChatSettings)
	}
	if st.ScheduledBroadcastEnabled {
		t.Error("ResetOverrides must keep the broadcast flag")
	}
}

func TestChatStateStore_ExtendCooldown(t *testing.T) {
	clock := newFakeClock(epoch)
	s := newTestStore(nil, clock)

	st := s.ExtendCooldown("1", 40*time.Second)
	if !st.CooldownUntil.Equal(epoch.Add(40 * time.Second)) {
		t.Errorf("CooldownUntil = %v", st.CooldownUntil)
	}

	// stacks on an active cooldown
	clock.Set(epoch.Add(10 * time.Second))
	st = s.ExtendCooldown("1", 40*time.Second)
	if !st.CooldownUntil.Equal(epoch.Add(80 * time.Second)) {
		t.Errorf("CooldownUntil = %v, want +80s", st.CooldownUntil)
	}
}

func TestChatStateStore_LoadAndFlush(t *testing.T) {
	snap := domain.NewStateSnapshot()
	settings := domain.DefaultChatSettings()
	settings.Active = false
	settings.KeywordProb = domain.Some(domain.Probability(0.5))
	snap.Chats["-100"] = settings

	r := &mockStateRepo{snap: snap}
	s := newTestStore(r, nil)
	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	st := s.Get("-100")
	if st.Active || st.KeywordProb.Value != 0.5 {
		t.Errorf("state not restored: %+v", st)
	}
	if !st.LastActivityAt.IsZero() {
		t.Error("restored chats must not be idle-armed")
	}

	if err := s.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if r.Saves() != 1 {
		t.Errorf("Close should flush once, got %d saves", r.Saves())
	}
}

func TestChatStateStore_ConcurrentMutate(t *testing.T) {
	s := newTestStore(nil, nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Mutate("1", func(st *domain.ChatState) {
				st.LastActivityAt = st.LastActivityAt.Add(time.Second)
			})
		}()
	}
	wg.Wait()
	if got := s.Get("1").LastActivityAt; !got.Equal(time.Time{}.Add(50 * time.Second)) {
		t.Errorf("lost updates: %v", got)
	}
}
