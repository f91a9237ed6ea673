package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bedlam520/hype-bridge/internal/biz/domain"
)

// Mock implementations

type sentMessage struct {
	ChatID domain.ChatID
	Text   string
}

type mockMessageRepo struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (m *mockMessageRepo) SendText(ctx context.Context, chatID domain.ChatID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (m *mockMessageRepo) Sent() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

type mockStateRepo struct {
	mu    sync.Mutex
	snap  *domain.StateSnapshot
	saves int
	err   error
}

func (m *mockStateRepo) Load(ctx context.Context) (*domain.StateSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return domain.NewStateSnapshot(), nil
	}
	return m.snap, nil
}

func (m *mockStateRepo) Save(ctx context.Context, snap *domain.StateSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.err != nil {
		return m.err
	}
	m.snap = snap
	return nil
}

func (m *mockStateRepo) Close() error {
	return nil
}

func (m *mockStateRepo) Snapshot() *domain.StateSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return domain.NewStateSnapshot()
	}
	return m.snap
}

func (m *mockStateRepo) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

type mockContentRepo struct {
	keywords    domain.KeywordTable
	general     []string
	idle        []string
	scheduled   map[string][]string
	err         error
	keywordsErr error
}

func (m *mockContentRepo) LoadKeywords(ctx context.Context) (domain.KeywordTable, error) {
	if m.keywordsErr != nil {
		return nil, m.keywordsErr
	}
	return m.keywords, m.err
}

func (m *mockContentRepo) LoadGeneral(ctx context.Context) ([]string, error) {
	return m.general, m.err
}

func (m *mockContentRepo) LoadIdle(ctx context.Context) ([]string, error) {
	return m.idle, m.err
}

func (m *mockContentRepo) LoadScheduled(ctx context.Context, slots []string) (map[string][]string, error) {
	return m.scheduled, m.err
}

// scriptedRand returns queued draws, then 0.99; IntN always picks the first element
type scriptedRand struct {
	mu    sync.Mutex
	draws []float64
}

func (r *scriptedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.draws) == 0 {
		return 0.99
	}
	v := r.draws[0]
	r.draws = r.draws[1:]
	return v
}

func (r *scriptedRand) IntN(n int) int {
	return 0
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

var errBoom = errors.New("boom")

var epoch = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
