package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bedlam520/hype-bridge/internal/biz/domain"
	"github.com/bedlam520/hype-bridge/internal/biz/usecase"
)

// Mock implementations

type sentMessage struct {
	ChatID domain.ChatID
	Text   string
}

type mockMessageRepo struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[domain.ChatID]bool
}

func (m *mockMessageRepo) SendText(ctx context.Context, chatID domain.ChatID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[chatID] {
		return errors.New("send failed")
	}
	m.sent = append(m.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (m *mockMessageRepo) Sent() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

func (m *mockMessageRepo) SentTo(chatID domain.ChatID) int {
	n := 0
	for _, s := range m.Sent() {
		if s.ChatID == chatID {
			n++
		}
	}
	return n
}

type mockContentRepo struct {
	keywords  domain.KeywordTable
	general   []string
	idle      []string
	scheduled map[string][]string
	err       error
}

func (m *mockContentRepo) LoadKeywords(ctx context.Context) (domain.KeywordTable, error) {
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

type mockLedgerRepo struct {
	mu      sync.Mutex
	records []domain.LedgerRecord
	saves   int
}

func (m *mockLedgerRepo) LoadLedger(ctx context.Context) ([]domain.LedgerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records, nil
}

func (m *mockLedgerRepo) SaveLedger(ctx context.Context, records []domain.LedgerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = records
	m.saves++
	return nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
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

var epoch = time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

// env wires the usecases the services depend on
type env struct {
	clock    *fakeClock
	msgs     *mockMessageRepo
	store    *usecase.ChatStateStore
	content  *usecase.ContentStore
	defaults *usecase.Defaults
	sender   *usecase.Sender
	rng      usecase.Random
	replyUC  *usecase.ReplyUsecase
}

func newEnv(contentRepo *mockContentRepo, d domain.EngineDefaults) *env {
	clock := &fakeClock{t: epoch}
	msgs := &mockMessageRepo{failFor: map[domain.ChatID]bool{}}
	store := usecase.NewChatStateStore(nil, clock.Now, zerolog.Nop())
	content := usecase.NewContentStore(contentRepo, []string{"gm", "noon", "gn"}, zerolog.Nop())
	_ = content.ReloadAll(context.Background())
	defaults := usecase.NewDefaults(d, "moonbot")
	sender := usecase.NewSender(msgs, time.Second, zerolog.Nop())
	rng := usecase.NewRandom(1)
	replyUC := usecase.NewReplyUsecase(store, content, defaults, sender, rng, clock.Now, zerolog.Nop())
	return &env{
		clock:    clock,
		msgs:     msgs,
		store:    store,
		content:  content,
		defaults: defaults,
		sender:   sender,
		rng:      rng,
		replyUC:  replyUC,
	}
}

func defaultContent() *mockContentRepo {
	return &mockContentRepo{
		keywords:  domain.NewKeywordTable(domain.KeywordEntry{Key: "moon", Responses: []string{"M1"}}),
		general:   []string{"G1"},
		idle:      []string{"I1"},
		scheduled: map[string][]string{"gm": {"GM1"}, "noon": {"NOON1"}, "gn": {"GN1"}},
	}
}
