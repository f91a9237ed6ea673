package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bedlam520/hype-bridge/internal/biz/domain"
	"github.com/bedlam520/hype-bridge/internal/biz/usecase"
)

// IdleMonitor nudges chats that have been silent longer than their idle interval
type IdleMonitor struct {
	store    *usecase.ChatStateStore
	content  *usecase.ContentStore
	defaults *usecase.Defaults
	sender   *usecase.Sender
	rng      usecase.Random
	now      func() time.Time
	log      zerolog.Logger

	interval time.Duration
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewIdleMonitor creates a new idle monitor
func NewIdleMonitor(
	store *usecase.ChatStateStore,
	content *usecase.ContentStore,
	defaults *usecase.Defaults,
	sender *usecase.Sender,
	rng usecase.Random,
	now func() time.Time,
	interval time.Duration,
	log zerolog.Logger,
) *IdleMonitor {
	if now == nil {
		now = time.Now
	}
	return &IdleMonitor{
		store:    store,
		content:  content,
		defaults: defaults,
		sender:   sender,
		rng:      rng,
		now:      now,
		interval: interval,
		log:      log.With().Str("component", "idle").Logger(),
	}
}

// Start runs the monitor in the background
func (m *IdleMonitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		Supervise(ctx, m.log, "idle", func(ctx context.Context) {
			tickLoop(ctx, m.interval, func(ctx context.Context) { m.Tick(ctx) })
		})
	}()
	m.log.Info().Dur("interval", m.interval).Msg("Started")
}

// Stop stops the monitor and waits for the current tick
func (m *IdleMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.log.Info().Msg("Stopped")
}

// Tick checks every chat once and returns the number of prompts delivered
func (m *IdleMonitor) Tick(ctx context.Context) int {
	now := m.now()
	tables := m.content.Tables()
	sent := 0

	for _, id := range m.store.ChatIDs() {
		due := false
		m.store.Mutate(id, func(st *domain.ChatState) {
			if !st.Active {
				return
			}
			threshold := m.defaults.For(st.ChatSettings).IdleInterval
			if threshold <= 0 || !st.IsIdle(now, threshold) {
				return
			}
			st.Touch(now)
			due = true
		})
		if !due {
			continue
		}

		text, ok := usecase.Pick(m.rng, tables.Idle)
		if !ok {
			continue
		}
		msg := domain.OutboundMessage{ChatID: id, Text: text, Reason: usecase.ReasonIdle}
		if err := m.sender.Send(ctx, msg); err != nil {
			continue
		}
		sent++
	}
	if sent > 0 {
		m.log.Info().Int("sent", sent).Msg("Idle prompts delivered")
	}
	return sent
}
