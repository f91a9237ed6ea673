package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bedlam520/hype-bridge/internal/biz/domain"
	"github.com/bedlam520/hype-bridge/internal/biz/repo"
	"github.com/bedlam520/hype-bridge/internal/biz/usecase"
)

// BroadcastConfig holds the schedule of the broadcast driver
type BroadcastConfig struct {
	Slots    []domain.Slot
	Location *time.Location
	Window   time.Duration // a slot stays due for this long after its occurrence
	Interval time.Duration // tick interval
}

// BroadcastDriver sends each slot's text to every opted-in chat once per day
type BroadcastDriver struct {
	store      *usecase.ChatStateStore
	content    *usecase.ContentStore
	sender     *usecase.Sender
	ledgerRepo repo.LedgerRepo
	rng        usecase.Random
	now        func() time.Time
	cfg        BroadcastConfig
	log        zerolog.Logger

	mu     sync.Mutex // guards ledger
	ledger *domain.BroadcastLedger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBroadcastDriver creates a new broadcast driver. ledgerRepo may be nil.
func NewBroadcastDriver(
	store *usecase.ChatStateStore,
	content *usecase.ContentStore,
	sender *usecase.Sender,
	ledgerRepo repo.LedgerRepo,
	rng usecase.Random,
	now func() time.Time,
	cfg BroadcastConfig,
	log zerolog.Logger,
) *BroadcastDriver {
	if now == nil {
		now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &BroadcastDriver{
		store:      store,
		content:    content,
		sender:     sender,
		ledgerRepo: ledgerRepo,
		rng:        rng,
		now:        now,
		cfg:        cfg,
		log:        log.With().Str("component", "broadcast").Logger(),
		ledger:     domain.NewBroadcastLedger(),
	}
}

// Load restores the ledger so a restart on the same day does not re-send
func (d *BroadcastDriver) Load(ctx context.Context) error {
	if d.ledgerRepo == nil {
		return nil
	}
	records, err := d.ledgerRepo.LoadLedger(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	d.mu.Lock()
	d.ledger = domain.NewBroadcastLedger(records...)
	d.mu.Unlock()
	d.log.Info().Int("records", len(records)).Msg("Restored broadcast ledger")
	return nil
}

// Start runs the driver in the background
func (d *BroadcastDriver) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		Supervise(ctx, d.log, "broadcast", func(ctx context.Context) {
			tickLoop(ctx, d.cfg.Interval, func(ctx context.Context) { d.Tick(ctx) })
		})
	}()
	d.log.Info().
		Strs("slots", domain.SlotNames(d.cfg.Slots)).
		Str("tz", d.cfg.Location.String()).
		Msg("Started")
}

// Stop stops the driver and waits for the current tick
func (d *BroadcastDriver) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	d.log.Info().Msg("Stopped")
}

// Tick sends every due slot to the chats that have not received it today
// and returns the number of messages delivered
func (d *BroadcastDriver) Tick(ctx context.Context) int {
	d.mu.Lock()
	now := d.now().In(d.cfg.Location)
	// a window that straddles midnight may still be due for yesterday's slot
	changed := d.ledger.Prune(
		now.Format(domain.DayLayout),
		now.Add(-d.cfg.Window).Format(domain.DayLayout),
	)

	tables := d.content.Tables()
	var outbox []domain.OutboundMessage
	for _, slot := range d.cfg.Slots {
		occ, ok := slot.DueAt(now, d.cfg.Window, d.cfg.Location)
		if !ok {
			continue
		}
		texts := tables.Scheduled[slot.Name]
		if len(texts) == 0 {
			continue
		}
		day := occ.In(d.cfg.Location).Format(domain.DayLayout)

		for _, id := range d.store.ChatIDs() {
			rec := domain.LedgerRecord{ChatID: id, Slot: slot.Name, Day: day}
			due := false
			d.store.Mutate(id, func(st *domain.ChatState) {
				if !st.Active || !st.ScheduledBroadcastEnabled || d.ledger.Has(rec) {
					return
				}
				d.ledger.Mark(rec)
				st.Touch(now)
				due = true
			})
			if !due {
				continue
			}
			changed = true
			text, _ := usecase.Pick(d.rng, texts)
			outbox = append(outbox, domain.OutboundMessage{ChatID: id, Text: text, Reason: usecase.ReasonBroadcast})
		}
	}

	var records []domain.LedgerRecord
	if changed {
		records = d.ledger.Records()
	}
	d.mu.Unlock()

	if changed && d.ledgerRepo != nil {
		if err := d.ledgerRepo.SaveLedger(ctx, records); err != nil {
			d.log.Warn().Err(err).Msg("Failed to persist broadcast ledger")
		}
	}

	sent := 0
	for _, msg := range outbox {
		if err := d.sender.Send(ctx, msg); err != nil {
			continue
		}
		sent++
	}
	if len(outbox) > 0 {
		d.log.Info().Int("sent", sent).Int("attempted", len(outbox)).Msg("Scheduled broadcast delivered")
	}
	return sent
}

// Records returns a copy of the current ledger
func (d *BroadcastDriver) Records() []domain.LedgerRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ledger.Records()
}
