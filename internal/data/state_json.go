package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/bedlam520/hype-bridge/internal/biz/domain"
)

// stateFile is the on-disk layout of the JSON backend
type stateFile struct {
	ActiveChats             map[string]bool    `json:"active_chats"`
	IdleMinutesOverride     map[string]int     `json:"idle_minutes_override"`
	KeywordProbOverride     map[string]float64 `json:"keyword_prob_override"`
	MentionProbOverride     map[string]float64 `json:"mention_prob_override"`
	GeneralProbOverride     map[string]float64 `json:"general_prob_override"`
	ScheduledHypeActive     map[string]bool    `json:"scheduled_hype_active"`
	CooldownSecondsOverride map[string]int     `json:"cooldown_seconds_override"`
}

var probabilityKeys = map[string]domain.ProbabilityKind{
	"keyword_prob_override": domain.ProbabilityKeyword,
	"mention_prob_override": domain.ProbabilityMention,
	"general_prob_override": domain.ProbabilityGeneral,
}

type ledgerEntry struct {
	ChatID string `json:"chat_id"`
	Slot   string `json:"slot"`
	Day    string `json:"day"`
}

// jsonStateRepo stores chat settings in a JSON file and the broadcast
// ledger in a sidecar file next to it
type jsonStateRepo struct {
	path       string
	ledgerPath string
	mu         sync.Mutex
}

// NewJSONStateRepo creates a JSON state repository at path
func NewJSONStateRepo(path string) (StateStore, error) {
	if path == "" {
		return nil, fmt.Errorf("state file path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	return &jsonStateRepo{path: path, ledgerPath: ledgerPathFor(path)}, nil
}

// ledgerPathFor turns "state.json" into "state.ledger.json"
func ledgerPathFor(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		ext = ".json"
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".ledger" + ext
}

// Load reads the state file. Entries of the wrong type are skipped.
func (r *jsonStateRepo) Load(ctx context.Context) (*domain.StateSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := domain.NewStateSnapshot()
	raw, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return snap, nil
	}
	if err != nil {
		return snap, fmt.Errorf("failed to read state file: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return snap, fmt.Errorf("invalid state file %s", r.path)
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return snap, fmt.Errorf("invalid state file %s: root is not an object", r.path)
	}

	edit := func(id string, fn func(*domain.ChatSettings)) {
		cid := domain.ChatID(id)
		s, ok := snap.Chats[cid]
		if !ok {
			s = domain.DefaultChatSettings()
		}
		fn(&s)
		snap.Chats[cid] = s
	}

	doc.Get("active_chats").ForEach(func(k, v gjson.Result) bool {
		if v.IsBool() {
			edit(k.String(), func(s *domain.ChatSettings) { s.Active = v.Bool() })
		}
		return true
	})
	doc.Get("scheduled_hype_active").ForEach(func(k, v gjson.Result) bool {
		if v.IsBool() {
			edit(k.String(), func(s *domain.ChatSettings) { s.ScheduledBroadcastEnabled = v.Bool() })
		}
		return true
	})
	doc.Get("idle_minutes_override").ForEach(func(k, v gjson.Result) bool {
		if v.Type == gjson.Number && v.Int() >= 1 {
			edit(k.String(), func(s *domain.ChatSettings) {
				s.IdleInterval = domain.Some(time.Duration(v.Int()) * time.Minute)
			})
		}
		return true
	})
	doc.Get("cooldown_seconds_override").ForEach(func(k, v gjson.Result) bool {
		if v.Type == gjson.Number && v.Int() >= 0 {
			edit(k.String(), func(s *domain.ChatSettings) {
				s.Cooldown = domain.Some(time.Duration(v.Int()) * time.Second)
			})
		}
		return true
	})
	for key, kind := range probabilityKeys {
		doc.Get(key).ForEach(func(k, v gjson.Result) bool {
			if v.Type == gjson.Number {
				edit(k.String(), func(s *domain.ChatSettings) { _ = s.SetProbability(kind, v.Float()) })
			}
			return true
		})
	}
	return snap, nil
}

// Save writes the snapshot to <path>.tmp and renames it over the state file
func (r *jsonStateRepo) Save(ctx context.Context, snap *domain.StateSnapshot) error {
	f := stateFile{
		ActiveChats:             make(map[string]bool),
		IdleMinutesOverride:     make(map[string]int),
		KeywordProbOverride:     make(map[string]float64),
		MentionProbOverride:     make(map[string]float64),
		GeneralProbOverride:     make(map[string]float64),
		ScheduledHypeActive:     make(map[string]bool),
		CooldownSecondsOverride: make(map[string]int),
	}
	for id, s := range snap.Chats {
		key := string(id)
		f.ActiveChats[key] = s.Active
		f.ScheduledHypeActive[key] = s.ScheduledBroadcastEnabled
		if s.IdleInterval.Valid {
			f.IdleMinutesOverride[key] = int(s.IdleInterval.Value / time.Minute)
		}
		if s.Cooldown.Valid {
			f.CooldownSecondsOverride[key] = int(s.Cooldown.Value / time.Second)
		}
		if s.KeywordProb.Valid {
			f.KeywordProbOverride[key] = float64(s.KeywordProb.Value)
		}
		if s.MentionProb.Valid {
			f.MentionProbOverride[key] = float64(s.MentionProb.Value)
		}
		if s.GeneralProb.Valid {
			f.GeneralProbOverride[key] = float64(s.GeneralProb.Value)
		}
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return writeFileAtomic(r.path, data)
}

// LoadLedger reads the ledger sidecar; a missing file is an empty ledger
func (r *jsonStateRepo) LoadLedger(ctx context.Context) ([]domain.LedgerRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw, err := os.ReadFile(r.ledgerPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger file: %w", err)
	}
	var entries []ledgerEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("invalid ledger file %s: %w", r.ledgerPath, err)
	}
	records := make([]domain.LedgerRecord, 0, len(entries))
	for _, e := range entries {
		if e.ChatID == "" || e.Slot == "" || e.Day == "" {
			continue
		}
		records = append(records, domain.LedgerRecord{ChatID: domain.ChatID(e.ChatID), Slot: e.Slot, Day: e.Day})
	}
	return records, nil
}

// SaveLedger replaces the ledger sidecar
func (r *jsonStateRepo) SaveLedger(ctx context.Context, records []domain.LedgerRecord) error {
	entries := make([]ledgerEntry, len(records))
	for i, rec := range records {
		entries[i] = ledgerEntry{ChatID: string(rec.ChatID), Slot: rec.Slot, Day: rec.Day}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return writeFileAtomic(r.ledgerPath, data)
}

// Close is a no-op; every write is already on disk
func (r *jsonStateRepo) Close() error {
	return nil
}

// writeFileAtomic writes to path+".tmp", syncs, then renames over path
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
