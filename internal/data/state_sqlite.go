package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bedlam520/hype-bridge/internal/biz/domain"

	_ "modernc.org/sqlite"
)

// sqliteStateRepo stores chat settings and the broadcast ledger in SQLite
type sqliteStateRepo struct {
	db *sql.DB
}

// NewSQLiteStateRepo opens (or creates) the database at dbPath
func NewSQLiteStateRepo(dbPath string) (StateStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS chat_settings (
			chat_id TEXT PRIMARY KEY,
			active INTEGER NOT NULL DEFAULT 1,
			scheduled_enabled INTEGER NOT NULL DEFAULT 1,
			idle_seconds INTEGER,
			cooldown_seconds INTEGER,
			keyword_prob REAL,
			mention_prob REAL,
			general_prob REAL,
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS broadcast_ledger (
			chat_id TEXT NOT NULL,
			slot TEXT NOT NULL,
			day TEXT NOT NULL,
			PRIMARY KEY (chat_id, slot, day)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create ledger table: %w", err)
	}

	return &sqliteStateRepo{db: db}, nil
}

// Load reads every chat row
func (r *sqliteStateRepo) Load(ctx context.Context) (*domain.StateSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT chat_id, active, scheduled_enabled, idle_seconds, cooldown_seconds,
			keyword_prob, mention_prob, general_prob
		FROM chat_settings
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat settings: %w", err)
	}
	defer rows.Close()

	snap := domain.NewStateSnapshot()
	for rows.Next() {
		var (
			chatID                            string
			active, scheduled                 bool
			idleSeconds, cooldownSeconds      sql.NullInt64
			keywordProb, mentionProb, genProb sql.NullFloat64
		)
		if err := rows.Scan(&chatID, &active, &scheduled, &idleSeconds, &cooldownSeconds,
			&keywordProb, &mentionProb, &genProb); err != nil {
			return nil, fmt.Errorf("failed to scan chat settings: %w", err)
		}

		s := domain.ChatSettings{Active: active, ScheduledBroadcastEnabled: scheduled}
		if idleSeconds.Valid {
			s.IdleInterval = domain.Some(time.Duration(idleSeconds.Int64) * time.Second)
		}
		if cooldownSeconds.Valid {
			s.Cooldown = domain.Some(time.Duration(cooldownSeconds.Int64) * time.Second)
		}
		if keywordProb.Valid {
			s.KeywordProb = domain.Some(domain.ClampProbability(keywordProb.Float64))
		}
		if mentionProb.Valid {
			s.MentionProb = domain.Some(domain.ClampProbability(mentionProb.Float64))
		}
		if genProb.Valid {
			s.GeneralProb = domain.Some(domain.ClampProbability(genProb.Float64))
		}
		snap.Chats[domain.ChatID(chatID)] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chat settings: %w", err)
	}
	return snap, nil
}

// Save upserts every chat in one transaction
func (r *sqliteStateRepo) Save(ctx context.Context, snap *domain.StateSnapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chat_settings
			(chat_id, active, scheduled_enabled, idle_seconds, cooldown_seconds,
			 keyword_prob, mention_prob, general_prob, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for id, s := range snap.Chats {
		_, err := stmt.ExecContext(ctx,
			string(id),
			s.Active,
			s.ScheduledBroadcastEnabled,
			nullSeconds(s.IdleInterval),
			nullSeconds(s.Cooldown),
			nullProb(s.KeywordProb),
			nullProb(s.MentionProb),
			nullProb(s.GeneralProb),
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to save chat %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chat settings: %w", err)
	}
	return nil
}

// LoadLedger returns every ledger record
func (r *sqliteStateRepo) LoadLedger(ctx context.Context) ([]domain.LedgerRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT chat_id, slot, day FROM broadcast_ledger ORDER BY day, chat_id, slot`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	var records []domain.LedgerRecord
	for rows.Next() {
		var rec domain.LedgerRecord
		var chatID string
		if err := rows.Scan(&chatID, &rec.Slot, &rec.Day); err != nil {
			return nil, fmt.Errorf("failed to scan ledger: %w", err)
		}
		rec.ChatID = domain.ChatID(chatID)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SaveLedger replaces all ledger rows
func (r *sqliteStateRepo) SaveLedger(ctx context.Context, records []domain.LedgerRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM broadcast_ledger`); err != nil {
		return fmt.Errorf("failed to clear ledger: %w", err)
	}
	for _, rec := range records {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO broadcast_ledger (chat_id, slot, day) VALUES (?, ?, ?)`,
			string(rec.ChatID), rec.Slot, rec.Day)
		if err != nil {
			return fmt.Errorf("failed to save ledger record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ledger: %w", err)
	}
	return nil
}

// Close closes the database connection
func (r *sqliteStateRepo) Close() error {
	return r.db.Close()
}

func nullSeconds(o domain.Optional[time.Duration]) sql.NullInt64 {
	if !o.Valid {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(o.Value / time.Second), Valid: true}
}

func nullProb(o domain.Optional[domain.Probability]) sql.NullFloat64 {
	if !o.Valid {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: float64(o.Value), Valid: true}
}
