package repo

import (
	"context"

	"github.com/bedlam520/hype-bridge/internal/biz/domain"
)

// StateRepo persists chat settings
type StateRepo interface {
	// Load returns the persisted snapshot; a missing store yields an empty snapshot
	Load(ctx context.Context) (*domain.StateSnapshot, error)

	// Save replaces the persisted snapshot
	Save(ctx context.Context, snap *domain.StateSnapshot) error

	Close() error
}

// LedgerRepo persists the scheduled broadcast ledger
type LedgerRepo interface {
	LoadLedger(ctx context.Context) ([]domain.LedgerRecord, error)

	// SaveLedger replaces all persisted records
	SaveLedger(ctx context.Context, records []domain.LedgerRecord) error
}
