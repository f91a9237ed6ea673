package repo

import (
	"context"

	"github.com/bedlam520/hype-bridge/internal/biz/domain"
)

// ContentRepo loads the message texts the engine sends.
// Each loader returns an error when its source is missing or malformed;
// callers decide on fallbacks.
type ContentRepo interface {
	LoadKeywords(ctx context.Context) (domain.KeywordTable, error)
	LoadGeneral(ctx context.Context) ([]string, error)
	LoadIdle(ctx context.Context) ([]string, error)

	// LoadScheduled returns texts per slot name; slots absent from the
	// source map to an empty list
	LoadScheduled(ctx context.Context, slots []string) (map[string][]string, error)
}
