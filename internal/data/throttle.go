package data

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/bedlam520/hype-bridge/internal/biz/domain"
	"github.com/bedlam520/hype-bridge/internal/biz/repo"
)

// throttledRepo limits outbound messages per chat with a token bucket
type throttledRepo struct {
	next  repo.MessageRepo
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[domain.ChatID]*rate.Limiter
}

// NewThrottledRepo wraps next so each chat sends at most perMinute messages
// per minute. perMinute <= 0 disables throttling.
func NewThrottledRepo(next repo.MessageRepo, perMinute int) repo.MessageRepo {
	if perMinute <= 0 {
		return next
	}
	return &throttledRepo{
		next:     next,
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		limiters: make(map[domain.ChatID]*rate.Limiter),
	}
}

func (r *throttledRepo) limiter(chatID domain.ChatID) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[chatID]
	if !ok {
		l = rate.NewLimiter(r.limit, r.burst)
		r.limiters[chatID] = l
	}
	return l
}

// SendText waits for a token, bounded by ctx, then sends
func (r *throttledRepo) SendText(ctx context.Context, chatID domain.ChatID, text string) error {
	if err := r.limiter(chatID).Wait(ctx); err != nil {
		return fmt.Errorf("rate limited in chat %s: %w", chatID, err)
	}
	return r.next.SendText(ctx, chatID, text)
}
