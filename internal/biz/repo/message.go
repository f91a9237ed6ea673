package repo

import (
	"context"

	"github.com/bedlam520/hype-bridge/internal/biz/domain"
)

// MessageRepo is the outbound message interface
// Implemented by the Feishu IM API, optionally wrapped by a rate limiter
type MessageRepo interface {
	// SendText sends a plain text message to a chat
	SendText(ctx context.Context, chatID domain.ChatID, text string) error
}
