package data

import (
	"context"
	"fmt"

	"github.com/bedlam520/hype-bridge/internal/biz/domain"
	"github.com/bedlam520/hype-bridge/internal/biz/repo"
	"github.com/bedlam520/hype-bridge/internal/infra/feishu"
)

// TextSender is the part of the Feishu client used for outbound messages
type TextSender interface {
	SendText(ctx context.Context, chatID, text string) error
}

// feishuRepo implements the Feishu message repository
type feishuRepo struct {
	client TextSender
}

// NewFeishuRepo creates a new Feishu repository
func NewFeishuRepo(client TextSender) repo.MessageRepo {
	return &feishuRepo{client: client}
}

// SendText sends a text message
func (r *feishuRepo) SendText(ctx context.Context, chatID domain.ChatID, text string) error {
	if chatID == "" {
		return fmt.Errorf("send text: empty chat id")
	}
	return r.client.SendText(ctx, string(chatID), text)
}

var _ TextSender = (*feishu.Client)(nil)
