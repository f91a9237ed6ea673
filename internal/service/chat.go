package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/bedlam520/hype-bridge/internal/biz/domain"
	"github.com/bedlam520/hype-bridge/internal/biz/usecase"
)

// ChatService routes inbound chat messages to commands or the reply engine
type ChatService struct {
	replyUC  *usecase.ReplyUsecase
	commands *CommandService
	log      zerolog.Logger
}

// NewChatService creates a new chat service
func NewChatService(replyUC *usecase.ReplyUsecase, commands *CommandService, log zerolog.Logger) *ChatService {
	return &ChatService{
		replyUC:  replyUC,
		commands: commands,
		log:      log.With().Str("component", "chat").Logger(),
	}
}

// HandleMessage processes one inbound message. Commands are executed and
// never count as chat activity; everything else goes to the reply engine.
func (s *ChatService) HandleMessage(ctx context.Context, ev domain.InboundEvent) error {
	if ev.IsCommand() {
		if ev.SenderIsBot || ev.ChatID == "" {
			return nil
		}
		cmd, ok := ParseCommand(ev.Text)
		if !ok {
			return nil
		}
		return s.commands.Handle(ctx, ev.ChatID, cmd)
	}

	_, err := s.replyUC.Handle(ctx, ev)
	return err
}
