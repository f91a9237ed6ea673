package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/bedlam520/hype-bridge/internal/biz/domain"
	"github.com/bedlam520/hype-bridge/internal/biz/repo"
)

// Sender delivers outbound messages with a per-send timeout.
// Failures are logged and returned; callers never retry.
type Sender struct {
	repo    repo.MessageRepo
	timeout time.Duration
	log     zerolog.Logger
}

// NewSender creates a sender. A non-positive timeout disables the deadline.
func NewSender(r repo.MessageRepo, timeout time.Duration, log zerolog.Logger) *Sender {
	return &Sender{
		repo:    r,
		timeout: timeout,
		log:     log.With().Str("component", "sender").Logger(),
	}
}

// Send delivers msg
func (s *Sender) Send(ctx context.Context, msg domain.OutboundMessage) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := s.repo.SendText(ctx, msg.ChatID, msg.Text); err != nil {
		s.log.Warn().Err(err).
			Str("chat_id", string(msg.ChatID)).
			Str("reason", msg.Reason).
			Msg("Send failed")
		return err
	}
	s.log.Debug().
		Str("chat_id", string(msg.ChatID)).
		Str("reason", msg.Reason).
		Int("len", len(msg.Text)).
		Msg("Sent message")
	return nil
}
