package server

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bedlam520/hype-bridge/internal/biz/domain"
	"github.com/bedlam520/hype-bridge/internal/infra/feishu"
)

// dedupeTTL is how long a message id is remembered
const dedupeTTL = 5 * time.Minute

// Transport is the inbound side of the Feishu client
type Transport interface {
	OnMessage(handler feishu.MessageHandler)
	Start(ctx context.Context) error
}

// MessageHandler processes one normalized inbound event
type MessageHandler interface {
	HandleMessage(ctx context.Context, ev domain.InboundEvent) error
}

// FeishuServer turns Feishu messages into engine events
type FeishuServer struct {
	transport Transport
	handler   MessageHandler
	botHandle func() string
	now       func() time.Time
	log       zerolog.Logger

	ctx context.Context

	// Message deduplication cache
	seenMsgsMu sync.Mutex
	seenMsgs   map[string]time.Time // msgID -> timestamp
}

// NewFeishuServer creates a new Feishu server. botHandle returns the
// current bot handle and may be nil.
func NewFeishuServer(
	transport Transport,
	handler MessageHandler,
	botHandle func() string,
	now func() time.Time,
	log zerolog.Logger,
) *FeishuServer {
	if now == nil {
		now = time.Now
	}
	if botHandle == nil {
		botHandle = func() string { return "" }
	}
	return &FeishuServer{
		transport: transport,
		handler:   handler,
		botHandle: botHandle,
		now:       now,
		log:       log.With().Str("component", "server").Logger(),
		ctx:       context.Background(),
		seenMsgs:  make(map[string]time.Time),
	}
}

// Start registers the message handler and blocks until the transport stops
func (s *FeishuServer) Start(ctx context.Context) error {
	s.ctx = ctx
	s.transport.OnMessage(s.HandleFeishuMessage)
	return s.transport.Start(ctx)
}

// HandleFeishuMessage handles one Feishu message
func (s *FeishuServer) HandleFeishuMessage(msg *feishu.Message) {
	if msg == nil {
		return
	}
	// Message deduplication: Feishu redelivers events that were not ACKed in time
	if msg.MsgID != "" && !s.markMessageSeen(msg.MsgID) {
		s.log.Debug().Str("msg_id", msg.MsgID).Msg("Duplicate message ignored")
		return
	}

	ev := s.toEvent(msg)
	if err := s.handler.HandleMessage(s.ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("chat_id", msg.ChatID).Msg("Handle message error")
	}
}

// toEvent normalizes a Feishu message
func (s *FeishuServer) toEvent(msg *feishu.Message) domain.InboundEvent {
	// At is the engine clock; create_time comes from the sender side
	ev := domain.InboundEvent{
		ID:          msg.MsgID,
		ChatID:      domain.ChatID(msg.ChatID),
		Text:        msg.Content,
		SenderIsBot: msg.Sender.IsApp(),
		At:          s.now(),
	}
	if msg.CreateTime > 0 {
		s.log.Debug().
			Str("msg_id", msg.MsgID).
			Dur("lag", ev.At.Sub(time.UnixMilli(msg.CreateTime))).
			Msg("Message received")
	}

	seen := make(map[string]bool)
	add := func(h string) {
		if h == domain.HandleSigil || seen[h] {
			return
		}
		seen[h] = true
		ev.MentionedHandles = append(ev.MentionedHandles, h)
	}
	for _, m := range msg.Mentions {
		if m.Name != "" {
			add(domain.NormalizeHandle(m.Name))
		}
	}
	// the bot may be configured under a handle other than its display name
	if msg.MentionsBot {
		if h := s.botHandle(); h != "" {
			add(domain.NormalizeHandle(h))
		}
	}
	return ev
}

// markMessageSeen records msgID and reports whether it was new
func (s *FeishuServer) markMessageSeen(msgID string) bool {
	s.seenMsgsMu.Lock()
	defer s.seenMsgsMu.Unlock()

	now := s.now()
	if ts, ok := s.seenMsgs[msgID]; ok && now.Sub(ts) < dedupeTTL {
		return false
	}
	s.seenMsgs[msgID] = now

	// Clean up expired records when marking new messages
	cutoff := now.Add(-dedupeTTL)
	for id, ts := range s.seenMsgs {
		if ts.Before(cutoff) {
			delete(s.seenMsgs, id)
		}
	}
	return true
}
