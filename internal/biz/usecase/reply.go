package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bedlam520/hype-bridge/internal/biz/domain"
)

// MentionReplyGap suppresses bot-mention replies sent closer together than this
const MentionReplyGap = 30 * time.Second

// Reply reasons
const (
	ReasonHandle    = "handle"
	ReasonKeyword   = "keyword"
	ReasonMention   = "mention"
	ReasonGeneral   = "general"
	ReasonIdle      = "idle"
	ReasonBroadcast = "broadcast"
	ReasonCommand   = "command"
)

// ReplyUsecase decides whether and how to answer inbound messages
type ReplyUsecase struct {
	store    *ChatStateStore
	content  *ContentStore
	defaults *Defaults
	sender   *Sender
	rng      Random
	now      func() time.Time
	log      zerolog.Logger
}

// NewReplyUsecase creates a new reply usecase
func NewReplyUsecase(
	store *ChatStateStore,
	content *ContentStore,
	defaults *Defaults,
	sender *Sender,
	rng Random,
	now func() time.Time,
	log zerolog.Logger,
) *ReplyUsecase {
	if now == nil {
		now = time.Now
	}
	return &ReplyUsecase{
		store:    store,
		content:  content,
		defaults: defaults,
		sender:   sender,
		rng:      rng,
		now:      now,
		log:      log.With().Str("component", "reply").Logger(),
	}
}

// Handle processes one inbound event. It returns the message that was sent,
// or nil when no reply was chosen. A send failure is returned after logging;
// state changes made for the reply are kept.
func (uc *ReplyUsecase) Handle(ctx context.Context, ev domain.InboundEvent) (*domain.OutboundMessage, error) {
	if !ev.IsValid() {
		uc.log.Debug().Str("chat_id", string(ev.ChatID)).Msg("Dropping event without chat or text")
		return nil, nil
	}
	if ev.SenderIsBot {
		uc.log.Debug().Str("chat_id", string(ev.ChatID)).Msg("Dropping event from bot sender")
		return nil, nil
	}

	at := ev.At
	if at.IsZero() {
		at = uc.now()
	}
	tables := uc.content.Tables()
	botHandle := uc.defaults.BotHandle()

	var out *domain.OutboundMessage
	uc.store.Mutate(ev.ChatID, func(st *domain.ChatState) {
		st.Touch(at)
		if !st.Active || st.InCooldown(at) {
			return
		}

		eff := uc.defaults.For(st.ChatSettings)
		text, reason := uc.decide(*st, ev, tables, eff, botHandle, at)
		if text == "" {
			return
		}

		st.ExtendCooldownUntil(at.Add(eff.Cooldown))
		if reason == ReasonMention {
			st.LastMentionReplyAt = at
		}
		out = &domain.OutboundMessage{ChatID: ev.ChatID, Text: text, Reason: reason}
	})

	if out == nil {
		return nil, nil
	}
	uc.log.Info().
		Str("chat_id", string(out.ChatID)).
		Str("reason", out.Reason).
		Msg("Replying")
	return out, uc.sender.Send(ctx, *out)
}

// decide runs the trigger tiers in order. It returns an empty text when
// nothing fired.
func (uc *ReplyUsecase) decide(
	st domain.ChatState,
	ev domain.InboundEvent,
	tables *domain.ContentTables,
	eff domain.EngineDefaults,
	botHandle string,
	at time.Time,
) (string, string) {
	// 1. a mentioned handle with its own responses
	for _, h := range ev.MentionedHandles {
		entry, ok := tables.Keywords.HandleEntry(h)
		if !ok {
			continue
		}
		if Draw(uc.rng, eff.KeywordProb) {
			if text, ok := Pick(uc.rng, entry.Responses); ok {
				return text, ReasonHandle
			}
		}
		break
	}

	// 2. matching keywords in table order, each with its own draw
	for _, entry := range tables.Keywords.MatchAll(ev.Text) {
		if !Draw(uc.rng, eff.KeywordProb) {
			continue
		}
		if text, ok := Pick(uc.rng, entry.Responses); ok {
			return text, ReasonKeyword
		}
	}

	// 3. the bot itself is mentioned
	if botHandle != "" && uc.mentionsBot(ev, botHandle) {
		recent := !st.LastMentionReplyAt.IsZero() && at.Sub(st.LastMentionReplyAt) < MentionReplyGap
		if !recent && Draw(uc.rng, eff.MentionProb) {
			if text, ok := Pick(uc.rng, tables.Keywords.AllResponses()); ok {
				return text, ReasonMention
			}
		}
	}

	// 4. general fallback
	if len(tables.General) > 0 && Draw(uc.rng, eff.GeneralProb) {
		if text, ok := Pick(uc.rng, tables.General); ok {
			return text, ReasonGeneral
		}
	}
	return "", ""
}

func (uc *ReplyUsecase) mentionsBot(ev domain.InboundEvent, botHandle string) bool {
	if ev.Mentions(botHandle) {
		return true
	}
	return strings.Contains(strings.ToLower(ev.Text), botHandle)
}

// Hype picks a random keyword response and sends it immediately, without
// touching the cooldown. Inactive chats get nothing.
func (uc *ReplyUsecase) Hype(ctx context.Context, id domain.ChatID) (*domain.OutboundMessage, error) {
	if !uc.store.Get(id).Active {
		return nil, nil
	}
	text, ok := Pick(uc.rng, uc.content.Tables().Keywords.AllResponses())
	if !ok {
		return nil, nil
	}
	out := &domain.OutboundMessage{ChatID: id, Text: text, Reason: ReasonCommand}
	return out, uc.sender.Send(ctx, *out)
}
