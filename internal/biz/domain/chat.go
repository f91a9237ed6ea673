package domain

import "time"

// ChatID identifies a chat on the transport. Integer ids are rendered in decimal.
type ChatID string

// Optional holds a per-chat override; the zero value means "use the default"
type Optional[T any] struct {
	Value T
	Valid bool
}

// Some returns a set Optional
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Valid: true}
}

// Or returns the override if set, otherwise def
func (o Optional[T]) Or(def T) T {
	if o.Valid {
		return o.Value
	}
	return def
}

// ChatSettings is the persisted part of a chat's state (value object).
// It is comparable so callers can detect changes with ==.
type ChatSettings struct {
	Active                    bool
	ScheduledBroadcastEnabled bool
	IdleInterval              Optional[time.Duration]
	Cooldown                  Optional[time.Duration]
	KeywordProb               Optional[Probability]
	MentionProb               Optional[Probability]
	GeneralProb               Optional[Probability]
}

// DefaultChatSettings returns settings for a chat seen for the first time
func DefaultChatSettings() ChatSettings {
	return ChatSettings{
		Active:                    true,
		ScheduledBroadcastEnabled: true,
	}
}

// SetProbability stores a clamped override for the given kind
func (s *ChatSettings) SetProbability(kind ProbabilityKind, v float64) error {
	p := Some(ClampProbability(v))
	switch kind {
	case ProbabilityKeyword:
		s.KeywordProb = p
	case ProbabilityMention:
		s.MentionProb = p
	case ProbabilityGeneral:
		s.GeneralProb = p
	default:
		return ErrUnknownProbabilityKind
	}
	return nil
}

// ChatState is the full per-chat record
type ChatState struct {
	ChatID ChatID
	ChatSettings

	LastActivityAt     time.Time // last inbound event or broadcast; zero = never observed
	CooldownUntil      time.Time // no reply before this instant
	LastMentionReplyAt time.Time // last reply sent because the bot was mentioned
}

// NewChatState creates a default state for chatID
func NewChatState(chatID ChatID) ChatState {
	return ChatState{ChatID: chatID, ChatSettings: DefaultChatSettings()}
}

// InCooldown reports whether a reply is blocked at now
func (s ChatState) InCooldown(now time.Time) bool {
	return now.Before(s.CooldownUntil)
}

// ExtendCooldownUntil moves the cooldown forward; it never moves backward
func (s *ChatState) ExtendCooldownUntil(t time.Time) {
	if t.After(s.CooldownUntil) {
		s.CooldownUntil = t
	}
}

// Touch records activity at now; LastActivityAt never moves backward
func (s *ChatState) Touch(now time.Time) {
	if now.After(s.LastActivityAt) {
		s.LastActivityAt = now
	}
}

// IsIdle reports whether the chat has been silent for at least threshold
func (s ChatState) IsIdle(now time.Time, threshold time.Duration) bool {
	if s.LastActivityAt.IsZero() {
		return false
	}
	return now.Sub(s.LastActivityAt) >= threshold
}

// CooldownRemaining returns the time left before the next reply may be sent
func (s ChatState) CooldownRemaining(now time.Time) time.Duration {
	if !s.InCooldown(now) {
		return 0
	}
	return s.CooldownUntil.Sub(now)
}

// EngineDefaults holds the process-wide values chats fall back to
type EngineDefaults struct {
	IdleInterval time.Duration
	Cooldown     time.Duration
	KeywordProb  Probability
	MentionProb  Probability
	GeneralProb  Probability
}

// Effective resolves a chat's overrides against the defaults
func (s ChatSettings) Effective(d EngineDefaults) EngineDefaults {
	return EngineDefaults{
		IdleInterval: s.IdleInterval.Or(d.IdleInterval),
		Cooldown:     s.Cooldown.Or(d.Cooldown),
		KeywordProb:  s.KeywordProb.Or(d.KeywordProb),
		MentionProb:  s.MentionProb.Or(d.MentionProb),
		GeneralProb:  s.GeneralProb.Or(d.GeneralProb),
	}
}

// StateSnapshot is the serializable form of the chat state store
type StateSnapshot struct {
	Chats map[ChatID]ChatSettings
}

// NewStateSnapshot creates an empty snapshot
func NewStateSnapshot() *StateSnapshot {
	return &StateSnapshot{Chats: make(map[ChatID]ChatSettings)}
}
