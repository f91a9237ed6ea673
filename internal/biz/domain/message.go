package domain

import (
	"strings"
	"time"
)

// InboundEvent is one normalized text message received in a chat
type InboundEvent struct {
	ID               string // transport message id, used for dedupe
	ChatID           ChatID
	Text             string
	MentionedHandles []string // ordered, normalized with NormalizeHandle
	SenderIsBot      bool
	At               time.Time
}

// IsValid reports whether the event carries a chat and some text
func (e InboundEvent) IsValid() bool {
	return e.ChatID != "" && strings.TrimSpace(e.Text) != ""
}

// IsCommand reports whether the text is a slash command
func (e InboundEvent) IsCommand() bool {
	return strings.HasPrefix(strings.TrimSpace(e.Text), "/")
}

// Mentions reports whether handle is among the mentioned handles
func (e InboundEvent) Mentions(handle string) bool {
	handle = NormalizeHandle(handle)
	if handle == HandleSigil {
		return false
	}
	for _, h := range e.MentionedHandles {
		if h == handle {
			return true
		}
	}
	return false
}

// NormalizeHandle lower-cases a handle and ensures the "@" prefix
func NormalizeHandle(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.TrimPrefix(h, HandleSigil)
	return HandleSigil + h
}

// OutboundMessage is a text to deliver to a chat
type OutboundMessage struct {
	ChatID ChatID
	Text   string
	Reason string // keyword, handle, mention, general, idle, broadcast, command
}
