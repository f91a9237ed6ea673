package usecase

import (
	"sync"
	"time"

	"github.com/bedlam520/hype-bridge/internal/biz/domain"
)

// Defaults is the process-wide handle on engine defaults
type Defaults struct {
	mu        sync.RWMutex
	values    domain.EngineDefaults
	botHandle string
}

// NewDefaults creates a defaults handle. botHandle is normalized with "@".
func NewDefaults(values domain.EngineDefaults, botHandle string) *Defaults {
	d := &Defaults{values: values}
	if botHandle != "" {
		d.botHandle = domain.NormalizeHandle(botHandle)
	}
	return d
}

// Get returns the current defaults
func (d *Defaults) Get() domain.EngineDefaults {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.values
}

// BotHandle returns the normalized bot handle, empty when unknown
func (d *Defaults) BotHandle() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.botHandle
}

// SetBotHandle replaces the bot handle, e.g. after the transport reports the bot name
func (d *Defaults) SetBotHandle(h string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if h == "" {
		d.botHandle = ""
		return
	}
	d.botHandle = domain.NormalizeHandle(h)
}

// SetIdleInterval replaces the default idle interval
func (d *Defaults) SetIdleInterval(v time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.values.IdleInterval = v
}

// SetCooldown replaces the default cooldown
func (d *Defaults) SetCooldown(v time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.values.Cooldown = v
}

// For resolves a chat's settings against the current defaults
func (d *Defaults) For(s domain.ChatSettings) domain.EngineDefaults {
	return s.Effective(d.Get())
}
