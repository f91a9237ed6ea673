package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
)

const (
	minRestartBackoff = time.Second
	maxRestartBackoff = 30 * time.Second
)

// Supervise runs loop until ctx is cancelled. A panic inside loop is
// recovered and logged, and the loop is restarted after a backoff that
// doubles up to 30s. A loop that returns while ctx is alive is restarted too.
func Supervise(ctx context.Context, log zerolog.Logger, name string, loop func(ctx context.Context)) {
	backoff := minRestartBackoff
	for {
		err := runGuarded(ctx, loop)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Error().Err(err).Str("loop", name).Dur("backoff", backoff).Msg("Loop panicked, restarting")
		} else {
			log.Warn().Str("loop", name).Dur("backoff", backoff).Msg("Loop exited, restarting")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxRestartBackoff {
			backoff = maxRestartBackoff
		}
	}
}

func runGuarded(ctx context.Context, loop func(ctx context.Context)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	loop(ctx)
	return nil
}

// tickLoop calls tick on every interval until ctx is cancelled.
// A non-positive interval falls back to one minute.
func tickLoop(ctx context.Context, interval time.Duration, tick func(ctx context.Context)) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}
