package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSupervise_RestartsAfterPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		Supervise(ctx, zerolog.Nop(), "test", func(ctx context.Context) {
			if runs.Add(1) == 1 {
				panic("first run fails")
			}
			<-ctx.Done()
		})
	}()

	deadline := time.After(5 * time.Second)
	for runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("loop was not restarted after panic")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Supervise did not return after cancel")
	}
}

func TestSupervise_ReturnsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	returned := make(chan struct{})
	go func() {
		Supervise(ctx, zerolog.Nop(), "test", func(ctx context.Context) {})
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Supervise did not return for a cancelled context")
	}
}
