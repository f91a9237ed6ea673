package data

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bedlam520/hype-bridge/internal/biz/domain"
)

// Mock implementations

type recordingRepo struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingRepo) SendText(ctx context.Context, chatID domain.ChatID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, string(chatID)+":"+text)
	return nil
}

type recordingSender struct {
	chatID, text string
}

func (s *recordingSender) SendText(ctx context.Context, chatID, text string) error {
	s.chatID, s.text = chatID, text
	return nil
}

func TestThrottledRepo_BurstThenLimited(t *testing.T) {
	next := &recordingRepo{}
	r := NewThrottledRepo(next, 2)

	for i := 0; i < 2; i++ {
		if err := r.SendText(context.Background(), "a", "hi"); err != nil {
			t.Fatalf("Send %d failed: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := r.SendText(ctx, "a", "third"); err == nil {
		t.Error("Expected third message within the minute to be rate limited")
	}

	// other chats have their own bucket
	if err := r.SendText(context.Background(), "b", "hi"); err != nil {
		t.Errorf("Expected chat b to send, got %v", err)
	}
	if len(next.sent) != 3 {
		t.Errorf("Expected 3 delivered messages, got %v", next.sent)
	}
}

func TestThrottledRepo_Disabled(t *testing.T) {
	next := &recordingRepo{}
	if r := NewThrottledRepo(next, 0); r != next {
		t.Error("Expected perMinute <= 0 to return the wrapped repo")
	}
}

func TestFeishuRepo_SendText(t *testing.T) {
	s := &recordingSender{}
	r := NewFeishuRepo(s)

	if err := r.SendText(context.Background(), "oc_1", "hello"); err != nil {
		t.Fatalf("SendText failed: %v", err)
	}
	if s.chatID != "oc_1" || s.text != "hello" {
		t.Errorf("Unexpected send %+v", s)
	}
	if err := r.SendText(context.Background(), "", "hello"); err == nil {
		t.Error("Expected error for empty chat id")
	}
}
