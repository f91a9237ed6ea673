package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/bedlam520/hype-bridge/internal/biz/domain"
)

func newTestCommands(e *env) *CommandService {
	return NewCommandService(e.store, e.content, e.defaults, e.replyUC, e.sender, e.clock.Now, zerolog.Nop())
}

func TestParseCommand(t *testing.T) {
	cmd, ok := ParseCommand("/SetIdle@MoonBot 10 extra")
	if !ok || cmd.Name != "setidle" || len(cmd.Args) != 2 || cmd.Args[0] != "10" {
		t.Errorf("unexpected parse %+v (%v)", cmd, ok)
	}
	for _, text := range []string{"hello", "", "/", "/@bot"} {
		if _, ok := ParseCommand(text); ok {
			t.Errorf("ParseCommand(%q) should fail", text)
		}
	}
}

func TestCommandService_ActivateAndSilence(t *testing.T) {
	e := newEnv(defaultContent(), domain.EngineDefaults{})
	s := newTestCommands(e)
	ctx := context.Background()

	if got := s.Execute(ctx, "1", Command{Name: "shutup"}); got != "MoonFish bot silenced 🤐" {
		t.Errorf("shutup reply %q", got)
	}
	if e.store.Get("1").Active {
		t.Error("chat still active")
	}
	if got := s.Execute(ctx, "1", Command{Name: "start"}); got != "MoonFish bot activated 🚀🐟" {
		t.Errorf("start reply %q", got)
	}
	if !e.store.Get("1").Active {
		t.Error("chat not reactivated")
	}
}

func TestCommandService_Calmdown(t *testing.T) {
	e := newEnv(defaultContent(), domain.EngineDefaults{})
	s := newTestCommands(e)

	s.Execute(context.Background(), "1", Command{Name: "calmdown"})
	s.Execute(context.Background(), "1", Command{Name: "calmdown"})
	if got := e.store.Get("1").CooldownUntil; !got.Equal(epoch.Add(80 * time.Second)) {
		t.Errorf("CooldownUntil = %v, want +80s", got)
	}
}

func TestCommandService_Setters(t *testing.T) {
	e := newEnv(defaultContent(), domain.EngineDefaults{})
	s := newTestCommands(e)
	ctx := context.Background()

	tests := []struct {
		cmd  Command
		want string
	}{
		{Command{Name: "setidle", Args: []string{"0"}}, "Idle interval set to 1 minutes ⏱️"},
		{Command{Name: "setidle"}, "Usage: /setidle <minutes>"},
		{Command{Name: "setkeyword", Args: []string{"0.5"}}, "Keyword reply probability set to 0.50"},
		{Command{Name: "setmention", Args: []string{"75%"}}, "Mention reply probability set to 0.75"},
		{Command{Name: "setreply", Args: []string{"2"}}, "General reply probability set to 1.00"},
		{Command{Name: "setreply", Args: []string{"x"}}, "Usage: /setreply <probability>"},
		{Command{Name: "setcooldown", Args: []string{"30"}}, "Cooldown set to 30 seconds ⏳"},
		{Command{Name: "deactivatehype"}, "Scheduled hype messages deactivated for this chat."},
	}
	for _, tt := range tests {
		if got := s.Execute(ctx, "1", tt.cmd); got != tt.want {
			t.Errorf("%s %v: got %q, want %q", tt.cmd.Name, tt.cmd.Args, got, tt.want)
		}
	}

	st := e.store.Get("1")
	if st.KeywordProb.Value != 0.5 || st.MentionProb.Value != 0.75 || st.GeneralProb.Value != 1 {
		t.Errorf("probabilities not stored: %+v", st.ChatSettings)
	}
	if st.ScheduledBroadcastEnabled {
		t.Error("scheduled hype still enabled")
	}

	if got := s.Execute(ctx, "1", Command{Name: "activatehype"}); got != "Scheduled hype messages activated for this chat." {
		t.Errorf("activatehype reply %q", got)
	}
}

func TestCommandService_Status(t *testing.T) {
	e := newEnv(defaultContent(), domain.EngineDefaults{
		IdleInterval: 5 * time.Minute,
		Cooldown:     10 * time.Second,
		KeywordProb:  1,
		MentionProb:  0.9,
		GeneralProb:  0.75,
	})
	s := newTestCommands(e)
	got := s.Execute(context.Background(), "1", Command{Name: "status"})
	for _, line := range []string{
		"Active: true",
		"Idle minutes: 5",
		"Keyword prob: 1.00",
		"Mention prob: 0.90",
		"General prob: 0.75",
		"Cooldown remaining: 0s",
	} {
		if !strings.Contains(got, line) {
			t.Errorf("status missing %q:\n%s", line, got)
		}
	}
}

func TestCommandService_ReloadScheduled(t *testing.T) {
	e := newEnv(defaultContent(), domain.EngineDefaults{})
	s := newTestCommands(e)
	got := s.Execute(context.Background(), "1", Command{Name: "reloadscheduled"})
	if got != "Reloaded scheduled hype messages: gm=1, noon=1, gn=1" {
		t.Errorf("reloadscheduled reply %q", got)
	}
}

func TestCommandService_ReloadFailureReportsDefaults(t *testing.T) {
	content := defaultContent()
	e := newEnv(content, domain.EngineDefaults{})
	s := newTestCommands(e)
	content.err = errTest

	got := s.Execute(context.Background(), "1", Command{Name: "reloadscheduled"})
	if !strings.HasPrefix(got, "Reloaded scheduled hype messages: ") || !strings.Contains(got, "using built-in defaults") {
		t.Errorf("reply %q", got)
	}
	if strings.Contains(got, "Failed") {
		t.Errorf("reload published defaults, reply must not report failure: %q", got)
	}

	got = s.Execute(context.Background(), "1", Command{Name: "reloadkeys"})
	want := fmt.Sprintf("Reloaded %d keyword sets.", len(domain.DefaultKeywords()))
	if !strings.HasPrefix(got, want) || !strings.Contains(got, "using built-in defaults") {
		t.Errorf("reply %q, want prefix %q", got, want)
	}
}

func TestCommandService_Hype(t *testing.T) {
	e := newEnv(defaultContent(), domain.EngineDefaults{})
	s := newTestCommands(e)
	if err := s.Handle(context.Background(), "1", Command{Name: "hype"}); err != nil {
		t.Fatal(err)
	}
	if sent := e.msgs.Sent(); len(sent) != 1 || sent[0].Text != "M1" {
		t.Errorf("unexpected sends %+v", sent)
	}
}

func TestCommandService_HandleSendsReply(t *testing.T) {
	e := newEnv(defaultContent(), domain.EngineDefaults{})
	s := newTestCommands(e)
	if err := s.Handle(context.Background(), "1", Command{Name: "unknown"}); err != nil {
		t.Fatal(err)
	}
	if len(e.msgs.Sent()) != 0 {
		t.Error("unknown command should not reply")
	}
	if err := s.Handle(context.Background(), "1", Command{Name: "start"}); err != nil {
		t.Fatal(err)
	}
	if len(e.msgs.Sent()) != 1 {
		t.Error("expected the command reply to be sent")
	}
}
