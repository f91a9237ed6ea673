package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bedlam520/hype-bridge/internal/biz/domain"
	"github.com/bedlam520/hype-bridge/internal/biz/usecase"
)

// Command is a parsed slash command
type Command struct {
	Name string   // lower-case, without "/" and "@bot" suffix
	Args []string // whitespace separated
}

// ParseCommand parses "/name@bot arg1 arg2". ok is false for non-commands.
func ParseCommand(text string) (Command, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return Command{}, false
	}
	name := strings.TrimPrefix(fields[0], "/")
	if i := strings.Index(name, "@"); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return Command{}, false
	}
	return Command{Name: strings.ToLower(name), Args: fields[1:]}, true
}

// CommandService executes chat commands and replies with their result
type CommandService struct {
	store    *usecase.ChatStateStore
	content  *usecase.ContentStore
	defaults *usecase.Defaults
	replyUC  *usecase.ReplyUsecase
	sender   *usecase.Sender
	now      func() time.Time
	log      zerolog.Logger

	handlers map[string]commandHandler
}

type commandHandler func(ctx context.Context, chatID domain.ChatID, args []string) string

// NewCommandService creates a new command service
func NewCommandService(
	store *usecase.ChatStateStore,
	content *usecase.ContentStore,
	defaults *usecase.Defaults,
	replyUC *usecase.ReplyUsecase,
	sender *usecase.Sender,
	now func() time.Time,
	log zerolog.Logger,
) *CommandService {
	if now == nil {
		now = time.Now
	}
	s := &CommandService{
		store:    store,
		content:  content,
		defaults: defaults,
		replyUC:  replyUC,
		sender:   sender,
		now:      now,
		log:      log.With().Str("component", "command").Logger(),
	}
	s.handlers = map[string]commandHandler{
		"start":           s.start,
		"shutup":          s.shutup,
		"hype":            s.hype,
		"calmdown":        s.calmdown,
		"status":          s.status,
		"setidle":         s.setIdle,
		"setkeyword":      s.setProbability(domain.ProbabilityKeyword, "Keyword", "/setkeyword"),
		"setmention":      s.setProbability(domain.ProbabilityMention, "Mention", "/setmention"),
		"setreply":        s.setProbability(domain.ProbabilityGeneral, "General", "/setreply"),
		"setcooldown":     s.setCooldown,
		"activatehype":    s.activateHype,
		"deactivatehype":  s.deactivateHype,
		"reloadkeys":      s.reloadKeys,
		"reloadidle":      s.reloadIdle,
		"reloadgeneral":   s.reloadGeneral,
		"reloadscheduled": s.reloadScheduled,
	}
	return s
}

// Known reports whether name is a supported command
func (s *CommandService) Known(name string) bool {
	_, ok := s.handlers[name]
	return ok
}

// Execute runs cmd for a chat and returns the reply text, empty when the
// command produces no reply or is unknown
func (s *CommandService) Execute(ctx context.Context, chatID domain.ChatID, cmd Command) string {
	h, ok := s.handlers[cmd.Name]
	if !ok {
		s.log.Debug().Str("command", cmd.Name).Msg("Ignoring unknown command")
		return ""
	}
	s.log.Info().Str("chat_id", string(chatID)).Str("command", cmd.Name).Msg("Executing command")
	return h(ctx, chatID, cmd.Args)
}

// Handle executes cmd and sends the reply to the chat
func (s *CommandService) Handle(ctx context.Context, chatID domain.ChatID, cmd Command) error {
	text := s.Execute(ctx, chatID, cmd)
	if text == "" {
		return nil
	}
	return s.sender.Send(ctx, domain.OutboundMessage{ChatID: chatID, Text: text, Reason: usecase.ReasonCommand})
}

func (s *CommandService) start(ctx context.Context, chatID domain.ChatID, args []string) string {
	s.store.SetActive(chatID, true)
	return "MoonFish bot activated 🚀🐟"
}

func (s *CommandService) shutup(ctx context.Context, chatID domain.ChatID, args []string) string {
	s.store.SetActive(chatID, false)
	return "MoonFish bot silenced 🤐"
}

// hype sends its message directly and has no text reply of its own
func (s *CommandService) hype(ctx context.Context, chatID domain.ChatID, args []string) string {
	if _, err := s.replyUC.Hype(ctx, chatID); err != nil {
		s.log.Warn().Err(err).Str("chat_id", string(chatID)).Msg("Hype send failed")
	}
	return ""
}

func (s *CommandService) calmdown(ctx context.Context, chatID domain.ChatID, args []string) string {
	s.store.ExtendCooldown(chatID, usecase.CalmdownDelta)
	return "Calm down mode: +40s cooldown 🐟⏳"
}

func (s *CommandService) status(ctx context.Context, chatID domain.ChatID, args []string) string {
	st := s.store.Get(chatID)
	eff := s.defaults.For(st.ChatSettings)
	remaining := st.CooldownRemaining(s.now())

	var b strings.Builder
	fmt.Fprintf(&b, "Active: %t\n", st.Active)
	fmt.Fprintf(&b, "Idle minutes: %d\n", int(eff.IdleInterval/time.Minute))
	fmt.Fprintf(&b, "Keyword prob: %.2f\n", float64(eff.KeywordProb))
	fmt.Fprintf(&b, "Mention prob: %.2f\n", float64(eff.MentionProb))
	fmt.Fprintf(&b, "General prob: %.2f\n", float64(eff.GeneralProb))
	fmt.Fprintf(&b, "Cooldown seconds: %d\n", int(eff.Cooldown/time.Second))
	fmt.Fprintf(&b, "Scheduled hype: %t\n", st.ScheduledBroadcastEnabled)
	fmt.Fprintf(&b, "Cooldown remaining: %ds", int(remaining/time.Second))
	return b.String()
}

func (s *CommandService) setIdle(ctx context.Context, chatID domain.ChatID, args []string) string {
	if len(args) == 0 {
		return "Usage: /setidle <minutes>"
	}
	minutes, err := strconv.Atoi(args[0])
	if err != nil {
		return "Usage: /setidle <minutes>"
	}
	st := s.store.SetIdleInterval(chatID, time.Duration(minutes)*time.Minute)
	return fmt.Sprintf("Idle interval set to %d minutes ⏱️", int(st.IdleInterval.Value/time.Minute))
}

func (s *CommandService) setProbability(kind domain.ProbabilityKind, label, command string) commandHandler {
	usage := "Usage: " + command + " <probability>"

	return func(ctx context.Context, chatID domain.ChatID, args []string) string {
		if len(args) == 0 {
			return usage
		}
		p, err := domain.ParseProbability(args[0])
		if err != nil {
			return usage
		}
		if _, err := s.store.SetProbability(chatID, kind, float64(p)); err != nil {
			return usage
		}
		return fmt.Sprintf("%s reply probability set to %.2f", label, float64(p))
	}
}

func (s *CommandService) setCooldown(ctx context.Context, chatID domain.ChatID, args []string) string {
	if len(args) == 0 {
		return "Usage: /setcooldown <seconds>"
	}
	seconds, err := strconv.Atoi(args[0])
	if err != nil {
		return "Usage: /setcooldown <seconds>"
	}
	st := s.store.SetCooldown(chatID, time.Duration(seconds)*time.Second)
	return fmt.Sprintf("Cooldown set to %d seconds ⏳", int(st.Cooldown.Value/time.Second))
}

func (s *CommandService) activateHype(ctx context.Context, chatID domain.ChatID, args []string) string {
	s.store.SetScheduledBroadcastEnabled(chatID, true)
	return "Scheduled hype messages activated for this chat."
}

func (s *CommandService) deactivateHype(ctx context.Context, chatID domain.ChatID, args []string) string {
	s.store.SetScheduledBroadcastEnabled(chatID, false)
	return "Scheduled hype messages deactivated for this chat."
}

func (s *CommandService) reloadKeys(ctx context.Context, chatID domain.ChatID, args []string) string {
	tables, err := s.content.ReloadKeywords(ctx)
	return reloadReply(fmt.Sprintf("Reloaded %d keyword sets.", len(tables.Keywords)), err)
}

func (s *CommandService) reloadIdle(ctx context.Context, chatID domain.ChatID, args []string) string {
	tables, err := s.content.ReloadIdle(ctx)
	return reloadReply(fmt.Sprintf("Reloaded %d idle messages.", len(tables.Idle)), err)
}

func (s *CommandService) reloadGeneral(ctx context.Context, chatID domain.ChatID, args []string) string {
	tables, err := s.content.ReloadGeneral(ctx)
	return reloadReply(fmt.Sprintf("Reloaded %d general replies.", len(tables.General)), err)
}

func (s *CommandService) reloadScheduled(ctx context.Context, chatID domain.ChatID, args []string) string {
	tables, err := s.content.ReloadScheduled(ctx)
	return reloadReply("Reloaded scheduled hype messages: "+FormatSlotCounts(s.content.SlotNames(), tables.Scheduled), err)
}

// reloadReply reports what was published. A load error still publishes the
// built-in defaults, so it is only noted.
func reloadReply(summary string, err error) string {
	if err == nil {
		return summary
	}
	return fmt.Sprintf("%s (file unreadable, using built-in defaults: %v)", summary, err)
}

// FormatSlotCounts renders "gm=1, noon=1, gn=1" in slot order
func FormatSlotCounts(slots []string, scheduled map[string][]string) string {
	parts := make([]string, len(slots))
	for i, name := range slots {
		parts[i] = fmt.Sprintf("%s=%d", name, len(scheduled[name]))
	}
	return strings.Join(parts, ", ")
}
