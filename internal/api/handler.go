package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bedlam520/hype-bridge/internal/biz/domain"
	"github.com/bedlam520/hype-bridge/internal/biz/usecase"
)

// LedgerSource exposes the broadcast ledger
type LedgerSource interface {
	Records() []domain.LedgerRecord
}

// Server provides the admin HTTP API used by operators and hype-mcp
type Server struct {
	store    *usecase.ChatStateStore
	content  *usecase.ContentStore
	defaults *usecase.Defaults
	replyUC  *usecase.ReplyUsecase
	ledger   LedgerSource
	now      func() time.Time
	log      zerolog.Logger

	server *http.Server
	addr   string
}

// NewServer creates a new API server listening on addr. ledger may be nil.
func NewServer(
	store *usecase.ChatStateStore,
	content *usecase.ContentStore,
	defaults *usecase.Defaults,
	replyUC *usecase.ReplyUsecase,
	ledger LedgerSource,
	now func() time.Time,
	addr string,
	log zerolog.Logger,
) *Server {
	if now == nil {
		now = time.Now
	}
	s := &Server{
		store:    store,
		content:  content,
		defaults: defaults,
		replyUC:  replyUC,
		ledger:   ledger,
		now:      now,
		addr:     addr,
		log:      log.With().Str("component", "api").Logger(),
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routing handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Chat state
	mux.HandleFunc("/api/chats", s.handleChats)
	mux.HandleFunc("/api/chats/", s.handleChat)

	// Content
	mux.HandleFunc("/api/content", s.handleContent)
	mux.HandleFunc("/api/reload/", s.handleReload)

	// Engine defaults and broadcast ledger
	mux.HandleFunc("/api/defaults", s.handleDefaults)
	mux.HandleFunc("/api/ledger", s.handleLedger)

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.addr).Msg("Starting HTTP server")
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.addr
}

// ChatStatus is the admin view of one chat
type ChatStatus struct {
	ChatID                   string   `json:"chat_id"`
	Active                   bool     `json:"active"`
	ScheduledBroadcast       bool     `json:"scheduled_broadcast"`
	IdleMinutes              int      `json:"idle_minutes"`
	CooldownSeconds          int      `json:"cooldown_seconds"`
	KeywordProb              float64  `json:"keyword_prob"`
	MentionProb              float64  `json:"mention_prob"`
	GeneralProb              float64  `json:"general_prob"`
	Overrides                []string `json:"overrides,omitempty"`
	LastActivityAt           string   `json:"last_activity_at,omitempty"`
	CooldownRemainingSeconds int      `json:"cooldown_remaining_seconds"`
}

func (s *Server) chatStatus(st domain.ChatState) ChatStatus {
	eff := s.defaults.For(st.ChatSettings)
	status := ChatStatus{
		ChatID:                   string(st.ChatID),
		Active:                   st.Active,
		ScheduledBroadcast:       st.ScheduledBroadcastEnabled,
		IdleMinutes:              int(eff.IdleInterval / time.Minute),
		CooldownSeconds:          int(eff.Cooldown / time.Second),
		KeywordProb:              float64(eff.KeywordProb),
		MentionProb:              float64(eff.MentionProb),
		GeneralProb:              float64(eff.GeneralProb),
		CooldownRemainingSeconds: int(st.CooldownRemaining(s.now()) / time.Second),
	}
	if !st.LastActivityAt.IsZero() {
		status.LastActivityAt = st.LastActivityAt.UTC().Format(time.RFC3339)
	}
	if st.IdleInterval.Valid {
		status.Overrides = append(status.Overrides, "idle")
	}
	if st.Cooldown.Valid {
		status.Overrides = append(status.Overrides, "cooldown")
	}
	if st.KeywordProb.Valid {
		status.Overrides = append(status.Overrides, "keyword_prob")
	}
	if st.MentionProb.Valid {
		status.Overrides = append(status.Overrides, "mention_prob")
	}
	if st.GeneralProb.Valid {
		status.Overrides = append(status.Overrides, "general_prob")
	}
	return status
}

// ============ Chat Handlers ============

func (s *Server) handleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ids := s.store.ChatIDs()
	chats := make([]ChatStatus, 0, len(ids))
	for _, id := range ids {
		chats = append(chats, s.chatStatus(s.store.Get(id)))
	}
	s.writeJSON(w, map[string]interface{}{"chats": chats})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	// Parse path: /api/chats/{chat_id} or /api/chats/{chat_id}/{action}
	path := strings.TrimPrefix(r.URL.Path, "/api/chats/")
	chatID, action, _ := strings.Cut(path, "/")
	if chatID == "" {
		http.Error(w, "chat_id is required", http.StatusBadRequest)
		return
	}
	id := domain.ChatID(chatID)

	if action == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.writeJSON(w, s.chatStatus(s.store.Get(id)))
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch action {
	case "active":
		s.handleSetActive(w, r, id)
	case "idle":
		s.handleSetIdle(w, r, id)
	case "probability":
		s.handleSetProbability(w, r, id)
	case "cooldown":
		s.handleSetCooldown(w, r, id)
	case "calmdown":
		s.handleExtendCooldown(w, r, id)
	case "broadcast":
		s.handleSetBroadcast(w, r, id)
	case "reset":
		s.writeJSON(w, s.chatStatus(s.store.ResetOverrides(id)))
	case "hype":
		s.handleHype(w, r, id)
	default:
		http.Error(w, "unknown action", http.StatusNotFound)
	}
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request, id domain.ChatID) {
	var req struct {
		Active *bool `json:"active"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Active == nil {
		http.Error(w, "active is required", http.StatusBadRequest)
		return
	}
	s.writeJSON(w, s.chatStatus(s.store.SetActive(id, *req.Active)))
}

func (s *Server) handleSetIdle(w http.ResponseWriter, r *http.Request, id domain.ChatID) {
	var req struct {
		Minutes int `json:"minutes"`
	}
	if !decode(w, r, &req) {
		return
	}
	st := s.store.SetIdleInterval(id, time.Duration(req.Minutes)*time.Minute)
	s.writeJSON(w, s.chatStatus(st))
}

func (s *Server) handleSetProbability(w http.ResponseWriter, r *http.Request, id domain.ChatID) {
	var req struct {
		Kind  string          `json:"kind"`
		Value json.RawMessage `json:"value"`
	}
	if !decode(w, r, &req) {
		return
	}
	kind, err := domain.ParseProbabilityKind(req.Kind)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	// accepts 0.75, "0.75" and "75%"
	p, err := domain.ParseProbability(strings.Trim(string(req.Value), `"`))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	st, err := s.store.SetProbability(id, kind, float64(p))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, s.chatStatus(st))
}

func (s *Server) handleSetCooldown(w http.ResponseWriter, r *http.Request, id domain.ChatID) {
	var req struct {
		Seconds int `json:"seconds"`
	}
	if !decode(w, r, &req) {
		return
	}
	st := s.store.SetCooldown(id, time.Duration(req.Seconds)*time.Second)
	s.writeJSON(w, s.chatStatus(st))
}

func (s *Server) handleExtendCooldown(w http.ResponseWriter, r *http.Request, id domain.ChatID) {
	var req struct {
		Seconds int `json:"seconds"`
	}
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	delta := time.Duration(req.Seconds) * time.Second
	if delta <= 0 {
		delta = usecase.CalmdownDelta
	}
	s.writeJSON(w, s.chatStatus(s.store.ExtendCooldown(id, delta)))
}

func (s *Server) handleSetBroadcast(w http.ResponseWriter, r *http.Request, id domain.ChatID) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		http.Error(w, "enabled is required", http.StatusBadRequest)
		return
	}
	s.writeJSON(w, s.chatStatus(s.store.SetScheduledBroadcastEnabled(id, *req.Enabled)))
}

func (s *Server) handleHype(w http.ResponseWriter, r *http.Request, id domain.ChatID) {
	if s.replyUC == nil {
		http.Error(w, "hype is not available", http.StatusServiceUnavailable)
		return
	}
	out, err := s.replyUC.Hype(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if out == nil {
		s.writeJSON(w, map[string]interface{}{"sent": false})
		return
	}
	s.writeJSON(w, map[string]interface{}{"sent": true, "text": out.Text})
}

// ============ Content Handlers ============

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, contentSummary(s.content.Tables(), s.content.SlotNames()))
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	var err error
	switch strings.TrimPrefix(r.URL.Path, "/api/reload/") {
	case "keywords":
		_, err = s.content.ReloadKeywords(ctx)
	case "general":
		_, err = s.content.ReloadGeneral(ctx)
	case "idle":
		_, err = s.content.ReloadIdle(ctx)
	case "scheduled":
		_, err = s.content.ReloadScheduled(ctx)
	case "all":
		err = s.content.ReloadAll(ctx)
	default:
		http.Error(w, "unknown content", http.StatusNotFound)
		return
	}

	// defaults are published on failure; report both
	result := contentSummary(s.content.Tables(), s.content.SlotNames())
	if err != nil {
		result["error"] = err.Error()
	}
	s.writeJSON(w, result)
}

func contentSummary(t *domain.ContentTables, slots []string) map[string]interface{} {
	keys := make([]string, len(t.Keywords))
	for i, e := range t.Keywords {
		keys[i] = e.Key
	}
	scheduled := make(map[string]int, len(slots))
	for _, name := range slots {
		scheduled[name] = len(t.Scheduled[name])
	}
	return map[string]interface{}{
		"keywords":  keys,
		"general":   len(t.General),
		"idle":      len(t.Idle),
		"scheduled": scheduled,
	}
}

// ============ Defaults & Ledger ============

func (s *Server) handleDefaults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	d := s.defaults.Get()
	s.writeJSON(w, map[string]interface{}{
		"bot_handle":       s.defaults.BotHandle(),
		"idle_minutes":     int(d.IdleInterval / time.Minute),
		"cooldown_seconds": int(d.Cooldown / time.Second),
		"keyword_prob":     float64(d.KeywordProb),
		"mention_prob":     float64(d.MentionProb),
		"general_prob":     float64(d.GeneralProb),
	})
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	type record struct {
		ChatID string `json:"chat_id"`
		Slot   string `json:"slot"`
		Day    string `json:"day"`
	}
	records := []record{}
	if s.ledger != nil {
		for _, rec := range s.ledger.Records() {
			records = append(records, record{ChatID: string(rec.ChatID), Slot: rec.Slot, Day: rec.Day})
		}
	}
	s.writeJSON(w, map[string]interface{}{"records": records})
}

// ============ Helpers ============

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.log.Warn().Err(err).Msg("Request failed")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
