package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is the HTTP client for the hype-bridge admin API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new admin API client
func NewClient(baseURL string) *Client {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ChatStatus mirrors the admin API view of one chat
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

// ContentSummary describes the loaded content tables
type ContentSummary struct {
	Keywords  []string       `json:"keywords"`
	General   int            `json:"general"`
	Idle      int            `json:"idle"`
	Scheduled map[string]int `json:"scheduled"`
	Error     string         `json:"error,omitempty"`
}

// LedgerRecord is one scheduled broadcast already sent
type LedgerRecord struct {
	ChatID string `json:"chat_id"`
	Slot   string `json:"slot"`
	Day    string `json:"day"`
}

// HypeResult reports what /hype sent
type HypeResult struct {
	Sent bool   `json:"sent"`
	Text string `json:"text,omitempty"`
}

// ============ Chats ============

// ListChats returns every known chat
func (c *Client) ListChats(ctx context.Context) ([]ChatStatus, error) {
	var result struct {
		Chats []ChatStatus `json:"chats"`
	}
	if err := c.get(ctx, "/api/chats", &result); err != nil {
		return nil, err
	}
	return result.Chats, nil
}

// GetChat returns one chat's status
func (c *Client) GetChat(ctx context.Context, chatID string) (*ChatStatus, error) {
	var st ChatStatus
	if err := c.get(ctx, chatPath(chatID, ""), &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// SetActive turns the bot on or off in a chat
func (c *Client) SetActive(ctx context.Context, chatID string, active bool) (*ChatStatus, error) {
	return c.chatAction(ctx, chatID, "active", map[string]interface{}{"active": active})
}

// SetIdle sets the chat's idle interval in minutes
func (c *Client) SetIdle(ctx context.Context, chatID string, minutes int) (*ChatStatus, error) {
	return c.chatAction(ctx, chatID, "idle", map[string]interface{}{"minutes": minutes})
}

// SetProbability sets a reply probability; value accepts "0.75" or "75%"
func (c *Client) SetProbability(ctx context.Context, chatID, kind, value string) (*ChatStatus, error) {
	return c.chatAction(ctx, chatID, "probability", map[string]interface{}{"kind": kind, "value": value})
}

// SetCooldown sets the chat's reply cooldown in seconds
func (c *Client) SetCooldown(ctx context.Context, chatID string, seconds int) (*ChatStatus, error) {
	return c.chatAction(ctx, chatID, "cooldown", map[string]interface{}{"seconds": seconds})
}

// Calmdown extends the chat's current cooldown; seconds <= 0 uses the default
func (c *Client) Calmdown(ctx context.Context, chatID string, seconds int) (*ChatStatus, error) {
	return c.chatAction(ctx, chatID, "calmdown", map[string]interface{}{"seconds": seconds})
}

// SetBroadcast opts a chat in or out of scheduled broadcasts
func (c *Client) SetBroadcast(ctx context.Context, chatID string, enabled bool) (*ChatStatus, error) {
	return c.chatAction(ctx, chatID, "broadcast", map[string]interface{}{"enabled": enabled})
}

// ResetChat drops the chat's overrides
func (c *Client) ResetChat(ctx context.Context, chatID string) (*ChatStatus, error) {
	return c.chatAction(ctx, chatID, "reset", map[string]interface{}{})
}

// Hype sends a random keyword response to the chat now
func (c *Client) Hype(ctx context.Context, chatID string) (*HypeResult, error) {
	var result HypeResult
	if err := c.post(ctx, chatPath(chatID, "hype"), map[string]interface{}{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) chatAction(ctx context.Context, chatID, action string, body interface{}) (*ChatStatus, error) {
	var st ChatStatus
	if err := c.post(ctx, chatPath(chatID, action), body, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func chatPath(chatID, action string) string {
	p := "/api/chats/" + url.PathEscape(chatID)
	if action != "" {
		p += "/" + action
	}
	return p
}

// ============ Content & Ledger ============

// GetContent returns the loaded content summary
func (c *Client) GetContent(ctx context.Context) (*ContentSummary, error) {
	var result ContentSummary
	if err := c.get(ctx, "/api/content", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Reload reloads one content table (keywords, general, idle, scheduled or all)
func (c *Client) Reload(ctx context.Context, what string) (*ContentSummary, error) {
	var result ContentSummary
	if err := c.post(ctx, "/api/reload/"+url.PathEscape(what), map[string]interface{}{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetLedger returns the scheduled broadcasts sent today
func (c *Client) GetLedger(ctx context.Context) ([]LedgerRecord, error) {
	var result struct {
		Records []LedgerRecord `json:"records"`
	}
	if err := c.get(ctx, "/api/ledger", &result); err != nil {
		return nil, err
	}
	return result.Records, nil
}

// ============ HTTP Helpers ============

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, "GET", result)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, "POST", result)
}

func (c *Client) do(req *http.Request, method string, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
