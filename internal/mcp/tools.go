package mcp

import (
	"context"
	"fmt"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server exposes the admin API as MCP tools
type Server struct {
	server *gomcp.Server
	client *Client
}

// NewServer creates an MCP server whose tools call the admin API
func NewServer(client *Client, version string) *Server {
	if version == "" {
		version = "dev"
	}
	s := &Server{
		server: gomcp.NewServer(&gomcp.Implementation{
			Name:    "hype-tools",
			Version: version,
		}, nil),
		client: client,
	}
	s.registerTools()
	return s
}

// Run serves MCP over stdio until ctx is cancelled or the client disconnects
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "hype_list_chats",
		Description: "List every chat the bot knows with its effective settings.",
	}, s.handleListChats)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "hype_chat_status",
		Description: "Show one chat's settings, overrides and remaining cooldown.",
	}, s.handleChatStatus)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "hype_set_active",
		Description: "Turn the bot on or off in a chat. Inactive chats get no replies, idle prompts or scheduled messages.",
	}, s.handleSetActive)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "hype_set_idle",
		Description: "Set how many minutes of silence trigger an idle prompt in a chat (minimum 1).",
	}, s.handleSetIdle)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "hype_set_probability",
		Description: "Set a reply probability (keyword, mention or general) for a chat. Accepts 0.75 or 75%.",
	}, s.handleSetProbability)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "hype_set_cooldown",
		Description: "Set the minimum number of seconds between replies in a chat.",
	}, s.handleSetCooldown)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "hype_calmdown",
		Description: "Extend a chat's current cooldown (default 40 seconds).",
	}, s.handleCalmdown)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "hype_set_broadcast",
		Description: "Opt a chat in or out of the scheduled daily messages.",
	}, s.handleSetBroadcast)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "hype_reset_chat",
		Description: "Drop every per-chat override so the chat uses the global defaults again.",
	}, s.handleResetChat)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "hype_send",
		Description: "Send one random keyword response to a chat right now.",
	}, s.handleHype)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "hype_reload",
		Description: "Reload content files: keywords, general, idle, scheduled or all.",
	}, s.handleReload)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "hype_ledger",
		Description: "List the scheduled messages already sent today.",
	}, s.handleLedger)
}

// ChatInput selects a chat
type ChatInput struct {
	ChatID string `json:"chat_id" jsonschema:"the chat id"`
}

// ChatOutput is the result of a chat tool
type ChatOutput struct {
	Chat  *ChatStatus `json:"chat,omitempty"`
	Error string      `json:"error,omitempty"`
}

func chatResult(st *ChatStatus, err error) (*gomcp.CallToolResult, ChatOutput, error) {
	if err != nil {
		return nil, ChatOutput{Error: err.Error()}, nil
	}
	return nil, ChatOutput{Chat: st}, nil
}

func requireChat(chatID string) error {
	if chatID == "" {
		return fmt.Errorf("chat_id is required")
	}
	return nil
}

// ListChatsInput takes no arguments
type ListChatsInput struct{}

// ListChatsOutput lists known chats
type ListChatsOutput struct {
	Chats []ChatStatus `json:"chats"`
	Error string       `json:"error,omitempty"`
}

func (s *Server) handleListChats(ctx context.Context, req *gomcp.CallToolRequest, input ListChatsInput) (*gomcp.CallToolResult, ListChatsOutput, error) {
	chats, err := s.client.ListChats(ctx)
	if err != nil {
		return nil, ListChatsOutput{Error: err.Error()}, nil
	}
	return nil, ListChatsOutput{Chats: chats}, nil
}

func (s *Server) handleChatStatus(ctx context.Context, req *gomcp.CallToolRequest, input ChatInput) (*gomcp.CallToolResult, ChatOutput, error) {
	if err := requireChat(input.ChatID); err != nil {
		return chatResult(nil, err)
	}
	return chatResult(s.client.GetChat(ctx, input.ChatID))
}

// SetActiveInput toggles the bot in a chat
type SetActiveInput struct {
	ChatID string `json:"chat_id" jsonschema:"the chat id"`
	Active bool   `json:"active" jsonschema:"true to activate, false to silence"`
}

func (s *Server) handleSetActive(ctx context.Context, req *gomcp.CallToolRequest, input SetActiveInput) (*gomcp.CallToolResult, ChatOutput, error) {
	if err := requireChat(input.ChatID); err != nil {
		return chatResult(nil, err)
	}
	return chatResult(s.client.SetActive(ctx, input.ChatID, input.Active))
}

// SetIdleInput sets the idle interval
type SetIdleInput struct {
	ChatID  string `json:"chat_id" jsonschema:"the chat id"`
	Minutes int    `json:"minutes" jsonschema:"minutes of silence before an idle prompt"`
}

func (s *Server) handleSetIdle(ctx context.Context, req *gomcp.CallToolRequest, input SetIdleInput) (*gomcp.CallToolResult, ChatOutput, error) {
	if err := requireChat(input.ChatID); err != nil {
		return chatResult(nil, err)
	}
	return chatResult(s.client.SetIdle(ctx, input.ChatID, input.Minutes))
}

// SetProbabilityInput sets one reply probability
type SetProbabilityInput struct {
	ChatID string `json:"chat_id" jsonschema:"the chat id"`
	Kind   string `json:"kind" jsonschema:"keyword, mention or general"`
	Value  string `json:"value" jsonschema:"probability such as 0.75 or 75%"`
}

func (s *Server) handleSetProbability(ctx context.Context, req *gomcp.CallToolRequest, input SetProbabilityInput) (*gomcp.CallToolResult, ChatOutput, error) {
	if err := requireChat(input.ChatID); err != nil {
		return chatResult(nil, err)
	}
	return chatResult(s.client.SetProbability(ctx, input.ChatID, input.Kind, input.Value))
}

// SetCooldownInput sets the reply cooldown
type SetCooldownInput struct {
	ChatID  string `json:"chat_id" jsonschema:"the chat id"`
	Seconds int    `json:"seconds" jsonschema:"seconds between replies"`
}

func (s *Server) handleSetCooldown(ctx context.Context, req *gomcp.CallToolRequest, input SetCooldownInput) (*gomcp.CallToolResult, ChatOutput, error) {
	if err := requireChat(input.ChatID); err != nil {
		return chatResult(nil, err)
	}
	return chatResult(s.client.SetCooldown(ctx, input.ChatID, input.Seconds))
}

// CalmdownInput extends the cooldown
type CalmdownInput struct {
	ChatID  string `json:"chat_id" jsonschema:"the chat id"`
	Seconds int    `json:"seconds,omitempty" jsonschema:"seconds to add (default 40)"`
}

func (s *Server) handleCalmdown(ctx context.Context, req *gomcp.CallToolRequest, input CalmdownInput) (*gomcp.CallToolResult, ChatOutput, error) {
	if err := requireChat(input.ChatID); err != nil {
		return chatResult(nil, err)
	}
	return chatResult(s.client.Calmdown(ctx, input.ChatID, input.Seconds))
}

// SetBroadcastInput toggles scheduled messages
type SetBroadcastInput struct {
	ChatID  string `json:"chat_id" jsonschema:"the chat id"`
	Enabled bool   `json:"enabled" jsonschema:"true to receive scheduled messages"`
}

func (s *Server) handleSetBroadcast(ctx context.Context, req *gomcp.CallToolRequest, input SetBroadcastInput) (*gomcp.CallToolResult, ChatOutput, error) {
	if err := requireChat(input.ChatID); err != nil {
		return chatResult(nil, err)
	}
	return chatResult(s.client.SetBroadcast(ctx, input.ChatID, input.Enabled))
}

func (s *Server) handleResetChat(ctx context.Context, req *gomcp.CallToolRequest, input ChatInput) (*gomcp.CallToolResult, ChatOutput, error) {
	if err := requireChat(input.ChatID); err != nil {
		return chatResult(nil, err)
	}
	return chatResult(s.client.ResetChat(ctx, input.ChatID))
}

// HypeOutput reports what was sent
type HypeOutput struct {
	Sent  bool   `json:"sent"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleHype(ctx context.Context, req *gomcp.CallToolRequest, input ChatInput) (*gomcp.CallToolResult, HypeOutput, error) {
	if err := requireChat(input.ChatID); err != nil {
		return nil, HypeOutput{Error: err.Error()}, nil
	}
	result, err := s.client.Hype(ctx, input.ChatID)
	if err != nil {
		return nil, HypeOutput{Error: err.Error()}, nil
	}
	return nil, HypeOutput{Sent: result.Sent, Text: result.Text}, nil
}

// ReloadInput selects the content to reload
type ReloadInput struct {
	What string `json:"what,omitempty" jsonschema:"keywords, general, idle, scheduled or all (default all)"`
}

// ReloadOutput is the content after the reload
type ReloadOutput struct {
	Content *ContentSummary `json:"content,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (s *Server) handleReload(ctx context.Context, req *gomcp.CallToolRequest, input ReloadInput) (*gomcp.CallToolResult, ReloadOutput, error) {
	what := input.What
	if what == "" {
		what = "all"
	}
	summary, err := s.client.Reload(ctx, what)
	if err != nil {
		return nil, ReloadOutput{Error: err.Error()}, nil
	}
	// a failed file load still publishes defaults; surface the reason
	return nil, ReloadOutput{Content: summary, Error: summary.Error}, nil
}

// LedgerInput takes no arguments
type LedgerInput struct{}

// LedgerOutput lists sent scheduled messages
type LedgerOutput struct {
	Records []LedgerRecord `json:"records"`
	Error   string         `json:"error,omitempty"`
}

func (s *Server) handleLedger(ctx context.Context, req *gomcp.CallToolRequest, input LedgerInput) (*gomcp.CallToolResult, LedgerOutput, error) {
	records, err := s.client.GetLedger(ctx)
	if err != nil {
		return nil, LedgerOutput{Error: err.Error()}, nil
	}
	return nil, LedgerOutput{Records: records}, nil
}
