package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
	"github.com/rs/zerolog"
)

const openAPIBase = "https://open.feishu.cn/open-apis"

// Message represents a received Feishu message
type Message struct {
	ChatID      string
	MsgID       string
	MsgType     string    // text, post
	ChatType    string    // p2p (private), group
	Content     string    // Text content with mention placeholders replaced by @name
	Sender      *Sender   // Message sender info
	Mentions    []Mention // Mentioned users in message order
	MentionsBot bool      // True if the bot was mentioned
	CreateTime  int64     // Message creation time (milliseconds Unix timestamp from Feishu)
}

// Sender represents the message sender
type Sender struct {
	SenderID   string // open_id
	SenderType string // user, app
	TenantKey  string
}

// IsApp reports whether the message was sent by an app (bot)
func (s *Sender) IsApp() bool {
	return s != nil && s.SenderType == "app"
}

// Mention is a user mentioned in a message
type Mention struct {
	Key    string // placeholder in the raw text, e.g. @_user_1
	OpenID string
	Name   string
}

// BotInfo is the bot account reported by the open platform
type BotInfo struct {
	OpenID  string
	AppName string
}

// MessageHandler is the callback for received messages
type MessageHandler func(msg *Message)

// Client is the Feishu API client
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
	wsCli     *larkws.Client
	onMessage MessageHandler
	httpCli   *http.Client
	log       zerolog.Logger

	mu  sync.RWMutex
	bot BotInfo
}

// NewClient creates a new Feishu client
func NewClient(appID, appSecret string, log zerolog.Logger) *Client {
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		larkCli:   lark.NewClient(appID, appSecret),
		httpCli:   http.DefaultClient,
		log:       log.With().Str("component", "feishu").Logger(),
	}
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler MessageHandler) {
	c.onMessage = handler
}

// Bot returns the bot account learned at startup
func (c *Client) Bot() BotInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bot
}

// Start connects to Feishu via WebSocket and blocks until ctx is cancelled
func (c *Client) Start(ctx context.Context) error {
	if _, err := c.FetchBotInfo(ctx); err != nil {
		c.log.Warn().Err(err).Msg("Failed to fetch bot info")
	}

	// Must return quickly so the SDK can ACK, otherwise Feishu retries the event
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			go c.handleMessage(event)
			return nil
		})

	c.wsCli = larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	c.log.Info().Msg("Starting WebSocket connection")
	return c.wsCli.Start(ctx)
}

// FetchBotInfo fetches the bot's own open_id and name
func (c *Client) FetchBotInfo(ctx context.Context) (BotInfo, error) {
	token, err := c.tenantAccessToken(ctx)
	if err != nil {
		return BotInfo{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, openAPIBase+"/bot/v3/info", nil)
	if err != nil {
		return BotInfo{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return BotInfo{}, fmt.Errorf("get bot info: %w", err)
	}
	defer resp.Body.Close()

	var botResult struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Bot  struct {
			OpenID  string `json:"open_id"`
			AppName string `json:"app_name"`
		} `json:"bot"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&botResult); err != nil {
		return BotInfo{}, fmt.Errorf("decode bot info: %w", err)
	}
	if botResult.Code != 0 {
		return BotInfo{}, fmt.Errorf("API error: %s", botResult.Msg)
	}

	info := BotInfo{OpenID: botResult.Bot.OpenID, AppName: botResult.Bot.AppName}
	c.mu.Lock()
	c.bot = info
	c.mu.Unlock()
	c.log.Info().Str("open_id", info.OpenID).Str("name", info.AppName).Msg("Bot info")
	return info, nil
}

func (c *Client) tenantAccessToken(ctx context.Context) (string, error) {
	body, _ := json.Marshal(map[string]string{"app_id": c.appID, "app_secret": c.appSecret})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		openAPIBase+"/auth/v3/tenant_access_token/internal", strings.NewReader(string(body)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return "", fmt.Errorf("get token: %w", err)
	}
	defer resp.Body.Close()

	var tokenResult struct {
		Code              int    `json:"code"`
		Msg               string `json:"msg"`
		TenantAccessToken string `json:"tenant_access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResult); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	if tokenResult.Code != 0 {
		return "", fmt.Errorf("token API error: %s", tokenResult.Msg)
	}
	return tokenResult.TenantAccessToken, nil
}

// handleMessage converts an incoming event and passes it to the handler
func (c *Client) handleMessage(event *larkim.P2MessageReceiveV1) {
	if event.Event == nil {
		return
	}
	msg := c.convertEvent(event.Event)
	if msg == nil {
		return
	}

	c.log.Debug().
		Str("chat_id", msg.ChatID).
		Str("msg_type", msg.MsgType).
		Str("content", truncate(msg.Content, 50)).
		Msg("Received message")

	if c.onMessage != nil {
		c.onMessage(msg)
	}
}

// convertEvent returns nil for messages without text
func (c *Client) convertEvent(ev *larkim.P2MessageReceiveV1Data) *Message {
	rawMsg := ev.Message
	if rawMsg == nil || rawMsg.ChatId == nil || rawMsg.MessageType == nil || rawMsg.Content == nil {
		return nil
	}

	msg := &Message{
		ChatID:  *rawMsg.ChatId,
		MsgType: *rawMsg.MessageType,
	}
	if rawMsg.MessageId != nil {
		msg.MsgID = *rawMsg.MessageId
	}
	if rawMsg.CreateTime != nil {
		if ts, err := strconv.ParseInt(*rawMsg.CreateTime, 10, 64); err == nil {
			msg.CreateTime = ts
		}
	}
	if rawMsg.ChatType != nil {
		msg.ChatType = *rawMsg.ChatType
	}

	if ev.Sender != nil {
		msg.Sender = &Sender{}
		if ev.Sender.SenderId != nil && ev.Sender.SenderId.OpenId != nil {
			msg.Sender.SenderID = *ev.Sender.SenderId.OpenId
		}
		if ev.Sender.SenderType != nil {
			msg.Sender.SenderType = *ev.Sender.SenderType
		}
		if ev.Sender.TenantKey != nil {
			msg.Sender.TenantKey = *ev.Sender.TenantKey
		}
	}

	botOpenID := c.Bot().OpenID
	mentionMap := make(map[string]string)
	for _, m := range rawMsg.Mentions {
		var mention Mention
		if m.Key != nil {
			mention.Key = *m.Key
		}
		if m.Name != nil {
			mention.Name = *m.Name
		}
		if m.Id != nil && m.Id.OpenId != nil {
			mention.OpenID = *m.Id.OpenId
		}
		if mention.OpenID != "" && mention.OpenID == botOpenID {
			msg.MentionsBot = true
		}
		if mention.Key != "" && mention.Name != "" {
			mentionMap[mention.Key] = mention.Name
		}
		msg.Mentions = append(msg.Mentions, mention)
	}

	switch msg.MsgType {
	case "text":
		msg.Content = parseTextContent(*rawMsg.Content, mentionMap)
	case "post":
		msg.Content = parsePostContent(*rawMsg.Content, mentionMap)
	default:
		c.log.Debug().Str("msg_type", msg.MsgType).Msg("Unsupported message type")
		return nil
	}
	return msg
}

// SendText sends a text message to a chat
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	content := map[string]string{"text": text}
	contentJSON, _ := json.Marshal(content)

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send message error: %s", resp.Msg)
	}
	return nil
}
