package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dkovac/seeker/internal/bus"
	"github.com/dkovac/seeker/internal/channel"
	"github.com/dkovac/seeker/internal/config"
	"github.com/dkovac/seeker/internal/input"
	"github.com/dkovac/seeker/internal/notify"
	"github.com/dkovac/seeker/internal/render"
)

var (
	boldStarRe   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	boldUnderRe  = regexp.MustCompile(`__(.+?)__`)
	codeInlineRe = regexp.MustCompile("`([^`]+)`")
)

// Decider applies human decisions to queued tool executions.
type Decider interface {
	Approve(id, userResponse, decidedBy string) bool
	Deny(id, reason, decidedBy string) bool
}

// Channel implements Telegram bot
type Channel struct {
	channel.BaseChannel
	cfg      *config.TelegramConfig
	bot      *tgbotapi.BotAPI
	inputs   *input.Registry
	decider  Decider
	notifier *notify.Notifier
}

// New creates a Telegram channel. inputs, decider and notifier enable the
// operator commands (/answer, /approve, /deny) and pending notifications;
// any of them may be nil to run a chat-only bot.
func New(cfg *config.TelegramConfig, msgBus *bus.MessageBus, inputs *input.Registry, decider Decider, notifier *notify.Notifier) *Channel {
	return &Channel{
		BaseChannel: channel.BaseChannel{
			Bus:   msgBus,
			Allow: channel.NewAllowList(cfg.AllowFrom),
		},
		cfg:      cfg,
		inputs:   inputs,
		decider:  decider,
		notifier: notifier,
	}
}

func (c *Channel) Name() string { return "telegram" }

func (c *Channel) Start(ctx context.Context) error {
	bot, err := tgbotapi.NewBotAPI(c.cfg.Token)
	if err != nil {
		return fmt.Errorf("telegram init failed: %w", err)
	}
	c.bot = bot

	slog.Info("telegram bot connected", "username", bot.Self.UserName)

	if c.notifier != nil && strings.TrimSpace(c.cfg.OperatorChatID) != "" {
		go c.pushPendingNotifications(ctx)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			c.handleMessage(update.Message)
		}
	}
}

// pushPendingNotifications forwards every pending event to the operator chat
// so approvals and input requests can be handled from the phone.
func (c *Channel) pushPendingNotifications(ctx context.Context) {
	events, cancel := c.notifier.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			text := renderEvent(evt)
			if text == "" {
				continue
			}
			if err := c.Send(ctx, &bus.OutboundMessage{
				Channel: "telegram",
				ChatID:  c.cfg.OperatorChatID,
				Content: text,
			}); err != nil {
				slog.Warn("telegram pending notification failed", "error", err)
			}
		}
	}
}

func renderEvent(evt notify.Event) string {
	switch evt.Type {
	case notify.TypeInputPending:
		return fmt.Sprintf("Input needed:\n%v\n\nReply with `/answer %v <text>`", evt.Payload["prompt"], evt.Payload["id"])
	case notify.TypeToolPending:
		return fmt.Sprintf("Approval needed: %v %v\n\n`/approve %v` or `/deny %v [reason]`",
			evt.Payload["tool_name"], evt.Payload["args"], evt.Payload["id"], evt.Payload["id"])
	case notify.TypeToolUpdate:
		status := fmt.Sprint(evt.Payload["status"])
		if status != "completed" && status != "error" {
			return ""
		}
		return fmt.Sprintf("Tool %v finished: %s", evt.Payload["id"], status)
	default:
		return ""
	}
}

func (c *Channel) handleMessage(msg *tgbotapi.Message) {
	senderID := fmt.Sprintf("%d", msg.From.ID)

	if !c.IsAllowed(senderID) {
		slog.Debug("unauthorized sender", "id", senderID)
		return
	}

	content := msg.Text
	if content == "" {
		content = msg.Caption
	}
	if content == "" {
		return
	}

	if reply, handled := c.handleOperatorCommand(content, senderID); handled {
		if c.bot != nil && reply != "" {
			if _, err := c.bot.Send(tgbotapi.NewMessage(msg.Chat.ID, reply)); err != nil {
				slog.Warn("telegram reply failed", "error", err)
			}
		}
		return
	}

	c.PublishInbound(&bus.InboundMessage{
		Channel:   "telegram",
		SenderID:  senderID,
		ChatID:    fmt.Sprintf("%d", msg.Chat.ID),
		Content:   content,
		Timestamp: time.Now(),
		RequestID: bus.NewRequestID(),
		Metadata: map[string]any{
			"message_id": msg.MessageID,
			"username":   msg.From.UserName,
		},
	})
}

// handleOperatorCommand intercepts /answer, /approve and /deny so pending
// decisions never round-trip through the model. Returns handled=false for
// everything else.
func (c *Channel) handleOperatorCommand(content, senderID string) (string, bool) {
	fields := strings.Fields(strings.TrimSpace(content))
	if len(fields) == 0 {
		return "", false
	}

	source := "telegram:" + senderID
	switch strings.ToLower(fields[0]) {
	case "/answer":
		if c.inputs == nil || len(fields) < 3 {
			return "usage: /answer <id> <text>", true
		}
		id := fields[1]
		answer := strings.Join(fields[2:], " ")
		if c.inputs.Answer(id, answer, source) {
			return "answer recorded", true
		}
		return "too late: answered elsewhere or expired", true

	case "/approve":
		if c.decider == nil || len(fields) < 2 {
			return "usage: /approve <id> [note]", true
		}
		note := strings.Join(fields[2:], " ")
		if c.decider.Approve(fields[1], note, source) {
			return "approved", true
		}
		return "too late: decided elsewhere", true

	case "/deny":
		if c.decider == nil || len(fields) < 2 {
			return "usage: /deny <id> [reason]", true
		}
		reason := strings.Join(fields[2:], " ")
		if c.decider.Deny(fields[1], reason, source) {
			return "denied", true
		}
		return "too late: decided elsewhere", true
	}
	return "", false
}

func (c *Channel) Send(ctx context.Context, msg *bus.OutboundMessage) error {
	if c.bot == nil {
		return fmt.Errorf("bot not initialized")
	}

	chatID, err := parseInt64(msg.ChatID)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", msg.ChatID, err)
	}
	html := renderMessageHTML(msg.Content)

	tgMsg := tgbotapi.NewMessage(chatID, html)
	tgMsg.ParseMode = "HTML"

	_, err = c.bot.Send(tgMsg)
	if err != nil {
		tgMsg.ParseMode = ""
		tgMsg.Text = msg.Content
		_, err = c.bot.Send(tgMsg)
	}
	return err
}

func (c *Channel) Stop(ctx context.Context) error {
	if c.bot != nil {
		c.bot.StopReceivingUpdates()
	}
	return nil
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

func renderMessageHTML(content string) string {
	think, main, hasThink := render.SplitThink(content)
	if hasThink {
		thinkHTML := markdownToHTML(think)
		mainHTML := markdownToHTML(main)
		if mainHTML == "" {
			return "Thinking:\n" + thinkHTML
		}
		return "Thinking:\n" + thinkHTML + "\n\n" + mainHTML
	}
	return markdownToHTML(content)
}

func markdownToHTML(text string) string {
	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")
	text = boldStarRe.ReplaceAllString(text, "<b>$1</b>")
	text = boldUnderRe.ReplaceAllString(text, "<b>$1</b>")
	text = codeInlineRe.ReplaceAllString(text, "<code>$1</code>")
	return text
}
