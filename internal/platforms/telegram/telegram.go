package telegram

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kayz/copydesk/internal/logger"
	"github.com/kayz/copydesk/internal/notify"
)

// Platform implements notify.Platform for Telegram
type Platform struct {
	bot            *tgbotapi.BotAPI
	chatID         string
	messageHandler func(msg notify.Message)
	ctx            context.Context
	cancel         context.CancelFunc
}

// Config holds Telegram configuration
type Config struct {
	Token  string // Bot token from @BotFather
	ChatID string // only messages from this chat are delivered; empty means all
}

// New creates a new Telegram platform
func New(cfg Config) (*Platform, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("Telegram bot token is required")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	return &Platform{
		bot:    bot,
		chatID: cfg.ChatID,
	}, nil
}

// Name returns the platform name
func (p *Platform) Name() string {
	return "telegram"
}

// SetMessageHandler sets the callback for incoming messages
func (p *Platform) SetMessageHandler(handler func(msg notify.Message)) {
	p.messageHandler = handler
}

// Start begins listening for Telegram updates
func (p *Platform) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := p.bot.GetUpdatesChan(u)

	go p.handleUpdates(updates)

	logger.Info("[Telegram] Connected as bot: @%s", p.bot.Self.UserName)
	return nil
}

// Stop shuts down the Telegram connection
func (p *Platform) Stop() error {
	if p.cancel != nil {
		p.cancel()
	}
	p.bot.StopReceivingUpdates()
	return nil
}

// Send posts a standalone message to a chat
func (p *Platform) Send(ctx context.Context, channelID, text string) error {
	chatID, err := parseChatID(channelID)
	if err != nil {
		return err
	}
	_, err = p.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// Reply posts a reply to the given message
func (p *Platform) Reply(ctx context.Context, channelID, messageID, text string) error {
	chatID, err := parseChatID(channelID)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if msgID, err := strconv.Atoi(messageID); err == nil {
		msg.ReplyToMessageID = msgID
	}
	_, err = p.bot.Send(msg)
	return err
}

// AddMarker is a no-op: the bot API exposes no reactions, so status is
// carried entirely by the threaded reply.
func (p *Platform) AddMarker(ctx context.Context, channelID, messageID string, m notify.Marker) error {
	logger.Trace("[Telegram] Marker %s on %s skipped (no reactions API)", m, messageID)
	return nil
}

// RemoveMarker is a no-op, see AddMarker.
func (p *Platform) RemoveMarker(ctx context.Context, channelID, messageID string, m notify.Marker) error {
	return nil
}

func (p *Platform) handleUpdates(updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-p.ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			// Channel posts and group messages both carry notifications
			msg := update.Message
			if msg == nil {
				msg = update.ChannelPost
			}
			if msg == nil {
				continue
			}
			p.handleMessage(msg)
		}
	}
}

func (p *Platform) handleMessage(m *tgbotapi.Message) {
	chatID := strconv.FormatInt(m.Chat.ID, 10)
	if p.chatID != "" && chatID != p.chatID {
		return
	}
	if p.messageHandler == nil {
		return
	}

	username := ""
	userID := ""
	if m.From != nil {
		username = m.From.UserName
		userID = strconv.FormatInt(m.From.ID, 10)
	}

	p.messageHandler(notify.Message{
		ID:        strconv.Itoa(m.MessageID),
		Platform:  "telegram",
		ChannelID: chatID,
		UserID:    userID,
		Username:  username,
		Text:      m.Text,
	})
}

func parseChatID(channelID string) (int64, error) {
	chatID, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid Telegram chat ID %q: %w", channelID, err)
	}
	return chatID, nil
}
