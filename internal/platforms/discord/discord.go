package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/kayz/copydesk/internal/logger"
	"github.com/kayz/copydesk/internal/notify"
)

// Platform implements notify.Platform for Discord
type Platform struct {
	session        *discordgo.Session
	botUserID      string
	channelID      string
	messageHandler func(msg notify.Message)
	ctx            context.Context
	cancel         context.CancelFunc
}

// Config holds Discord configuration
type Config struct {
	Token     string // Bot token from Discord Developer Portal
	ChannelID string // only messages from this channel are delivered; empty means all
}

// markerEmoji maps status markers onto Discord reactions.
var markerEmoji = map[notify.Marker]string{
	notify.MarkerWorking: "⏳",
	notify.MarkerSuccess: "✅",
	notify.MarkerFailure: "❌",
	notify.MarkerError:   "⚠️",
}

// New creates a new Discord platform
func New(cfg Config) (*Platform, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("Discord bot token is required")
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	// Notification bots post regular guild messages
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	return &Platform{
		session:   session,
		channelID: cfg.ChannelID,
	}, nil
}

// Name returns the platform name
func (p *Platform) Name() string {
	return "discord"
}

// SetMessageHandler sets the callback for incoming messages
func (p *Platform) SetMessageHandler(handler func(msg notify.Message)) {
	p.messageHandler = handler
}

// Start begins listening for Discord events
func (p *Platform) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.session.AddHandler(p.handleMessage)

	if err := p.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	user, err := p.session.User("@me")
	if err != nil {
		return fmt.Errorf("failed to get bot user: %w", err)
	}
	p.botUserID = user.ID

	logger.Info("[Discord] Connected as bot: %s", user.Username)
	return nil
}

// Stop shuts down the Discord connection
func (p *Platform) Stop() error {
	if p.cancel != nil {
		p.cancel()
	}
	return p.session.Close()
}

// Send posts a standalone message to a channel
func (p *Platform) Send(ctx context.Context, channelID, text string) error {
	_, err := p.session.ChannelMessageSend(channelID, text)
	return err
}

// Reply posts a reply referencing the given message
func (p *Platform) Reply(ctx context.Context, channelID, messageID, text string) error {
	_, err := p.session.ChannelMessageSendReply(channelID, text, &discordgo.MessageReference{
		MessageID: messageID,
		ChannelID: channelID,
	})
	return err
}

// AddMarker adds a status reaction to the given message
func (p *Platform) AddMarker(ctx context.Context, channelID, messageID string, m notify.Marker) error {
	return p.session.MessageReactionAdd(channelID, messageID, markerEmoji[m])
}

// RemoveMarker removes a status reaction from the given message
func (p *Platform) RemoveMarker(ctx context.Context, channelID, messageID string, m notify.Marker) error {
	return p.session.MessageReactionRemove(channelID, messageID, markerEmoji[m], "@me")
}

// handleMessage converts incoming Discord messages. Bot messages are kept
// because the account notifier is itself a bot; only our own messages are
// dropped.
func (p *Platform) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author != nil && m.Author.ID == p.botUserID {
		return
	}
	if p.channelID != "" && m.ChannelID != p.channelID {
		return
	}
	if p.messageHandler == nil {
		return
	}

	text := m.Content
	var fields []notify.Field
	for _, embed := range m.Embeds {
		var parts []string
		if embed.Title != "" {
			parts = append(parts, embed.Title)
		}
		if embed.Description != "" {
			parts = append(parts, embed.Description)
		}
		if len(parts) > 0 {
			text = strings.TrimSpace(text + "\n" + strings.Join(parts, "\n"))
		}
		for _, f := range embed.Fields {
			fields = append(fields, notify.Field{Label: f.Name, Value: f.Value})
		}
	}

	username := ""
	if m.Author != nil {
		username = m.Author.Username
	}

	p.messageHandler(notify.Message{
		ID:        m.ID,
		Platform:  "discord",
		ChannelID: m.ChannelID,
		UserID:    authorID(m),
		Username:  username,
		Text:      text,
		Fields:    fields,
		Metadata: map[string]string{
			"guild_id": m.GuildID,
		},
	})
}

func authorID(m *discordgo.MessageCreate) string {
	if m.Author == nil {
		return ""
	}
	return m.Author.ID
}
