package slack

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/kayz/copydesk/internal/logger"
	"github.com/kayz/copydesk/internal/notify"
)

// Platform implements notify.Platform for Slack over Socket Mode.
type Platform struct {
	api            *slack.Client
	socket         *socketmode.Client
	botUserID      string
	channelID      string
	messageHandler func(msg notify.Message)
	ctx            context.Context
	cancel         context.CancelFunc
}

// Config holds Slack configuration
type Config struct {
	BotToken  string // xoxb- token
	AppToken  string // xapp- token with connections:write
	ChannelID string // only messages from this channel are delivered; empty means all
}

// markerEmoji maps status markers onto Slack reaction names.
var markerEmoji = map[notify.Marker]string{
	notify.MarkerWorking: "hourglass_flowing_sand",
	notify.MarkerSuccess: "white_check_mark",
	notify.MarkerFailure: "x",
	notify.MarkerError:   "warning",
}

// New creates a new Slack platform
func New(cfg Config) (*Platform, error) {
	if cfg.BotToken == "" || cfg.AppToken == "" {
		return nil, fmt.Errorf("Slack bot token and app token are required")
	}
	if !strings.HasPrefix(cfg.AppToken, "xapp-") {
		return nil, fmt.Errorf("Slack app token must start with xapp-")
	}

	api := slack.New(cfg.BotToken, slack.OptionAppLevelToken(cfg.AppToken))
	socket := socketmode.New(api)

	return &Platform{
		api:       api,
		socket:    socket,
		channelID: cfg.ChannelID,
	}, nil
}

// Name returns the platform name
func (p *Platform) Name() string {
	return "slack"
}

// SetMessageHandler sets the callback for incoming messages
func (p *Platform) SetMessageHandler(handler func(msg notify.Message)) {
	p.messageHandler = handler
}

// Start opens the Socket Mode connection and begins delivering events
func (p *Platform) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	auth, err := p.api.AuthTestContext(p.ctx)
	if err != nil {
		return fmt.Errorf("Slack auth test failed: %w", err)
	}
	p.botUserID = auth.UserID

	go p.handleEvents()
	go func() {
		if err := p.socket.RunContext(p.ctx); err != nil && p.ctx.Err() == nil {
			logger.Error("[Slack] Socket mode stopped: %v", err)
		}
	}()

	logger.Info("[Slack] Connected as bot: %s", auth.User)
	return nil
}

// Stop shuts down the Slack connection
func (p *Platform) Stop() error {
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

// Send posts a standalone message to a channel
func (p *Platform) Send(ctx context.Context, channelID, text string) error {
	_, _, err := p.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
	return err
}

// Reply posts a threaded reply to the given message
func (p *Platform) Reply(ctx context.Context, channelID, messageID, text string) error {
	_, _, err := p.api.PostMessageContext(ctx, channelID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionTS(messageID))
	return err
}

// AddMarker adds a status reaction to the given message
func (p *Platform) AddMarker(ctx context.Context, channelID, messageID string, m notify.Marker) error {
	return p.api.AddReactionContext(ctx, markerEmoji[m], slack.NewRefToMessage(channelID, messageID))
}

// RemoveMarker removes a status reaction from the given message
func (p *Platform) RemoveMarker(ctx context.Context, channelID, messageID string, m notify.Marker) error {
	return p.api.RemoveReactionContext(ctx, markerEmoji[m], slack.NewRefToMessage(channelID, messageID))
}

func (p *Platform) handleEvents() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case evt, ok := <-p.socket.Events:
			if !ok {
				return
			}
			p.handleEvent(evt, p.socket)
		}
	}
}

// acker is the slice of the socket client that event handling needs.
type acker interface {
	Ack(req socketmode.Request, payload ...interface{})
}

func (p *Platform) handleEvent(evt socketmode.Event, sock acker) {
	switch evt.Type {
	case socketmode.EventTypeConnected:
		logger.Info("[Slack] Socket mode connected")
	case socketmode.EventTypeConnectionError:
		logger.Warn("[Slack] Connection error: %v", evt.Data)
	case socketmode.EventTypeEventsAPI:
		// Ack first; an envelope left unacked gets redelivered even when
		// its payload is not usable.
		if evt.Request != nil {
			sock.Ack(*evt.Request)
		}
		apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		if apiEvent.Type == slackevents.CallbackEvent {
			if ev, ok := apiEvent.InnerEvent.Data.(*slackevents.MessageEvent); ok {
				p.handleMessage(ev)
			}
		}
	}
}

// handleMessage converts a Slack message event into a notify.Message.
// Messages from other bots are kept: account notifications arrive from
// the account-provisioning bot, not from humans.
func (p *Platform) handleMessage(ev *slackevents.MessageEvent) {
	if ev.User == p.botUserID {
		return
	}
	// Edits and deletions re-deliver the message under a subtype; only
	// fresh messages are onboarding candidates.
	if ev.SubType != "" && ev.SubType != "bot_message" {
		return
	}
	if p.channelID != "" && ev.Channel != p.channelID {
		return
	}
	if p.messageHandler == nil {
		return
	}

	text := ev.Text
	fields, attachmentText := p.fetchAttachments(ev.Channel, ev.TimeStamp)
	if attachmentText != "" {
		text = strings.TrimSpace(text + "\n" + attachmentText)
	}

	p.messageHandler(notify.Message{
		ID:        ev.TimeStamp,
		Platform:  "slack",
		ChannelID: ev.Channel,
		UserID:    ev.User,
		Username:  ev.Username,
		Text:      text,
		ThreadID:  ev.ThreadTimeStamp,
		Fields:    fields,
		Metadata: map[string]string{
			"bot_id":  ev.BotID,
			"subtype": ev.SubType,
		},
	})
}

// fetchAttachments re-reads the message via the Web API. The Events API
// payload omits attachments on bot messages, and the notification's
// field list lives in an attachment.
func (p *Platform) fetchAttachments(channelID, ts string) ([]notify.Field, string) {
	resp, err := p.api.GetConversationHistoryContext(p.ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Latest:    ts,
		Oldest:    ts,
		Inclusive: true,
		Limit:     1,
	})
	if err != nil {
		logger.Debug("[Slack] Failed to fetch message %s: %v", ts, err)
		return nil, ""
	}
	if len(resp.Messages) == 0 {
		return nil, ""
	}

	var fields []notify.Field
	var parts []string
	for _, att := range resp.Messages[0].Attachments {
		for _, t := range []string{att.Pretext, att.Title, att.Text} {
			if t != "" {
				parts = append(parts, t)
			}
		}
		for _, f := range att.Fields {
			fields = append(fields, notify.Field{Label: f.Title, Value: f.Value})
		}
	}
	return fields, strings.Join(parts, "\n")
}
