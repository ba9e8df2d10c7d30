package notify

import "context"

// Field is one label/value pair carried by a structured notification.
type Field struct {
	Label string
	Value string
}

// Message is a platform-neutral inbound chat message.
type Message struct {
	ID        string // platform message identifier (Slack ts, Discord/Telegram message ID)
	Platform  string
	ChannelID string
	UserID    string
	Username  string
	Text      string
	ThreadID  string
	Fields    []Field // structured attachment fields, if the platform provides them
	Metadata  map[string]string
}

// Marker is a status signal attached to the originating message.
type Marker string

const (
	MarkerWorking Marker = "working"
	MarkerSuccess Marker = "success"
	MarkerFailure Marker = "failure"
	MarkerError   Marker = "error" // automation error, distinct from an onboarding failure
)

// Platform is a chat platform adapter.
type Platform interface {
	Name() string
	SetMessageHandler(handler func(msg Message))
	Start(ctx context.Context) error
	Stop() error

	// Send posts a standalone message to a channel.
	Send(ctx context.Context, channelID, text string) error
	// Reply posts text as a threaded reply to the given message.
	Reply(ctx context.Context, channelID, messageID, text string) error
	// AddMarker attaches a status marker (a reaction where the platform
	// supports reactions) to the given message.
	AddMarker(ctx context.Context, channelID, messageID string, m Marker) error
	// RemoveMarker removes a previously attached marker. Removing a marker
	// that is already gone is not an error.
	RemoveMarker(ctx context.Context, channelID, messageID string, m Marker) error
}
