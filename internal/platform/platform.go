// Package platform defines the narrow surface this bot needs from the chat
// platform. The core never talks to Discord directly; it goes through these
// interfaces so the routing and persistence logic stays testable offline.
package platform

import (
	"context"
	"fmt"
	"time"
)

// Announcement is a rendered announcement ready to send.
type Announcement struct {
	Title    string
	Body     string
	Footer   string
	ImageURL string
	Color    int
	At       time.Time
}

// Selector is a persistent role-toggle message.
type Selector struct {
	Title       string
	Description string
	Footer      string
	Color       int
	Buttons     []Button
}

type Button struct {
	Label    string
	CustomID string
}

// MessageRef identifies a sent message.
type MessageRef struct {
	ChannelID int64
	MessageID int64
}

// SendError wraps a platform delivery failure. The core passes it through
// unretried; retry policy belongs to the adapter or the caller.
type SendError struct {
	ChannelID int64
	Err       error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to channel %d failed: %v", e.ChannelID, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Sender posts announcements. Implemented by the Discord adapter.
type Sender interface {
	SendAnnouncement(ctx context.Context, channelID int64, a Announcement) (MessageRef, error)
}

// Message is an inbound chat message, already mapped to numeric IDs.
type Message struct {
	GuildID     int64
	ChannelID   int64
	AuthorID    int64
	AuthorRoles []int64
	Content     string
}

// Component is an inbound button interaction.
type Component struct {
	GuildID   int64
	ChannelID int64
	MessageID int64
	UserID    int64
	UserRoles []int64
	CustomID  string
}

// MessageHandler consumes inbound messages.
type MessageHandler func(ctx context.Context, m Message)

// ComponentHandler consumes button interactions and returns the ephemeral
// reply to show the user.
type ComponentHandler func(ctx context.Context, c Component) (string, error)
