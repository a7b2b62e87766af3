package chat

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event type discriminators used on the wire.
const (
	TypeWelcome   = "welcome"
	TypeSystem    = "system"
	TypeUserCount = "usercount"
	TypeUsername  = "username"
	TypeChat      = "chat"
)

// TimestampLayout formats event timestamps as HH:MM:SS.
const TimestampLayout = "15:04:05"

// WelcomeText is the greeting sent to every new connection.
const WelcomeText = "Welcome to the chat!"

// Event is an outbound message. Implementations are serialized with
// encoding/json exactly once per dispatch.
type Event interface {
	EventType() string
}

// WelcomeEvent is sent to a new connection only.
type WelcomeEvent struct {
	Type    string `json:"type"`
	UserID  uint64 `json:"userId"`
	Color   string `json:"color"`
	Message string `json:"message"`
}

// SystemEvent is a free-text notice such as a join, leave or rename.
type SystemEvent struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// UserCountEvent reports the number of connections online.
type UserCountEvent struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// ChatEvent is a chat line relayed to everyone.
type ChatEvent struct {
	Type      string `json:"type"`
	UserID    uint64 `json:"userId"`
	Username  string `json:"username"`
	Color     string `json:"color"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func (e WelcomeEvent) EventType() string { return e.Type }
func (e SystemEvent) EventType() string { return e.Type }
func (e UserCountEvent) EventType() string { return e.Type }
func (e ChatEvent) EventType() string { return e.Type }

// NewWelcome builds the welcome event for s.
func NewWelcome(s Session) WelcomeEvent {
	return WelcomeEvent{Type: TypeWelcome, UserID: s.ID, Color: s.Color, Message: WelcomeText}
}

// NewSystem builds a system notice stamped with at.
func NewSystem(message string, at time.Time) SystemEvent {
	return SystemEvent{Type: TypeSystem, Message: message, Timestamp: at.Format(TimestampLayout)}
}

// NewUserCount builds a user count event.
func NewUserCount(count int) UserCountEvent {
	return UserCountEvent{Type: TypeUserCount, Count: count}
}

// NewChat builds a chat event from the sender's session as it is now.
func NewChat(s Session, message string, at time.Time) ChatEvent {
	return ChatEvent{
		Type:      TypeChat,
		UserID:    s.ID,
		Username:  s.DisplayName,
		Color:     s.Color,
		Message:   message,
		Timestamp: at.Format(TimestampLayout),
	}
}

func joinedText(name string) string { return name + " joined the chat" }
func leftText(name string) string { return name + " left the chat" }
func renamedText(oldName, name string) string { return oldName + " is now known as " + name }

// frame is the inbound message shape. Pointer fields distinguish a missing
// field from an empty one.
type frame struct {
	Type     string  `json:"type"`
	Username *string `json:"username"`
	Message  *string `json:"message"`
}

func parseFrame(raw []byte) (frame, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return frame{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if f.Type == "" {
		return frame{}, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}
	return f, nil
}

// displayName returns the requested name as sent. Any string is accepted,
// including the current name.
func (f frame) displayName() (string, error) {
	if f.Username == nil {
		return "", fmt.Errorf("%w: username request without username", ErrMalformedMessage)
	}
	return *f.Username, nil
}

func (f frame) chatBody() (string, error) {
	if f.Message == nil {
		return "", fmt.Errorf("%w: chat request without message", ErrMalformedMessage)
	}
	return *f.Message, nil
}
