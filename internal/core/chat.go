package core

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn of a stylist conversation.
type ChatMessage struct {
	Role        Role      `json:"role"`
	Text        string    `json:"text"` // May be empty for audio-only turns
	AudioURI    string    `json:"audio_uri,omitempty"`
	ImageBase64 string    `json:"image_base64,omitempty"`
	Timestamp   time.Time `json:"timestamp"` // RFC 3339 on the wire
}

type MessageOption func(*ChatMessage)

// WithAudio attaches a reference to an audio asset owned by the caller.
func WithAudio(uri string) MessageOption {
	return func(m *ChatMessage) { m.AudioURI = uri }
}

// WithImage attaches an inline base64 image sent with this turn.
func WithImage(b64 string) MessageOption {
	return func(m *ChatMessage) { m.ImageBase64 = b64 }
}

// NewMessage builds a message stamped with the current time. Role and text are
// taken as given.
func NewMessage(role Role, text string, opts ...MessageOption) ChatMessage {
	return NewMessageAt(time.Now().UTC(), role, text, opts...)
}

func NewMessageAt(ts time.Time, role Role, text string, opts ...MessageOption) ChatMessage {
	m := ChatMessage{Role: role, Text: text, Timestamp: ts}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// ChatSession accumulates the messages of one conversation until it is saved.
// It is owned by a single conversation flow and is not safe for concurrent use.
type ChatSession struct {
	Messages    []ChatMessage `json:"messages"`
	ImageBase64 string        `json:"image_base64,omitempty"` // Session-level reference image
	CreatedAt   time.Time     `json:"created_at"`
}

func NewSession(imageBase64 string) *ChatSession {
	return &ChatSession{
		Messages:    make([]ChatMessage, 0, 8),
		ImageBase64: imageBase64,
		CreatedAt:   time.Now().UTC(),
	}
}

// Append adds msg at the end. Order is kept as appended, timestamps are not consulted.
func (s *ChatSession) Append(msg ChatMessage) {
	s.Messages = append(s.Messages, msg)
}
