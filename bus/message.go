package bus

import (
	"encoding/json"

	"go.uber.org/zap/zapcore"
)

// MessageType distinguishes messages exchanged between a session and the broker.
type MessageType string

const (
	// TypeLogin authenticates a freshly connected client.
	TypeLogin = MessageType("login")
	// TypeJoin makes the client a member of a channel.
	TypeJoin = MessageType("join")
	// TypeSubscribe makes the client a subscriber of a channel.
	TypeSubscribe = MessageType("subscribe")
	// TypeSync is a call waiting for a correlated reply.
	TypeSync = MessageType("sync")
	// TypeAsync is a fire-and-forget message.
	TypeAsync = MessageType("async")
	// TypeReply answers a login, join, subscribe or sync message. It carries the ID of the message it answers.
	TypeReply = MessageType("reply")
	// TypeEvent is a membership notification sent by the broker.
	TypeEvent = MessageType("event")
)

// EventType tells what happened for TypeEvent messages.
type EventType string

const (
	// EventClientJoinedServer is emitted when a client logs in.
	EventClientJoinedServer = EventType("client.joined.server")
	// EventClientLeftServer is emitted when a logged in client disconnects.
	EventClientLeftServer = EventType("client.left.server")
	// EventClientJoinedChannel is emitted when a client joins a channel.
	EventClientJoinedChannel = EventType("client.joined.channel")
	// EventClientLeftChannel is emitted when a channel member disconnects.
	EventClientLeftChannel = EventType("client.left.channel")
	// EventSubscriberJoinedChannel is emitted when a client subscribes to a channel.
	EventSubscriberJoinedChannel = EventType("subscriber.joined.channel")
	// EventSubscriberLeftChannel is emitted when a channel subscriber disconnects.
	EventSubscriberLeftChannel = EventType("subscriber.left.channel")
	// EventChannelCreated is emitted when a channel is created.
	EventChannelCreated = EventType("channel.created")
	// EventChannelDestroyed is emitted when a channel is destroyed.
	EventChannelDestroyed = EventType("channel.destroyed")
)

// Message is the unit exchanged over the bus.
type Message struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Sender    string      `json:"sender,omitempty"`
	Recipient string      `json:"recipient,omitempty"`
	Channel   string      `json:"channel,omitempty"`

	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`

	Success bool   `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`

	Event   EventType `json:"event,omitempty"`
	Subject string    `json:"subject,omitempty"`

	Data []byte `json:"data,omitempty"`
}

// Reply creates a successful reply to the message.
func (m *Message) Reply(sender string, data []byte) *Message {
	return &Message{
		ID:        m.ID,
		Type:      TypeReply,
		Sender:    sender,
		Recipient: m.Sender,
		Channel:   m.Channel,
		Success:   true,
		Data:      data,
	}
}

// Fail creates a failed reply to the message.
func (m *Message) Fail(sender, reason string) *Message {
	return &Message{
		ID:        m.ID,
		Type:      TypeReply,
		Sender:    sender,
		Recipient: m.Sender,
		Channel:   m.Channel,
		Error:     reason,
	}
}

// Encode serializes the message to JSON.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a JSON message.
func Decode(data []byte) (*Message, error) {
	msg := &Message{}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// MarshalLogObject is a part of zapcore.ObjectMarshaler interface. Passwords are masked.
func (m Message) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("id", m.ID)
	enc.AddString("type", string(m.Type))
	if m.Sender != "" {
		enc.AddString("sender", m.Sender)
	}
	if m.Recipient != "" {
		enc.AddString("recipient", m.Recipient)
	}
	if m.Channel != "" {
		enc.AddString("channel", m.Channel)
	}
	if m.Password != "" {
		enc.AddString("password", "*****")
	}
	if m.Event != "" {
		enc.AddString("event", string(m.Event))
	}
	if m.Error != "" {
		enc.AddString("error", m.Error)
	}
	enc.AddInt("dataLength", len(m.Data))
	return nil
}
