package transcript

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageType tags what Content holds: literal text, or a path into the media
// directory for image and file messages.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
)

func ParseMessageType(s string) (MessageType, error) {
	switch MessageType(strings.TrimSpace(s)) {
	case "", MessageTypeText:
		return MessageTypeText, nil
	case MessageTypeImage:
		return MessageTypeImage, nil
	case MessageTypeFile:
		return MessageTypeFile, nil
	default:
		return "", fmt.Errorf("unknown message type %q", s)
	}
}

// IsMedia reports whether Content is a media reference rather than text.
func (t MessageType) IsMedia() bool {
	return t == MessageTypeImage || t == MessageTypeFile
}

type Message struct {
	Role    Role        `json:"role" yaml:"role" jsonschema:"enum=user,enum=assistant"`
	Type    MessageType `json:"type" yaml:"type" jsonschema:"enum=text,enum=image,enum=file,default=text"`
	Content string      `json:"content" yaml:"content"`
}

func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Type: MessageTypeText, Content: text}
}

func NewMediaMessage(t MessageType, path string) Message {
	return Message{Role: RoleUser, Type: t, Content: path}
}

// UnmarshalJSON decodes a record written by any version of the store. A
// missing type is read as text.
func (m *Message) UnmarshalJSON(b []byte) error {
	var raw struct {
		Role    Role    `json:"role"`
		Type    *string `json:"type"`
		Content string  `json:"content"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	switch raw.Role {
	case RoleUser, RoleAssistant:
	default:
		return fmt.Errorf("unknown message role %q", raw.Role)
	}

	t := MessageTypeText
	if raw.Type != nil {
		var err error
		t, err = ParseMessageType(*raw.Type)
		if err != nil {
			return err
		}
	}

	*m = Message{Role: raw.Role, Type: t, Content: raw.Content}
	return nil
}

func (m Message) String() string {
	if m.Type.IsMedia() {
		return fmt.Sprintf("[%s/%s]: %s", m.Role, m.Type, m.Content)
	}
	return fmt.Sprintf("[%s]: %s", m.Role, strings.TrimRight(m.Content, "\n"))
}

// CloneMessages returns a copy that the caller may retain.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	ret := make([]Message, len(msgs))
	copy(ret, msgs)
	return ret
}
