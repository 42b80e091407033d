// Package notify delivers user-facing messages such as link health alerts.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// MessageType selects the template a message is rendered with.
type MessageType string

const (
	TypeWelcome       MessageType = "welcome"
	TypePasswordReset MessageType = "password_reset"
	TypeSyncFailed    MessageType = "sync_failed"
	TypeLinkBroken    MessageType = "link_broken"
	TypeLinkRecovered MessageType = "link_recovered"
)

// ErrInvalidMessage is returned for messages that cannot be sent.
var ErrInvalidMessage = errors.New("invalid message")

// ParseMessageType validates s as a MessageType.
func ParseMessageType(s string) (MessageType, error) {
	switch t := MessageType(s); t {
	case TypeWelcome, TypePasswordReset, TypeSyncFailed, TypeLinkBroken, TypeLinkRecovered:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, s)
}

// Data holds the template variables. Only the fields a type uses are read.
type Data struct {
	Name         string `json:"name,omitempty"`
	ResetLink    string `json:"resetLink,omitempty"`
	MerchantName string `json:"merchantName,omitempty"`
	HTTPCode     int    `json:"httpCode,omitempty"`
	URL          string `json:"url,omitempty"`
}

// Message is one notification to a single recipient.
type Message struct {
	Type MessageType `json:"type"`
	To   string      `json:"to"`
	Data Data        `json:"data"`
}

// Validate checks the fields every message needs.
func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("%w: recipient is required", ErrInvalidMessage)
	}
	if _, err := ParseMessageType(string(m.Type)); err != nil {
		return err
	}
	return nil
}

// Notifier sends messages. A nil error means the message was accepted for delivery.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}
