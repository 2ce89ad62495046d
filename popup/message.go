package popup

import (
	"encoding/json"
	"errors"
	"time"
)

type MessageType string

const (
	TypeSuccess MessageType = "OAUTH_SUCCESS"
	TypeError   MessageType = "OAUTH_ERROR"
)

var (
	ErrMalformedMessage = errors.New("malformed completion message")
	ErrUnknownType      = errors.New("unknown completion message type")
)

// Identity is the minimal user information carried to the opener window.
type Identity struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// Message is the cross-window wire format. Timestamp is milliseconds since the epoch
// and is stamped when the message is sent.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"timestamp"`
	User      *Identity   `json:"user,omitempty"`
	SessionID string      `json:"sessionId,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorCode ErrorCode   `json:"errorCode,omitempty"`
}

// Outcome is the result of a login flow: either Success or Failure.
type Outcome interface {
	Type() MessageType
	isOutcome()
}

type Success struct {
	User      Identity
	SessionID string
}

type Failure struct {
	Code    ErrorCode
	Message string
}

func (Success) Type() MessageType { return TypeSuccess }
func (Success) isOutcome()        {}

func (Failure) Type() MessageType { return TypeError }
func (Failure) isOutcome()        {}

// NewFailure builds a failure carrying the fixed user message for code.
func NewFailure(code ErrorCode) Failure {
	return Failure{Code: code, Message: UserMessage(code)}
}

// Encode converts an outcome to its wire form stamped with sentAt.
func Encode(o Outcome, sentAt time.Time) Message {
	m := Message{Type: o.Type()}
	if !sentAt.IsZero() {
		m.Timestamp = sentAt.UnixMilli()
	}
	switch v := o.(type) {
	case Success:
		user := v.User
		m.User = &user
		m.SessionID = v.SessionID
	case Failure:
		m.ErrorCode = v.Code
		m.Error = v.Message
	}
	return m
}

// Outcome validates the message shape and returns the typed outcome.
func (m Message) Outcome() (Outcome, error) {
	if m.Timestamp <= 0 {
		return nil, ErrMalformedMessage
	}
	switch m.Type {
	case TypeSuccess:
		if m.User == nil || m.User.Email == "" || m.SessionID == "" {
			return nil, ErrMalformedMessage
		}
		return Success{User: *m.User, SessionID: m.SessionID}, nil
	case TypeError:
		if m.ErrorCode == "" {
			return nil, ErrMalformedMessage
		}
		msg := m.Error
		if msg == "" {
			msg = UserMessage(m.ErrorCode)
		}
		return Failure{Code: m.ErrorCode, Message: msg}, nil
	default:
		return nil, ErrUnknownType
	}
}

// SentAt returns the send timestamp.
func (m Message) SentAt() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// Decode parses and validates a raw message payload.
func Decode(data []byte) (Outcome, time.Time, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, time.Time{}, errors.Join(ErrMalformedMessage, err)
	}
	o, err := m.Outcome()
	if err != nil {
		return nil, time.Time{}, err
	}
	return o, m.SentAt(), nil
}
