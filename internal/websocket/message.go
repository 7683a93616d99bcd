package websocket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Wire field names.
const (
	FieldID              = "id"
	FieldUser            = "user"
	FieldServerTimestamp = "serverTimestamp"
)

// Message is a decoded chat message. Every field received on the wire is kept
// as raw JSON so unknown payload fields survive the relay untouched.
type Message struct {
	fields map[string]json.RawMessage
}

// DecodeMessage parses an inbound payload. The payload must be a JSON object.
func DecodeMessage(raw []byte) (*Message, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: %w", ErrDecode, ErrNotObject)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, ErrNotObject)
	}

	return &Message{fields: fields}, nil
}

// ID returns the message identifier, if the message carries one.
func (m *Message) ID() (string, bool) {
	return m.text(FieldID)
}

// Sender returns the claimed sender carried in the "user" field.
func (m *Message) Sender() (string, bool) {
	return m.text(FieldUser)
}

// ServerTimestamp returns the server timestamp in milliseconds since epoch.
// ok is false when the field is missing or not an integer.
func (m *Message) ServerTimestamp() (ts int64, ok bool) {
	raw, exists := m.fields[FieldServerTimestamp]
	if !exists {
		return 0, false
	}
	if err := json.Unmarshal(raw, &ts); err != nil {
		return 0, false
	}
	return ts, true
}

// HasServerTimestamp reports whether the serverTimestamp key is present at all.
func (m *Message) HasServerTimestamp() bool {
	_, exists := m.fields[FieldServerTimestamp]
	return exists
}

// Stamp sets serverTimestamp to now unless the key is already present.
// It returns true when the message was stamped.
func (m *Message) Stamp(now time.Time) bool {
	if m.HasServerTimestamp() {
		return false
	}
	m.fields[FieldServerTimestamp] = json.RawMessage(strconv.FormatInt(now.UnixMilli(), 10))
	return true
}

// Field returns the raw JSON of a field.
func (m *Message) Field(name string) (json.RawMessage, bool) {
	raw, ok := m.fields[name]
	return raw, ok
}

// Encode renders the message back to JSON with all fields preserved. Field
// values are written byte for byte; HTML characters are not escaped.
func (m *Message) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m.fields); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// text renders a present field as the relay keys deduplication: strings
// as-is, numbers and booleans as their literal JSON text, null as "null" and
// objects or arrays as "". Only a missing key counts as absent.
func (m *Message) text(name string) (string, bool) {
	raw, ok := m.fields[name]
	if !ok {
		return "", false
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", true
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case '{', '[':
		return "", true
	default:
		// true, false, null and numbers
		return string(raw), true
	}
}
