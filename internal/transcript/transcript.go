// Package transcript models read-only access to the host chat transcript.
// Floors are 1-based message positions.
package transcript

import (
	"encoding/json"
	"os"
)

// Message is one chat message as provided by the host.
type Message struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// Reader yields transcript messages by 1-based floor.
type Reader interface {
	// FloorCount returns the number of floors in the chat.
	FloorCount() int

	// Floor returns the message at the given 1-based floor.
	// ok is false when the floor is out of range.
	Floor(n int) (Message, bool)
}

// Slice is an in-memory Reader over a fixed message list.
type Slice []Message

// FloorCount implements Reader.
func (s Slice) FloorCount() int { return len(s) }

// Floor implements Reader.
func (s Slice) Floor(n int) (Message, bool) {
	if n < 1 || n > len(s) {
		return Message{}, false
	}
	return s[n-1], true
}

// FloorText renders one floor for prompt inclusion: "sender: text",
// or just the text when the sender is unset.
func FloorText(m Message) string {
	if m.Sender == "" {
		return m.Text
	}
	return m.Sender + ": " + m.Text
}

// LoadFile reads a transcript from a JSON file holding either a bare
// message array or an object with a "messages" field.
func LoadFile(path string) (Slice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode parses transcript JSON.
func Decode(data []byte) (Slice, error) {
	var msgs []Message
	if err := json.Unmarshal(data, &msgs); err == nil {
		return Slice(msgs), nil
	}

	var wrapped struct {
		Messages []Message `json:"messages"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, err
	}
	return Slice(wrapped.Messages), nil
}
