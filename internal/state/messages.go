package state

import "time"

// MaxMessages is the number of messages kept in the log.
const MaxMessages = 50

// Message types.
const (
	MessageText = "text"
	MessageFeed = "feed"
	MessagePoke = "poke"
)

// Message is a single entry of the message log.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// MessageLog is the persisted message document, oldest message first.
type MessageLog struct {
	Messages []Message `json:"messages"`
	FlagSeq  uint64    `json:"flag_seq"`
}

// Add appends m and drops the oldest messages beyond MaxMessages.
func (l *MessageLog) Add(m Message) {
	l.Messages = append(l.Messages, m)
	if n := len(l.Messages); n > MaxMessages {
		l.Messages = append([]Message(nil), l.Messages[n-MaxMessages:]...)
	}
}

// Recent returns up to limit messages, newest first.
func (l MessageLog) Recent(limit int) []Message {
	var out []Message
	for i := len(l.Messages) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.Messages[i])
	}
	return out
}

// Unread counts the unread messages.
func (l MessageLog) Unread() (n int) {
	for _, m := range l.Messages {
		if !m.Read {
			n++
		}
	}
	return
}

// MarkAllRead marks every message read and reports if anything changed.
func (l *MessageLog) MarkAllRead() (changed bool) {
	for i := range l.Messages {
		if !l.Messages[i].Read {
			l.Messages[i].Read = true
			changed = true
		}
	}
	return
}
