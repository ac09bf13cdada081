package state

import (
	"fmt"
	"time"
)

// Kind of an external event.
type Kind string

// Event kinds.
const (
	KindMessage Kind = "message"
	KindPoke    Kind = "poke"
	KindFeed    Kind = "feed"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindMessage, KindPoke, KindFeed:
		return true
	default:
		return false
	}
}

// Event is an externally produced state change. Seq is strictly increasing
// across events and makes Apply idempotent.
type Event struct {
	Seq  uint64
	ID   string
	Kind Kind
	From string
	Text string
	At   time.Time
}

// Apply records the effect of e in every document it touches. Each document
// remembers the highest sequence applied to it, so replaying an event, for
// example after a crash before its flag was removed, changes nothing. Apply
// reports whether any document changed.
func (s *Store) Apply(e Event) (applied bool, err error) {
	if !e.Kind.Valid() {
		return false, fmt.Errorf("state: unknown event kind %q", e.Kind)
	}
	if e.Seq == 0 {
		return false, fmt.Errorf("state: event %s without sequence", e.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	at := e.At
	if at.IsZero() {
		at = now
	}

	var messages MessageLog
	if err = s.modify(MessagesFile, &messages, func(bool) (bool, error) {
		if messages.FlagSeq >= e.Seq {
			return false, nil
		}
		messages.Add(s.message(e, at))
		messages.FlagSeq = e.Seq
		applied = true
		return true, nil
	}); err != nil {
		return
	}

	pet := s.newPet()
	if err = s.modify(PetFile, &pet, func(bool) (bool, error) {
		if pet.FlagSeq >= e.Seq {
			return false, nil
		}
		switch e.Kind {
		case KindMessage:
			pet.MessagesReceived++
		case KindFeed:
			pet.Feed(now)
		case KindPoke:
			pet.Interact(now)
		}
		pet.FlagSeq = e.Seq
		applied = true
		return true, nil
	}); err != nil {
		return
	}

	if e.Kind == KindMessage {
		stats := Stats{FirstBoot: now.UTC()}
		err = s.modify(StatsFile, &stats, func(bool) (bool, error) {
			if stats.FlagSeq >= e.Seq {
				return false, nil
			}
			stats.TotalMessagesReceived++
			stats.FlagSeq = e.Seq
			applied = true
			return true, nil
		})
	}
	return
}

func (s *Store) message(e Event, at time.Time) Message {
	m := Message{
		ID:        e.ID,
		From:      e.From,
		Timestamp: at.UTC(),
	}
	if m.From == "" {
		m.From = "unknown"
	}
	switch e.Kind {
	case KindFeed:
		m.Type = MessageFeed
		pet := s.defaults.PetType
		if pet == "" {
			pet = "pet"
		}
		m.Message = "Fed your " + pet + "!"
	case KindPoke:
		m.Type = MessagePoke
		m.Message = "Poked you!"
	default:
		m.Type = MessageText
		m.Message = e.Text
	}
	return m
}
