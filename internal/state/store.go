// Package state holds the documents shared between the display process and
// the network process: pet, message log, settings and statistics.
//
// Every document is written atomically (temporary file and rename) and every
// read-modify-write cycle holds an exclusive flock on "<document>.lock", so
// other processes following the same protocol never lose updates.
package state

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BeatGlow/inkpet/internal/atomicfile"
)

// Document file names.
const (
	PetFile      = "pet_state.json"
	MessagesFile = "messages.json"
	SettingsFile = "settings.json"
	StatsFile    = "stats.json"
)

// Defaults seed documents that do not exist yet.
type Defaults struct {
	PetName    string
	PetType    string
	TimeFormat int

	// Clock is the time source, time.Now when nil.
	Clock func() time.Time
}

// Snapshot is a consistent view of the documents.
type Snapshot struct {
	Pet      Pet
	Messages MessageLog
	Settings Settings
	Stats    Stats
}

// Store reads and mutates the documents in a data directory.
type Store struct {
	dir      string
	defaults Defaults

	// mu is held exclusively while a mutation spans several documents, so
	// that Snapshot never observes half of it.
	mu sync.RWMutex

	now func() time.Time
}

// Open creates the data directory and any missing document.
func Open(dir string, defaults Defaults) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("state: create data directory: %w", err)
	}
	if defaults.TimeFormat == 0 {
		defaults.TimeFormat = 24
	}

	if defaults.Clock == nil {
		defaults.Clock = time.Now
	}

	s := &Store{
		dir:      dir,
		defaults: defaults,
		now:      defaults.Clock,
	}

	seed := func(name string, v interface{}) error {
		return s.modify(name, v, func(exists bool) (bool, error) {
			return !exists, nil
		})
	}
	var (
		now      = s.now()
		pet      = s.newPet()
		messages = MessageLog{}
		settings = newSettings(defaults.TimeFormat, now)
		stats    = Stats{FirstBoot: now.UTC()}
	)
	for name, v := range map[string]interface{}{
		PetFile:      &pet,
		MessagesFile: &messages,
		SettingsFile: &settings,
		StatsFile:    &stats,
	} {
		if err := seed(name, v); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Dir is the data directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *Store) newPet() Pet {
	return newPet(s.defaults.PetName, s.defaults.PetType, s.now())
}

// read decodes a document into v, leaving v untouched if the document is
// missing or unreadable.
func (s *Store) read(name string, v interface{}) error {
	err := atomicfile.ReadJSON(s.path(name), v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	case errors.Is(err, os.ErrPermission):
		return fmt.Errorf("state: %w", err)
	default:
		log.Printf("[WARN] state: %v, using defaults", err)
		return nil
	}
}

// modify locks a document, decodes it into v (which holds the defaults) and
// calls fn. The document is written back if fn reports a change.
func (s *Store) modify(name string, v interface{}, fn func(exists bool) (bool, error)) error {
	path := s.path(name)
	unlock, err := atomicfile.Lock(path + ".lock")
	if err != nil {
		return fmt.Errorf("state: %w", err)
	}
	defer unlock()

	exists := true
	if err = atomicfile.ReadJSON(path, v); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("[WARN] state: %v, resetting %s", err, name)
		}
		exists = false
	}

	changed, err := fn(exists)
	if err != nil || !changed {
		return err
	}
	if err = atomicfile.WriteJSON(path, v); err != nil {
		return fmt.Errorf("state: %w", err)
	}
	return nil
}

// Snapshot reads all documents.
func (s *Store) Snapshot() (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Pet:      s.newPet(),
		Settings: newSettings(s.defaults.TimeFormat, s.now()),
	}
	for name, v := range map[string]interface{}{
		PetFile:      &snap.Pet,
		MessagesFile: &snap.Messages,
		SettingsFile: &snap.Settings,
		StatsFile:    &snap.Stats,
	} {
		if err := s.read(name, v); err != nil {
			return Snapshot{}, err
		}
	}
	return snap, nil
}

// LastFlagSeq returns the highest flag sequence recorded in any document.
func (s *Store) LastFlagSeq() (uint64, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return 0, err
	}
	return max(snap.Pet.FlagSeq, snap.Messages.FlagSeq, snap.Stats.FlagSeq), nil
}

func (s *Store) modifyPet(fn func(p *Pet) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pet := s.newPet()
	return s.modify(PetFile, &pet, func(bool) (bool, error) {
		return fn(&pet), nil
	})
}

// Feed feeds the pet.
func (s *Store) Feed() error {
	now := s.now()
	return s.modifyPet(func(p *Pet) bool {
		p.Feed(now)
		return true
	})
}

// RecordSent counts an outgoing message or poke.
func (s *Store) RecordSent() error {
	now := s.now()
	return s.modifyPet(func(p *Pet) bool {
		p.MessagesSent++
		p.LastInteraction = now.UTC()
		return true
	})
}

// Decay applies the time based pet decay and reports if the pet changed.
func (s *Store) Decay() (changed bool, err error) {
	now := s.now()
	err = s.modifyPet(func(p *Pet) bool {
		changed = p.Decay(now)
		return changed
	})
	return
}

// MarkAllRead marks every message read and reports if anything changed.
func (s *Store) MarkAllRead() (changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var messages MessageLog
	err = s.modify(MessagesFile, &messages, func(bool) (bool, error) {
		changed = messages.MarkAllRead()
		return changed, nil
	})
	return
}

// CycleSetting advances a setting to its next value.
func (s *Store) CycleSetting(setting Setting) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	settings := newSettings(s.defaults.TimeFormat, now)
	err := s.modify(SettingsFile, &settings, func(bool) (bool, error) {
		return true, settings.Cycle(setting, now)
	})
	return settings, err
}

// AddStats adds in-memory counters to the statistics document.
func (s *Store) AddStats(d StatsDelta) error {
	if d.Zero() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{FirstBoot: s.now().UTC()}
	return s.modify(StatsFile, &stats, func(bool) (bool, error) {
		stats.add(d)
		return true, nil
	})
}
