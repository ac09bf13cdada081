// Package inbox implements the flag channel: a directory in which a producer
// process deposits one file per event and the display process consumes each
// of them exactly once.
package inbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BeatGlow/inkpet/internal/atomicfile"
	"github.com/BeatGlow/inkpet/internal/state"
)

// ErrMalformedFlag is returned for flag files that cannot be decoded.
var ErrMalformedFlag = errors.New("inbox: malformed flag")

const (
	flagSuffix = ".flag"
	seqFile    = ".seq"
)

// Flag is a single event record.
type Flag struct {
	Seq       uint64     `json:"seq"`
	ID        string     `json:"id"`
	Kind      state.Kind `json:"kind"`
	From      string     `json:"from,omitempty"`
	Payload   string     `json:"payload,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Validate checks the record fields.
func (f Flag) Validate() error {
	if f.Seq == 0 {
		return fmt.Errorf("%w: missing seq", ErrMalformedFlag)
	}
	return f.validateContent()
}

func (f Flag) validateContent() error {
	if !f.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrMalformedFlag, f.Kind)
	}
	if f.Kind == state.KindMessage && strings.TrimSpace(f.Payload) == "" {
		return fmt.Errorf("%w: empty message", ErrMalformedFlag)
	}
	return nil
}

// Event converts the flag to a state event.
func (f Flag) Event() state.Event {
	return state.Event{
		Seq:  f.Seq,
		ID:   f.ID,
		Kind: f.Kind,
		From: f.From,
		Text: f.Payload,
		At:   f.CreatedAt,
	}
}

func fileName(seq uint64) string {
	return fmt.Sprintf("%020d%s", seq, flagSuffix)
}

// parseFileName returns the sequence encoded in a flag file name.
func parseFileName(name string) (uint64, bool) {
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, flagSuffix) {
		return 0, false
	}
	seq, err := strconv.ParseUint(strings.TrimSuffix(name, flagSuffix), 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}

// Post deposits f in dir and returns it with its sequence, id and creation
// time filled in.
//
// Sequences are allocated under an exclusive lock and the flag file is
// renamed into place before the lock is released, so flags become visible
// in sequence order. A sequence is never lower than the current time in
// microseconds, which keeps it increasing when the directory is wiped.
func Post(dir string, f Flag) (Flag, error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	if err := f.validateContent(); err != nil {
		return Flag{}, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Flag{}, fmt.Errorf("inbox: create %s: %w", dir, err)
	}

	unlock, err := atomicfile.Lock(filepath.Join(dir, seqFile+".lock"))
	if err != nil {
		return Flag{}, err
	}
	defer unlock()

	f.Seq = lastSeq(dir) + 1
	if now := uint64(time.Now().UnixMicro()); now > f.Seq {
		f.Seq = now
	}

	data, err := json.Marshal(f)
	if err != nil {
		return Flag{}, fmt.Errorf("inbox: encode flag: %w", err)
	}
	if err = atomicfile.WriteFile(filepath.Join(dir, fileName(f.Seq)), data, 0o644); err != nil {
		return Flag{}, err
	}
	if err = writeSeq(dir, f.Seq); err != nil {
		return Flag{}, err
	}
	return f, nil
}

// Resume raises the sequence counter of dir to at least seq, so that flags
// posted afterwards sort after every flag already applied even when dir was
// wiped and the clock is behind.
func Resume(dir string, seq uint64) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("inbox: create %s: %w", dir, err)
	}

	unlock, err := atomicfile.Lock(filepath.Join(dir, seqFile+".lock"))
	if err != nil {
		return err
	}
	defer unlock()

	if lastSeq(dir) >= seq {
		return nil
	}
	return writeSeq(dir, seq)
}

// lastSeq reads the sequence counter, the caller holds the lock.
func lastSeq(dir string) uint64 {
	data, err := os.ReadFile(filepath.Join(dir, seqFile))
	if err != nil {
		return 0
	}
	seq, _ := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	return seq
}

func writeSeq(dir string, seq uint64) error {
	return atomicfile.WriteFile(filepath.Join(dir, seqFile), []byte(strconv.FormatUint(seq, 10)), 0o644)
}

// decode reads and validates the flag file at path.
func decode(path string, seq uint64) (Flag, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Flag{}, err
	}

	var f Flag
	if err = json.Unmarshal(data, &f); err != nil {
		return Flag{}, fmt.Errorf("%w: %v", ErrMalformedFlag, err)
	}
	if err = f.Validate(); err != nil {
		return Flag{}, err
	}
	if f.Seq != seq {
		return Flag{}, fmt.Errorf("%w: seq %d does not match file name", ErrMalformedFlag, f.Seq)
	}
	return f, nil
}
