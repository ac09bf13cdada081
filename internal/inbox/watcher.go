package inbox

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/BeatGlow/inkpet/internal/state"
)

// Applier records the effect of an event, idempotently per sequence.
type Applier interface {
	Apply(state.Event) (bool, error)

	// LastFlagSeq is the highest sequence applied so far.
	LastFlagSeq() (uint64, error)
}

// Watcher consumes the flags in a directory.
type Watcher struct {
	dir      string
	store    Applier
	interval time.Duration

	// Notify is called for every flag whose effect was applied, after its
	// file was removed. It must not block.
	Notify func(Flag)

	// Malformed is called for every discarded flag file.
	Malformed func(name string, err error)
}

// NewWatcher creates a watcher for dir polling every interval.
func NewWatcher(dir string, store Applier, interval time.Duration) *Watcher {
	return &Watcher{
		dir:      dir,
		store:    store,
		interval: interval,
	}
}

type pending struct {
	name string
	seq  uint64
}

// Pending returns the number of flags waiting in dir.
func Pending(dir string) (int, error) {
	files, err := list(dir)
	return len(files), err
}

func list(dir string) ([]pending, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("inbox: %w", err)
	}

	var out []pending
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if seq, ok := parseFileName(entry.Name()); ok {
			out = append(out, pending{name: entry.Name(), seq: seq})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].seq < out[j].seq
	})
	return out, nil
}

// Poll consumes the flags present in the directory in sequence order. Each
// effect is applied before its file is removed, malformed files are removed
// without being applied. Poll stops at the first flag it cannot apply, that
// flag is retried by the next poll. It returns the number of flags applied.
func (w *Watcher) Poll() (applied int, err error) {
	files, err := list(w.dir)
	if err != nil {
		return 0, err
	}

	for _, file := range files {
		path := filepath.Join(w.dir, file.name)

		f, err := decode(path, file.seq)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			log.Printf("[WARN] inbox: discarding %s: %v", file.name, err)
			if w.Malformed != nil {
				w.Malformed(file.name, err)
			}
			w.remove(path)
			continue
		}

		changed, err := w.store.Apply(f.Event())
		if err != nil {
			return applied, fmt.Errorf("inbox: apply %s: %w", file.name, err)
		}
		w.remove(path)

		if !changed {
			log.Printf("[INFO] inbox: flag %d (%s) was already applied", f.Seq, f.Kind)
			continue
		}
		applied++
		log.Printf("[INFO] inbox: applied %s flag %d from %q", f.Kind, f.Seq, f.From)
		if w.Notify != nil {
			w.Notify(f)
		}
	}
	return applied, nil
}

func (w *Watcher) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[ERROR] inbox: remove %s: %v", path, err)
	}
}

// Resume raises the sequence counter of the directory past the last applied
// flag. Run calls it before the first poll.
func (w *Watcher) Resume() error {
	seq, err := w.store.LastFlagSeq()
	if err != nil {
		return fmt.Errorf("inbox: last applied sequence: %w", err)
	}
	if err = Resume(w.dir, seq); err != nil {
		return err
	}
	if seq > 0 {
		log.Printf("[INFO] inbox: sequences in %s resume after %d", w.dir, seq)
	}
	return nil
}

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("inbox: create %s: %w", w.dir, err)
	}
	if err := w.Resume(); err != nil {
		log.Printf("[ERROR] %v", err)
	}
	log.Printf("[INFO] inbox: watching %s every %s", w.dir, w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.Poll(); err != nil {
			log.Printf("[ERROR] %v", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
