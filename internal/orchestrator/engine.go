// Package orchestrator implements the display loop: the only code that calls
// into the display surface. Button presses and applied flags are enqueued by
// their own goroutines and drained by the loop once per tick.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	display "github.com/BeatGlow/inkpet"
	"github.com/BeatGlow/inkpet/internal/button"
	"github.com/BeatGlow/inkpet/internal/inbox"
	"github.com/BeatGlow/inkpet/internal/menu"
	"github.com/BeatGlow/inkpet/internal/render"
	"github.com/BeatGlow/inkpet/internal/state"
	"github.com/BeatGlow/inkpet/pixel"
)

// ErrInit is returned by Start when the display cannot be initialized.
var ErrInit = errors.New("orchestrator: display initialization failed")

// Store is the persisted state used by the loop.
type Store interface {
	Snapshot() (state.Snapshot, error)
	Feed() error
	RecordSent() error
	Decay() (bool, error)
	MarkAllRead() (bool, error)
	CycleSetting(state.Setting) (state.Settings, error)
	AddStats(state.StatsDelta) error
}

// Config holds the loop timing and identity.
type Config struct {
	Tick                time.Duration
	Settle              time.Duration
	FullRefreshInterval time.Duration
	FailureThreshold    int
	ClockInterval       time.Duration
	AnimationInterval   time.Duration
	PetUpdateInterval   time.Duration
	StatsFlushInterval  time.Duration
	QueueSize           int

	OutboxDir string
	Device    string
	Location  *time.Location
	Debug     bool
}

// EventKind tells button presses from applied flags.
type EventKind int

// Event kinds.
const (
	EventButton EventKind = iota
	EventFlag
)

// Event is an entry of the loop queue.
type Event struct {
	Kind   EventKind
	Button button.Event
	Flag   inbox.Flag
}

// Engine is the display orchestrator.
type Engine struct {
	config   Config
	surface  display.Surface
	store    Store
	renderer *render.Renderer
	menus    *menu.Machine
	lock     TransitionLock

	events    chan Event
	overflow  atomic.Bool // an applied flag did not fit in the queue
	malformed atomic.Int64

	// Dropped returns the number of presses dropped by the button handler
	// since the last call. Optional.
	Dropped func() int

	// Owned by the loop.
	schedule    RefreshSchedule
	committed   *pixel.MonoImage // frame last committed to the panel
	needsRender bool
	frame       int
	timers      timers
	delta       state.StatsDelta

	now   func() time.Time
	sleep func(time.Duration)
}

type timers struct {
	clock     time.Time
	animation time.Time
	decay     time.Time
	flush     time.Time
}

// New creates an engine drawing on surface.
func New(config Config, surface display.Surface, store Store) (*Engine, error) {
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 32
	}
	if config.FailureThreshold < 1 {
		config.FailureThreshold = 1
	}

	renderer, err := render.New(surface.Bounds().Size())
	if err != nil {
		return nil, err
	}

	return &Engine{
		config:   config,
		surface:  surface,
		store:    store,
		renderer: renderer,
		menus:    menu.New(),
		events:   make(chan Event, config.QueueSize),
		schedule: RefreshSchedule{
			FullRefreshInterval: config.FullRefreshInterval,
			FailureThreshold:    config.FailureThreshold,
		},
		now:   time.Now,
		sleep: time.Sleep,
	}, nil
}

// Busy reports whether a menu transition holds the TransitionLock.
func (e *Engine) Busy() bool {
	return e.lock.Held()
}

// EnqueueButton queues a press without blocking and reports whether it fit.
func (e *Engine) EnqueueButton(ev button.Event) bool {
	select {
	case e.events <- Event{Kind: EventButton, Button: ev}:
		return true
	default:
		return false
	}
}

// NotifyFlag queues an applied flag without blocking. The effect is already
// persisted, so when the queue is full the next tick re-renders anyway.
func (e *Engine) NotifyFlag(f inbox.Flag) {
	select {
	case e.events <- Event{Kind: EventFlag, Flag: f}:
	default:
		e.overflow.Store(true)
	}
}

// NoteMalformed counts a discarded flag.
func (e *Engine) NoteMalformed() {
	e.malformed.Add(1)
}

// Menus returns the menu state machine. It must only be used by the loop.
func (e *Engine) Menus() *menu.Machine {
	return e.menus
}

// Schedule returns a copy of the refresh schedule.
func (e *Engine) Schedule() RefreshSchedule {
	return e.schedule
}

// Start initializes the display, draws the Main menu and runs the loop until
// ctx is cancelled. An initialization failure is fatal and wraps ErrInit.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.surface.Init(); err != nil {
		return fmt.Errorf("%w: %w", ErrInit, err)
	}
	log.Printf("[INFO] orchestrator: display ready, tick %s", e.config.Tick)

	e.startup(e.now())

	ticker := time.NewTicker(e.config.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[INFO] orchestrator: shutdown signal received")
			e.shutdown()
			return nil
		case <-ticker.C:
			e.Tick(e.now())
		}
	}
}

// startup resets the timers and commits the first frame.
func (e *Engine) startup(now time.Time) {
	e.timers = timers{clock: now, animation: now, decay: now, flush: now}
	e.schedule.LastFullRefresh = now
	e.refreshFull(now, "startup")
}

func (e *Engine) shutdown() {
	e.flushStats()
	if err := e.surface.Sleep(); err != nil {
		log.Printf("[WARN] orchestrator: display sleep: %v", err)
	}
	if err := e.surface.Close(); err != nil {
		log.Printf("[WARN] orchestrator: display close: %v", err)
	}
	log.Printf("[INFO] orchestrator: shutdown complete")
}

// Tick runs one iteration of the loop: drain the queue, then either run a
// menu transition, a scheduled full refresh or the partial updates, in that
// order of priority.
func (e *Engine) Tick(now time.Time) {
	from := e.menus.Current()
	moved := e.handleEvents(now, e.drain())
	e.runTimers(now)

	if moved {
		e.transition(now, from)
		return
	}

	if e.schedule.due(now) {
		reason := "anti-ghost"
		if e.schedule.ConsecutiveFailures >= e.schedule.FailureThreshold {
			reason = fmt.Sprintf("%d consecutive failures", e.schedule.ConsecutiveFailures)
		}
		e.refreshFull(now, reason)
		return
	}

	if e.needsRender {
		e.refreshPartial(now)
	}
}

// drain takes the queued events without blocking.
func (e *Engine) drain() []Event {
	var out []Event
	for {
		select {
		case ev := <-e.events:
			out = append(out, ev)
		default:
			if e.overflow.Swap(false) {
				e.needsRender = true
			}
			return out
		}
	}
}

func (e *Engine) runTimers(now time.Time) {
	if due(&e.timers.clock, e.config.ClockInterval, now) {
		e.needsRender = true
	}
	if due(&e.timers.animation, e.config.AnimationInterval, now) {
		e.frame++
		if e.menus.Current() == menu.Main {
			e.needsRender = true
		}
	}
	if due(&e.timers.decay, e.config.PetUpdateInterval, now) {
		changed, err := e.store.Decay()
		if err != nil {
			log.Printf("[ERROR] orchestrator: pet update: %v", err)
		} else if changed {
			log.Printf("[INFO] orchestrator: pet state decayed")
			e.needsRender = true
		}
	}
	if due(&e.timers.flush, e.config.StatsFlushInterval, now) {
		e.flushStats()
	}
}

// due reports whether interval elapsed since *last and restarts it.
func due(last *time.Time, interval time.Duration, now time.Time) bool {
	if interval <= 0 || now.Sub(*last) < interval {
		return false
	}
	*last = now
	return true
}

func (e *Engine) flushStats() {
	if e.Dropped != nil {
		e.delta.DroppedActions += e.Dropped()
	}
	e.delta.MalformedFlags += int(e.malformed.Swap(0))

	if err := e.store.AddStats(e.delta); err != nil {
		log.Printf("[ERROR] orchestrator: flush stats: %v", err)
		return
	}
	e.delta = state.StatsDelta{}
}

// recordError keeps err as the last error of the stats document.
func (e *Engine) recordError(now time.Time, err error) {
	e.delta.LastError = &state.ErrorRecord{Message: err.Error(), Timestamp: now.UTC()}
}

// input assembles the render input of the current menu.
func (e *Engine) input(now time.Time) (render.Input, error) {
	snap, err := e.store.Snapshot()
	if err != nil {
		return render.Input{}, err
	}
	return render.Input{
		Menu:     e.menus.Current(),
		State:    *e.menus.CurrentState(),
		Snapshot: snap,
		Now:      now.In(e.config.Location),
		Tick:     e.frame,
		Device:   e.config.Device,
	}, nil
}
