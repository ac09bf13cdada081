// Package button turns GPIO edges into debounced logical actions.
package button

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Line is a logical input line.
type Line int

// Logical lines, each mapped to exactly one action.
const (
	Return Line = iota // context primary action or back
	Action             // advance menu
	Go                 // secondary context action
	lineCount
)

func (l Line) String() string {
	switch l {
	case Return:
		return "RETURN"
	case Action:
		return "ACTION"
	case Go:
		return "GO"
	default:
		return fmt.Sprintf("Line(%d)", int(l))
	}
}

// Event is an accepted press.
type Event struct {
	Line Line
	At   time.Time
}

// Config holds the timing windows.
type Config struct {
	Debounce        time.Duration
	AdvanceThrottle time.Duration
	Debug           bool // log dropped presses
}

// Handler debounces presses and enqueues the accepted ones. It never touches
// the display.
type Handler struct {
	config  Config
	busy    func() bool
	enqueue func(Event) bool
	now     func() time.Time

	mu          sync.Mutex
	last        [lineCount]time.Time
	lastAdvance time.Time

	dropped atomic.Int64
}

// NewHandler creates a handler. Busy reports whether a menu transition is in
// progress, enqueue must not block and returns false when the queue is full.
func NewHandler(config Config, busy func() bool, enqueue func(Event) bool) *Handler {
	if busy == nil {
		busy = func() bool { return false }
	}
	return &Handler{
		config:  config,
		busy:    busy,
		enqueue: enqueue,
		now:     time.Now,
	}
}

// Press handles a press on line at the given time and reports whether it was
// enqueued.
func (h *Handler) Press(line Line, at time.Time) bool {
	if line < 0 || line >= lineCount {
		return false
	}

	h.mu.Lock()
	if last := h.last[line]; !last.IsZero() && at.Sub(last) < h.config.Debounce {
		h.mu.Unlock()
		return false
	}
	h.last[line] = at

	if line == Action {
		if h.busy() {
			h.mu.Unlock()
			h.dropped.Add(1)
			if h.config.Debug {
				log.Printf("[DEBUG] button: %s dropped, transition in progress", line)
			}
			return false
		}
		if !h.lastAdvance.IsZero() && at.Sub(h.lastAdvance) < h.config.AdvanceThrottle {
			h.mu.Unlock()
			h.dropped.Add(1)
			if h.config.Debug {
				log.Printf("[DEBUG] button: %s dropped, throttled", line)
			}
			return false
		}
		h.lastAdvance = at
	}
	h.mu.Unlock()

	if !h.enqueue(Event{Line: line, At: at}) {
		h.dropped.Add(1)
		log.Printf("[WARN] button: event queue full, dropping %s", line)
		return false
	}
	return true
}

// Dropped returns and resets the number of presses dropped by the throttle,
// the transition lock or a full queue.
func (h *Handler) Dropped() int {
	return int(h.dropped.Swap(0))
}

// Pins binds the logical lines to GPIO inputs.
type Pins [lineCount]gpio.PinIn

// Watch configures every pin for edge detection and waits for presses until
// ctx is cancelled.
func (h *Handler) Watch(ctx context.Context, pins Pins, edge gpio.Edge) error {
	pull := gpio.PullUp
	if edge == gpio.RisingEdge {
		pull = gpio.PullDown
	}

	for line, pin := range pins {
		if pin == nil {
			return fmt.Errorf("button: no pin for %s", Line(line))
		}
		if err := pin.In(pull, edge); err != nil {
			return fmt.Errorf("button: %s on %s: %w", Line(line), pin, err)
		}
	}

	var wg sync.WaitGroup
	for line, pin := range pins {
		wg.Add(1)
		go func(line Line, pin gpio.PinIn) {
			defer wg.Done()
			h.listen(ctx, line, pin)
		}(Line(line), pin)
	}
	log.Printf("[INFO] button: watching %s=%s %s=%s %s=%s", Return, pins[Return], Action, pins[Action], Go, pins[Go])

	wg.Wait()
	return nil
}

// pollTimeout bounds how long a line waits before checking for cancellation.
const pollTimeout = 100 * time.Millisecond

func (h *Handler) listen(ctx context.Context, line Line, pin gpio.PinIn) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if pin.WaitForEdge(pollTimeout) {
			h.Press(line, h.now())
		}
	}
}
