// Package display contains drivers for e-paper displays.
//
// E-paper panels are slow and stateful: a full refresh redraws the whole
// panel, a partial refresh only updates a window and is only valid against a
// base image previously committed with SetBaseImage. Surface calls are
// synchronous and must never be issued concurrently.
package display

import (
	"errors"
	"fmt"
	"image"
	"os"
	"strings"
	"time"
)

var debug bool

func init() {
	debug = os.Getenv("DISPLAY_DEBUG") != ""
}

// Errors
var (
	ErrBounds      = errors.New("display: out of display bounds")
	ErrNoBaseImage = errors.New("display: partial refresh without a base image")
	ErrBusyTimeout = errors.New("display: timeout waiting for busy line")
)

// Rotation defines pixel rotation.
type Rotation uint8

// Supported rotations.
const (
	NoRotation Rotation = iota
	Rotate90            // Rotate 90° clock wise
	Rotate180           // Rotate 180°
	Rotate270           // Rotate 270° clock wise
)

func (r Rotation) String() string {
	switch r % 4 {
	case Rotate90:
		return "90°"
	case Rotate180:
		return "180°"
	case Rotate270:
		return "270°"
	default:
		return "0°"
	}
}

// ParseRotation parses a rotation in degrees or by name.
func ParseRotation(s string) (Rotation, error) {
	switch strings.ToLower(strings.TrimSuffix(s, "°")) {
	case "", "no", "0":
		return NoRotation, nil
	case "90", "right", "cw":
		return Rotate90, nil
	case "180", "flip":
		return Rotate180, nil
	case "270", "left", "ccw":
		return Rotate270, nil
	default:
		return 0, fmt.Errorf("display: invalid rotation %q", s)
	}
}

// Surface is a display that is refreshed from whole frames.
type Surface interface {
	// Init resets and initializes the panel.
	Init() error

	// FullRefresh redraws the whole panel with frame.
	FullRefresh(frame image.Image) error

	// SetBaseImage commits frame as the reference for partial refreshes.
	SetBaseImage(frame image.Image) error

	// PartialRefresh updates the pixels inside r from frame.
	PartialRefresh(frame image.Image, r image.Rectangle) error

	// Bounds is the logical frame size, after rotation.
	Bounds() image.Rectangle

	// Sleep puts the panel in deep sleep, Init wakes it up.
	Sleep() error

	// Close the display driver.
	Close() error
}

// Config is the display configuration.
type Config struct {
	// Width of the frames in pixels, after rotation.
	Width int

	// Height of the frames in pixels, after rotation.
	Height int

	// Rotation of the frames relative to the panel.
	Rotation Rotation

	// BusyTimeout is the maximum time to wait for the panel busy line.
	BusyTimeout time.Duration

	// SnapshotDir receives PNG snapshots of every refresh (mock only).
	SnapshotDir string
}

// logicalSize returns the frame size for a panel of the given native size.
func (config *Config) logicalSize(panel image.Point) image.Point {
	if config.Rotation%2 == 1 {
		return image.Pt(panel.Y, panel.X)
	}
	return panel
}

type baseDisplay struct {
	c        Conn
	rotation Rotation
	sleep    func(time.Duration)
	now      func() time.Time
}

func (d *baseDisplay) command(command byte, data ...byte) error {
	return d.c.Command(command, data...)
}

func (d *baseDisplay) commands(commands ...[]byte) (err error) {
	for _, command := range commands {
		if err = d.c.Command(command[0], command[1:]...); err != nil {
			return
		}
	}
	return
}

// waitBusy polls the busy line until it is released or timeout expires.
func (d *baseDisplay) waitBusy(timeout time.Duration) error {
	deadline := d.now().Add(timeout)
	for d.c.Busy() {
		if !d.now().Before(deadline) {
			return ErrBusyTimeout
		}
		d.sleep(10 * time.Millisecond)
	}
	return nil
}
