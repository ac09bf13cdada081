package display

import (
	"fmt"
	"image"
	"log"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/BeatGlow/inkpet/pixel"
)

// Native panel geometry, the controller addresses 8 horizontal pixels per byte.
const (
	epd2in13Width  = 122
	epd2in13Height = 250
	epd2in13Stride = (epd2in13Width + 7) / 8

	epd2in13DefaultBusyTimeout = 10 * time.Second
)

const (
	ssd1680DriverOutputControl  = 0x01
	ssd1680DeepSleep            = 0x10
	ssd1680DataEntryMode        = 0x11
	ssd1680SoftReset            = 0x12
	ssd1680TemperatureSensor    = 0x18
	ssd1680MasterActivation     = 0x20
	ssd1680DisplayUpdateControl = 0x21
	ssd1680UpdateControl2       = 0x22
	ssd1680WriteBlackWhiteRAM   = 0x24
	ssd1680WriteRedRAM          = 0x26
	ssd1680BorderWaveform       = 0x3C
	ssd1680SetRAMXWindow        = 0x44
	ssd1680SetRAMYWindow        = 0x45
	ssd1680SetRAMXCounter       = 0x4E
	ssd1680SetRAMYCounter       = 0x4F
)

const (
	ssd1680UpdateFull    = 0xF7
	ssd1680UpdatePartial = 0xFF
)

type epd2in13 struct {
	baseDisplay
	size        image.Point // logical frame size
	busyTimeout time.Duration
	baseValid   bool
	partialMode bool
}

// EPD2in13 is a driver for the Waveshare 2.13" V4 e-Paper display (SSD1680
// controller). Frames are given in logical orientation, Rotate90 turns the
// 122x250 portrait panel into a 250x122 landscape frame.
func EPD2in13(conn Conn, config *Config) (Surface, error) {
	if config == nil {
		config = &Config{Rotation: Rotate90}
	}

	size := config.logicalSize(image.Pt(epd2in13Width, epd2in13Height))
	if config.Width == 0 {
		config.Width = size.X
	}
	if config.Height == 0 {
		config.Height = size.Y
	}
	if config.Width != size.X || config.Height != size.Y {
		return nil, fmt.Errorf("display: EPD 2.13\" unsupported size %dx%d with rotation %s", config.Width, config.Height, config.Rotation)
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = epd2in13DefaultBusyTimeout
	}

	return &epd2in13{
		baseDisplay: baseDisplay{
			c:        conn,
			rotation: config.Rotation % 4,
			sleep:    time.Sleep,
			now:      time.Now,
		},
		size:        size,
		busyTimeout: config.BusyTimeout,
	}, nil
}

func (d *epd2in13) String() string {
	return fmt.Sprintf("EPD 2.13\" V4 %dx%d (%s)", d.size.X, d.size.Y, d.rotation)
}

func (d *epd2in13) Bounds() image.Rectangle {
	return image.Rectangle{Max: d.size}
}

func (d *epd2in13) reset(low time.Duration) (err error) {
	if err = d.c.Reset(gpio.High); err != nil {
		return
	}
	d.sleep(20 * time.Millisecond)
	if err = d.c.Reset(gpio.Low); err != nil {
		return
	}
	d.sleep(low)
	if err = d.c.Reset(gpio.High); err != nil {
		return
	}
	d.sleep(20 * time.Millisecond)
	return
}

func (d *epd2in13) wait() error {
	return d.waitBusy(d.busyTimeout)
}

func (d *epd2in13) Init() (err error) {
	d.baseValid = false
	d.partialMode = false

	if err = d.reset(2 * time.Millisecond); err != nil {
		return
	}
	if err = d.wait(); err != nil {
		return
	}
	if err = d.command(ssd1680SoftReset); err != nil {
		return
	}
	if err = d.wait(); err != nil {
		return
	}
	if err = d.commands(
		[]byte{ssd1680DriverOutputControl, (epd2in13Height - 1) & 0xFF, (epd2in13Height - 1) >> 8, 0x00},
		[]byte{ssd1680DataEntryMode, 0x03}, // X increment, Y increment
	); err != nil {
		return
	}
	if err = d.setWindow(d.panelBounds()); err != nil {
		return
	}
	if err = d.commands(
		[]byte{ssd1680BorderWaveform, 0x05},
		[]byte{ssd1680DisplayUpdateControl, 0x00, 0x80},
		[]byte{ssd1680TemperatureSensor, 0x80}, // internal sensor
	); err != nil {
		return
	}
	if err = d.wait(); err != nil {
		return
	}

	if debug {
		log.Printf("[DEBUG] display: %s initialized", d)
	}
	return
}

// panelBounds is the byte aligned RAM area of the panel.
func (d *epd2in13) panelBounds() image.Rectangle {
	return image.Rect(0, 0, epd2in13Stride*8, epd2in13Height)
}

// setWindow sets the RAM window and moves the address counter to its origin,
// r is in panel coordinates with a byte aligned horizontal range.
func (d *epd2in13) setWindow(r image.Rectangle) error {
	var (
		xs = r.Min.X >> 3
		xe = (r.Max.X - 1) >> 3
		ys = r.Min.Y
		ye = r.Max.Y - 1
	)
	return d.commands(
		[]byte{ssd1680SetRAMXWindow, byte(xs), byte(xe)},
		[]byte{ssd1680SetRAMYWindow, byte(ys), byte(ys >> 8), byte(ye), byte(ye >> 8)},
		[]byte{ssd1680SetRAMXCounter, byte(xs)},
		[]byte{ssd1680SetRAMYCounter, byte(ys), byte(ys >> 8)},
	)
}

func (d *epd2in13) checkFrame(frame image.Image) error {
	if frame == nil || !frame.Bounds().Size().Eq(d.size) {
		return ErrBounds
	}
	return nil
}

func (d *epd2in13) FullRefresh(frame image.Image) (err error) {
	if err = d.checkFrame(frame); err != nil {
		return
	}

	// Leaving partial mode requires the full waveform to be reloaded.
	if d.partialMode {
		if err = d.Init(); err != nil {
			return
		}
	}
	d.baseValid = false

	if err = d.setWindow(d.panelBounds()); err != nil {
		return
	}
	if err = d.command(ssd1680WriteBlackWhiteRAM, d.pack(frame, d.panelBounds())...); err != nil {
		return
	}
	return d.activate(ssd1680UpdateFull)
}

func (d *epd2in13) SetBaseImage(frame image.Image) (err error) {
	if err = d.checkFrame(frame); err != nil {
		return
	}

	d.baseValid = false
	buf := d.pack(frame, d.panelBounds())
	if err = d.setWindow(d.panelBounds()); err != nil {
		return
	}
	if err = d.command(ssd1680WriteBlackWhiteRAM, buf...); err != nil {
		return
	}
	if err = d.setWindow(d.panelBounds()); err != nil {
		return
	}
	if err = d.command(ssd1680WriteRedRAM, buf...); err != nil {
		return
	}
	d.baseValid = true
	return
}

func (d *epd2in13) PartialRefresh(frame image.Image, r image.Rectangle) (err error) {
	if !d.baseValid {
		return ErrNoBaseImage
	}
	if err = d.checkFrame(frame); err != nil {
		return
	}
	if r = r.Intersect(d.Bounds()); r.Empty() {
		return nil
	}

	// A failed partial leaves the controller RAM in an unknown state.
	d.baseValid = false

	window := d.panelRect(r)
	if debug {
		log.Printf("[DEBUG] display: partial refresh %s (panel window %s)", r, window)
	}

	// Short reset pulse, then switch to the partial waveform.
	if err = d.c.Reset(gpio.Low); err != nil {
		return
	}
	d.sleep(time.Millisecond)
	if err = d.c.Reset(gpio.High); err != nil {
		return
	}
	d.sleep(2 * time.Millisecond)
	d.partialMode = true

	if err = d.commands(
		[]byte{ssd1680BorderWaveform, 0x80},
		[]byte{ssd1680DriverOutputControl, (epd2in13Height - 1) & 0xFF, (epd2in13Height - 1) >> 8, 0x00},
		[]byte{ssd1680DataEntryMode, 0x03},
	); err != nil {
		return
	}
	if err = d.setWindow(window); err != nil {
		return
	}
	if err = d.command(ssd1680WriteBlackWhiteRAM, d.pack(frame, window)...); err != nil {
		return
	}
	if err = d.activate(ssd1680UpdatePartial); err != nil {
		return
	}

	d.baseValid = true
	return
}

func (d *epd2in13) activate(mode byte) (err error) {
	if err = d.command(ssd1680UpdateControl2, mode); err != nil {
		return
	}
	if err = d.command(ssd1680MasterActivation); err != nil {
		return
	}
	return d.wait()
}

func (d *epd2in13) Sleep() error {
	d.baseValid = false
	return d.command(ssd1680DeepSleep, 0x01)
}

func (d *epd2in13) Close() error {
	return d.c.Close()
}

// panelRect maps a logical rectangle to the byte aligned panel window that
// covers it.
func (d *epd2in13) panelRect(r image.Rectangle) image.Rectangle {
	var (
		w = d.size.X
		h = d.size.Y
		p image.Rectangle
	)
	switch d.rotation {
	case Rotate90:
		p = image.Rect(h-r.Max.Y, r.Min.X, h-r.Min.Y, r.Max.X)
	case Rotate180:
		p = image.Rect(w-r.Max.X, h-r.Max.Y, w-r.Min.X, h-r.Min.Y)
	case Rotate270:
		p = image.Rect(r.Min.Y, w-r.Max.X, r.Max.Y, w-r.Min.X)
	default:
		p = r
	}
	p.Min.X &^= 7
	p.Max.X = (p.Max.X + 7) &^ 7
	return p.Intersect(d.panelBounds())
}

// logical maps a panel pixel to frame coordinates.
func (d *epd2in13) logical(px, py int) (x, y int) {
	var (
		w = d.size.X
		h = d.size.Y
	)
	switch d.rotation {
	case Rotate90:
		return py, h - 1 - px
	case Rotate180:
		return w - 1 - px, h - 1 - py
	case Rotate270:
		return w - 1 - py, px
	default:
		return px, py
	}
}

// pack encodes the panel window of frame as RAM bytes, MSB first, set bits
// are white.
func (d *epd2in13) pack(frame image.Image, window image.Rectangle) []byte {
	var (
		origin = frame.Bounds().Min
		mono   = asMono(frame)
		stride = window.Dx() / 8
		buf    = make([]byte, stride*window.Dy())
	)
	for py := window.Min.Y; py < window.Max.Y; py++ {
		row := buf[(py-window.Min.Y)*stride:]
		for px := window.Min.X; px < window.Max.X; px++ {
			white := true
			if px < epd2in13Width {
				x, y := d.logical(px, py)
				white = mono(origin.X+x, origin.Y+y)
			}
			if white {
				row[(px-window.Min.X)>>3] |= 0x80 >> uint(px&7)
			}
		}
	}
	return buf
}

// asMono returns a fast pixel lookup reporting white pixels.
func asMono(frame image.Image) func(x, y int) bool {
	if m, ok := frame.(*pixel.MonoImage); ok {
		return m.IsOn
	}
	return func(x, y int) bool {
		return pixel.MonoModel.Convert(frame.At(x, y)).(pixel.Mono).On
	}
}

// Interface checks
var (
	_ Surface = (*epd2in13)(nil)
)
