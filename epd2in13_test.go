package display

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/BeatGlow/inkpet/pixel"
)

type testCommand struct {
	cmd  byte
	data []byte
}

type testConn struct {
	commands []testCommand
	resets   []gpio.Level
	busy     bool
	closed   bool
	fail     byte
}

func (c *testConn) String() string { return "test" }

func (c *testConn) Close() error {
	c.closed = true
	return nil
}

func (c *testConn) Reset(level gpio.Level) error {
	c.resets = append(c.resets, level)
	return nil
}

func (c *testConn) Command(cmd byte, data ...byte) error {
	if c.fail != 0 && cmd == c.fail {
		return errors.New("test: write failed")
	}
	c.commands = append(c.commands, testCommand{cmd, append([]byte(nil), data...)})
	return nil
}

func (c *testConn) Data(data ...byte) error {
	c.commands = append(c.commands, testCommand{0, append([]byte(nil), data...)})
	return nil
}

func (c *testConn) Busy() bool { return c.busy }

func (c *testConn) find(cmd byte) []testCommand {
	var out []testCommand
	for _, command := range c.commands {
		if command.cmd == cmd {
			out = append(out, command)
		}
	}
	return out
}

func testEPD(t *testing.T, rotation Rotation) (*epd2in13, *testConn) {
	t.Helper()
	c := new(testConn)
	s, err := EPD2in13(c, &Config{Rotation: rotation})
	if err != nil {
		t.Fatal(err)
	}
	d := s.(*epd2in13)
	d.sleep = func(time.Duration) {}
	return d, c
}

func whiteFrame(size image.Point) *pixel.MonoImage {
	frame := pixel.NewMonoImage(size.X, size.Y)
	frame.Fill(pixel.Paper)
	return frame
}

func TestEPD2in13Size(t *testing.T) {
	d, _ := testEPD(t, Rotate90)
	if v := d.Bounds().Size(); !v.Eq(image.Pt(250, 122)) {
		t.Errorf("expected landscape 250x122, got %s", v)
	}

	d, _ = testEPD(t, NoRotation)
	if v := d.Bounds().Size(); !v.Eq(image.Pt(122, 250)) {
		t.Errorf("expected portrait 122x250, got %s", v)
	}

	if _, err := EPD2in13(new(testConn), &Config{Width: 128, Height: 64}); err == nil {
		t.Error("expected unsupported size to fail")
	}
}

func TestEPD2in13Init(t *testing.T) {
	d, c := testEPD(t, Rotate90)
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}

	want := []gpio.Level{gpio.High, gpio.Low, gpio.High}
	if len(c.resets) != len(want) {
		t.Fatalf("expected %d reset transitions, got %d", len(want), len(c.resets))
	}
	for i, level := range want {
		if c.resets[i] != level {
			t.Errorf("expected reset %d to be %s, got %s", i, level, c.resets[i])
		}
	}

	if c.commands[0].cmd != ssd1680SoftReset {
		t.Errorf("expected soft reset first, got %#02x", c.commands[0].cmd)
	}
	if v := c.find(ssd1680DriverOutputControl); len(v) != 1 || v[0].data[0] != 0xF9 {
		t.Errorf("expected driver output control with 250 gates, got %v", v)
	}
	if v := c.find(ssd1680SetRAMXWindow); len(v) != 1 || v[0].data[0] != 0 || v[0].data[1] != 15 {
		t.Errorf("expected full X window, got %v", v)
	}
	if v := c.find(ssd1680SetRAMYWindow); len(v) != 1 || v[0].data[2] != 249 {
		t.Errorf("expected full Y window, got %v", v)
	}
}

func TestEPD2in13BusyTimeout(t *testing.T) {
	d, c := testEPD(t, Rotate90)
	c.busy = true

	var now time.Time
	d.now = func() time.Time { return now }
	d.sleep = func(dt time.Duration) { now = now.Add(dt) }

	if err := d.Init(); !errors.Is(err, ErrBusyTimeout) {
		t.Errorf("expected ErrBusyTimeout, got %v", err)
	}
}

func TestEPD2in13FullRefresh(t *testing.T) {
	d, c := testEPD(t, Rotate90)
	frame := whiteFrame(d.Bounds().Size())
	frame.Set(0, 0, pixel.Ink)

	if err := d.FullRefresh(frame); err != nil {
		t.Fatal(err)
	}

	ram := c.find(ssd1680WriteBlackWhiteRAM)
	if len(ram) != 1 {
		t.Fatalf("expected one RAM write, got %d", len(ram))
	}
	if v := len(ram[0].data); v != 16*250 {
		t.Fatalf("expected %d bytes, got %d", 16*250, v)
	}
	// Logical (0,0) is panel (121,0): second bit of the last byte of row 0.
	if v := ram[0].data[15]; v != 0xBF {
		t.Errorf("expected %#02x, got %#02x", 0xBF, v)
	}
	if v := ram[0].data[16]; v != 0xFF {
		t.Errorf("expected %#02x, got %#02x", 0xFF, v)
	}

	if v := c.find(ssd1680UpdateControl2); len(v) != 1 || v[0].data[0] != ssd1680UpdateFull {
		t.Errorf("expected full update sequence, got %v", v)
	}
	if v := c.find(ssd1680MasterActivation); len(v) != 1 {
		t.Errorf("expected one activation, got %d", len(v))
	}

	if err := d.FullRefresh(pixel.NewMonoImage(10, 10)); !errors.Is(err, ErrBounds) {
		t.Errorf("expected ErrBounds, got %v", err)
	}
}

func TestEPD2in13PartialRefresh(t *testing.T) {
	d, c := testEPD(t, Rotate90)
	frame := whiteFrame(d.Bounds().Size())
	r := image.Rect(10, 100, 30, 122)

	if err := d.PartialRefresh(frame, r); !errors.Is(err, ErrNoBaseImage) {
		t.Fatalf("expected ErrNoBaseImage, got %v", err)
	}
	if len(c.commands) != 0 {
		t.Fatalf("expected no commands, got %d", len(c.commands))
	}

	if err := d.FullRefresh(frame); err != nil {
		t.Fatal(err)
	}
	if err := d.PartialRefresh(frame, r); !errors.Is(err, ErrNoBaseImage) {
		t.Fatalf("expected ErrNoBaseImage after full refresh, got %v", err)
	}
	if err := d.SetBaseImage(frame); err != nil {
		t.Fatal(err)
	}
	if v := c.find(ssd1680WriteRedRAM); len(v) != 1 || len(v[0].data) != 16*250 {
		t.Fatalf("expected base image in both RAMs, got %d writes", len(v))
	}

	c.commands = nil
	if err := d.PartialRefresh(frame, r); err != nil {
		t.Fatal(err)
	}

	// Panel columns 0..21 round up to three bytes, rows follow logical x.
	if v := c.find(ssd1680SetRAMXWindow); len(v) != 1 || v[0].data[0] != 0 || v[0].data[1] != 2 {
		t.Errorf("expected X window 0..2, got %v", v)
	}
	if v := c.find(ssd1680SetRAMYWindow); len(v) != 1 || v[0].data[0] != 10 || v[0].data[2] != 29 {
		t.Errorf("expected Y window 10..29, got %v", v)
	}
	if v := c.find(ssd1680WriteBlackWhiteRAM); len(v) != 1 || len(v[0].data) != 3*20 {
		t.Errorf("expected 60 bytes of window data, got %v", v)
	}
	if v := c.find(ssd1680UpdateControl2); len(v) != 1 || v[0].data[0] != ssd1680UpdatePartial {
		t.Errorf("expected partial update sequence, got %v", v)
	}

	// A failing partial refresh invalidates the base image.
	c.fail = ssd1680MasterActivation
	if err := d.PartialRefresh(frame, r); err == nil {
		t.Fatal("expected error")
	}
	c.fail = 0
	if err := d.PartialRefresh(frame, r); !errors.Is(err, ErrNoBaseImage) {
		t.Errorf("expected ErrNoBaseImage after failure, got %v", err)
	}
}

func TestEPD2in13PanelRect(t *testing.T) {
	tests := []struct {
		Name     string
		Rotation Rotation
		Test     image.Rectangle
		Want     image.Rectangle
	}{
		{"0°", NoRotation, image.Rect(3, 5, 9, 7), image.Rect(0, 5, 16, 7)},
		{"90°", Rotate90, image.Rect(0, 0, 250, 122), image.Rect(0, 0, 128, 250)},
		{"90° corner", Rotate90, image.Rect(0, 0, 1, 1), image.Rect(120, 0, 128, 1)},
		{"180°", Rotate180, image.Rect(0, 0, 1, 1), image.Rect(120, 249, 128, 250)},
		{"270°", Rotate270, image.Rect(0, 0, 1, 1), image.Rect(0, 249, 8, 250)},
	}
	for _, test := range tests {
		t.Run(test.Name, func(it *testing.T) {
			d, _ := testEPD(it, test.Rotation)
			if v := d.panelRect(test.Test); !v.Eq(test.Want) {
				it.Errorf("expected %s, got %s", test.Want, v)
			}
		})
	}
}

func TestEPD2in13Sleep(t *testing.T) {
	d, c := testEPD(t, Rotate90)
	if err := d.Sleep(); err != nil {
		t.Fatal(err)
	}
	if v := c.find(ssd1680DeepSleep); len(v) != 1 || v[0].data[0] != 0x01 {
		t.Errorf("expected deep sleep command, got %v", v)
	}
	if err := d.Close(); err != nil || !c.closed {
		t.Errorf("expected connection to be closed, got %v", err)
	}
}

func TestMock(t *testing.T) {
	dir := t.TempDir()
	s := Mock(&Config{Rotation: Rotate90, SnapshotDir: dir})
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}

	frame := whiteFrame(s.Bounds().Size())
	if err := s.PartialRefresh(frame, image.Rect(0, 0, 8, 8)); !errors.Is(err, ErrNoBaseImage) {
		t.Fatalf("expected ErrNoBaseImage, got %v", err)
	}
	if err := s.FullRefresh(frame); err != nil {
		t.Fatal(err)
	}
	if err := s.SetBaseImage(frame); err != nil {
		t.Fatal(err)
	}
	frame.FillRect(image.Rect(0, 0, 8, 8), pixel.Ink)
	if err := s.PartialRefresh(frame, image.Rect(0, 0, 8, 8)); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"000001-full.png", "000002-partial.png", "latest.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected snapshot %s: %v", name, err)
		}
	}
	if v := s.(*mock).frame; v.IsOn(0, 0) || !v.IsOn(8, 8) {
		t.Error("expected partial refresh to update only its rectangle")
	}

	if err := s.Sleep(); err != nil {
		t.Fatal(err)
	}
	if err := s.FullRefresh(frame); err == nil {
		t.Error("expected refresh while asleep to fail")
	}
}

func TestParseRotation(t *testing.T) {
	tests := []struct {
		Test string
		Want Rotation
	}{
		{"", NoRotation},
		{"90", Rotate90},
		{"90°", Rotate90},
		{"flip", Rotate180},
		{"CCW", Rotate270},
	}
	for _, test := range tests {
		v, err := ParseRotation(test.Test)
		if err != nil {
			t.Errorf("%q: %v", test.Test, err)
		} else if v != test.Want {
			t.Errorf("%q: expected %s, got %s", test.Test, test.Want, v)
		}
	}
	if _, err := ParseRotation("45"); err == nil {
		t.Error("expected error")
	}
}
