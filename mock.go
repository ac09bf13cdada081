package display

import (
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"

	"github.com/BeatGlow/inkpet/pixel"
)

type mock struct {
	size      image.Point
	dir       string
	frame     *pixel.MonoImage
	baseValid bool
	asleep    bool
	seq       int
}

// Mock is a Surface without hardware. It follows the same base image rules as
// the panel drivers and, when SnapshotDir is set, writes every refreshed frame
// as a PNG file.
func Mock(config *Config) Surface {
	if config == nil {
		config = &Config{Rotation: Rotate90}
	}
	size := config.logicalSize(image.Pt(epd2in13Width, epd2in13Height))
	if config.Width > 0 && config.Height > 0 {
		size = image.Pt(config.Width, config.Height)
	}
	return &mock{
		size:  size,
		dir:   config.SnapshotDir,
		frame: pixel.NewMonoImage(size.X, size.Y),
	}
}

func (d *mock) String() string {
	return fmt.Sprintf("mock %dx%d", d.size.X, d.size.Y)
}

func (d *mock) Bounds() image.Rectangle {
	return image.Rectangle{Max: d.size}
}

func (d *mock) Init() error {
	if d.dir != "" {
		if err := os.MkdirAll(d.dir, 0o755); err != nil {
			return fmt.Errorf("display: snapshot directory: %w", err)
		}
	}
	d.baseValid = false
	d.asleep = false
	d.frame.Fill(pixel.Paper)
	log.Printf("[INFO] display: %s initialized", d)
	return nil
}

func (d *mock) checkFrame(frame image.Image) error {
	if frame == nil || !frame.Bounds().Size().Eq(d.size) {
		return ErrBounds
	}
	if d.asleep {
		return fmt.Errorf("display: %s is asleep", d)
	}
	return nil
}

func (d *mock) copyFrom(frame image.Image, r image.Rectangle) {
	origin := frame.Bounds().Min
	mono := asMono(frame)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if mono(origin.X+x, origin.Y+y) {
				d.frame.Set(x, y, pixel.Paper)
			} else {
				d.frame.Set(x, y, pixel.Ink)
			}
		}
	}
}

func (d *mock) FullRefresh(frame image.Image) error {
	if err := d.checkFrame(frame); err != nil {
		return err
	}
	d.baseValid = false
	d.copyFrom(frame, d.Bounds())
	if debug {
		log.Printf("[DEBUG] display: %s full refresh", d)
	}
	return d.snapshot("full")
}

func (d *mock) SetBaseImage(frame image.Image) error {
	if err := d.checkFrame(frame); err != nil {
		return err
	}
	d.baseValid = true
	return nil
}

func (d *mock) PartialRefresh(frame image.Image, r image.Rectangle) error {
	if !d.baseValid {
		return ErrNoBaseImage
	}
	if err := d.checkFrame(frame); err != nil {
		return err
	}
	if r = r.Intersect(d.Bounds()); r.Empty() {
		return nil
	}
	d.copyFrom(frame, r)
	if debug {
		log.Printf("[DEBUG] display: %s partial refresh %s", d, r)
	}
	return d.snapshot("partial")
}

func (d *mock) snapshot(kind string) error {
	if d.dir == "" {
		return nil
	}
	d.seq++

	name := filepath.Join(d.dir, fmt.Sprintf("%06d-%s.png", d.seq, kind))
	if err := writePNG(name, d.frame); err != nil {
		return err
	}
	return writePNG(filepath.Join(d.dir, "latest.png"), d.frame)
}

func writePNG(name string, img image.Image) error {
	tmp := name + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err = png.Encode(f, img); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err = f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, name)
}

func (d *mock) Sleep() error {
	d.asleep = true
	d.baseValid = false
	return nil
}

func (d *mock) Close() error {
	return nil
}

// Interface checks
var (
	_ Surface = (*mock)(nil)
)
