package pixel

import (
	"bytes"
	"image"
	"image/color"

	"github.com/BeatGlow/inkpet/draw"
)

type Image interface {
	draw.Image

	// Clear the image.
	Clear()

	// Fill the image with a single color.
	Fill(color.Color)
}

// Buffer holds the pixel values and is a container that is used by most image formats in this package.
type Buffer struct {
	// Rect is the image bounding box.
	Rect image.Rectangle

	// Pix are the image pixels.
	Pix []byte

	// Stride is the Pix stride (in bytes) between vertically adjacent pixels.
	Stride int
}

func (p *Buffer) Bounds() image.Rectangle {
	return p.Rect
}

func (p *Buffer) Clear() {
	for i := range p.Pix {
		p.Pix[i] = 0x00
	}
}

func makeBuffer(w, h, stride, size int) Buffer {
	return Buffer{
		Rect:   image.Rect(0, 0, w, h),
		Pix:    make([]byte, size),
		Stride: stride,
	}
}

// MonoImage is a 1-bit per pixel monochrome image, rows are packed LSB first.
type MonoImage struct {
	Buffer
}

func NewMonoImage(w, h int) *MonoImage {
	stride := ((w + 7) & ^7) / 8 // round up to whole bytes
	return &MonoImage{
		Buffer: makeBuffer(w, h, stride, stride*h),
	}
}

func (p *MonoImage) ColorModel() color.Model {
	return MonoModel
}

func (p *MonoImage) PixOffset(x, y int) int {
	return y*p.Stride + x/8
}

func (p *MonoImage) At(x, y int) color.Color {
	if !(image.Point{x, y}).In(p.Rect) {
		return color.Transparent
	}
	if p.IsOn(x, y) {
		return On
	}
	return Off
}

// IsOn reports whether the bit at (x, y) is set, out of bounds pixels are off.
func (p *MonoImage) IsOn(x, y int) bool {
	if !(image.Point{x, y}).In(p.Rect) {
		return false
	}
	return p.Pix[y*p.Stride+x/8]&(1<<uint(x%8)) != 0
}

func (p *MonoImage) Set(x, y int, c color.Color) {
	if !(image.Point{x, y}).In(p.Rect) {
		return
	}
	p.set(x, y, monoModel(c).(Mono).On)
}

func (p *MonoImage) set(x, y int, on bool) {
	index := y*p.Stride + x/8
	if on {
		p.Pix[index] |= (1 << uint(x%8))
	} else {
		p.Pix[index] &^= (1 << uint(x%8))
	}
}

func (p *MonoImage) Fill(c color.Color) {
	var value byte
	if monoModel(c).(Mono).On {
		value = 0xff
	}
	for i := range p.Pix {
		p.Pix[i] = value
	}
}

// FillRect sets all pixels inside r to c.
func (p *MonoImage) FillRect(r image.Rectangle, c color.Color) {
	r = r.Intersect(p.Rect)
	on := monoModel(c).(Mono).On
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			p.set(x, y, on)
		}
	}
}

// CopyRect copies the pixels inside r from src.
func (p *MonoImage) CopyRect(src *MonoImage, r image.Rectangle) {
	r = r.Intersect(p.Rect).Intersect(src.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			p.set(x, y, src.IsOn(x, y))
		}
	}
}

// Clone returns a deep copy of the image.
func (p *MonoImage) Clone() *MonoImage {
	c := &MonoImage{
		Buffer: Buffer{
			Rect:   p.Rect,
			Pix:    make([]byte, len(p.Pix)),
			Stride: p.Stride,
		},
	}
	copy(c.Pix, p.Pix)
	return c
}

// Equal reports whether both images have the same bounds and pixels.
func (p *MonoImage) Equal(o *MonoImage) bool {
	if o == nil {
		return false
	}
	return p.Rect.Eq(o.Rect) && bytes.Equal(p.Pix, o.Pix)
}
