package draw

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

// Small is the fixed 7x13 bitmap face, always available.
var Small font.Face = basicfont.Face7x13

var (
	fontOnce sync.Once
	fontErr  error
	monoBold *truetype.Font
	regular  *truetype.Font
)

var (
	faceMu    sync.Mutex
	faceCache = make(map[faceKey]font.Face)
)

type faceKey struct {
	bold bool
	size float64
}

func loadFonts() {
	if monoBold, fontErr = truetype.Parse(gomonobold.TTF); fontErr != nil {
		fontErr = fmt.Errorf("draw: parse mono bold font: %w", fontErr)
		return
	}
	if regular, fontErr = truetype.Parse(goregular.TTF); fontErr != nil {
		fontErr = fmt.Errorf("draw: parse regular font: %w", fontErr)
	}
}

// Face returns a TrueType face of the given point size. Bold faces are
// monospaced so that digits keep their position when they change.
func Face(size float64, bold bool) (font.Face, error) {
	if size <= 0 {
		return nil, fmt.Errorf("draw: invalid font size %g", size)
	}
	if fontOnce.Do(loadFonts); fontErr != nil {
		return nil, fontErr
	}

	faceMu.Lock()
	defer faceMu.Unlock()

	key := faceKey{bold: bold, size: size}
	if face, ok := faceCache[key]; ok {
		return face, nil
	}

	f := regular
	if bold {
		f = monoBold
	}
	face := truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	faceCache[key] = face
	return face, nil
}

// MustFace is like Face but panics on error.
func MustFace(size float64, bold bool) font.Face {
	face, err := Face(size, bold)
	if err != nil {
		panic(err)
	}
	return face
}

// Text draws s with its top left corner at pt and returns the drawn bounds.
func Text(dst Image, face font.Face, pt image.Point, s string, c color.Color) image.Rectangle {
	m := face.Metrics()
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(pt.X, pt.Y+m.Ascent.Ceil()),
	}
	d.DrawString(s)
	return image.Rectangle{
		Min: pt,
		Max: image.Pt(d.Dot.X.Ceil(), pt.Y+m.Height.Ceil()),
	}
}

// TextCentered draws s horizontally centered inside r, vertically at the top
// of r plus dy.
func TextCentered(dst Image, face font.Face, r image.Rectangle, dy int, s string, c color.Color) image.Rectangle {
	size := MeasureText(face, s)
	x := r.Min.X + (r.Dx()-size.X)/2
	if x < r.Min.X {
		x = r.Min.X
	}
	return Text(dst, face, image.Pt(x, r.Min.Y+dy), s, c)
}

// MeasureText returns the width and line height of s in face.
func MeasureText(face font.Face, s string) image.Point {
	return image.Point{
		X: font.MeasureString(face, s).Ceil(),
		Y: face.Metrics().Height.Ceil(),
	}
}
