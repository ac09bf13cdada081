package render

import (
	"image"

	"github.com/BeatGlow/inkpet/draw"
	"github.com/BeatGlow/inkpet/internal/state"
	"github.com/BeatGlow/inkpet/pixel"
)

// Sprite draws the pet inside r, which should be 64x64. Frame 1 is the
// alternate animation pose: ears tilted and, unless sick, eyes closed.
func Sprite(dst draw.Image, r image.Rectangle, mood state.Mood, frame int) {
	var (
		o   = r.Min
		ink = pixel.Ink
		at  = func(x, y int) image.Point { return o.Add(image.Pt(x, y)) }
	)

	// Ears
	tilt := 0
	if frame%2 == 1 {
		tilt = 3
	}
	draw.RoundedRectangle(dst, image.Rectangle{Min: at(18-tilt, 2), Max: at(28-tilt, 28)}, 4, ink)
	draw.RoundedRectangle(dst, image.Rectangle{Min: at(36+tilt, 2), Max: at(46+tilt, 28)}, 4, ink)
	if mood == state.MoodSad || mood == state.MoodSick {
		// Drooping right ear
		draw.Box(dst, image.Rectangle{Min: at(36+tilt, 2), Max: at(47+tilt, 12)}, pixel.Paper)
		draw.RoundedRectangle(dst, image.Rectangle{Min: at(44, 12), Max: at(60, 21)}, 4, ink)
	}

	// Head and body
	head := image.Rectangle{Min: at(10, 24), Max: at(54, 58)}
	draw.Box(dst, head, pixel.Paper)
	draw.RoundedRectangle(dst, head, 10, ink)
	draw.HorizontalLine(dst, o.X+16, o.Y+61, 32, ink)
	draw.Line(dst, at(16, 57), at(16, 61), ink)
	draw.Line(dst, at(47, 57), at(47, 61), ink)

	// Eyes
	blink := frame%2 == 1 && mood != state.MoodSick
	for _, x := range []int{22, 38} {
		switch {
		case mood == state.MoodSick:
			draw.Line(dst, at(x-2, 33), at(x+2, 37), ink)
			draw.Line(dst, at(x-2, 37), at(x+2, 33), ink)
		case blink || mood == state.MoodHappy:
			draw.Line(dst, at(x-2, 36), at(x, 34), ink)
			draw.Line(dst, at(x, 34), at(x+2, 36), ink)
		default:
			draw.Box(dst, image.Rectangle{Min: at(x-1, 33), Max: at(x+2, 37)}, ink)
		}
	}

	// Nose
	draw.Box(dst, image.Rectangle{Min: at(31, 41), Max: at(34, 43)}, ink)

	// Mouth
	switch mood {
	case state.MoodHappy:
		draw.Line(dst, at(26, 46), at(29, 49), ink)
		draw.HorizontalLine(dst, o.X+29, o.Y+49, 7, ink)
		draw.Line(dst, at(35, 49), at(38, 46), ink)
	case state.MoodSad, state.MoodSick:
		draw.Line(dst, at(26, 50), at(29, 47), ink)
		draw.HorizontalLine(dst, o.X+29, o.Y+47, 7, ink)
		draw.Line(dst, at(35, 47), at(38, 50), ink)
	case state.MoodHungry:
		draw.Rectangle(dst, image.Rectangle{Min: at(28, 45), Max: at(37, 52)}, ink)
	default:
		draw.HorizontalLine(dst, o.X+27, o.Y+48, 11, ink)
	}
}
