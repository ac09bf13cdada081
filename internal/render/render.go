// Package render draws the menus into 1-bit frames. Every piece of changing
// content lives in a named region, so that a frame can be diffed against the
// values last committed to the panel and refreshed region by region.
package render

import (
	"fmt"
	"image"
	"image/color"
	"strings"
	"time"

	"golang.org/x/image/font"

	"github.com/BeatGlow/inkpet/draw"
	"github.com/BeatGlow/inkpet/internal/menu"
	"github.com/BeatGlow/inkpet/internal/state"
	"github.com/BeatGlow/inkpet/pixel"
)

// Region names.
const (
	RegionDate   = "date"
	RegionTime   = "time"
	RegionSprite = "sprite"
	RegionStatus = "status"
	RegionHeader = "header"
	RegionClock  = "clock"
	RegionBody   = "body"
)

// Size is the logical frame size the layout is designed for.
var Size = image.Pt(250, 122)

// Region is a named rectangle of a menu layout.
type Region struct {
	Name string
	Rect image.Rectangle
}

var (
	mainRegions = []Region{
		{RegionDate, image.Rect(0, 0, 250, 22)},
		{RegionTime, image.Rect(0, 22, 176, 92)},
		{RegionSprite, image.Rect(176, 22, 250, 92)},
		{RegionStatus, image.Rect(0, 94, 250, 108)},
	}
	listRegions = []Region{
		{RegionHeader, image.Rect(0, 0, 176, 22)},
		{RegionClock, image.Rect(176, 0, 250, 22)},
		{RegionBody, image.Rect(0, 24, 250, 108)},
	}
)

// Regions returns the layout of a menu.
func Regions(id menu.ID) []Region {
	if id == menu.Main {
		return mainRegions
	}
	return listRegions
}

// Input is everything a frame depends on.
type Input struct {
	Menu     menu.ID
	State    menu.State
	Snapshot state.Snapshot
	Now      time.Time // in the display time zone
	Tick     int       // animation frame counter
	Device   string
}

// Frame is a rendered menu.
type Frame struct {
	Menu    menu.ID
	Image   *pixel.MonoImage
	Regions []Region

	// Values holds the content drawn in every region.
	Values map[string]string
}

// Renderer draws menus.
type Renderer struct {
	size   image.Point
	giant  font.Face
	medium font.Face
	small  font.Face
}

// New creates a renderer for frames of the given size.
func New(size image.Point) (*Renderer, error) {
	if size.X < Size.X || size.Y < Size.Y {
		return nil, fmt.Errorf("render: frame %s is smaller than the layout %s", size, Size)
	}
	giant, err := draw.Face(40, true)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	medium, err := draw.Face(14, false)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return &Renderer{
		size:   size,
		giant:  giant,
		medium: medium,
		small:  draw.Small,
	}, nil
}

// Render draws the full frame of a menu.
func (r *Renderer) Render(in Input) *Frame {
	f := &Frame{
		Menu:    in.Menu,
		Image:   pixel.NewMonoImage(r.size.X, r.size.Y),
		Regions: Regions(in.Menu),
		Values:  make(map[string]string),
	}
	f.Image.Fill(pixel.Paper)

	values := r.values(in)
	for _, region := range f.Regions {
		f.Values[region.Name] = values[region.Name]
		r.drawRegion(clip{f.Image, region.Rect}, region, in)
	}
	r.drawChrome(f.Image, in.Menu)
	return f
}

// values computes the semantic content of every region.
func (r *Renderer) values(in Input) map[string]string {
	var (
		snap  = in.Snapshot
		clock = formatTime(in.Now, snap.Settings.TimeFormat)
		v     = make(map[string]string)
	)
	switch in.Menu {
	case menu.Main:
		v[RegionDate] = in.Now.Format("Mon, Jan 02")
		if snap.Stats.LastError != nil {
			v[RegionDate] += " !"
		}
		v[RegionTime] = clock
		v[RegionSprite] = fmt.Sprintf("%s/%d", snap.Pet.Mood(), in.Tick%2)
		v[RegionStatus] = strings.Join(statusLine(snap), "|")
	default:
		v[RegionClock] = clock
		header, body := r.listContent(in)
		v[RegionHeader] = header
		v[RegionBody] = strings.Join(body, "\n")
	}
	return v
}

func (r *Renderer) drawRegion(dst draw.Image, region Region, in Input) {
	var (
		o    = region.Rect.Min
		snap = in.Snapshot
	)
	switch region.Name {
	case RegionDate:
		draw.Text(dst, r.medium, o.Add(image.Pt(5, 4)), in.Now.Format("Mon, Jan 02"), pixel.Ink)
		if snap.Stats.LastError != nil {
			draw.Text(dst, r.small, image.Pt(236, 4), "!", pixel.Ink)
		}

	case RegionTime:
		digits := formatTime(in.Now, snap.Settings.TimeFormat)
		if snap.Settings.TimeFormat == 12 {
			var suffix string
			digits, suffix, _ = strings.Cut(digits, " ")
			draw.Text(dst, r.small, o.Add(image.Pt(134, 40)), suffix, pixel.Ink)
		}
		draw.Text(dst, r.giant, o.Add(image.Pt(6, 8)), digits, pixel.Ink)

	case RegionSprite:
		Sprite(dst, image.Rectangle{Min: o.Add(image.Pt(5, 3)), Max: o.Add(image.Pt(69, 67))}, snap.Pet.Mood(), in.Tick%2)

	case RegionStatus:
		x := []int{5, 50, 90, 120}
		for i, s := range statusLine(snap) {
			draw.Text(dst, r.small, image.Pt(x[i], o.Y+1), s, pixel.Ink)
		}

	case RegionHeader:
		header, _ := r.listContent(in)
		draw.Text(dst, r.medium, o.Add(image.Pt(5, 4)), header, pixel.Ink)

	case RegionClock:
		draw.Text(dst, r.small, o.Add(image.Pt(4, 5)), formatTime(in.Now, snap.Settings.TimeFormat), pixel.Ink)

	case RegionBody:
		_, body := r.listContent(in)
		if in.Menu == menu.Messages && len(snap.Messages.Messages) == 0 {
			draw.TextCentered(dst, r.medium, region.Rect, 26, body[0], pixel.Ink)
			return
		}
		lineHeight := 14
		if in.Menu == menu.Settings {
			lineHeight = 16
		}
		y := o.Y + 4
		for _, line := range body {
			if line == "" {
				y += 10
				continue
			}
			draw.Text(dst, r.small, image.Pt(10, y), line, pixel.Ink)
			y += lineHeight
		}
	}
}

// drawChrome draws the static parts of a layout.
func (r *Renderer) drawChrome(dst draw.Image, id menu.ID) {
	secondary := map[menu.ID]string{
		menu.Main:     "[Poke]",
		menu.Messages: "[Read]",
		menu.Stats:    "[Next]",
		menu.Settings: "[Chg]",
	}[id]

	if id == menu.Main {
		draw.HorizontalLine(dst, 0, 93, Size.X, pixel.Ink)
		draw.Text(dst, r.small, image.Pt(5, 109), "[Feed]", pixel.Ink)
	} else {
		draw.HorizontalLine(dst, 5, 23, Size.X-10, pixel.Ink)
		draw.Text(dst, r.small, image.Pt(5, 109), "[Back]", pixel.Ink)
	}
	draw.Text(dst, r.small, image.Pt(90, 109), secondary, pixel.Ink)
	draw.Text(dst, r.small, image.Pt(222, 109), "[>]", pixel.Ink)
}

// listContent returns the header and body lines of the non-Main menus.
func (r *Renderer) listContent(in Input) (header string, body []string) {
	snap := in.Snapshot
	switch in.Menu {
	case menu.Messages:
		recent := snap.Messages.Recent(5)
		header = fmt.Sprintf("Messages (%d)", len(recent))
		if unread := snap.Messages.Unread(); unread > 0 {
			header += fmt.Sprintf(" - %d new", unread)
		}
		if len(recent) == 0 {
			return header, []string{"No messages"}
		}
		for i, m := range recent[:min(len(recent), menu.VisibleMessages)] {
			body = append(body, fmt.Sprintf("%s %s -%s", cursor(i == in.State.Cursor), truncate(m.Message, 20), m.From))
		}

	case menu.Stats:
		pet := snap.Pet
		if in.State.Page == 0 {
			header = "Pet Stats"
			body = []string{
				fmt.Sprintf("Age: %dd %dh", pet.AgeHours/24, pet.AgeHours%24),
				fmt.Sprintf("Fed: %d times", pet.TotalFeeds),
				fmt.Sprintf("Msgs: %d sent, %d rcv", pet.MessagesSent, pet.MessagesReceived),
				fmt.Sprintf("Mood: %s", bar(pet.Happiness/2, 5, '*', '.')),
				fmt.Sprintf("H:%d F:%d M:%d", pet.Health, state.MaxHunger-pet.Hunger, pet.Happiness),
			}
			break
		}
		stats := snap.Stats
		header = "Device Stats"
		body = []string{
			fmt.Sprintf("Updates: %d", stats.TotalDisplayUpdates),
			fmt.Sprintf("Full/partial: %d/%d", stats.TotalFullRefreshes, stats.TotalPartialRefreshes),
			fmt.Sprintf("Presses: %d (%d dropped)", stats.TotalButtonPresses, stats.DroppedActions),
			fmt.Sprintf("HW failures: %d", stats.HardwareFailures),
		}
		if stats.LastError != nil {
			body = append(body, "Err: "+truncate(stats.LastError.Message, 24))
		}

	case menu.Settings:
		settings := snap.Settings
		sel := in.State.Selected
		header = "Settings"
		body = []string{
			fmt.Sprintf("%s Time: %dh", cursor(sel == state.SettingTimeFormat), settings.TimeFormat),
			fmt.Sprintf("%s Bright: %s", cursor(sel == state.SettingBrightness), bar(settings.Brightness, 5, '#', '-')),
			fmt.Sprintf("%s Refresh: %s", cursor(sel == state.SettingRefreshMode), settings.RefreshMode),
			"",
			fmt.Sprintf("Device: %s", in.Device),
		}
	}
	return
}

func statusLine(snap state.Snapshot) []string {
	pet := snap.Pet

	health := strings.TrimSpace(strings.Repeat("<3 ", min(pet.Health/3, 3)))
	if health == "" {
		health = "HP:0"
	}
	hunger := strings.Repeat("*", max(0, min(3, pet.Hunger/3)))
	if hunger == "" {
		hunger = "FED"
	}
	out := []string{health, hunger, moodIcons[pet.Mood()]}
	if unread := snap.Messages.Unread(); unread > 0 {
		out = append(out, fmt.Sprintf("MSG:%d", unread))
	}
	return out
}

var moodIcons = map[state.Mood]string{
	state.MoodHappy:   ":)",
	state.MoodNeutral: ":|",
	state.MoodSad:     ":(",
	state.MoodHungry:  ":P",
	state.MoodSick:    ":X",
}

func formatTime(t time.Time, format int) string {
	if format == 12 {
		return t.Format("03:04 PM")
	}
	return t.Format("15:04")
}

func cursor(selected bool) string {
	if selected {
		return ">"
	}
	return " "
}

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return s
}

func bar(n, total int, on, off rune) string {
	n = max(0, min(n, total))
	return strings.Repeat(string(on), n) + strings.Repeat(string(off), total-n)
}

// clip restricts drawing to a rectangle.
type clip struct {
	draw.Image
	r image.Rectangle
}

func (c clip) Set(x, y int, col color.Color) {
	if (image.Point{X: x, Y: y}).In(c.r) {
		c.Image.Set(x, y, col)
	}
}

// Dirty returns the regions of f whose value differs from last.
func Dirty(f *Frame, last map[string]string) []Region {
	var out []Region
	for _, region := range f.Regions {
		if v, ok := last[region.Name]; !ok || v != f.Values[region.Name] {
			out = append(out, region)
		}
	}
	return out
}

// Union returns the smallest rectangle covering all regions.
func Union(regions []Region) image.Rectangle {
	var r image.Rectangle
	for _, region := range regions {
		r = r.Union(region.Rect)
	}
	return r
}
