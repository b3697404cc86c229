// Package view draws a debris stream in a terminal with tcell.
package view

import (
	"fmt"
	"math"

	"github.com/Softhook/elite-sub000/internal/debris"
	"github.com/Softhook/elite-sub000/pkg/core"
	"github.com/gdamore/tcell/v2"
)

// CellAspect is how many times taller a terminal cell is than wide.
const CellAspect = 2.0

const (
	outlineRune  = '#'
	centerRune   = '+'
	observerRune = '@'
)

// Camera maps world coordinates onto a Width x Height grid of cells
// centred on Center. Scale is world units per column; world Y grows up.
type Camera struct {
	Center        core.Vec2
	Scale         float64
	Width, Height int
}

// ToCell returns the cell containing p and whether it is on screen.
func (c Camera) ToCell(p core.Vec2) (x, y int, ok bool) {
	x, y = c.project(p)
	return x, y, x >= 0 && y >= 0 && x < c.Width && y < c.Height
}

func (c Camera) project(p core.Vec2) (int, int) {
	dx := (p.X - c.Center.X) / c.Scale
	dy := (p.Y - c.Center.Y) / (c.Scale * CellAspect)
	return int(math.Floor(float64(c.Width)/2 + dx)), int(math.Floor(float64(c.Height)/2 - dy))
}

// Bounds is the world rectangle covered by the grid.
func (c Camera) Bounds() core.Rect {
	halfW := float64(c.Width) / 2 * c.Scale
	halfH := float64(c.Height) / 2 * c.Scale * CellAspect
	return core.RectAround(c.Center, halfW, halfH)
}

// Renderer draws instances onto a tcell screen. It implements
// stream.Renderer.
type Renderer struct {
	screen tcell.Screen
	cam    Camera
}

func NewRenderer(screen tcell.Screen, scale float64) *Renderer {
	return &Renderer{screen: screen, cam: Camera{Scale: scale}}
}

// Begin clears the screen, centres the camera on center and returns the
// world rectangle now visible.
func (r *Renderer) Begin(center core.Vec2) core.Rect {
	r.screen.Clear()
	r.cam.Center = center
	r.cam.Width, r.cam.Height = r.screen.Size()
	return r.cam.Bounds()
}

// Camera returns the camera of the current frame.
func (r *Renderer) Camera() Camera { return r.cam }

// SetScale changes the zoom. Non-positive scales are ignored.
func (r *Renderer) SetScale(scale float64) {
	if scale > 0 {
		r.cam.Scale = scale
	}
}

// DrawInstance outlines the instance's silhouette and marks its centre,
// coloured by remaining hit points.
func (r *Renderer) DrawInstance(inst *debris.Instance) {
	style := tcell.StyleDefault.Foreground(healthColor(inst))
	verts := inst.Vertices()
	for i := range verts {
		x0, y0 := r.cam.project(verts[i])
		x1, y1 := r.cam.project(verts[(i+1)%len(verts)])
		r.line(x0, y0, x1, y1, outlineRune, style)
	}
	if x, y, ok := r.cam.ToCell(inst.Position()); ok {
		r.screen.SetContent(x, y, centerRune, nil, style)
	}
}

// DrawObserver marks the camera centre.
func (r *Renderer) DrawObserver() {
	x, y := r.cam.project(r.cam.Center)
	r.set(x, y, observerRune, tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true))
}

// DrawText writes s starting at column x of row y, clipped to the screen.
func (r *Renderer) DrawText(x, y int, s string) {
	style := tcell.StyleDefault.Foreground(tcell.ColorWhite)
	for _, ch := range s {
		r.set(x, y, ch, style)
		x++
	}
}

// DrawHUD writes one line per entry from the top-left corner.
func (r *Renderer) DrawHUD(lines ...string) {
	for i, l := range lines {
		r.DrawText(0, i, l)
	}
}

// Show flushes the frame to the terminal.
func (r *Renderer) Show() {
	r.screen.Show()
}

func (r *Renderer) set(x, y int, ch rune, style tcell.Style) {
	if x < 0 || y < 0 || x >= r.cam.Width || y >= r.cam.Height {
		return
	}
	r.screen.SetContent(x, y, ch, nil, style)
}

// line plots a Bresenham segment, skipping cells off screen.
func (r *Renderer) line(x0, y0, x1, y1 int, ch rune, style tcell.Style) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		r.set(x0, y0, ch, style)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func healthColor(inst *debris.Instance) tcell.Color {
	if inst.MaxHitPoints() <= 0 {
		return tcell.ColorGray
	}
	switch ratio := inst.HitPoints() / inst.MaxHitPoints(); {
	case ratio > 0.66:
		return tcell.ColorGreen
	case ratio > 0.33:
		return tcell.ColorYellow
	default:
		return tcell.ColorRed
	}
}

// Status formats the HUD line for a frame.
func Status(tick uint64, observer core.Vec2, active, drawn int) string {
	return fmt.Sprintf("tick %d  observer (%.0f, %.0f)  active %d  drawn %d  [arrows move, +/- zoom, q quit]",
		tick, observer.X, observer.Y, active, drawn)
}
