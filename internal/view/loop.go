package view

import (
	"context"
	"time"

	"github.com/Softhook/elite-sub000/internal/stream"
	"github.com/Softhook/elite-sub000/pkg/core"
	"github.com/gdamore/tcell/v2"
)

const (
	DefaultFrameInterval = 33 * time.Millisecond
	DefaultScale         = 10.0
	zoomFactor           = 1.25
)

// Controller turns key presses into observer movement and zoom.
type Controller struct {
	Observer core.Vec2
	// Step is the world distance moved per key press, in columns at the
	// current scale.
	Step  float64
	Scale float64
}

// HandleEvent applies ev and reports whether the loop should continue.
func (c *Controller) HandleEvent(ev tcell.Event) bool {
	key, ok := ev.(*tcell.EventKey)
	if !ok {
		return true
	}

	step := c.Step * c.Scale
	switch key.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyUp:
		c.Observer.Y += step * CellAspect
	case tcell.KeyDown:
		c.Observer.Y -= step * CellAspect
	case tcell.KeyLeft:
		c.Observer.X -= step
	case tcell.KeyRight:
		c.Observer.X += step
	case tcell.KeyRune:
		switch key.Rune() {
		case 'q', 'Q':
			return false
		case '+', '=':
			c.Scale /= zoomFactor
		case '-', '_':
			c.Scale *= zoomFactor
		}
	}
	return true
}

// Options configures Run.
type Options struct {
	FrameInterval time.Duration
	Scale         float64
	Step          float64
	// OnTick is called after every Advance, from the loop goroutine.
	OnTick func(stream.TickReport)
}

// Run advances m once per frame with the observer under keyboard control
// and draws the visible instances until q, Esc or ctx cancellation. The
// caller owns screen: it must be initialised before and finalised after.
func Run(ctx context.Context, screen tcell.Screen, m *stream.Manager, start core.Vec2, opts Options) error {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = DefaultFrameInterval
	}
	if opts.Scale <= 0 {
		opts.Scale = DefaultScale
	}
	if opts.Step <= 0 {
		opts.Step = 2
	}

	ctrl := &Controller{Observer: start, Step: opts.Step, Scale: opts.Scale}
	r := NewRenderer(screen, opts.Scale)

	done := make(chan struct{})
	defer close(done)
	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-done:
				return
			}
		}
	}()

	ticker := time.NewTicker(opts.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if _, ok := ev.(*tcell.EventResize); ok {
				screen.Sync()
			}
			if !ctrl.HandleEvent(ev) {
				return nil
			}
		case <-ticker.C:
			obs := ctrl.Observer
			rep := m.Advance(&obs)
			if opts.OnTick != nil {
				opts.OnTick(rep)
			}

			r.SetScale(ctrl.Scale)
			bounds := r.Begin(obs)
			drawn := m.Render(bounds, r)
			r.DrawObserver()
			r.DrawHUD(Status(rep.Tick, obs, rep.Active, drawn))
			r.Show()
		}
	}
}
