package orchestrator

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/BeatGlow/inkpet/internal/menu"
	"github.com/BeatGlow/inkpet/internal/render"
)

// RefreshSchedule decides when a full refresh is forced.
type RefreshSchedule struct {
	LastFullRefresh     time.Time
	FullRefreshInterval time.Duration // anti-ghosting
	ConsecutiveFailures int
	FailureThreshold    int
}

// due reports whether the anti-ghost interval elapsed or too many hardware
// calls failed.
func (s *RefreshSchedule) due(now time.Time) bool {
	if s.ConsecutiveFailures >= s.FailureThreshold {
		return true
	}
	return s.FullRefreshInterval > 0 && now.Sub(s.LastFullRefresh) >= s.FullRefreshInterval
}

// TransitionLock is held from the start of a menu switch until the new menu
// is committed and has settled. Other goroutines may only observe it.
type TransitionLock struct {
	held   atomic.Bool
	target atomic.Int32
}

// Held reports whether a transition is in progress.
func (l *TransitionLock) Held() bool {
	return l.held.Load()
}

// Target returns the menu being entered.
func (l *TransitionLock) Target() menu.ID {
	return menu.ID(l.target.Load())
}

func (l *TransitionLock) acquire() {
	l.held.Store(true)
}

func (l *TransitionLock) enter(id menu.ID) {
	l.target.Store(int32(id))
}

func (l *TransitionLock) release() {
	l.held.Store(false)
}

// transition commits the menu entered by the moves of this tick: every base
// image is invalidated, the menu is rendered and committed with a full
// refresh, then the panel settles. A hardware failure leaves the base image
// invalid for the next tick to retry.
func (e *Engine) transition(now time.Time, from menu.ID) {
	e.lock.acquire()
	defer e.lock.release()

	e.menus.InvalidateAll()
	to := e.menus.Current()
	e.lock.enter(to)
	log.Printf("[INFO] orchestrator: transition %s -> %s", from, to)

	if e.commit(now) {
		e.sleep(e.config.Settle)
	}
}

// refreshFull re-renders the current menu with a full refresh and resets the
// failure counter.
func (e *Engine) refreshFull(now time.Time, reason string) {
	log.Printf("[INFO] orchestrator: full refresh of %s (%s)", e.menus.Current(), reason)
	e.schedule.ConsecutiveFailures = 0
	e.schedule.LastFullRefresh = now
	e.commit(now)
}

// commit renders the current menu and commits it as the new base image.
func (e *Engine) commit(now time.Time) bool {
	in, err := e.input(now)
	if err != nil {
		log.Printf("[ERROR] orchestrator: read state: %v", err)
		e.needsRender = true
		return false
	}
	return e.commitFrame(now, e.renderer.Render(in))
}

func (e *Engine) commitFrame(now time.Time, f *render.Frame) bool {
	st := e.menus.CurrentState()
	st.BaseValid = false

	if err := e.surface.FullRefresh(f.Image); err != nil {
		e.fail(now, "full refresh", err)
		return false
	}
	e.delta.FullRefreshes++
	e.delta.DisplayUpdates++
	e.schedule.LastFullRefresh = now

	if err := e.surface.SetBaseImage(f.Image); err != nil {
		e.fail(now, "set base image", err)
		return false
	}

	e.committed = f.Image.Clone()
	st.BaseValid = true
	clear(st.LastRendered)
	for name, v := range f.Values {
		st.LastRendered[name] = v
	}
	e.needsRender = false
	return true
}

// refreshPartial redraws the regions whose content changed with a single
// partial refresh, or commits a full frame when there is no valid base.
func (e *Engine) refreshPartial(now time.Time) {
	if e.lock.Held() {
		return
	}

	in, err := e.input(now)
	if err != nil {
		log.Printf("[ERROR] orchestrator: read state: %v", err)
		return
	}
	var (
		f     = e.renderer.Render(in)
		st    = e.menus.CurrentState()
		dirty = render.Dirty(f, st.LastRendered)
	)
	e.needsRender = false
	if len(dirty) == 0 {
		return
	}

	if !st.BaseValid || e.committed == nil {
		if e.config.Debug {
			log.Printf("[DEBUG] orchestrator: no base image for %s, full refresh instead", in.Menu)
		}
		e.commitFrame(now, f)
		return
	}

	// Only the dirty rectangles change, the rest of the union is resent as
	// committed.
	for _, region := range dirty {
		e.committed.CopyRect(f.Image, region.Rect)
	}
	r := render.Union(dirty)
	if e.config.Debug {
		log.Printf("[DEBUG] orchestrator: partial refresh of %d region(s) %s", len(dirty), r)
	}
	if err = e.surface.PartialRefresh(e.committed, r); err != nil {
		e.fail(now, "partial refresh", err)
		return
	}

	e.delta.PartialRefreshes++
	e.delta.DisplayUpdates++
	for _, region := range dirty {
		st.LastRendered[region.Name] = f.Values[region.Name]
	}
}

// fail records a hardware failure. It never propagates. What the panel shows
// is unknown afterwards, so the next update of the menu is a full refresh.
func (e *Engine) fail(now time.Time, op string, err error) {
	st := e.menus.CurrentState()
	st.BaseValid = false
	clear(st.LastRendered)
	e.needsRender = true
	e.schedule.ConsecutiveFailures++
	e.delta.HardwareFailures++
	e.recordError(now, fmt.Errorf("%s: %w", op, err))
	log.Printf("[ERROR] orchestrator: %s failed (%d consecutive): %v", op, e.schedule.ConsecutiveFailures, err)
}
