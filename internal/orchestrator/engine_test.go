package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	display "github.com/BeatGlow/inkpet"
	"github.com/BeatGlow/inkpet/internal/button"
	"github.com/BeatGlow/inkpet/internal/inbox"
	"github.com/BeatGlow/inkpet/internal/menu"
	"github.com/BeatGlow/inkpet/internal/render"
	"github.com/BeatGlow/inkpet/internal/state"
)

// fakeSurface records every call and panics when a call starts while another
// one is still in flight.
type fakeSurface struct {
	inFlight atomic.Bool

	mu         sync.Mutex
	calls      []fakeCall
	baseValid  bool
	violations int
	failures   map[string]int
}

type fakeCall struct {
	op   string
	rect image.Rectangle
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{failures: make(map[string]int)}
}

func (s *fakeSurface) do(op string, r image.Rectangle, fn func() error) error {
	if !s.inFlight.CompareAndSwap(false, true) {
		panic("re-entrant surface call: " + op)
	}
	defer s.inFlight.Store(false)
	time.Sleep(10 * time.Microsecond)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, fakeCall{op: op, rect: r})
	if s.failures[op] > 0 {
		s.failures[op]--
		if op == "partial" {
			s.baseValid = false
		}
		return fmt.Errorf("fake: %s failed", op)
	}
	if fn != nil {
		return fn()
	}
	return nil
}

func (s *fakeSurface) fail(op string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = n
}

func (s *fakeSurface) ops() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.calls {
		out = append(out, c.op)
	}
	return out
}

func (s *fakeSurface) last() fakeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return fakeCall{}
	}
	return s.calls[len(s.calls)-1]
}

func (s *fakeSurface) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

func (s *fakeSurface) count(op string) (n int) {
	for _, v := range s.ops() {
		if v == op {
			n++
		}
	}
	return
}

func (s *fakeSurface) Init() error {
	return s.do("init", image.Rectangle{}, func() error {
		s.baseValid = false
		return nil
	})
}

func (s *fakeSurface) FullRefresh(frame image.Image) error {
	return s.do("full", frame.Bounds(), func() error {
		s.baseValid = false
		return nil
	})
}

func (s *fakeSurface) SetBaseImage(frame image.Image) error {
	return s.do("base", frame.Bounds(), func() error {
		s.baseValid = true
		return nil
	})
}

func (s *fakeSurface) PartialRefresh(frame image.Image, r image.Rectangle) error {
	return s.do("partial", r, func() error {
		if !s.baseValid {
			s.violations++
			return display.ErrNoBaseImage
		}
		return nil
	})
}

func (s *fakeSurface) Bounds() image.Rectangle {
	return image.Rectangle{Max: render.Size}
}

func (s *fakeSurface) Sleep() error {
	return s.do("sleep", image.Rectangle{}, nil)
}

func (s *fakeSurface) Close() error {
	return s.do("close", image.Rectangle{}, nil)
}

type testEnv struct {
	t       *testing.T
	engine  *Engine
	surface *fakeSurface
	store   *state.Store
	outbox  string

	now     time.Time
	slept   []time.Duration
	onSleep func()
}

var testStart = time.Date(2026, 3, 14, 15, 9, 0, 0, time.UTC)

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()
	env := &testEnv{
		t:       t,
		surface: newFakeSurface(),
		outbox:  filepath.Join(t.TempDir(), "outbox"),
		now:     testStart,
	}

	store, err := state.Open(filepath.Join(t.TempDir(), "data"), state.Defaults{
		PetName:    "Fluffy",
		PetType:    "bunny",
		TimeFormat: 24,
		Clock:      func() time.Time { return env.now },
	})
	require.NoError(t, err)
	env.store = store

	config := Config{
		Tick:                100 * time.Millisecond,
		Settle:              200 * time.Millisecond,
		FullRefreshInterval: 5 * time.Minute,
		FailureThreshold:    3,
		ClockInterval:       time.Second,
		AnimationInterval:   0,
		PetUpdateInterval:   time.Hour,
		StatsFlushInterval:  time.Minute,
		QueueSize:           8,
		OutboxDir:           env.outbox,
		Device:              "bunny_clock",
		Location:            time.UTC,
	}
	if mutate != nil {
		mutate(&config)
	}

	env.engine, err = New(config, env.surface, store)
	require.NoError(t, err)
	env.engine.now = func() time.Time { return env.now }
	env.engine.sleep = func(d time.Duration) {
		env.slept = append(env.slept, d)
		if env.onSleep != nil {
			env.onSleep()
		}
	}

	t.Cleanup(func() {
		assert.Zero(t, env.surface.violations, "partial refresh without a base image")
	})
	return env
}

// boot initializes the surface and commits the first frame.
func (env *testEnv) boot() {
	require.NoError(env.t, env.surface.Init())
	env.engine.startup(env.now)
	require.Equal(env.t, []string{"init", "full", "base"}, env.surface.ops())
	env.surface.reset()
}

func (env *testEnv) tick(d time.Duration) {
	env.now = env.now.Add(d)
	env.engine.Tick(env.now)
}

func (env *testEnv) press(line button.Line) {
	require.True(env.t, env.engine.EnqueueButton(button.Event{Line: line, At: env.now}))
}

func (env *testEnv) snapshot() state.Snapshot {
	snap, err := env.store.Snapshot()
	require.NoError(env.t, err)
	return snap
}

func regionRect(id menu.ID, name string) image.Rectangle {
	for _, r := range render.Regions(id) {
		if r.Name == name {
			return r.Rect
		}
	}
	return image.Rectangle{}
}

func TestEngine_StartupCommitsMain(t *testing.T) {
	env := newTestEnv(t, nil)
	env.boot()

	st := env.engine.Menus().CurrentState()
	assert.Equal(t, menu.Main, env.engine.Menus().Current())
	assert.True(t, st.BaseValid)
	assert.Len(t, st.LastRendered, 4)
	assert.Equal(t, "15:09", st.LastRendered[render.RegionTime])
}

func TestEngine_NoWriteWithoutChange(t *testing.T) {
	env := newTestEnv(t, nil)
	env.boot()

	for i := 0; i < 50; i++ {
		env.tick(time.Second)
	}
	assert.Empty(t, env.surface.ops(), "the minute did not change")

	env.tick(10 * time.Second)
	assert.Equal(t, []string{"partial"}, env.surface.ops())
	assert.Equal(t, regionRect(menu.Main, render.RegionTime), env.surface.last().rect)
	assert.Equal(t, "15:10", env.engine.Menus().CurrentState().LastRendered[render.RegionTime])
}

func TestEngine_CoalescesDirtyRegions(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.AnimationInterval = 5 * time.Second
	})
	env.boot()

	// The minute and the animation frame change in the same tick.
	env.tick(time.Minute)
	assert.Equal(t, []string{"partial"}, env.surface.ops())
	assert.Equal(t, image.Rect(0, 22, 250, 92), env.surface.last().rect)
}

func TestEngine_PartialUpgradedWithoutBase(t *testing.T) {
	env := newTestEnv(t, nil)
	env.surface.fail("base", 1)
	require.NoError(t, env.surface.Init())
	env.engine.startup(env.now)
	assert.False(t, env.engine.Menus().CurrentState().BaseValid)
	env.surface.reset()

	env.tick(time.Second)
	assert.Equal(t, []string{"full", "base"}, env.surface.ops())
	assert.True(t, env.engine.Menus().CurrentState().BaseValid)
}

func TestEngine_FailureThenFullRefresh(t *testing.T) {
	env := newTestEnv(t, nil)
	env.boot()

	env.surface.fail("partial", 1)
	env.tick(time.Minute)
	assert.Equal(t, []string{"partial"}, env.surface.ops())
	assert.Equal(t, 1, env.engine.Schedule().ConsecutiveFailures)
	assert.False(t, env.engine.Menus().CurrentState().BaseValid)

	// Nothing changed on screen, yet the next opportunity is a full refresh.
	env.surface.reset()
	env.tick(time.Second)
	assert.Equal(t, []string{"full", "base"}, env.surface.ops())
	assert.True(t, env.engine.Menus().CurrentState().BaseValid)

	env.surface.reset()
	env.tick(time.Minute)
	assert.Equal(t, []string{"partial"}, env.surface.ops())
}

func TestEngine_FailureThresholdForcesFullRefresh(t *testing.T) {
	env := newTestEnv(t, nil)
	env.boot()
	env.surface.fail("partial", 3)

	for i := 1; i <= 3; i++ {
		env.surface.reset()
		env.tick(time.Minute)
		require.Equal(t, []string{"partial"}, env.surface.ops(), "failure %d", i)
		require.Equal(t, i, env.engine.Schedule().ConsecutiveFailures)

		if i < 3 {
			// Recovery by the upgraded full refresh keeps counting.
			env.surface.reset()
			env.tick(time.Second)
			require.Equal(t, []string{"full", "base"}, env.surface.ops())
			require.Equal(t, i, env.engine.Schedule().ConsecutiveFailures)
		}
	}

	env.surface.reset()
	env.tick(100 * time.Millisecond)
	assert.Equal(t, []string{"full", "base"}, env.surface.ops())
	assert.Zero(t, env.engine.Schedule().ConsecutiveFailures)
	assert.True(t, env.engine.Menus().CurrentState().BaseValid)
	assert.Less(t, env.now.Sub(testStart), 5*time.Minute, "anti-ghost interval not elapsed")
}

func TestEngine_AntiGhostRefresh(t *testing.T) {
	env := newTestEnv(t, nil)
	env.boot()
	env.engine.schedule.ConsecutiveFailures = 2

	for i := 0; i < 29; i++ {
		env.tick(10 * time.Second)
	}
	assert.Zero(t, env.surface.count("full"))

	env.tick(10 * time.Second)
	assert.Equal(t, 1, env.surface.count("full"))
	assert.Zero(t, env.engine.Schedule().ConsecutiveFailures)
	assert.Equal(t, env.now, env.engine.Schedule().LastFullRefresh)

	for i := 0; i < 29; i++ {
		env.tick(10 * time.Second)
	}
	assert.Equal(t, 1, env.surface.count("full"), "exactly once per interval")
}

func TestEngine_TransitionProtocol(t *testing.T) {
	env := newTestEnv(t, nil)
	env.boot()

	var busy []bool
	env.onSleep = func() {
		busy = append(busy, env.engine.Busy())
		assert.Equal(t, menu.Messages, env.engine.lock.Target())
	}

	env.press(button.Action)
	env.tick(100 * time.Millisecond)

	assert.Equal(t, []string{"full", "base"}, env.surface.ops())
	assert.Equal(t, []time.Duration{200 * time.Millisecond}, env.slept)
	assert.Equal(t, []bool{true}, busy, "lock held while settling")
	assert.False(t, env.engine.Busy())

	m := env.engine.Menus()
	assert.Equal(t, menu.Messages, m.Current())
	assert.True(t, m.State(menu.Messages).BaseValid)
	assert.False(t, m.State(menu.Main).BaseValid, "the previous menu must not reuse its base image")
	assert.Empty(t, m.State(menu.Main).LastRendered)
}

func TestEngine_TransitionFailureReleasesLock(t *testing.T) {
	env := newTestEnv(t, nil)
	env.boot()
	env.surface.fail("full", 1)

	env.press(button.Action)
	env.tick(100 * time.Millisecond)
	assert.Equal(t, []string{"full"}, env.surface.ops())
	assert.False(t, env.engine.Busy())
	assert.Empty(t, env.slept, "no settle after a failed transition")
	assert.Equal(t, menu.Messages, env.engine.Menus().Current())
	assert.False(t, env.engine.Menus().CurrentState().BaseValid)

	env.surface.reset()
	env.tick(100 * time.Millisecond)
	assert.Equal(t, []string{"full", "base"}, env.surface.ops())
	assert.True(t, env.engine.Menus().CurrentState().BaseValid)
}

func TestEngine_AdvanceBurst(t *testing.T) {
	env := newTestEnv(t, nil)
	env.boot()

	h := button.NewHandler(button.Config{
		Debounce:        200 * time.Millisecond,
		AdvanceThrottle: 300 * time.Millisecond,
	}, env.engine.Busy, env.engine.EnqueueButton)
	t0 := env.now

	accepted := 0
	press := func(d time.Duration) {
		if h.Press(button.Action, t0.Add(d)) {
			accepted++
		}
	}

	// Presses arriving while the transition settles are dropped.
	env.onSleep = func() {
		if env.engine.Busy() {
			press(100 * time.Millisecond)
			press(200 * time.Millisecond)
			press(300 * time.Millisecond)
		}
	}
	press(0)
	env.tick(time.Millisecond)
	env.onSleep = nil
	press(400 * time.Millisecond)
	env.tick(time.Millisecond)

	assert.GreaterOrEqual(t, accepted, 1)
	assert.LessOrEqual(t, accepted, 2)
	assert.Equal(t, accepted, env.surface.count("full"))
	assert.Equal(t, menu.ID(accepted), env.engine.Menus().Current())
	assert.NotZero(t, h.Dropped())
}

func TestEngine_FeedFlagDuringTransition(t *testing.T) {
	env := newTestEnv(t, nil)
	env.boot()

	env.press(button.Action)
	env.tick(100 * time.Millisecond)
	require.Equal(t, menu.Messages, env.engine.Menus().Current())
	env.surface.reset()

	// RETURN goes back to Main, the feed arrives while the lock is held.
	env.onSleep = func() {
		require.True(t, env.engine.Busy())
		f := inbox.Flag{Seq: 1, ID: "f1", Kind: state.KindFeed, From: "Ana", CreatedAt: env.now}
		applied, err := env.store.Apply(f.Event())
		require.NoError(t, err)
		require.True(t, applied)
		env.engine.NotifyFlag(f)

		assert.Equal(t, 2, env.snapshot().Pet.Hunger, "state reflects the feed immediately")
		assert.Equal(t, []string{"full", "base"}, env.surface.ops(), "no display write for the flag yet")
	}
	env.press(button.Return)
	env.tick(100 * time.Millisecond)
	env.onSleep = nil

	mainState := env.engine.Menus().State(menu.Main)
	assert.Equal(t, menu.Main, env.engine.Menus().Current())
	assert.Equal(t, "<3 <3 <3|*|:)", mainState.LastRendered[render.RegionStatus])

	env.surface.reset()
	env.tick(100 * time.Millisecond)
	assert.Equal(t, []string{"partial"}, env.surface.ops())
	assert.Equal(t, regionRect(menu.Main, render.RegionStatus), env.surface.last().rect)
	assert.Equal(t, "<3 <3 <3|FED|:)|MSG:1", mainState.LastRendered[render.RegionStatus])
}

func TestEngine_FlagNotDisplayedNoWrite(t *testing.T) {
	env := newTestEnv(t, nil)
	env.boot()
	for i := 0; i < 3; i++ {
		env.press(button.Action)
		env.tick(100 * time.Millisecond)
	}
	require.Equal(t, menu.Settings, env.engine.Menus().Current())
	env.surface.reset()

	f := inbox.Flag{Seq: 7, ID: "m1", Kind: state.KindMessage, From: "Ana", Payload: "hello", CreatedAt: env.now}
	_, err := env.store.Apply(f.Event())
	require.NoError(t, err)
	env.engine.NotifyFlag(f)
	env.tick(100 * time.Millisecond)

	assert.Empty(t, env.surface.ops())
	assert.Len(t, env.snapshot().Messages.Messages, 1)
}

func TestEngine_ReturnFeedsOnMain(t *testing.T) {
	env := newTestEnv(t, nil)
	env.boot()

	env.press(button.Return)
	env.tick(100 * time.Millisecond)

	assert.Equal(t, 2, env.snapshot().Pet.Hunger)
	assert.Equal(t, []string{"partial"}, env.surface.ops())
	assert.Equal(t, regionRect(menu.Main, render.RegionStatus), env.surface.last().rect)
}

func TestEngine_GoSendsPoke(t *testing.T) {
	env := newTestEnv(t, nil)
	env.boot()

	env.press(button.Go)
	env.tick(100 * time.Millisecond)

	entries, err := os.ReadDir(env.outbox)
	require.NoError(t, err)
	var flags []string
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".flag" {
			flags = append(flags, entry.Name())
		}
	}
	require.Len(t, flags, 1)

	var (
		got   []inbox.Flag
		store = applierFunc(func(e state.Event) (bool, error) { return true, nil })
	)
	w := inbox.NewWatcher(env.outbox, store, time.Second)
	w.Notify = func(f inbox.Flag) { got = append(got, f) }
	_, err = w.Poll()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, state.KindPoke, got[0].Kind)
	assert.Equal(t, "bunny_clock", got[0].From)

	assert.Equal(t, 1, env.snapshot().Pet.MessagesSent)
	env.tick(time.Minute)
	assert.Equal(t, 1, env.snapshot().Stats.TotalMessagesSent)
}

type applierFunc func(state.Event) (bool, error)

func (f applierFunc) Apply(e state.Event) (bool, error) { return f(e) }

func (f applierFunc) LastFlagSeq() (uint64, error) { return 0, nil }

func TestEngine_SettingsChange(t *testing.T) {
	env := newTestEnv(t, nil)
	env.boot()
	for i := 0; i < 3; i++ {
		env.press(button.Action)
		env.tick(100 * time.Millisecond)
	}
	env.surface.reset()

	env.press(button.Go)
	env.tick(100 * time.Millisecond)

	assert.Equal(t, 12, env.snapshot().Settings.TimeFormat)
	assert.Equal(t, []string{"partial"}, env.surface.ops())
	st := env.engine.Menus().CurrentState()
	assert.Equal(t, state.SettingBrightness, st.Selected)
	assert.Equal(t, "03:09 PM", st.LastRendered[render.RegionClock])
}

func TestEngine_MessagesGoMarksRead(t *testing.T) {
	env := newTestEnv(t, nil)
	env.boot()
	for seq := uint64(1); seq <= 2; seq++ {
		_, err := env.store.Apply(state.Event{Seq: seq, Kind: state.KindMessage, From: "Ana", Text: "hi", At: env.now})
		require.NoError(t, err)
	}
	env.press(button.Action)
	env.tick(100 * time.Millisecond)

	env.press(button.Go)
	env.tick(100 * time.Millisecond)

	assert.Zero(t, env.snapshot().Messages.Unread())
	assert.Equal(t, 1, env.engine.Menus().CurrentState().Cursor)
}

func TestEngine_ReturnGoesBack(t *testing.T) {
	env := newTestEnv(t, nil)
	env.boot()
	env.press(button.Action)
	env.press(button.Action)
	env.tick(100 * time.Millisecond)
	assert.Equal(t, menu.Stats, env.engine.Menus().Current())
	assert.Equal(t, 1, env.surface.count("full"), "moves of one tick share a transition")

	env.press(button.Return)
	env.tick(100 * time.Millisecond)
	assert.Equal(t, menu.Main, env.engine.Menus().Current())
	assert.Equal(t, 2, env.surface.count("full"))
}

func TestEngine_ActionThenReturnSameTick(t *testing.T) {
	env := newTestEnv(t, nil)
	env.boot()
	hunger := env.snapshot().Pet.Hunger

	env.press(button.Action)
	env.press(button.Return)
	env.tick(100 * time.Millisecond)

	assert.Equal(t, menu.Main, env.engine.Menus().Current())
	assert.Equal(t, hunger, env.snapshot().Pet.Hunger, "return acts on the menu it was pressed on")
	assert.Equal(t, 1, env.surface.count("full"))
}

func TestEngine_ActionThenGoSameTick(t *testing.T) {
	env := newTestEnv(t, nil)
	env.boot()

	env.press(button.Action)
	env.press(button.Go)
	env.tick(100 * time.Millisecond)

	assert.Equal(t, menu.Messages, env.engine.Menus().Current())
	assert.Zero(t, env.snapshot().Pet.MessagesSent)
	entries, err := os.ReadDir(env.outbox)
	if err == nil {
		for _, entry := range entries {
			assert.NotEqual(t, ".flag", filepath.Ext(entry.Name()), "no poke queued from Main")
		}
	} else {
		assert.True(t, os.IsNotExist(err))
	}
	assert.Equal(t, 1, env.surface.count("full"))
}

func TestEngine_StatsFlush(t *testing.T) {
	env := newTestEnv(t, nil)
	env.boot()
	env.engine.Dropped = func() int { return 2 }
	env.engine.NoteMalformed()

	env.press(button.Go)
	env.press(button.Return)
	env.tick(100 * time.Millisecond)
	assert.Zero(t, env.snapshot().Stats.TotalButtonPresses, "not flushed yet")

	env.tick(time.Minute)
	stats := env.snapshot().Stats
	assert.Equal(t, 2, stats.TotalButtonPresses)
	assert.Equal(t, 2, stats.DroppedActions)
	assert.Equal(t, 1, stats.MalformedFlags)
	assert.Equal(t, 1, stats.TotalMessagesSent)
	assert.Equal(t, 1, stats.TotalFullRefreshes, "startup refresh")
	assert.GreaterOrEqual(t, stats.TotalPartialRefreshes, 1)
}

func TestEngine_HardwareFailureRecorded(t *testing.T) {
	env := newTestEnv(t, nil)
	env.boot()
	env.surface.fail("partial", 1)
	env.tick(time.Minute)
	env.tick(time.Minute)

	stats := env.snapshot().Stats
	assert.Equal(t, 1, stats.HardwareFailures)
	require.NotNil(t, stats.LastError)
	assert.Contains(t, stats.LastError.Message, "partial refresh")
}

func TestEngine_PetDecay(t *testing.T) {
	env := newTestEnv(t, nil)
	env.boot()

	env.tick(time.Hour)
	assert.Equal(t, 6, env.snapshot().Pet.Hunger)
}

func TestEngine_QueueOverflow(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.QueueSize = 1 })
	env.boot()

	assert.True(t, env.engine.EnqueueButton(button.Event{Line: button.Go}))
	assert.False(t, env.engine.EnqueueButton(button.Event{Line: button.Go}))

	env.engine.NotifyFlag(inbox.Flag{Seq: 1})
	env.engine.drain()
	assert.True(t, env.engine.needsRender, "a lost notification still triggers a render")
}

type failingInit struct {
	*fakeSurface
}

func (failingInit) Init() error { return errors.New("no panel") }

func TestEngine_StartInitFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.engine.surface = failingInit{env.surface}

	err := env.engine.Start(context.Background())
	assert.ErrorIs(t, err, ErrInit)
	assert.Empty(t, env.surface.ops())
}

func TestEngine_StartSerializesHardwareCalls(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.Tick = time.Millisecond
		c.Settle = time.Millisecond
		c.ClockInterval = time.Millisecond
		c.AnimationInterval = 2 * time.Millisecond
	})
	e := env.engine
	e.now = time.Now
	e.sleep = time.Sleep

	h := button.NewHandler(button.Config{}, e.Busy, e.EnqueueButton)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Start(ctx) }()

	var wg sync.WaitGroup
	for _, line := range []button.Line{button.Return, button.Action, button.Go} {
		wg.Add(1)
		go func(line button.Line) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				h.Press(line, time.Now())
				time.Sleep(time.Millisecond)
			}
		}(line)
	}
	wg.Wait()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return")
	}

	ops := env.surface.ops()
	require.GreaterOrEqual(t, len(ops), 5)
	assert.Equal(t, "init", ops[0])
	assert.Equal(t, []string{"sleep", "close"}, ops[len(ops)-2:])
}
