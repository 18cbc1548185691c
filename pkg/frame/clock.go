// Package frame drives the per-frame loop: it advances time, applies input
// and motion, then runs the scene pass and the god rays pass in order.
package frame

import "time"

// MaxDelta caps the step a single frame can advance idle motion by, so a
// stall does not make the model jump. Clips play on the raw step.
const MaxDelta = 0.1

// Clock measures elapsed and per-frame time. Only the driver ticks it.
type Clock struct {
	now     func() time.Time
	start   time.Time
	last    time.Time
	elapsed float64
	delta   float64
	raw     float64
}

// NewClock returns a clock on the wall clock's monotonic reading.
func NewClock() *Clock {
	return NewClockFunc(time.Now)
}

// NewClockFunc returns a clock reading time from now.
func NewClockFunc(now func() time.Time) *Clock {
	t := now()
	return &Clock{now: now, start: t, last: t}
}

// Tick samples the time and returns the seconds since the previous tick,
// at most MaxDelta.
func (c *Clock) Tick() float64 {
	t := c.now()
	c.raw = max(t.Sub(c.last).Seconds(), 0)
	c.delta = min(c.raw, MaxDelta)
	c.last = t
	c.elapsed = t.Sub(c.start).Seconds()
	return c.delta
}

// Elapsed returns seconds from creation to the last Tick.
func (c *Clock) Elapsed() float64 { return c.elapsed }

// Delta returns the step of the last Tick.
func (c *Clock) Delta() float64 { return c.delta }

// Raw returns the step of the last Tick without the MaxDelta cap.
func (c *Clock) Raw() float64 { return c.raw }

// FPSMeter counts frames over one second windows.
type FPSMeter struct {
	now       func() time.Time
	fps       float64
	frames    int
	window    time.Time
	begin     time.Time
	frameTime time.Duration
}

// NewFPSMeter returns a meter on the wall clock.
func NewFPSMeter() *FPSMeter {
	return NewFPSMeterFunc(time.Now)
}

// NewFPSMeterFunc returns a meter reading time from now.
func NewFPSMeterFunc(now func() time.Time) *FPSMeter {
	return &FPSMeter{now: now, window: now()}
}

// Begin marks the start of a frame.
func (m *FPSMeter) Begin() { m.begin = m.now() }

// End marks the end of a frame and updates the rate once a second.
func (m *FPSMeter) End() {
	t := m.now()
	m.frameTime = t.Sub(m.begin)
	m.frames++
	if elapsed := t.Sub(m.window); elapsed >= time.Second {
		m.fps = float64(m.frames) / elapsed.Seconds()
		m.frames = 0
		m.window = t
	}
}

// FPS returns frames per second over the last full window.
func (m *FPSMeter) FPS() float64 { return m.fps }

// FrameTime returns how long the last frame took between Begin and End.
func (m *FPSMeter) FrameTime() time.Duration { return m.frameTime }
