package frame

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/taigrr/glint/pkg/envmap"
	"github.com/taigrr/glint/pkg/math3d"
	"github.com/taigrr/glint/pkg/models"
	"github.com/taigrr/glint/pkg/params"
	"github.com/taigrr/glint/pkg/postfx"
	"github.com/taigrr/glint/pkg/render"
	"github.com/taigrr/glint/pkg/scene"
)

// Camera placement.
var (
	DefaultEye = math3d.V3(18, 4, 0)
	DefaultFOV = 75 * math.Pi / 180
)

// Step names one stage of Frame, in the order Frame runs them.
type Step int

const (
	StepBegin Step = iota
	StepTick
	StepMixer
	StepIdle
	StepOrbit
	StepScene
	StepUniforms
	StepPost
	StepEnd
)

var stepNames = [...]string{"begin", "tick", "mixer", "idle", "orbit", "scene", "uniforms", "post", "end"}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return fmt.Sprintf("Step(%d)", int(s))
	}
	return stepNames[s]
}

// Options configure a Driver.
type Options struct {
	FPS           int
	PixelRatio    float64
	Smoothing     scene.SmoothingMode
	Background    render.Color
	EnvBackground bool
	Params        params.Values
	Workers       int // Post pass row shards; 0 uses GOMAXPROCS
	Logger        *zap.Logger
	Clock         *Clock
	FPSMeter      *FPSMeter
	Trace         func(Step) // Called as each step of Frame starts
}

// DefaultOptions returns the options the viewer starts with.
func DefaultOptions() Options {
	return Options{
		FPS:        60,
		PixelRatio: 1,
		Background: render.ColorBlack,
		Params:     params.Defaults(),
	}
}

// Driver owns all scene state and runs frames. Every method must be called
// from the goroutine that runs frames; other goroutines reach it through
// Do.
type Driver struct {
	Camera   *render.Camera
	Orbit    *scene.OrbitControls
	Assets   *scene.Assets
	Motion   scene.IdleMotion
	Renderer *scene.Renderer
	Post     *postfx.Pass
	Target   *render.RenderTarget
	Clock    *Clock
	FPS      *FPSMeter

	// Params are the live parameters; edits apply on the next frame.
	Params params.Values
	// Pointer is the latest pointer position in [-1, 1]², y up.
	Pointer math3d.Vec2

	screen     *render.Framebuffer
	panel      *params.Panel
	mixer      *scene.Mixer
	stats      models.Stats
	fps        int
	pixelRatio float64
	viewW      int
	viewH      int

	model    *scene.Future[*models.Model]
	env      *scene.Future[*envmap.Map]
	commands chan func(*Driver)
	reloads  <-chan params.Values

	noSource bool
	logger   *zap.Logger
	trace    func(Step)
}

// NewDriver builds the pipeline for a width x height viewport.
func NewDriver(width, height int, opts Options) *Driver {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = NewClock()
	}
	if opts.FPSMeter == nil {
		opts.FPSMeter = NewFPSMeter()
	}
	if opts.FPS <= 0 {
		opts.FPS = 60
	}

	camera := render.NewCamera()
	camera.SetFOV(DefaultFOV)
	camera.SetClipPlanes(0.1, 100)

	renderer := scene.NewRenderer(camera)
	renderer.Background = opts.Background
	renderer.EnvBackground = opts.EnvBackground

	d := &Driver{
		Camera:     camera,
		Orbit:      scene.NewOrbitControls(opts.FPS, DefaultEye, scene.Anchor),
		Assets:     scene.NewAssets(),
		Motion:     scene.IdleMotion{Mode: opts.Smoothing},
		Renderer:   renderer,
		Post:       postfx.NewPass(postfx.WithWorkers(opts.Workers)),
		Target:     render.NewRenderTarget(1, 1, render.DefaultTargetOptions()),
		Clock:      opts.Clock,
		FPS:        opts.FPSMeter,
		Params:     opts.Params.Clamped(),
		fps:        opts.FPS,
		pixelRatio: opts.PixelRatio,
		commands:   make(chan func(*Driver), 64),
		logger:     opts.Logger,
		trace:      opts.Trace,
	}
	d.panel = params.NewPanel(&d.Params)
	d.Orbit.Apply(camera)
	d.Resize(width, height)
	return d
}

// Resize changes the viewport. The camera aspect, the offscreen target and
// the screen framebuffer change together so no frame sees a mix of sizes.
func (d *Driver) Resize(width, height int) {
	d.viewW, d.viewH = max(width, 1), max(height, 1)
	w, h := render.ScaledSize(d.viewW, d.viewH, d.pixelRatio)
	d.Camera.SetAspectRatio(float64(w) / float64(h))
	d.Target.Resize(w, h)
	d.screen = render.NewFramebuffer(w, h)
	d.logger.Debug("resized",
		zap.Int("viewport_width", d.viewW),
		zap.Int("viewport_height", d.viewH),
		zap.Int("width", w),
		zap.Int("height", h),
	)
}

// SetPixelRatio changes the pixel ratio and resizes.
func (d *Driver) SetPixelRatio(r float64) {
	d.pixelRatio = r
	d.Resize(d.viewW, d.viewH)
}

// Viewport returns the unscaled viewport size.
func (d *Driver) Viewport() (int, int) { return d.viewW, d.viewH }

// Screen returns the visible framebuffer the post pass writes.
func (d *Driver) Screen() *render.Framebuffer { return d.screen }

// Panel returns the keyboard panel over Params.
func (d *Driver) Panel() *params.Panel { return d.panel }

// Stats returns the geometry counts of the loaded model.
func (d *Driver) Stats() models.Stats { return d.stats }

// LoadModel starts loading a glTF model in the background. Poll installs it
// once it resolves.
func (d *Driver) LoadModel(ctx context.Context, path string) {
	logger := d.logger
	d.model = scene.Load(ctx, func(ctx context.Context) (*models.Model, error) {
		l := models.NewGLTFLoader()
		l.Logger = logger
		return l.Load(path)
	})
}

// LoadEnvironment starts loading an environment map in the background.
func (d *Driver) LoadEnvironment(ctx context.Context, path string) {
	opts := envmap.DefaultOptions()
	opts.Logger = d.logger
	d.env = scene.Load(ctx, func(ctx context.Context) (*envmap.Map, error) {
		return envmap.Load(ctx, path, opts)
	})
}

// Poll installs loads that have resolved. Failures are logged and the
// content stays absent.
func (d *Driver) Poll() {
	if d.model != nil && d.model.State() != scene.StatePending {
		m, err := d.model.Result()
		d.model = nil
		if err != nil {
			d.logger.Warn("model load failed", zap.Error(err))
		} else {
			d.installModel(m)
		}
	}
	if d.env != nil && d.env.State() != scene.StatePending {
		env, err := d.env.Result()
		d.env = nil
		if err != nil {
			d.logger.Warn("environment load failed", zap.Error(err))
		} else {
			d.Assets.SetEnvironment(env)
			w, h := env.Size()
			d.logger.Info("environment loaded", zap.Int("width", w), zap.Int("height", h))
		}
	}
}

func (d *Driver) installModel(m *models.Model) {
	d.Assets.SetModel(m)
	d.mixer = nil
	if len(m.Clips) > 0 {
		d.mixer = scene.NewMixer(m)
		d.Assets.SetPosedMesh(d.mixer.Mesh())
	}
	d.stats = m.Stats
	d.logger.Info("model loaded",
		zap.String("name", m.Mesh.Name),
		zap.Int("triangles", m.Stats.Triangles),
		zap.Int("vertices", m.Stats.Vertices),
		zap.Int("clips", len(m.Clips)),
	)
}

// Loading reports whether an asset load is still pending.
func (d *Driver) Loading() bool {
	return d.model != nil || d.env != nil
}

// Wait blocks until pending loads resolve or ctx is done, then polls.
func (d *Driver) Wait(ctx context.Context) error {
	var pending []<-chan struct{}
	if d.model != nil {
		pending = append(pending, d.model.Done())
	}
	if d.env != nil {
		pending = append(pending, d.env.Done())
	}
	for _, done := range pending {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	d.Poll()
	return nil
}

// SetReloads makes Run apply parameter sets received on ch.
func (d *Driver) SetReloads(ch <-chan params.Values) { d.reloads = ch }

// Do queues fn to run on the driver goroutine before the next frame. It
// is safe to call from any goroutine and blocks while the queue is full.
func (d *Driver) Do(fn func(*Driver)) {
	d.commands <- fn
}

// drain runs queued commands and applies a pending reload.
func (d *Driver) drain() {
	for {
		select {
		case fn := <-d.commands:
			fn(d)
		case v, ok := <-d.reloads:
			if !ok {
				d.reloads = nil
				continue
			}
			d.Params = v.Clamped()
			d.logger.Info("params reloaded")
		default:
			return
		}
	}
}

func (d *Driver) step(s Step) {
	if d.trace != nil {
		d.trace(s)
	}
}

// Frame renders one frame: time, animation, idle motion and camera damping
// advance first, then the scene pass fills the offscreen target and the
// god rays pass reads it into the screen. A missing source texture skips
// the post pass and is not an error.
func (d *Driver) Frame(ctx context.Context) error {
	d.step(StepBegin)
	d.FPS.Begin()

	d.step(StepTick)
	dt := d.Clock.Tick()
	elapsed := d.Clock.Elapsed()

	if d.mixer != nil {
		d.step(StepMixer)
		d.mixer.Update(d.Clock.Raw())
		d.Assets.SetPosedMesh(d.mixer.Mesh())
	}

	if d.Assets.HasModel() {
		d.step(StepIdle)
		d.Motion.Update(d.Pointer, elapsed, dt)
	}

	d.step(StepOrbit)
	d.Orbit.Update()
	d.Orbit.Apply(d.Camera)

	d.step(StepScene)
	d.Renderer.Render(d.Target, d.Assets, d.Params, d.Assets.ModelTransform(d.Motion.Transform()))

	d.step(StepUniforms)
	d.Post.Mix = float32(d.Params.GodRayMix)
	d.Post.SetUniforms(postfx.Uniforms{
		Time:   float32(elapsed),
		Source: d.Target.Texture(),
	})

	d.step(StepPost)
	err := d.Post.Render(ctx, d.screen)
	switch {
	case errors.Is(err, postfx.ErrNoSource):
		if !d.noSource {
			d.logger.Debug("skipping post pass", zap.Error(err))
		}
		d.noSource = true
	case err != nil:
		return err
	default:
		d.noSource = false
	}

	d.step(StepEnd)
	d.FPS.End()
	return nil
}

// Run renders frames at the configured rate until ctx is done. Before each
// frame it installs resolved loads and runs queued commands; after each
// frame it hands the screen to present.
func (d *Driver) Run(ctx context.Context, present func(*render.Framebuffer) error) error {
	target := time.Second / time.Duration(d.fps)
	for {
		start := time.Now()
		if ctx.Err() != nil {
			return nil
		}

		d.Poll()
		d.drain()
		if err := d.Frame(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("frame: %w", err)
		}
		if present != nil {
			if err := present(d.screen); err != nil {
				return fmt.Errorf("present: %w", err)
			}
		}

		wait := target - time.Since(start)
		if wait <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}
