package frame

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/taigrr/glint/pkg/envmap"
	"github.com/taigrr/glint/pkg/math3d"
	"github.com/taigrr/glint/pkg/models"
	"github.com/taigrr/glint/pkg/params"
	"github.com/taigrr/glint/pkg/render"
	"github.com/taigrr/glint/pkg/scene"
)

// fakeTime advances by step on every reading.
type fakeTime struct {
	t    time.Time
	step time.Duration
}

func (f *fakeTime) now() time.Time {
	f.t = f.t.Add(f.step)
	return f.t
}

func quadModel() *models.Model {
	mesh := models.NewMesh("quad")
	for _, p := range []math3d.Vec3{
		math3d.V3(-1, -1, 0), math3d.V3(1, -1, 0), math3d.V3(1, 1, 0), math3d.V3(-1, 1, 0),
	} {
		mesh.Vertices = append(mesh.Vertices, models.MeshVertex{Position: p, Normal: math3d.V3(0, 0, 1)})
	}
	mesh.Faces = []models.Face{
		{V: [3]int{0, 2, 1}, Material: -1},
		{V: [3]int{0, 3, 2}, Material: -1},
	}
	mesh.CalculateBounds()
	return &models.Model{
		Mesh:  mesh,
		Stats: models.Stats{Triangles: 2, Vertices: 4},
	}
}

// spinModel is quadModel under one node with a clip that slides it along
// +X by one unit per second for ten seconds.
func spinModel() *models.Model {
	m := quadModel()
	m.Nodes = []models.Node{{Parent: -1, Rest: models.IdentityTRS()}}
	m.Parts = []models.Part{{Node: 0, First: 0, Count: len(m.Mesh.Vertices)}}
	m.Clips = []*models.Clip{{
		Name:     "slide",
		Duration: 10,
		Channels: []models.Channel{{
			Node:   0,
			Path:   models.PathTranslation,
			Times:  []float64{0, 10},
			Values: [][4]float64{{0, 0, 0}, {10, 0, 0}},
		}},
	}}
	return m
}

func testDriver(t *testing.T, opts Options) *Driver {
	t.Helper()
	ft := &fakeTime{t: time.Unix(0, 0), step: time.Second / 60}
	opts.Clock = NewClockFunc(ft.now)
	opts.FPSMeter = NewFPSMeterFunc(ft.now)
	if opts.Workers == 0 {
		opts.Workers = 2
	}
	if opts.Params == (params.Values{}) {
		opts.Params = params.Defaults()
	}
	if opts.Background == (render.Color{}) {
		opts.Background = render.ColorBlack
	}
	return NewDriver(24, 12, opts)
}

func TestClockTick(t *testing.T) {
	ft := &fakeTime{t: time.Unix(0, 0), step: 20 * time.Millisecond}
	c := NewClockFunc(ft.now)

	assert.InDelta(t, 0.02, c.Tick(), 1e-9)
	assert.InDelta(t, 0.02, c.Elapsed(), 1e-9, "elapsed counts from creation")

	ft.step = time.Second
	assert.InDelta(t, MaxDelta, c.Tick(), 1e-9, "long stalls are capped")
	assert.InDelta(t, 1.02, c.Elapsed(), 1e-9, "elapsed is not")
	assert.InDelta(t, MaxDelta, c.Delta(), 1e-9)
	assert.InDelta(t, 1.0, c.Raw(), 1e-9, "raw step is uncapped")
}

func TestFPSMeter(t *testing.T) {
	ft := &fakeTime{t: time.Unix(0, 0), step: 10 * time.Millisecond}
	m := NewFPSMeterFunc(ft.now)

	for range 60 {
		m.Begin()
		m.End()
	}
	// Each frame spans two readings, so 60 frames cover 1.2s with one
	// window closing after 50 frames.
	assert.InDelta(t, 50.0, m.FPS(), 0.5)
	assert.Equal(t, 10*time.Millisecond, m.FrameTime())
}

func TestFrameOrder(t *testing.T) {
	var steps []Step
	d := testDriver(t, Options{Trace: func(s Step) { steps = append(steps, s) }})

	require.NoError(t, d.Frame(context.Background()))
	assert.Equal(t, []Step{StepBegin, StepTick, StepOrbit, StepScene, StepUniforms, StepPost, StepEnd}, steps,
		"without a model the scene is partial")

	d.model = scene.Resolved(quadModel())
	d.Poll()
	steps = nil
	require.NoError(t, d.Frame(context.Background()))
	assert.Equal(t, []Step{
		StepBegin, StepTick, StepIdle, StepOrbit, StepScene, StepUniforms, StepPost, StepEnd,
	}, steps, "a model without clips gets no mixer")

	d.model = scene.Resolved(spinModel())
	d.Poll()
	steps = nil
	require.NoError(t, d.Frame(context.Background()))
	assert.Equal(t, []Step{
		StepBegin, StepTick, StepMixer, StepIdle, StepOrbit, StepScene, StepUniforms, StepPost, StepEnd,
	}, steps)
}

func TestMixerPlaysThroughStalls(t *testing.T) {
	ft := &fakeTime{t: time.Unix(0, 0), step: 2 * time.Second}
	d := testDriver(t, Options{})
	d.Clock = NewClockFunc(ft.now)

	d.model = scene.Resolved(spinModel())
	d.Poll()
	require.NotNil(t, d.mixer)
	require.NoError(t, d.Frame(context.Background()))

	assert.InDelta(t, 2.0, d.mixer.Time(), 1e-9, "clips advance by the raw step")
	assert.InDelta(t, MaxDelta, d.Clock.Delta(), 1e-9)
	assert.Same(t, d.mixer.Mesh(), d.Assets.Mesh(), "the posed mesh is drawn")
	assert.InDelta(t, 1.0, d.Assets.Mesh().BoundsMin.X, 1e-9)
}

func TestStepString(t *testing.T) {
	assert.Equal(t, "scene", StepScene.String())
	assert.Equal(t, "Step(42)", Step(42).String())
}

func TestResizeKeepsSizesInStep(t *testing.T) {
	d := testDriver(t, Options{PixelRatio: 2})

	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"landscape", 40, 20, 80, 40},
		{"portrait", 10, 30, 20, 60},
		{"degenerate", 0, -3, 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d.Resize(tt.w, tt.h)
			assert.Equal(t, tt.wantW, d.Target.Width())
			assert.Equal(t, tt.wantH, d.Target.Height())
			assert.Equal(t, tt.wantW, d.Screen().Width)
			assert.Equal(t, tt.wantH, d.Screen().Height)
			assert.InDelta(t, float64(tt.wantW)/float64(tt.wantH), d.Camera.AspectRatio, 1e-12)

			require.NoError(t, d.Frame(context.Background()))
			assert.False(t, d.noSource, "post pass ran against the new target")
		})
	}
}

func TestSetPixelRatioClamps(t *testing.T) {
	d := testDriver(t, Options{PixelRatio: 1})
	d.SetPixelRatio(10)
	assert.Equal(t, 24*3, d.Target.Width())
	assert.Equal(t, 12*3, d.Target.Height())

	w, h := d.Viewport()
	assert.Equal(t, 24, w)
	assert.Equal(t, 12, h)
}

func TestFrameWritesOpaqueScreen(t *testing.T) {
	d := testDriver(t, Options{Background: render.RGB(40, 40, 40)})
	d.model = scene.Resolved(quadModel())
	d.Poll()
	require.NoError(t, d.Frame(context.Background()))

	for i, px := range d.Screen().Pixels {
		require.Equal(t, uint8(255), px.A, "pixel %d", i)
	}
	assert.Equal(t, models.Stats{Triangles: 2, Vertices: 4}, d.Stats())
}

func TestIdleMotionOnlyWithModel(t *testing.T) {
	d := testDriver(t, Options{})
	d.Pointer = math3d.V2(1, 1)
	require.NoError(t, d.Frame(context.Background()))
	assert.Equal(t, scene.Drift{}, d.Motion.Current)

	d.model = scene.Resolved(quadModel())
	d.Poll()
	require.NoError(t, d.Frame(context.Background()))
	assert.Less(t, d.Motion.Current.X, 0.0, "drifts away from the pointer")
	assert.Greater(t, d.Motion.Current.Yaw, 0.0)
}

func TestPollFailedLoadsLogAndContinue(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	d := testDriver(t, Options{Logger: zap.New(core)})

	d.model = scene.Failed[*models.Model](errors.New("truncated glb"))
	d.env = scene.Failed[*envmap.Map](envmap.ErrUnsupportedFormat)
	assert.True(t, d.Loading())

	d.Poll()
	assert.False(t, d.Loading())
	assert.False(t, d.Assets.HasModel())
	assert.Nil(t, d.Assets.Environment())
	assert.Equal(t, 2, logs.FilterLevelExact(zapcore.WarnLevel).Len())

	require.NoError(t, d.Frame(context.Background()))
}

func TestPollLeavesPendingLoads(t *testing.T) {
	d := testDriver(t, Options{})
	release := make(chan struct{})
	d.model = scene.Load(context.Background(), func(ctx context.Context) (*models.Model, error) {
		<-release
		return quadModel(), nil
	})

	d.Poll()
	assert.True(t, d.Loading())
	require.NoError(t, d.Frame(context.Background()))

	close(release)
	require.NoError(t, d.Wait(context.Background()))
	assert.False(t, d.Loading())
	assert.True(t, d.Assets.HasModel())
}

func TestLoadModelMissingFile(t *testing.T) {
	d := testDriver(t, Options{})
	d.LoadModel(context.Background(), "does-not-exist.glb")
	require.NoError(t, d.Wait(context.Background()))
	assert.False(t, d.Assets.HasModel())
}

func TestDrainAppliesCommandsAndReloads(t *testing.T) {
	d := testDriver(t, Options{})
	reloads := make(chan params.Values, 1)
	d.SetReloads(reloads)

	v := params.Defaults()
	v.Roughness = 0.9
	v.GodRayMix = 7 // clamped on apply
	reloads <- v
	d.Do(func(d *Driver) { d.Pointer = math3d.V2(0.5, -0.5) })

	d.drain()
	assert.Equal(t, 0.9, d.Params.Roughness)
	assert.Equal(t, 1.0, d.Params.GodRayMix)
	assert.Equal(t, math3d.V2(0.5, -0.5), d.Pointer)

	close(reloads)
	d.drain()
	assert.Nil(t, d.reloads)
}

func TestPanelEditsLiveParams(t *testing.T) {
	d := testDriver(t, Options{})
	d.Panel().Adjust(1)
	assert.InDelta(t, params.Defaults().EnvIntensity+0.1, d.Params.EnvIntensity, 1e-9)
}

func TestRunStopsOnCancel(t *testing.T) {
	d := testDriver(t, Options{FPS: 240})
	ctx, cancel := context.WithCancel(context.Background())

	frames := 0
	err := d.Run(ctx, func(fb *render.Framebuffer) error {
		frames++
		if frames == 3 {
			cancel()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, frames)
}

func TestRunReportsPresentError(t *testing.T) {
	d := testDriver(t, Options{})
	boom := errors.New("terminal gone")
	err := d.Run(context.Background(), func(*render.Framebuffer) error { return boom })
	assert.ErrorIs(t, err, boom)
}
