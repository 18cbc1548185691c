// glint - terminal god rays viewer
// Renders a glTF model lit by an environment map through a two-pass
// pipeline: the scene into an offscreen target, then a radial god rays pass
// onto the terminal.
//
// Controls:
//
//	Mouse move       - Model follows the pointer
//	Mouse drag       - Orbit the camera
//	Scroll, +/-      - Zoom in/out
//	Tab / Shift+Tab  - Select parameter
//	Left / Right     - Adjust parameter
//	0                - Reset parameter
//	P                - Save parameters to the config file
//	R                - Reset view
//	X                - Toggle wireframe
//	?                - Toggle HUD overlay
//	Esc, Q           - Quit
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/taigrr/glint/pkg/config"
	"github.com/taigrr/glint/pkg/frame"
	"github.com/taigrr/glint/pkg/models"
	"github.com/taigrr/glint/pkg/params"
)

var version = "dev"

type options struct {
	configPath string
	env        string
	envBG      bool
	fps        int
	pixelRatio float64
	bg         string
	smoothing  string
	logLevel   string
	logFile    string
	snapshot   string
	width      int
	height     int
	frames     int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := fang.Execute(ctx, newRootCmd(), fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:   "glint [flags] <model.glb|model.gltf>",
		Short: "Terminal glTF viewer with a god rays post pass",
		Long: "glint renders a glTF model lit by an equirectangular environment map,\n" +
			"then blends a radial god rays blur over the frame, all in the terminal.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, o)
			if err != nil {
				return err
			}
			modelPath := args[0]
			if ext := strings.ToLower(filepath.Ext(modelPath)); ext != ".glb" && ext != ".gltf" {
				return fmt.Errorf("%w: %s (use .glb or .gltf)", models.ErrUnsupportedFormat, ext)
			}
			if o.snapshot != "" {
				return runSnapshot(cmd.Context(), modelPath, cfg, o)
			}
			return runViewer(cmd.Context(), modelPath, cfg, o)
		},
	}

	bindFlags(cmd, &o)
	return cmd
}

func bindFlags(cmd *cobra.Command, o *options) {
	def := config.Default()
	f := cmd.Flags()
	f.StringVarP(&o.configPath, "config", "c", "", "TOML config file; its [params] table is hot reloaded")
	f.StringVarP(&o.env, "env", "e", def.Env, "Environment map (.hdr, .png, .jpg, .webp, .bmp, .tiff)")
	f.BoolVar(&o.envBG, "env-background", def.EnvBackground, "Show the environment map behind the model")
	f.IntVar(&o.fps, "fps", def.FPS, "Target FPS")
	f.Float64Var(&o.pixelRatio, "pixel-ratio", def.PixelRatio, "Render scale, clamped to [1, 3]")
	f.StringVar(&o.bg, "bg", def.Background, "Background color (R,G,B)")
	f.StringVar(&o.smoothing, "smoothing", def.Smoothing, "Idle motion smoothing: frame or time")
	f.StringVar(&o.logLevel, "log-level", def.LogLevel, "Log level (debug, info, warn, error)")
	f.StringVar(&o.logFile, "log-file", def.LogFile, "Log file used while the viewer is running")
	f.StringVar(&o.snapshot, "snapshot", "", "Render headless and write the final frame to this PNG")
	f.IntVar(&o.width, "width", 160, "Snapshot viewport width")
	f.IntVar(&o.height, "height", 90, "Snapshot viewport height")
	f.IntVar(&o.frames, "frames", 30, "Snapshot frames to render before saving")
}

// resolveConfig loads the config file, then applies flags the user set.
func resolveConfig(cmd *cobra.Command, o options) (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return cfg, err
		}
	}

	f := cmd.Flags()
	if f.Changed("env") {
		cfg.Env = o.env
	}
	if f.Changed("env-background") {
		cfg.EnvBackground = o.envBG
	}
	if f.Changed("fps") {
		cfg.FPS = o.fps
	}
	if f.Changed("pixel-ratio") {
		cfg.PixelRatio = o.pixelRatio
	}
	if f.Changed("bg") {
		cfg.Background = o.bg
	}
	if f.Changed("smoothing") {
		cfg.Smoothing = o.smoothing
	}
	if f.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if f.Changed("log-file") {
		cfg.LogFile = o.logFile
	}
	return cfg, cfg.Validate()
}

// newLogger writes JSON logs at level to path ("stderr" is allowed).
func newLogger(level zapcore.Level, path string) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{path}
	zc.ErrorOutputPaths = []string{path}
	zc.DisableStacktrace = true
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	return logger, nil
}

func driverOptions(cfg config.Config, logger *zap.Logger) frame.Options {
	opts := frame.DefaultOptions()
	opts.FPS = cfg.FPS
	opts.PixelRatio = cfg.PixelRatio
	opts.Smoothing = cfg.SmoothingMode()
	opts.Background = cfg.BackgroundColor()
	opts.EnvBackground = cfg.EnvBackground
	opts.Params = cfg.Params
	opts.Logger = logger
	return opts
}

// runSnapshot renders frames headless once every asset has resolved and
// saves the last visible frame.
func runSnapshot(ctx context.Context, modelPath string, cfg config.Config, o options) error {
	logger, err := newLogger(cfg.Level(), "stderr")
	if err != nil {
		return err
	}
	defer logger.Sync()

	d := frame.NewDriver(o.width, o.height, driverOptions(cfg, logger))
	d.LoadModel(ctx, modelPath)
	if cfg.Env != "" {
		d.LoadEnvironment(ctx, cfg.Env)
	}
	if err := d.Wait(ctx); err != nil {
		return err
	}

	for range max(o.frames, 1) {
		if err := d.Frame(ctx); err != nil {
			return fmt.Errorf("render: %w", err)
		}
	}
	if err := d.Screen().SavePNG(o.snapshot); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	stats := d.Stats()
	logger.Info("snapshot written",
		zap.String("path", o.snapshot),
		zap.Int("triangles", stats.Triangles),
		zap.Int("vertices", stats.Vertices),
	)
	return nil
}

// saveParams writes the live parameters back to the config file.
func saveParams(path string, v params.Values, logger *zap.Logger) {
	if path == "" {
		path = "glint.toml"
	}
	if err := params.WriteFile(path, v); err != nil {
		logger.Warn("save params", zap.Error(err))
		return
	}
	logger.Info("params saved", zap.String("path", path))
}
