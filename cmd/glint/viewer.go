package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	uv "github.com/charmbracelet/ultraviolet"
	"go.uber.org/zap"

	"github.com/taigrr/glint/pkg/config"
	"github.com/taigrr/glint/pkg/frame"
	"github.com/taigrr/glint/pkg/params"
	"github.com/taigrr/glint/pkg/render"
)

// Input tuning.
const (
	dragSpeed = 0.05 // Radians per cell
	zoomStep  = 1.1
)

func runViewer(ctx context.Context, modelPath string, cfg config.Config, o options) error {
	logger, err := newLogger(cfg.Level(), cfg.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// Create terminal
	term := uv.DefaultTerminal()

	width, height, err := term.GetSize()
	if err != nil {
		return fmt.Errorf("get terminal size: %w", err)
	}

	if err := term.Start(); err != nil {
		return fmt.Errorf("start terminal: %w", err)
	}

	term.EnterAltScreen()
	term.HideCursor()
	term.Resize(width, height)

	// Enable mouse mode
	fmt.Fprint(os.Stdout, "\x1b[?1003h") // Enable any-event mouse tracking
	fmt.Fprint(os.Stdout, "\x1b[?1006h") // Enable SGR extended mouse mode

	cleanup := func() {
		fmt.Fprint(os.Stdout, "\x1b[?1003l")
		fmt.Fprint(os.Stdout, "\x1b[?1006l")
		term.ExitAltScreen()
		term.ShowCursor()
		term.Shutdown(context.Background())
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	presenter := render.NewPresenter(width, height)
	vw, vh := presenter.Viewport()
	d := frame.NewDriver(vw, vh, driverOptions(cfg, logger))

	d.LoadModel(ctx, modelPath)
	if cfg.Env != "" {
		d.LoadEnvironment(ctx, cfg.Env)
	}
	if o.configPath != "" {
		reloads, err := params.Watch(ctx, o.configPath, logger)
		if err != nil {
			logger.Warn("config hot reload disabled", zap.Error(err))
		} else {
			d.SetReloads(reloads)
		}
	}

	hud := NewHUD(filepath.Base(modelPath))
	in := &input{cols: width, rows: height, configPath: o.configPath, logger: logger, hud: hud, cancel: cancel}

	// Event handler
	go func() {
		for ev := range term.Events() {
			if !in.handle(ev, d, term, presenter) {
				return
			}
		}
	}()

	logger.Info("viewer started",
		zap.String("model", modelPath),
		zap.Int("cols", width),
		zap.Int("rows", height),
	)

	return d.Run(ctx, func(screen *render.Framebuffer) error {
		presenter.SetFrame(screen)
		presenter.Draw(term, presenter.Area())
		if err := term.Display(); err != nil {
			return fmt.Errorf("display: %w", err)
		}
		cols, rows := in.size()
		hud.Render(cols, rows, d)
		return nil
	})
}
