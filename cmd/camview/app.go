package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/camview/camview/pkg/capture"
	"github.com/camview/camview/pkg/capture/synthetic"
	"github.com/camview/camview/pkg/config"
	"github.com/camview/camview/pkg/frame"
	"github.com/camview/camview/pkg/graphics"
	"github.com/camview/camview/pkg/logger"
	"github.com/camview/camview/pkg/monitoring"
	"github.com/camview/camview/pkg/render"
	"github.com/camview/camview/pkg/render/gl"
	"github.com/camview/camview/pkg/thread"
)

// idle is the event poll period when no frames arrive.
const idle = 10 * time.Millisecond

// App shows the frames of one capture source in a window.
// Window, renderer and GL calls happen on the main thread.
type App struct {
	conf config.Config
	// file is the last configuration read from disk, without flags.
	file    config.Config
	log     *logger.Logger
	metrics *monitoring.Metrics
	mon     *monitoring.Monitoring

	win *graphics.SDL
	r   *render.Renderer
	src *capture.Source

	// frame is owned by the app once received, it is redrawn on resize.
	frame   *frame.VideoFrame
	visible bool
	snap    bool
}

// New opens the capture source and the window. conf is the effective
// configuration, file the one read from disk that reloads are compared with.
func New(conf, file config.Config, log *logger.Logger) (*App, error) {
	opts, err := captureOptions(conf.Capture)
	if err != nil {
		return nil, err
	}
	driver, err := newDriver(conf.Capture)
	if err != nil {
		return nil, err
	}
	glCtx, err := graphics.ParseContext(conf.Window.Context)
	if err != nil {
		return nil, err
	}

	a := &App{conf: conf, file: file, log: log, metrics: monitoring.NewMetrics(), visible: true}
	opts.Log, opts.Observer = log, a.metrics
	if a.src, err = capture.Open(driver, opts); err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}

	err = thread.CallErr(func() error {
		win, err := graphics.NewSDLContext(graphics.Config{
			Ctx:   glCtx,
			Title: conf.Window.Title,
			W:     conf.Window.Width,
			H:     conf.Window.Height,
			VSync: conf.Window.VSync,
		})
		if err != nil {
			return err
		}
		a.win = win
		backend, err := gl.Init(graphics.GlProcAddress)
		if err != nil {
			return err
		}
		log.Info().Msgf("OpenGL %v, GLSL %v, %v %v", gl.VersionInfo(), gl.GLSLInfo(), gl.VendorInfo(), gl.RendererInfo())
		a.r = render.New(backend,
			render.WithLogger(log),
			render.WithObserver(a.metrics),
			render.WithClearColor(clearColor(conf.Renderer.ClearColor)),
			render.WithMirroring(conf.Renderer.Mirroring),
		)
		return a.r.Setup()
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	if conf.Monitoring.IsEnabled() {
		a.mon = monitoring.New(conf.Monitoring, a.metrics, log)
		if err := a.mon.Run(); err != nil {
			log.Warn().Err(err).Msg("no monitoring")
			a.mon = nil
		}
	}
	return a, nil
}

// Run shows the frames until the window is closed or ctx is done.
func (a *App) Run(ctx context.Context) error {
	if err := a.src.Start(ctx); err != nil {
		return err
	}
	tick := time.NewTicker(idle)
	defer tick.Stop()

	for {
		dirty := false
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-a.src.Frames():
			if !ok {
				return nil
			}
			a.frame, dirty = &f, true
		case <-tick.C:
		}

		var events []graphics.Event
		thread.Call(func() { events = a.win.Poll() })
		for _, e := range events {
			quit, redraw := a.handle(e)
			if quit {
				return nil
			}
			dirty = dirty || redraw
		}
		if dirty && a.visible {
			thread.Call(a.present)
		}
	}
}

// handle applies one window event.
func (a *App) handle(e graphics.Event) (quit, redraw bool) {
	switch e.Kind {
	case graphics.EventQuit:
		return true, false
	case graphics.EventHidden:
		if a.visible {
			a.visible = false
			thread.Call(a.r.Teardown)
			a.log.Debug().Msg("hidden, renderer is released")
		}
	case graphics.EventShown:
		if !a.visible {
			if err := thread.CallErr(a.r.Setup); err != nil {
				a.log.Error().Err(err).Msg("renderer setup")
				return false, false
			}
			a.visible = true
		}
		return false, true
	case graphics.EventResized:
		return false, true
	case graphics.EventKey:
		return a.key(e.Key)
	}
	return false, false
}

func (a *App) key(k rune) (quit, redraw bool) {
	switch k {
	case 'q':
		return true, false
	case 'm':
		a.r.SetMirroring(!a.r.Mirroring())
		a.log.Info().Msgf("mirroring %v", a.r.Mirroring())
		return false, true
	case 'c':
		a.src.ToggleCameraPosition()
	case 'p':
		next := nextPreset(a.src.AvailablePresets(), a.src.Preset())
		if err := a.src.SetPreset(next); err != nil {
			a.log.Warn().Err(err).Msg("preset")
		}
	case 's':
		a.snap = true
		return false, true
	}
	return false, false
}

// present draws the last frame into the whole window.
func (a *App) present() {
	w, h := a.win.Size()
	vp := render.Rect{W: w, H: h}
	a.r.ClearFrame()
	if a.frame != nil {
		a.r.DrawFrame(a.frame, vp)
	}
	if a.snap {
		a.snap = false
		img, err := a.r.Snapshot(vp)
		if err != nil {
			a.log.Warn().Err(err).Msg("snapshot")
		} else {
			go a.save(img)
		}
	}
	a.win.Swap()
}

func (a *App) save(img *image.RGBA) {
	name := filepath.Join(a.conf.Capture.Snapshots, fmt.Sprintf("camview-%v.png", time.Now().Format("20060102-150405.000")))
	if err := writePNG(name, img); err != nil {
		a.log.Error().Err(err).Msg("snapshot")
		return
	}
	a.log.Info().Msgf("snapshot %v", name)
}

func writePNG(name string, img image.Image) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Reload applies the settings that can change while running. Only values
// edited in the file since the last load are applied, so flags and key
// toggles survive unrelated edits.
func (a *App) Reload(next config.Config) {
	prev := a.file
	a.file = next
	if next.Renderer.Mirroring != prev.Renderer.Mirroring {
		a.r.SetMirroring(next.Renderer.Mirroring)
	}
	for _, err := range a.apply(changed(prev.Capture, next.Capture)) {
		a.log.Warn().Err(err).Msg("reload")
	}
}

// changed keeps the reloadable capture values of next that differ from prev.
func changed(prev, next config.Capture) (c config.Capture) {
	if next.Position != prev.Position {
		c.Position = next.Position
	}
	if next.Preset != prev.Preset {
		c.Preset = next.Preset
	}
	if next.FrameRate != prev.FrameRate {
		c.FrameRate = next.FrameRate
	}
	return c
}

func (a *App) apply(c config.Capture) (errs []error) {
	if c.Position != "" {
		p, err := capture.ParsePosition(c.Position)
		if err == nil && p != a.src.Position() {
			err = a.src.SetPosition(p)
		}
		errs = append(errs, err)
	}
	if c.Preset != "" {
		p, err := capture.ParsePreset(c.Preset)
		if err == nil && p != a.src.Preset() {
			err = a.src.SetPreset(p)
		}
		errs = append(errs, err)
	}
	if c.FrameRate > 0 && c.FrameRate != a.src.ActiveFrameRate() {
		errs = append(errs, a.src.SetActiveFrameRate(c.FrameRate))
	}
	out := errs[:0]
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}

// Close releases everything New has acquired.
func (a *App) Close() {
	if a.src != nil {
		if err := a.src.Close(); err != nil {
			a.log.Warn().Err(err).Msg("capture close")
		}
	}
	if a.win != nil {
		thread.Call(func() {
			if a.r != nil {
				a.r.Teardown()
			}
			if err := a.win.Deinit(); err != nil {
				a.log.Warn().Err(err).Msg("window")
			}
		})
	}
	if a.mon != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = a.mon.Shutdown(ctx)
	}
}

func captureOptions(c config.Capture) (opts capture.Options, err error) {
	if c.Position != "" {
		if opts.Position, err = capture.ParsePosition(c.Position); err != nil {
			return opts, err
		}
	}
	if c.Preset != "" {
		if opts.Preset, err = capture.ParsePreset(c.Preset); err != nil {
			return opts, err
		}
	}
	if opts.Drop, err = capture.ParseDropPolicy(c.Drop); err != nil {
		return opts, err
	}
	opts.FrameRate, opts.QueueSize, opts.LockDir = c.FrameRate, c.Queue, c.LockDir
	return opts, nil
}

func newDriver(c config.Capture) (capture.Driver, error) {
	switch c.Driver {
	case "", "synthetic":
	default:
		return nil, fmt.Errorf("unknown capture driver %q", c.Driver)
	}
	format, err := frame.ParseFormat(c.Format)
	if err != nil {
		return nil, err
	}
	o := frame.Orientation(c.Orientation)
	if !o.Valid() {
		return nil, errors.New("orientation must be 0, 90, 180 or 270")
	}
	return synthetic.New(synthetic.WithFormat(format), synthetic.WithOrientation(o)), nil
}

// nextPreset returns the preset after cur in the list, wrapping around.
func nextPreset(list []capture.Preset, cur capture.Preset) capture.Preset {
	for i, p := range list {
		if p == cur {
			return list[(i+1)%len(list)]
		}
	}
	if len(list) > 0 {
		return list[0]
	}
	return cur
}

func clearColor(c []float32) render.Color {
	switch len(c) {
	case 3:
		return render.Color{R: c[0], G: c[1], B: c[2], A: 1}
	case 4:
		return render.Color{R: c[0], G: c[1], B: c[2], A: c[3]}
	}
	return render.Black
}
