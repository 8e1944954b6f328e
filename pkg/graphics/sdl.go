// Package graphics owns the window and the GL context frames are
// rendered into. The renderer only borrows the current context.
package graphics

import (
	"fmt"
	"unsafe"

	"github.com/veandco/go-sdl2/sdl"
)

type SDL struct {
	w   *sdl.Window
	ctx sdl.GLContext
}

// NewSDLContext opens a window and makes its GL context current on the
// calling thread.
func NewSDLContext(cfg Config) (*SDL, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, fmt.Errorf("sdl: %w", err)
	}

	if err := setGLAttrs(cfg.Ctx); err != nil {
		sdl.Quit()
		return nil, err
	}

	flags := uint32(sdl.WINDOW_OPENGL | sdl.WINDOW_RESIZABLE | sdl.WINDOW_ALLOW_HIGHDPI)
	w, err := sdl.CreateWindow(cfg.Title, sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED, int32(cfg.W), int32(cfg.H), flags)
	if err != nil {
		sdl.Quit()
		return nil, fmt.Errorf("window: %w", err)
	}

	ctx, err := w.GLCreateContext()
	if err != nil {
		err1 := w.Destroy()
		sdl.Quit()
		return nil, fmt.Errorf("gl context: %w, destroy err: %v", err, err1)
	}

	if err = w.GLMakeCurrent(ctx); err != nil {
		sdl.GLDeleteContext(ctx)
		_ = w.Destroy()
		sdl.Quit()
		return nil, fmt.Errorf("gl bind: %w", err)
	}

	interval := 0
	if cfg.VSync {
		interval = 1
	}
	_ = sdl.GLSetSwapInterval(interval)

	return &SDL{w: w, ctx: ctx}, nil
}

func setGLAttrs(ctx Context) error {
	set := sdl.GLSetAttribute
	switch ctx {
	case CtxAuto:
		return nil
	case CtxOpenGl:
		for _, a := range [][2]int{
			{sdl.GL_CONTEXT_PROFILE_MASK, sdl.GL_CONTEXT_PROFILE_COMPATIBILITY},
			{sdl.GL_CONTEXT_MAJOR_VERSION, 2},
			{sdl.GL_CONTEXT_MINOR_VERSION, 1},
		} {
			if err := set(sdl.GLattr(a[0]), a[1]); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported gl context: %v", ctx)
	}
}

// Deinit destroys the context and the window. Resources allocated in the
// context must be released before.
func (s *SDL) Deinit() error {
	sdl.GLDeleteContext(s.ctx)
	err := s.w.Destroy()
	sdl.Quit()
	return err
}

// Swap presents the back buffer.
func (s *SDL) Swap() { s.w.GLSwap() }

// Size returns the drawable size in pixels.
func (s *SDL) Size() (w, h int) {
	ww, hh := s.w.GLGetDrawableSize()
	return int(ww), int(hh)
}

// Poll returns the pending window events.
func (s *SDL) Poll() []Event {
	var out []Event
	for e := sdl.PollEvent(); e != nil; e = sdl.PollEvent() {
		switch ev := e.(type) {
		case *sdl.QuitEvent:
			out = append(out, Event{Kind: EventQuit})
		case *sdl.WindowEvent:
			switch ev.Event {
			case sdl.WINDOWEVENT_MINIMIZED, sdl.WINDOWEVENT_HIDDEN:
				out = append(out, Event{Kind: EventHidden})
			case sdl.WINDOWEVENT_RESTORED, sdl.WINDOWEVENT_SHOWN:
				out = append(out, Event{Kind: EventShown})
			case sdl.WINDOWEVENT_SIZE_CHANGED:
				out = append(out, Event{Kind: EventResized})
			}
		case *sdl.KeyboardEvent:
			if ev.Type == sdl.KEYDOWN && ev.Repeat == 0 {
				key := rune(ev.Keysym.Sym)
				if ev.Keysym.Sym == sdl.K_ESCAPE {
					key = 'q'
				}
				out = append(out, Event{Kind: EventKey, Key: key})
			}
		}
	}
	return out
}

func GlProcAddress(proc string) unsafe.Pointer { return sdl.GLGetProcAddress(proc) }
