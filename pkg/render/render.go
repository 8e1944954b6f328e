// Package render draws video frames onto the current framebuffer.
//
// A Renderer has two states. After Setup it is armed and owns GPU
// resources of the current graphics context; after Teardown it is
// disarmed and holds nothing. Every call must be made on the thread that
// owns the graphics context, and Teardown must happen before the context
// becomes invalid.
package render

import (
	"errors"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"github.com/camview/camview/pkg/frame"
	"github.com/camview/camview/pkg/logger"
)

var (
	ErrNotSetUp          = errors.New("renderer is not set up")
	ErrAlreadySetUp      = errors.New("renderer is already set up")
	ErrUnsupportedFormat = fmt.Errorf("%w: no program for pixel format", frame.ErrMalformed)
	ErrViewport          = errors.New("empty viewport")
	ErrDriver            = errors.New("driver error")
)

// Observer receives render events, i.e. for metrics.
type Observer interface {
	Drawn(took time.Duration)
	Failed(err error)
	Reallocated()
}

type noopObserver struct{}

func (noopObserver) Drawn(time.Duration) {}
func (noopObserver) Failed(error)        {}
func (noopObserver) Reallocated()        {}

type Stats struct {
	Drawn         uint64
	Failed        uint64
	Reallocations uint64
}

// textureSet is the set of plane textures of the last successful upload.
type textureSet struct {
	format frame.PixelFormat
	w, h   int
	ids    []uint32
}

func (t *textureSet) matches(f *frame.VideoFrame) bool {
	return len(t.ids) > 0 && t.format == f.Format && t.w == f.Width && t.h == f.Height
}

type Renderer struct {
	b   Backend
	log *logger.Logger
	obs Observer

	armed    bool
	programs map[frame.PixelFormat]uint32
	quad     uint32
	textures textureSet
	scratch  [][]byte

	mirroring     atomic.Bool
	lastFrameTime int64
	clearColor    Color
	stats         Stats
}

type Option func(*Renderer)

func WithLogger(log *logger.Logger) Option { return func(r *Renderer) { r.log = log } }
func WithObserver(o Observer) Option       { return func(r *Renderer) { r.obs = o } }
func WithClearColor(c Color) Option        { return func(r *Renderer) { r.clearColor = c } }
func WithMirroring(on bool) Option         { return func(r *Renderer) { r.mirroring.Store(on) } }

// New creates a disarmed renderer.
func New(b Backend, opts ...Option) *Renderer {
	r := &Renderer{b: b, obs: noopObserver{}, clearColor: Black}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Default()
	}
	r.log = r.log.Module("render")
	return r
}

// Setup allocates the programs and the quad buffer in the current context.
// On failure everything allocated so far is released.
func (r *Renderer) Setup() error {
	if r.armed {
		return ErrAlreadySetUp
	}
	quad, err := r.b.CreateQuad()
	if err != nil {
		return fmt.Errorf("quad: %w", err)
	}
	r.quad = quad
	r.programs = make(map[frame.PixelFormat]uint32, len(supported))
	for _, f := range supported {
		p := programs[f]
		id, err := r.b.CreateProgram(vertexShader, p.fragment, p.samplers)
		if err != nil {
			r.release()
			return fmt.Errorf("%v program: %w", f, err)
		}
		r.programs[f] = id
	}
	r.scratch = make([][]byte, 3)
	r.armed = true
	r.log.Debug().Msgf("setup, %d programs", len(r.programs))
	return nil
}

// Teardown releases every resource allocated since Setup.
// It does nothing on a disarmed renderer.
func (r *Renderer) Teardown() {
	if !r.armed {
		return
	}
	r.release()
	r.armed = false
	r.lastFrameTime = 0
	r.log.Debug().Msg("teardown")
}

func (r *Renderer) release() {
	r.dropTextures()
	for _, id := range r.programs {
		r.b.DeleteProgram(id)
	}
	r.programs = nil
	if r.quad != 0 {
		r.b.DeleteQuad(r.quad)
		r.quad = 0
	}
	r.scratch = nil
}

func (r *Renderer) dropTextures() {
	for _, id := range r.textures.ids {
		r.b.DeleteTexture(id)
	}
	r.textures = textureSet{}
}

// Armed reports whether the renderer holds GPU resources.
func (r *Renderer) Armed() bool { return r.armed }

// Draw uploads f and draws it into vp, aspect-fit, rotated by the frame
// orientation and mirrored if mirroring is on. A frame that fails
// validation is rejected before any GPU state changes.
func (r *Renderer) Draw(f *frame.VideoFrame, vp Rect) error {
	if !r.armed {
		return ErrNotSetUp
	}
	if f == nil {
		return fmt.Errorf("%w: nil frame", frame.ErrMalformed)
	}
	if err := f.Validate(); err != nil {
		return err
	}
	if vp.Empty() {
		return fmt.Errorf("%w: %+v", ErrViewport, vp)
	}
	prog, ok := r.programs[f.Format]
	if !ok {
		return fmt.Errorf("%w %v", ErrUnsupportedFormat, f.Format)
	}
	p := programs[f.Format]

	start := time.Now()
	texels := p.texels(f, r.scratch)
	alloc := !r.textures.matches(f)
	if alloc {
		r.dropTextures()
		ids := make([]uint32, len(texels))
		for i := range ids {
			ids[i] = r.b.CreateTexture()
		}
		r.textures = textureSet{format: f.Format, w: f.Width, h: f.Height, ids: ids}
		r.stats.Reallocations++
		r.obs.Reallocated()
		r.log.Debug().Msgf("textures for %v %dx%d", f.Format, f.Width, f.Height)
	}
	for i, t := range texels {
		r.b.UploadTexture(r.textures.ids[i], t, alloc)
	}

	place := Fit(f.Width, f.Height, f.Orientation, vp)
	r.b.Draw(DrawCall{
		Program:  prog,
		Quad:     r.quad,
		Textures: r.textures.ids,
		Model:    Model(f.Orientation, r.Mirroring(), place, vp),
		Viewport: vp,
	})
	if err := r.b.Error(); err != nil {
		// storage state is unknown, define it again on the next frame
		r.dropTextures()
		return fmt.Errorf("%w: %v", ErrDriver, err)
	}
	r.lastFrameTime = f.Timestamp
	r.stats.Drawn++
	r.obs.Drawn(time.Since(start))
	return nil
}

// DrawFrame is Draw reporting only success.
func (r *Renderer) DrawFrame(f *frame.VideoFrame, vp Rect) bool {
	if err := r.Draw(f, vp); err != nil {
		r.stats.Failed++
		r.obs.Failed(err)
		r.log.Debug().Err(err).Msg("frame is not drawn")
		return false
	}
	return true
}

// Clear clears the color buffer of the render target.
func (r *Renderer) Clear() error {
	if !r.armed {
		return ErrNotSetUp
	}
	r.b.Clear(r.clearColor)
	if err := r.b.Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrDriver, err)
	}
	return nil
}

// ClearFrame is Clear reporting only success.
func (r *Renderer) ClearFrame() bool {
	if err := r.Clear(); err != nil {
		r.log.Debug().Err(err).Msg("no clear")
		return false
	}
	return true
}

// Snapshot reads back the pixels of vp.
func (r *Renderer) Snapshot(vp Rect) (*image.RGBA, error) {
	if !r.armed {
		return nil, ErrNotSetUp
	}
	if vp.Empty() {
		return nil, ErrViewport
	}
	buf := make([]byte, vp.W*vp.H*4)
	r.b.ReadPixels(vp, buf)
	if err := r.b.Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDriver, err)
	}
	img := image.NewRGBA(image.Rect(0, 0, vp.W, vp.H))
	row := vp.W * 4
	for y := 0; y < vp.H; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+row], buf[(vp.H-1-y)*row:])
	}
	return img, nil
}

// Mirroring reports whether frames are mirrored horizontally.
func (r *Renderer) Mirroring() bool { return r.mirroring.Load() }

// SetMirroring applies from the next drawn frame on.
// It is safe to call from any goroutine.
func (r *Renderer) SetMirroring(on bool) { r.mirroring.Store(on) }

// LastFrameTime is the timestamp of the last drawn frame, 0 after Teardown.
func (r *Renderer) LastFrameTime() int64 { return r.lastFrameTime }

func (r *Renderer) Stats() Stats { return r.stats }
