// Package synthetic is a capture driver producing a moving test pattern.
// It stands in for a camera on machines without one and in tests.
package synthetic

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"time"

	"github.com/camview/camview/pkg/capture"
	"github.com/camview/camview/pkg/frame"
	"github.com/gofrs/uuid"
)

var (
	errRunning    = errors.New("device is started")
	errNotRunning = errors.New("device is not started")
)

// epoch makes timestamps monotonic and shared by all devices.
var epoch = time.Now()

func now() int64 { return epoch.UnixNano() + int64(time.Since(epoch)) }

var bars = []color.RGBA{
	{0xeb, 0xeb, 0xeb, 0xff},
	{0xeb, 0xeb, 0x10, 0xff},
	{0x10, 0xeb, 0xeb, 0xff},
	{0x10, 0xeb, 0x10, 0xff},
	{0xeb, 0x10, 0xeb, 0xff},
	{0xeb, 0x10, 0x10, 0xff},
	{0x10, 0x10, 0xeb, 0xff},
}

type config struct {
	positions   []capture.Position
	presets     []capture.Preset
	rates       []capture.RateRange
	format      frame.PixelFormat
	orientation frame.Orientation
}

type Option func(*config)

// WithPositions sets the cameras of the driver, one device per position.
func WithPositions(p ...capture.Position) Option { return func(c *config) { c.positions = p } }
func WithPresets(p ...capture.Preset) Option     { return func(c *config) { c.presets = p } }

// WithRates sets the rates of every preset; presets above 720p are
// limited to 30 fps.
func WithRates(r ...capture.RateRange) Option    { return func(c *config) { c.rates = r } }
func WithFormat(f frame.PixelFormat) Option      { return func(c *config) { c.format = f } }
func WithOrientation(o frame.Orientation) Option { return func(c *config) { c.orientation = o } }

type Driver struct {
	devices []capture.Device
}

func New(opts ...Option) *Driver {
	c := config{
		positions: []capture.Position{capture.PositionFront, capture.PositionBack},
		presets:   []capture.Preset{capture.Preset640x480, capture.Preset1280x720, capture.Preset352x288, capture.Preset1920x1080},
		rates:     []capture.RateRange{{Min: 1, Max: 60}},
		format:    frame.FormatNV12,
	}
	for _, opt := range opts {
		opt(&c)
	}
	d := &Driver{}
	for _, p := range c.positions {
		d.devices = append(d.devices, newDevice(p, c))
	}
	return d
}

func (d *Driver) Devices() ([]capture.Device, error) { return d.devices, nil }

type Device struct {
	id          string
	pos         capture.Position
	presets     []capture.Preset
	rates       []capture.RateRange
	format      frame.PixelFormat
	orientation frame.Orientation

	mu      sync.Mutex
	preset  capture.Preset
	fps     float64
	pattern *image.RGBA
	canvas  *image.RGBA
	n       int

	stop chan struct{}
	wg   sync.WaitGroup
}

func newDevice(p capture.Position, c config) *Device {
	return &Device{
		id:          uuid.NewV5(uuid.NamespaceOID, "camview/synthetic/"+p.String()).String(),
		pos:         p,
		presets:     c.presets,
		rates:       c.rates,
		format:      c.format,
		orientation: c.orientation,
	}
}

func (d *Device) ID() string                 { return d.id }
func (d *Device) Position() capture.Position { return d.pos }
func (d *Device) Presets() []capture.Preset  { return d.presets }

func (d *Device) FrameRates(p capture.Preset) []capture.RateRange {
	if _, h := p.Size(); h > 720 {
		var out []capture.RateRange
		for _, r := range d.rates {
			if r.Min > 30 {
				continue
			}
			if r.Max > 30 {
				r.Max = 30
			}
			out = append(out, r)
		}
		return out
	}
	return d.rates
}

func (d *Device) Configure(p capture.Preset, fps float64) error {
	supported := false
	for _, x := range d.presets {
		supported = supported || x == p
	}
	if !supported {
		return fmt.Errorf("preset %v", p)
	}
	ok := false
	for _, r := range d.FrameRates(p) {
		ok = ok || r.Contains(fps)
	}
	if !ok {
		return fmt.Errorf("%v fps at %v", fps, p)
	}

	w, h := p.Size()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.preset != p || d.pattern == nil {
		d.pattern = frame.Scale(barsImage(), w, h)
		d.canvas = image.NewRGBA(d.pattern.Bounds())
	}
	d.preset, d.fps = p, fps
	return nil
}

func barsImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, len(bars)*4, 4))
	for i, c := range bars {
		draw.Draw(img, image.Rect(i*4, 0, i*4+4, 4), &image.Uniform{C: c}, image.Point{}, draw.Src)
	}
	return img
}

func (d *Device) Start(deliver func(frame.VideoFrame)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		return errRunning
	}
	if d.pattern == nil {
		return errors.New("device is not configured")
	}
	d.stop = make(chan struct{})
	d.wg.Add(1)
	go d.run(deliver, d.stop)
	return nil
}

func (d *Device) Stop() error {
	d.mu.Lock()
	stop := d.stop
	d.stop = nil
	d.mu.Unlock()
	if stop == nil {
		return errNotRunning
	}
	close(stop)
	d.wg.Wait()
	return nil
}

func (d *Device) run(deliver func(frame.VideoFrame), stop chan struct{}) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		interval := time.Duration(float64(time.Second) / d.fps)
		d.mu.Unlock()
		select {
		case <-stop:
			return
		case <-time.After(interval):
		}
		deliver(d.next())
	}
}

// next renders the pattern with a bar moving across it.
func (d *Device) next() frame.VideoFrame {
	d.mu.Lock()
	defer d.mu.Unlock()
	b := d.pattern.Bounds()
	copy(d.canvas.Pix, d.pattern.Pix)
	bw := b.Dx()/16 + 1
	x := (d.n * 4) % b.Dx()
	draw.Draw(d.canvas, image.Rect(x, 0, x+bw, b.Dy()), image.Black, image.Point{}, draw.Src)
	d.n++

	f := frame.New(d.format, b.Dx(), b.Dy())
	frame.FromImage(&f, d.canvas)
	f.Orientation = d.orientation
	f.Timestamp = now()
	return f
}
