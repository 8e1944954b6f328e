package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/camview/camview/pkg/frame"
	"github.com/camview/camview/pkg/logger"
)

type fakeDevice struct {
	id      string
	pos     Position
	presets []Preset
	rates   map[Preset][]RateRange

	mu           sync.Mutex
	preset       Preset
	fps          float64
	configured   int
	deliver      func(frame.VideoFrame)
	failStart    error
	failConfig   error
	starts, stop int
}

func (d *fakeDevice) ID() string                      { return d.id }
func (d *fakeDevice) Position() Position              { return d.pos }
func (d *fakeDevice) Presets() []Preset               { return d.presets }
func (d *fakeDevice) FrameRates(p Preset) []RateRange { return d.rates[p] }
func (d *fakeDevice) Configure(p Preset, fps float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failConfig != nil {
		return d.failConfig
	}
	d.preset, d.fps = p, fps
	d.configured++
	return nil
}
func (d *fakeDevice) Start(deliver func(frame.VideoFrame)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failStart != nil {
		return d.failStart
	}
	d.deliver = deliver
	d.starts++
	return nil
}
func (d *fakeDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deliver = nil
	d.stop++
	return nil
}

// emit calls the delivery callback like a capture thread would.
func (d *fakeDevice) emit(ts int64) bool {
	d.mu.Lock()
	deliver := d.deliver
	d.mu.Unlock()
	if deliver == nil {
		return false
	}
	f := frame.New(frame.FormatNV12, 4, 4)
	f.Timestamp = ts
	deliver(f)
	return true
}

type fakeDriver struct {
	devices []Device
	err     error
}

func (d fakeDriver) Devices() ([]Device, error) { return d.devices, d.err }

func back() *fakeDevice {
	return &fakeDevice{
		id:      "back-0",
		pos:     PositionBack,
		presets: []Preset{Preset1280x720, Preset640x480, Preset1920x1080},
		rates: map[Preset][]RateRange{
			Preset1280x720:  {{Min: 1, Max: 60}},
			Preset640x480:   {{Min: 1, Max: 30}, {Min: 120, Max: 120}},
			Preset1920x1080: {{Min: 1, Max: 24}},
		},
	}
}

func front() *fakeDevice {
	return &fakeDevice{
		id:      "front-0",
		pos:     PositionFront,
		presets: []Preset{Preset640x480, Preset352x288},
		rates: map[Preset][]RateRange{
			Preset640x480: {{Min: 1, Max: 30}},
			Preset352x288: {{Min: 15, Max: 15}},
		},
	}
}

func open(t *testing.T, opt Options, devices ...Device) *Source {
	t.Helper()
	opt.Log = logger.Nop()
	s, err := Open(fakeDriver{devices: devices}, opt)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenDefaults(t *testing.T) {
	b := back()
	s := open(t, Options{}, b, front())
	if s.Preset() != Preset1280x720 || s.ActiveFrameRate() != 60 || s.Position() != PositionBack {
		t.Errorf("defaults: %v@%v %v", s.Preset(), s.ActiveFrameRate(), s.Position())
	}
	if b.preset != Preset1280x720 || b.fps != 60 {
		t.Errorf("device is not configured: %v@%v", b.preset, b.fps)
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		driver  fakeDriver
		opt     Options
		wantErr error
	}{
		{name: "no devices", driver: fakeDriver{}, wantErr: ErrNoDevice},
		{name: "driver error", driver: fakeDriver{err: errors.New("denied")}},
		{name: "no position", driver: fakeDriver{devices: []Device{back()}}, opt: Options{Position: PositionFront}, wantErr: ErrUnsupported},
		{name: "bad preset", driver: fakeDriver{devices: []Device{back()}}, opt: Options{Preset: PresetPhoto}, wantErr: ErrUnsupported},
		{name: "bad rate", driver: fakeDriver{devices: []Device{back()}}, opt: Options{Preset: Preset1920x1080, FrameRate: 30}, wantErr: ErrUnsupported},
		{name: "configure error", driver: fakeDriver{devices: []Device{&fakeDevice{
			id: "x", presets: []Preset{PresetLow}, rates: map[Preset][]RateRange{PresetLow: {{Min: 1, Max: 1}}}, failConfig: errors.New("busy"),
		}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opt.Log = logger.Nop()
			_, err := Open(tt.driver, tt.opt)
			if err == nil {
				t.Fatalf("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestAvailable(t *testing.T) {
	s := open(t, Options{Position: PositionFront}, back(), front())
	if got := s.AvailablePresets(); len(got) != 2 || got[0] != Preset640x480 {
		t.Errorf("presets %v", got)
	}
	if got := s.AvailablePositions(); len(got) != 2 {
		t.Errorf("positions %v", got)
	}
	if got := s.AvailableFrameRates(); len(got) != 1 || got[0].Max != 30 {
		t.Errorf("rates %v", got)
	}
	// presets follow the active device
	if err := s.SetPosition(PositionBack); err != nil {
		t.Fatal(err)
	}
	if got := s.AvailablePresets(); len(got) != 3 {
		t.Errorf("presets after switch %v", got)
	}
}

func TestSetPreset(t *testing.T) {
	b := back()
	s := open(t, Options{Preset: Preset1280x720, FrameRate: 50}, b)

	if err := s.SetPreset(PresetPhoto); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected unsupported, got %v", err)
	}
	if s.Preset() != Preset1280x720 || b.configured != 1 {
		t.Errorf("state changed on reject")
	}
	// 50 fps is not available at 1080p, the closest lower rate is used
	if err := s.SetPreset(Preset1920x1080); err != nil {
		t.Fatal(err)
	}
	if s.Preset() != Preset1920x1080 || s.ActiveFrameRate() != 24 || b.fps != 24 {
		t.Errorf("got %v@%v", s.Preset(), s.ActiveFrameRate())
	}

	b.failConfig = errors.New("device busy")
	if err := s.SetPreset(Preset640x480); err == nil {
		t.Errorf("driver error is lost")
	}
	if s.Preset() != Preset1920x1080 {
		t.Errorf("state changed on driver error")
	}
}

func TestFrameRate(t *testing.T) {
	s := open(t, Options{Preset: Preset640x480, FrameRate: 30}, back())
	for _, fps := range []float64{0.5, 31, 60, 119, 121} {
		if s.IsAvailableActiveFrameRate(fps) {
			t.Errorf("%v should not be available", fps)
		}
		if err := s.SetActiveFrameRate(fps); !errors.Is(err, ErrUnsupported) {
			t.Errorf("%v: expected unsupported, got %v", fps, err)
		}
		if s.ActiveFrameRate() != 30 {
			t.Errorf("rate changed to %v", s.ActiveFrameRate())
		}
	}
	for _, fps := range []float64{1, 15, 29.97, 120} {
		if !s.IsAvailableActiveFrameRate(fps) {
			t.Errorf("%v should be available", fps)
		}
		if err := s.SetActiveFrameRate(fps); err != nil || s.ActiveFrameRate() != fps {
			t.Errorf("%v: %v, rate %v", fps, err, s.ActiveFrameRate())
		}
	}
}

func TestToggleSingleCamera(t *testing.T) {
	s := open(t, Options{}, back())
	if s.ToggleCameraPosition() {
		t.Errorf("toggle should fail with one camera")
	}
	if err := s.ToggleCamera(); !errors.Is(err, ErrNoAlternate) {
		t.Errorf("expected ErrNoAlternate, got %v", err)
	}
	if s.Position() != PositionBack {
		t.Errorf("position changed")
	}
	if err := s.SetPosition(PositionFront); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected unsupported, got %v", err)
	}
}

func TestToggleWhileRunning(t *testing.T) {
	b, f := back(), front()
	s := open(t, Options{Preset: Preset640x480, FrameRate: 120}, b, f)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	b.emit(1)

	if !s.ToggleCameraPosition() {
		t.Fatalf("toggle failed")
	}
	if s.Position() != PositionFront || b.stop != 1 || f.starts != 1 {
		t.Errorf("switch: position %v, back stops %v, front starts %v", s.Position(), b.stop, f.starts)
	}
	// 120 fps is not available on the front camera
	if s.Preset() != Preset640x480 || s.ActiveFrameRate() != 30 {
		t.Errorf("settings %v@%v", s.Preset(), s.ActiveFrameRate())
	}
	if b.emit(2) {
		t.Errorf("old device still delivers")
	}
	f.emit(3)

	got := []int64{(<-s.Frames()).Timestamp, (<-s.Frames()).Timestamp}
	if got[0] != 1 || got[1] != 3 {
		t.Errorf("frames %v", got)
	}

	if !s.ToggleCameraPosition() || s.Position() != PositionBack {
		t.Errorf("toggle back failed")
	}
}

func TestToggleStartFailure(t *testing.T) {
	b, f := back(), front()
	f.failStart = errors.New("camera in use")
	s := open(t, Options{Preset: Preset640x480}, b, f)
	_ = s.Start(context.Background())

	if s.ToggleCameraPosition() {
		t.Fatalf("toggle should fail")
	}
	if s.Position() != PositionBack || b.starts != 2 {
		t.Errorf("previous device is not restored: %v, starts %v", s.Position(), b.starts)
	}
}

func TestDeviceLock(t *testing.T) {
	dir := t.TempDir()
	b := back()
	_ = open(t, Options{LockDir: dir}, b)

	_, err := Open(fakeDriver{devices: []Device{b}}, Options{LockDir: dir, Log: logger.Nop()})
	if !errors.Is(err, ErrDeviceBusy) {
		t.Errorf("expected ErrDeviceBusy, got %v", err)
	}

	// the released device can be taken again
	s2, err := Open(fakeDriver{devices: []Device{front(), b}}, Options{LockDir: dir, Log: logger.Nop()})
	if err != nil {
		t.Fatal(err)
	}
	if err := s2.SetPosition(PositionBack); !errors.Is(err, ErrDeviceBusy) {
		t.Errorf("expected busy back camera, got %v", err)
	}
	if s2.Position() != PositionFront {
		t.Errorf("position changed on busy device")
	}
	_ = s2.Close()
}

func TestStartStop(t *testing.T) {
	b := back()
	s := open(t, Options{}, b)
	ctx, cancel := context.WithCancel(context.Background())

	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(ctx); !errors.Is(err, ErrRunning) {
		t.Errorf("expected ErrRunning, got %v", err)
	}
	cancel()

	select {
	case _, ok := <-s.Frames():
		if ok {
			t.Errorf("unexpected frame")
		}
	case <-time.After(time.Second):
		t.Fatalf("frames are not closed on cancel")
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
	if b.stop != 1 {
		t.Errorf("device stops %v", b.stop)
	}
}
