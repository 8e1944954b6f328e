package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/camview/camview/pkg/frame"
	"github.com/camview/camview/pkg/logger"
	"github.com/gofrs/flock"
)

type Options struct {
	Position Position
	// Preset and FrameRate are applied at open; zero values pick the
	// device defaults (first preset, highest rate).
	Preset    Preset
	FrameRate float64
	QueueSize int
	Drop      DropPolicy
	// LockDir holds the device lock files, empty disables locking.
	LockDir  string
	Log      *logger.Logger
	Observer Observer
}

type state int

const (
	stateIdle state = iota
	stateRunning
	stateStopped
)

// Source configures one capture device and publishes its frames.
//
// Configuration calls are serialized; they are not meant to be issued
// concurrently by the caller.
type Source struct {
	mu      sync.Mutex
	log     *logger.Logger
	devices []Device
	device  Device
	lock    *flock.Flock
	lockDir string

	preset Preset
	fps    float64

	q     *queue
	state state
	done  chan struct{}
}

// Open selects the device facing opt.Position (or the first one), takes
// its ownership and applies the initial configuration.
func Open(d Driver, opt Options) (*Source, error) {
	devices, err := d.Devices()
	if err != nil {
		return nil, fmt.Errorf("devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, ErrNoDevice
	}
	dev := devices[0]
	if opt.Position != PositionUnspecified {
		if dev = deviceAt(devices, opt.Position); dev == nil {
			return nil, fmt.Errorf("%w: position %v", ErrUnsupported, opt.Position)
		}
	}

	if opt.Log == nil {
		opt.Log = logger.Default()
	}
	if opt.Observer == nil {
		opt.Observer = noopObserver{}
	}
	s := &Source{
		log:     opt.Log.Module("capture"),
		devices: devices,
		lockDir: opt.LockDir,
		q:       newQueue(opt.QueueSize, opt.Drop, opt.Observer),
		done:    make(chan struct{}),
	}

	preset := opt.Preset
	if preset == PresetNone {
		if ps := dev.Presets(); len(ps) > 0 {
			preset = ps[0]
		}
	}
	if !contains(dev.Presets(), preset) {
		return nil, fmt.Errorf("%w: preset %v", ErrUnsupported, preset)
	}
	fps := opt.FrameRate
	if fps == 0 {
		fps = maxRate(dev.FrameRates(preset))
	}
	if !rateAvailable(dev.FrameRates(preset), fps) {
		return nil, fmt.Errorf("%w: %v fps at %v", ErrUnsupported, fps, preset)
	}

	lock, err := lockDevice(s.lockDir, dev.ID())
	if err != nil {
		return nil, err
	}
	if err := dev.Configure(preset, fps); err != nil {
		_ = unlockDevice(lock)
		return nil, fmt.Errorf("configure %v: %w", dev.ID(), err)
	}
	s.device, s.lock, s.preset, s.fps = dev, lock, preset, fps
	s.log.Info().Msgf("device %v (%v), %v@%v", dev.ID(), dev.Position(), preset, fps)
	return s, nil
}

func deviceAt(devices []Device, p Position) Device {
	for _, d := range devices {
		if d.Position() == p {
			return d
		}
	}
	return nil
}

// AvailablePresets reports the presets of the active device.
func (s *Source) AvailablePresets() []Preset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Preset(nil), s.device.Presets()...)
}

// AvailablePositions reports every position a device can be switched to.
func (s *Source) AvailablePositions() []Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Position
	for _, d := range s.devices {
		if p := d.Position(); !contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

// AvailableFrameRates reports the rates of the active device at the
// active preset.
func (s *Source) AvailableFrameRates() []RateRange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RateRange(nil), s.device.FrameRates(s.preset)...)
}

func (s *Source) Preset() Preset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preset
}

// SetPreset reconfigures the device. When the active frame rate is not
// available at p, the closest lower rate is used.
func (s *Source) SetPreset(p Preset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !contains(s.device.Presets(), p) {
		return fmt.Errorf("%w: preset %v", ErrUnsupported, p)
	}
	fps, ok := closestRate(s.device.FrameRates(p), s.fps)
	if !ok {
		return fmt.Errorf("%w: no frame rate at %v", ErrUnsupported, p)
	}
	if err := s.device.Configure(p, fps); err != nil {
		return fmt.Errorf("configure %v: %w", s.device.ID(), err)
	}
	s.preset, s.fps = p, fps
	s.log.Info().Msgf("preset %v@%v", p, fps)
	return nil
}

func (s *Source) ActiveFrameRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fps
}

// IsAvailableActiveFrameRate reports whether fps is supported by the
// device at the active preset.
func (s *Source) IsAvailableActiveFrameRate(fps float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return rateAvailable(s.device.FrameRates(s.preset), fps)
}

func (s *Source) SetActiveFrameRate(fps float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !rateAvailable(s.device.FrameRates(s.preset), fps) {
		return fmt.Errorf("%w: %v fps at %v", ErrUnsupported, fps, s.preset)
	}
	if err := s.device.Configure(s.preset, fps); err != nil {
		return fmt.Errorf("configure %v: %w", s.device.ID(), err)
	}
	s.fps = fps
	s.log.Info().Msgf("frame rate %v", fps)
	return nil
}

func (s *Source) Position() Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device.Position()
}

// SetPosition switches to the device facing p. A running capture pauses
// while the device input is rebuilt.
func (s *Source) SetPosition(p Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device.Position() == p {
		return nil
	}
	next := deviceAt(s.devices, p)
	if next == nil {
		return fmt.Errorf("%w: position %v", ErrUnsupported, p)
	}
	return s.switchTo(next)
}

// ToggleCamera switches between the front and the back camera.
func (s *Source) ToggleCamera() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.devices {
		if d.Position() != s.device.Position() {
			return s.switchTo(d)
		}
	}
	return ErrNoAlternate
}

// ToggleCameraPosition is ToggleCamera reporting only success.
func (s *Source) ToggleCameraPosition() bool {
	if err := s.ToggleCamera(); err != nil {
		s.log.Warn().Err(err).Msg("camera is not switched")
		return false
	}
	return true
}

// switchTo moves the source onto next keeping the active settings where
// next supports them. On failure the previous device stays active.
func (s *Source) switchTo(next Device) error {
	preset := s.preset
	if !contains(next.Presets(), preset) {
		ps := next.Presets()
		if len(ps) == 0 {
			return fmt.Errorf("%w: %v has no presets", ErrUnsupported, next.ID())
		}
		preset = ps[0]
	}
	fps, ok := closestRate(next.FrameRates(preset), s.fps)
	if !ok {
		return fmt.Errorf("%w: no frame rate at %v", ErrUnsupported, preset)
	}

	lock, err := lockDevice(s.lockDir, next.ID())
	if err != nil {
		return err
	}
	if err := next.Configure(preset, fps); err != nil {
		_ = unlockDevice(lock)
		return fmt.Errorf("configure %v: %w", next.ID(), err)
	}

	prev := s.device
	if s.state == stateRunning {
		if err := prev.Stop(); err != nil {
			_ = unlockDevice(lock)
			return fmt.Errorf("stop %v: %w", prev.ID(), err)
		}
		if err := next.Start(s.q.push); err != nil {
			_ = unlockDevice(lock)
			if err1 := prev.Start(s.q.push); err1 != nil {
				s.log.Error().Err(err1).Msgf("device %v is not restarted", prev.ID())
			}
			return fmt.Errorf("start %v: %w", next.ID(), err)
		}
	}
	if err := unlockDevice(s.lock); err != nil {
		s.log.Warn().Err(err).Msg("unlock")
	}
	s.device, s.lock, s.preset, s.fps = next, lock, preset, fps
	s.log.Info().Msgf("device %v (%v), %v@%v", next.ID(), next.Position(), preset, fps)
	return nil
}

// Start begins the frame delivery. The sequence cannot be restarted once
// stopped; cancelling ctx stops it.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case stateRunning:
		return ErrRunning
	case stateStopped:
		return ErrStopped
	}
	if err := s.device.Start(s.q.push); err != nil {
		return fmt.Errorf("start %v: %w", s.device.ID(), err)
	}
	s.state = stateRunning
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Stop()
		case <-s.done:
		}
	}()
	return nil
}

// Stop halts the delivery and closes the frame channel.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateStopped {
		return nil
	}
	var err error
	if s.state == stateRunning {
		err = s.device.Stop()
	}
	s.state = stateStopped
	close(s.done)
	s.q.close()
	s.log.Debug().Msg("stopped")
	return err
}

// Close stops the delivery and releases the device.
func (s *Source) Close() error {
	err := s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err1 := unlockDevice(s.lock); err1 != nil && err == nil {
		err = err1
	}
	s.lock = nil
	return err
}

// Frames is the stream of captured frames in non-decreasing timestamp
// order. It is closed by Stop. A received frame belongs to the receiver,
// its buffers are never reused by the device.
func (s *Source) Frames() <-chan frame.VideoFrame { return s.q.ch }

func (s *Source) Stats() Stats { return s.q.stats() }
