// Package capture owns a camera device and turns its callbacks into a
// bounded stream of frames.
package capture

import (
	"errors"
	"fmt"
	"strings"

	"github.com/camview/camview/pkg/frame"
)

var (
	ErrUnsupported = errors.New("not supported by the device")
	ErrNoAlternate = errors.New("no alternate camera position")
	ErrDeviceBusy  = errors.New("device is owned by another source")
	ErrNoDevice    = errors.New("no capture device")
	ErrRunning     = errors.New("capture is running")
	ErrStopped     = errors.New("capture is stopped")
)

// Preset is a resolution / quality tier.
type Preset int

const (
	PresetNone Preset = iota
	PresetLow
	PresetMedium
	PresetHigh
	Preset352x288
	Preset640x480
	Preset1280x720
	Preset1920x1080
	PresetPhoto
)

var presets = [...]struct {
	name string
	w, h int
}{
	{"none", 0, 0},
	{"low", 192, 144},
	{"medium", 480, 360},
	{"high", 1280, 720},
	{"352x288", 352, 288},
	{"640x480", 640, 480},
	{"1280x720", 1280, 720},
	{"1920x1080", 1920, 1080},
	{"photo", 1920, 1440},
}

func (p Preset) String() string {
	if p >= 0 && int(p) < len(presets) {
		return presets[p].name
	}
	return fmt.Sprintf("preset(%d)", int(p))
}

// Size is the frame size the preset produces.
func (p Preset) Size() (w, h int) {
	if p > PresetNone && int(p) < len(presets) {
		return presets[p].w, presets[p].h
	}
	return 0, 0
}

// ParsePreset accepts the preset names, empty string is PresetNone.
func ParsePreset(s string) (Preset, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PresetNone, nil
	}
	for i, p := range presets {
		if i > 0 && p.name == s {
			return Preset(i), nil
		}
	}
	return PresetNone, fmt.Errorf("%w: preset %q", ErrUnsupported, s)
}

// Position is the facing of a camera.
type Position int

const (
	PositionUnspecified Position = iota
	PositionBack
	PositionFront
)

func (p Position) String() string {
	switch p {
	case PositionBack:
		return "back"
	case PositionFront:
		return "front"
	}
	return "unspecified"
}

func ParsePosition(s string) (Position, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unspecified":
		return PositionUnspecified, nil
	case "back":
		return PositionBack, nil
	case "front":
		return PositionFront, nil
	}
	return PositionUnspecified, fmt.Errorf("%w: position %q", ErrUnsupported, s)
}

// RateRange is a closed range of frame rates in frames per second.
type RateRange struct{ Min, Max float64 }

func (r RateRange) Contains(fps float64) bool { return fps >= r.Min && fps <= r.Max }

// Device is one camera of the platform capture layer.
type Device interface {
	ID() string
	Position() Position
	Presets() []Preset
	// FrameRates lists the rates supported at the preset.
	FrameRates(p Preset) []RateRange
	// Configure applies the preset and rate. It may be called while the
	// device is started and briefly interrupts delivery.
	Configure(p Preset, fps float64) error
	// Start begins calling deliver from a capture goroutine. The device
	// hands over ownership of each frame's buffers with the call and must
	// not write to them afterwards.
	Start(deliver func(frame.VideoFrame)) error
	// Stop halts delivery; no deliver call is in flight when it returns.
	Stop() error
}

// Driver enumerates the devices of the platform.
type Driver interface {
	Devices() ([]Device, error)
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func rateAvailable(ranges []RateRange, fps float64) bool {
	for _, r := range ranges {
		if r.Contains(fps) {
			return true
		}
	}
	return false
}

// closestRate returns the highest supported rate not above fps, or the
// lowest supported rate when every range is above it.
func closestRate(ranges []RateRange, fps float64) (float64, bool) {
	best, found := 0.0, false
	for _, r := range ranges {
		switch {
		case r.Contains(fps):
			return fps, true
		case r.Max < fps && (!found || r.Max > best):
			best, found = r.Max, true
		}
	}
	if found {
		return best, true
	}
	for _, r := range ranges {
		if !found || r.Min < best {
			best, found = r.Min, true
		}
	}
	return best, found
}

// maxRate is the highest supported rate.
func maxRate(ranges []RateRange) float64 {
	best := 0.0
	for _, r := range ranges {
		if r.Max > best {
			best = r.Max
		}
	}
	return best
}
