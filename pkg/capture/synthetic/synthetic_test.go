package synthetic

import (
	"context"
	"testing"
	"time"

	"github.com/camview/camview/pkg/capture"
	"github.com/camview/camview/pkg/frame"
	"github.com/camview/camview/pkg/logger"
)

func TestDevices(t *testing.T) {
	d := New()
	devices, _ := d.Devices()
	if len(devices) != 2 {
		t.Fatalf("got %v devices", len(devices))
	}
	if devices[0].ID() == devices[1].ID() {
		t.Errorf("duplicate id %v", devices[0].ID())
	}
	// ids are stable across drivers
	again, _ := New().Devices()
	if again[0].ID() != devices[0].ID() {
		t.Errorf("id changed: %v != %v", again[0].ID(), devices[0].ID())
	}
}

func TestFrameRates(t *testing.T) {
	dev := newDevice(capture.PositionBack, config{
		presets: []capture.Preset{capture.Preset1280x720, capture.Preset1920x1080},
		rates:   []capture.RateRange{{Min: 1, Max: 60}, {Min: 120, Max: 240}},
	})
	if got := dev.FrameRates(capture.Preset1280x720); len(got) != 2 {
		t.Errorf("720p rates %v", got)
	}
	got := dev.FrameRates(capture.Preset1920x1080)
	if len(got) != 1 || got[0].Max != 30 {
		t.Errorf("1080p rates %v", got)
	}
	if err := dev.Configure(capture.Preset1920x1080, 60); err == nil {
		t.Errorf("60 fps at 1080p is accepted")
	}
	if err := dev.Configure(capture.Preset352x288, 30); err == nil {
		t.Errorf("unknown preset is accepted")
	}
}

func TestStartStop(t *testing.T) {
	dev := newDevice(capture.PositionFront, config{
		presets: []capture.Preset{capture.Preset352x288},
		rates:   []capture.RateRange{{Min: 1, Max: 200}},
		format:  frame.FormatI420,
	})
	if err := dev.Start(func(frame.VideoFrame) {}); err == nil {
		t.Errorf("started without configuration")
	}
	if err := dev.Configure(capture.Preset352x288, 200); err != nil {
		t.Fatal(err)
	}
	got := make(chan frame.VideoFrame, 100)
	if err := dev.Start(func(f frame.VideoFrame) {
		select {
		case got <- f:
		default:
		}
	}); err != nil {
		t.Fatal(err)
	}
	if err := dev.Start(nil); err == nil {
		t.Errorf("started twice")
	}

	var last int64
	for i := 0; i < 3; i++ {
		select {
		case f := <-got:
			if err := f.Validate(); err != nil {
				t.Fatal(err)
			}
			if f.Format != frame.FormatI420 || f.Width != 352 || f.Height != 288 {
				t.Errorf("frame %v %vx%v", f.Format, f.Width, f.Height)
			}
			if f.Timestamp < last {
				t.Errorf("timestamp went back: %v < %v", f.Timestamp, last)
			}
			last = f.Timestamp
		case <-time.After(2 * time.Second):
			t.Fatal("no frames")
		}
	}
	if err := dev.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := dev.Stop(); err == nil {
		t.Errorf("stopped twice")
	}
}

func TestSource(t *testing.T) {
	src, err := capture.Open(New(WithRates(capture.RateRange{Min: 1, Max: 100})), capture.Options{
		Position: capture.PositionBack,
		Preset:   capture.Preset352x288,
		LockDir:  t.TempDir(),
		Log:      logger.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = src.Close() }()
	if src.ActiveFrameRate() != 100 {
		t.Errorf("rate %v", src.ActiveFrameRate())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := src.Start(ctx); err != nil {
		t.Fatal(err)
	}
	f := <-src.Frames()
	if !src.ToggleCameraPosition() || src.Position() != capture.PositionFront {
		t.Fatalf("toggle failed")
	}
	// the timeline goes on across devices
	next := <-src.Frames()
	if next.Timestamp < f.Timestamp {
		t.Errorf("timestamp went back after switch: %v < %v", next.Timestamp, f.Timestamp)
	}

	cancel()
	for range src.Frames() {
	}
}

func TestSingleCamera(t *testing.T) {
	d := New(WithPositions(capture.PositionBack), WithPresets(capture.Preset352x288, capture.Preset640x480))
	src, err := capture.Open(d, capture.Options{Log: logger.Nop()})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = src.Close() }()

	if got := src.AvailablePositions(); len(got) != 1 || got[0] != capture.PositionBack {
		t.Errorf("positions %v", got)
	}
	if got := src.AvailablePresets(); len(got) != 2 || src.Preset() != capture.Preset352x288 {
		t.Errorf("presets %v, active %v", got, src.Preset())
	}
	if src.ToggleCameraPosition() || src.Position() != capture.PositionBack {
		t.Errorf("toggled a single camera")
	}
	if err := src.SetPreset(capture.Preset1280x720); err == nil {
		t.Errorf("preset outside the list is accepted")
	}
}

// Received frames stay valid, the device never writes into them again.
func TestFrameOwnership(t *testing.T) {
	d := New(WithPositions(capture.PositionFront), WithPresets(capture.Preset352x288), WithFormat(frame.FormatRGBA))
	src, err := capture.Open(d, capture.Options{QueueSize: 4, Log: logger.Nop()})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = src.Close() }()
	if err := src.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	first := <-src.Frames()
	keep := append([]byte(nil), first.Planes[0].Data...)
	for i := 0; i < 3; i++ {
		next := <-src.Frames()
		if &next.Planes[0].Data[0] == &first.Planes[0].Data[0] {
			t.Fatalf("frame %d reuses the buffer of the first one", i)
		}
	}
	if string(keep) != string(first.Planes[0].Data) {
		t.Errorf("the first frame has been overwritten")
	}
}
