package frame

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestValidate(t *testing.T) {
	good := New(FormatNV12, 1280, 720)
	odd := New(FormatI420, 5, 3)

	tests := []struct {
		name  string
		frame VideoFrame
		ok    bool
	}{
		{name: "nv12", frame: good, ok: true},
		{name: "odd i420", frame: odd, ok: true},
		{name: "rgba", frame: New(FormatRGBA, 2, 2), ok: true},
		{name: "argb", frame: New(FormatARGB, 3, 1), ok: true},
		{name: "unknown format", frame: VideoFrame{Format: FormatUnknown, Width: 1, Height: 1}},
		{name: "future format", frame: VideoFrame{Format: PixelFormat(42), Width: 1, Height: 1}},
		{name: "zero size", frame: VideoFrame{Format: FormatRGBA, Planes: []Plane{{Data: []byte{}, Stride: 0}}}},
		{name: "plane count", frame: VideoFrame{Format: FormatI420, Width: 2, Height: 2, Planes: good.Planes}},
		{name: "short stride", frame: func() VideoFrame {
			f := New(FormatRGBA, 4, 4)
			f.Planes[0].Stride = 8
			return f
		}()},
		{name: "short data", frame: func() VideoFrame {
			f := New(FormatNV21, 4, 4)
			f.Planes[1].Data = f.Planes[1].Data[:7]
			return f
		}()},
		{name: "padded stride", frame: func() VideoFrame {
			f := VideoFrame{Format: FormatRGBA, Width: 2, Height: 2}
			f.Planes = []Plane{{Data: make([]byte, 16+8), Stride: 16}}
			return f
		}(), ok: true},
		{name: "wide overflow", frame: VideoFrame{Format: FormatRGBA, Width: (1 << 62) + 1, Height: 1,
			Planes: []Plane{{Data: make([]byte, 4), Stride: 4}}}},
		{name: "too wide", frame: VideoFrame{Format: FormatRGBA, Width: MaxDim + 1, Height: 1,
			Planes: []Plane{{Data: make([]byte, 4*(MaxDim+1)), Stride: 4 * (MaxDim + 1)}}}},
		{name: "stride overflow", frame: func() VideoFrame {
			f := New(FormatI420, 2, 4)
			f.Planes[0] = Plane{Data: make([]byte, 2), Stride: (1 << 62) + 100000}
			return f
		}()},
		{name: "huge stride", frame: func() VideoFrame {
			f := New(FormatRGBA, 1, 1)
			f.Planes[0].Stride = MaxStride + 1
			f.Planes[0].Data = make([]byte, MaxStride+1)
			return f
		}()},
		{name: "max size", frame: New(FormatI420, MaxDim, 1), ok: true},
		{name: "bad orientation", frame: func() VideoFrame {
			f := New(FormatRGBA, 2, 2)
			f.Orientation = 45
			return f
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.frame.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrMalformed) {
				t.Errorf("expected malformed, got %v", err)
			}
		})
	}
}

func TestDisplaySize(t *testing.T) {
	f := New(FormatRGBA, 4, 2)
	for _, o := range []Orientation{Rotate0, Rotate90, Rotate180, Rotate270} {
		f.Orientation = o
		w, h := f.DisplaySize()
		if o.Swaps() && (w != 2 || h != 4) || !o.Swaps() && (w != 4 || h != 2) {
			t.Errorf("%v: got %dx%d", o, w, h)
		}
	}
}

func TestParseFormat(t *testing.T) {
	for _, f := range []PixelFormat{FormatI420, FormatNV12, FormatNV21, FormatRGBA, FormatARGB} {
		got, err := ParseFormat(f.String())
		if err != nil || got != f {
			t.Errorf("%v: got %v, %v", f, got, err)
		}
	}
	if _, err := ParseFormat("unknown"); err == nil {
		t.Errorf("unknown should not parse")
	}
}

func TestFromImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			c := color.RGBA{R: 0xff, A: 0xff}
			if x >= 2 {
				c = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
			}
			src.SetRGBA(x, y, c)
		}
	}

	for _, format := range []PixelFormat{FormatI420, FormatNV12, FormatNV21, FormatRGBA, FormatARGB} {
		t.Run(format.String(), func(t *testing.T) {
			f := New(format, 4, 4)
			FromImage(&f, src)
			if err := f.Validate(); err != nil {
				t.Fatal(err)
			}
			out := f.ToRGBA()
			for _, pt := range []image.Point{{0, 0}, {3, 3}} {
				want, got := src.RGBAAt(pt.X, pt.Y), out.RGBAAt(pt.X, pt.Y)
				if diff(want.R, got.R) > 4 || diff(want.G, got.G) > 4 || diff(want.B, got.B) > 4 {
					t.Errorf("%v: want %v, got %v", pt, want, got)
				}
			}
		})
	}
}

func TestScale(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 4))
	dst := Scale(src, 32, 16)
	if dst.Bounds().Dx() != 32 || dst.Bounds().Dy() != 16 {
		t.Errorf("wrong size %v", dst.Bounds())
	}
}

func diff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func BenchmarkFromImage(b *testing.B) {
	src := image.NewRGBA(image.Rect(0, 0, 1280, 720))
	f := New(FormatNV12, 1280, 720)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		FromImage(&f, src)
	}
	b.ReportAllocs()
}
