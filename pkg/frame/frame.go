// Package frame describes decoded video frames exchanged between
// capture sources and renderers.
package frame

import (
	"errors"
	"fmt"
	"strings"
)

// PixelFormat is the memory layout of a frame.
type PixelFormat uint8

const (
	FormatUnknown PixelFormat = iota
	// FormatI420 is planar YUV 4:2:0 with separate U and V planes.
	FormatI420
	// FormatNV12 is semi-planar YUV 4:2:0 with interleaved UV.
	FormatNV12
	// FormatNV21 is semi-planar YUV 4:2:0 with interleaved VU.
	FormatNV21
	// FormatRGBA is packed 8 bits R, G, B, A.
	FormatRGBA
	// FormatARGB is packed 8 bits A, R, G, B.
	FormatARGB
)

var formatNames = [...]string{"unknown", "i420", "nv12", "nv21", "rgba", "argb"}

func (f PixelFormat) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("format(%d)", uint8(f))
}

// ParseFormat returns the format with the name s (case-insensitive).
func ParseFormat(s string) (PixelFormat, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range formatNames {
		if i > 0 && n == s {
			return PixelFormat(i), nil
		}
	}
	return FormatUnknown, fmt.Errorf("unknown pixel format %q", s)
}

// Planes returns the number of planes of the format, 0 if unknown.
func (f PixelFormat) Planes() int {
	switch f {
	case FormatI420:
		return 3
	case FormatNV12, FormatNV21:
		return 2
	case FormatRGBA, FormatARGB:
		return 1
	}
	return 0
}

// Known reports whether f is one of the supported formats.
func (f PixelFormat) Known() bool { return f.Planes() > 0 }

// Orientation is the clockwise rotation to apply before display.
type Orientation uint16

const (
	Rotate0   Orientation = 0
	Rotate90  Orientation = 90
	Rotate180 Orientation = 180
	Rotate270 Orientation = 270
)

func (o Orientation) Valid() bool {
	return o == Rotate0 || o == Rotate90 || o == Rotate180 || o == Rotate270
}

// Swaps reports whether the rotation exchanges width and height.
func (o Orientation) Swaps() bool { return o == Rotate90 || o == Rotate270 }

// Plane is one contiguous region of pixel data.
// Stride is the distance in bytes between the starts of two rows.
type Plane struct {
	Data   []byte
	Stride int
}

// VideoFrame is one decoded image.
//
// A frame is immutable once constructed. A consumer handed a frame by a
// call must not keep references to plane data after the call returns,
// unless the producer hands over the buffers, as capture sources do.
type VideoFrame struct {
	Format      PixelFormat
	Width       int
	Height      int
	Planes      []Plane
	Orientation Orientation
	// Timestamp is the capture or presentation time, non-decreasing
	// within one sequence.
	Timestamp int64
}

var ErrMalformed = errors.New("malformed frame")

const (
	// MaxDim is the largest accepted width or height.
	MaxDim = 1 << 15
	// MaxStride is the largest accepted row stride in bytes.
	MaxStride = 4 * MaxDim
)

// PlaneLayout is the minimum geometry of a single plane.
type PlaneLayout struct {
	RowBytes int
	Rows     int
}

// Layout returns the tightly packed plane geometry for the format.
func Layout(f PixelFormat, w, h int) []PlaneLayout {
	cw, ch := (w+1)/2, (h+1)/2
	switch f {
	case FormatI420:
		return []PlaneLayout{{w, h}, {cw, ch}, {cw, ch}}
	case FormatNV12, FormatNV21:
		return []PlaneLayout{{w, h}, {cw * 2, ch}}
	case FormatRGBA, FormatARGB:
		return []PlaneLayout{{w * 4, h}}
	}
	return nil
}

// Validate checks that the declared format and dimensions agree
// with the plane buffers.
func (f *VideoFrame) Validate() error {
	if !f.Format.Known() {
		return fmt.Errorf("%w: unsupported pixel format %v", ErrMalformed, f.Format)
	}
	if f.Width <= 0 || f.Height <= 0 || f.Width > MaxDim || f.Height > MaxDim {
		return fmt.Errorf("%w: bad size %dx%d", ErrMalformed, f.Width, f.Height)
	}
	if !f.Orientation.Valid() {
		return fmt.Errorf("%w: bad orientation %d", ErrMalformed, f.Orientation)
	}
	layout := Layout(f.Format, f.Width, f.Height)
	if len(f.Planes) != len(layout) {
		return fmt.Errorf("%w: %v needs %d planes, got %d", ErrMalformed, f.Format, len(layout), len(f.Planes))
	}
	for i, l := range layout {
		p := f.Planes[i]
		if p.Stride < l.RowBytes || p.Stride > MaxStride {
			return fmt.Errorf("%w: plane %d stride %d, row is %d bytes", ErrMalformed, i, p.Stride, l.RowBytes)
		}
		// rows-1 full strides and one row, without multiplying
		if len(p.Data) < l.RowBytes || (len(p.Data)-l.RowBytes)/p.Stride < l.Rows-1 {
			return fmt.Errorf("%w: plane %d has %d bytes for %d rows of stride %d", ErrMalformed, i, len(p.Data), l.Rows, p.Stride)
		}
	}
	return nil
}

// DisplaySize returns the size of the frame after its orientation is applied.
func (f *VideoFrame) DisplaySize() (w, h int) {
	if f.Orientation.Swaps() {
		return f.Height, f.Width
	}
	return f.Width, f.Height
}

// New allocates a tightly packed frame.
func New(format PixelFormat, w, h int) VideoFrame {
	layout := Layout(format, w, h)
	planes := make([]Plane, len(layout))
	for i, l := range layout {
		planes[i] = Plane{Data: make([]byte, l.RowBytes*l.Rows), Stride: l.RowBytes}
	}
	return VideoFrame{Format: format, Width: w, Height: h, Planes: planes}
}
