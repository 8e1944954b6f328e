package render

import (
	"math"

	"github.com/camview/camview/pkg/frame"
)

// Placement is where a frame lands inside a viewport, in pixels.
type Placement struct{ X, Y, W, H float64 }

// Fit scales a w x h frame, rotated by o, to fit into vp keeping its
// aspect ratio. The result is centered, the rest of vp stays as bars.
func Fit(w, h int, o frame.Orientation, vp Rect) Placement {
	ew, eh := float64(w), float64(h)
	if o.Swaps() {
		ew, eh = eh, ew
	}
	vw, vh := float64(vp.W), float64(vp.H)
	s := math.Min(vw/ew, vh/eh)
	dw, dh := ew*s, eh*s
	return Placement{
		X: float64(vp.X) + (vw-dw)/2,
		Y: float64(vp.Y) + (vh-dh)/2,
		W: dw,
		H: dh,
	}
}

// Bars reports whether the placement leaves empty space in vp.
func (p Placement) Bars(vp Rect) bool {
	const eps = 0.5
	return float64(vp.W)-p.W > eps || float64(vp.H)-p.H > eps
}

// Matrix is a column-major 4x4 transform.
type Matrix [16]float32

// Apply transforms a point of the unit quad into viewport clip space.
func (m Matrix) Apply(x, y float32) (float32, float32) {
	return m[0]*x + m[4]*y + m[12], m[1]*x + m[5]*y + m[13]
}

// sin/cos of the clockwise rotations, exact
var rotations = map[frame.Orientation][2]float32{
	frame.Rotate0:   {1, 0},
	frame.Rotate90:  {0, 1},
	frame.Rotate180: {-1, 0},
	frame.Rotate270: {0, -1},
}

// Model returns the transform of the unit quad that rotates it by o,
// mirrors it horizontally when mirror is set and scales it onto p
// within the clip space of vp.
func Model(o frame.Orientation, mirror bool, p Placement, vp Rect) Matrix {
	cs := rotations[o]
	c, s := cs[0], cs[1]
	mx := float32(1)
	if mirror {
		mx = -1
	}
	sx := float32(p.W / float64(vp.W))
	sy := float32(p.H / float64(vp.H))
	tx := float32((p.X + p.W/2 - float64(vp.X) - float64(vp.W)/2) / (float64(vp.W) / 2))
	ty := float32((p.Y + p.H/2 - float64(vp.Y) - float64(vp.H)/2) / (float64(vp.H) / 2))

	var m Matrix
	m[0], m[4] = sx*mx*c, sx*mx*s
	m[1], m[5] = -sy*s, sy*c
	m[10], m[15] = 1, 1
	m[12], m[13] = tx, ty
	return m
}
