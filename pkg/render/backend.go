package render

// Backend issues the GPU commands of a renderer against the graphics
// context that is current on the calling thread.
type Backend interface {
	// CreateProgram compiles and links a shader program and binds its
	// samplers to texture units 0..len(samplers)-1.
	CreateProgram(vertex, fragment string, samplers []string) (uint32, error)
	DeleteProgram(id uint32)
	CreateTexture() uint32
	DeleteTexture(id uint32)
	// CreateQuad creates the vertex buffer of a unit quad
	// (triangle strip, position + texcoord).
	CreateQuad() (uint32, error)
	DeleteQuad(id uint32)
	// UploadTexture stores texels into the texture. When alloc is set the
	// texture storage is (re)defined, otherwise it is updated in place.
	UploadTexture(id uint32, t Texels, alloc bool)
	Draw(d DrawCall)
	Clear(c Color)
	// ReadPixels reads RGBA bytes of r, bottom row first.
	ReadPixels(r Rect, dst []byte)
	// Error returns and clears the pending driver error, if any.
	Error() error
}

type TexFormat uint8

const (
	TexLuminance TexFormat = iota
	TexLuminanceAlpha
	TexRGBA
)

// BytesPerTexel returns the size of one texel of the format.
func (t TexFormat) BytesPerTexel() int {
	switch t {
	case TexLuminanceAlpha:
		return 2
	case TexRGBA:
		return 4
	}
	return 1
}

// Texels is one plane ready for upload. RowLength is the distance between
// rows in texels.
type Texels struct {
	Format    TexFormat
	Width     int
	Height    int
	RowLength int
	Data      []byte
}

// DrawCall is a single textured quad draw clipped to Viewport.
type DrawCall struct {
	Program  uint32
	Quad     uint32
	Textures []uint32
	Model    Matrix
	Viewport Rect
}

type Color struct{ R, G, B, A float32 }

var Black = Color{A: 1}

// Rect is a framebuffer region in pixels, origin at the bottom left.
type Rect struct{ X, Y, W, H int }

func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }
