// Package gl is the OpenGL 2.1 backend of the renderer.
//
// All functions must be called on the thread where the GL context is
// current (see pkg/thread).
package gl

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/camview/camview/pkg/render"
	"github.com/go-gl/gl/v2.1/gl"
)

const (
	attrPosition = 0
	attrTexcoord = 1
)

// position xy, texcoord st; the first image row is at the top
var quad = []float32{
	-1, -1, 0, 1,
	1, -1, 1, 1,
	-1, 1, 0, 0,
	1, 1, 1, 0,
}

type Backend struct {
	models map[uint32]int32
}

// Init loads the GL function pointers of the current context.
func Init(getProcAddr func(name string) unsafe.Pointer) (*Backend, error) {
	if err := gl.InitWithProcAddrFunc(getProcAddr); err != nil {
		return nil, fmt.Errorf("gl init: %w", err)
	}
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	return &Backend{models: map[uint32]int32{}}, nil
}

func (b *Backend) CreateProgram(vertex, fragment string, samplers []string) (uint32, error) {
	vs, err := compile(gl.VERTEX_SHADER, vertex)
	if err != nil {
		return 0, fmt.Errorf("vertex shader: %w", err)
	}
	defer gl.DeleteShader(vs)
	fs, err := compile(gl.FRAGMENT_SHADER, fragment)
	if err != nil {
		return 0, fmt.Errorf("fragment shader: %w", err)
	}
	defer gl.DeleteShader(fs)

	p := gl.CreateProgram()
	gl.AttachShader(p, vs)
	gl.AttachShader(p, fs)
	gl.BindAttribLocation(p, attrPosition, gl.Str("position\x00"))
	gl.BindAttribLocation(p, attrTexcoord, gl.Str("texcoord\x00"))
	gl.LinkProgram(p)

	var status int32
	gl.GetProgramiv(p, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var n int32
		gl.GetProgramiv(p, gl.INFO_LOG_LENGTH, &n)
		log := strings.Repeat("\x00", int(n+1))
		gl.GetProgramInfoLog(p, n, nil, gl.Str(log))
		gl.DeleteProgram(p)
		return 0, fmt.Errorf("link: %v", strings.TrimRight(log, "\x00"))
	}

	gl.UseProgram(p)
	for i, s := range samplers {
		gl.Uniform1i(gl.GetUniformLocation(p, gl.Str(s+"\x00")), int32(i))
	}
	gl.UseProgram(0)
	b.models[p] = gl.GetUniformLocation(p, gl.Str("model\x00"))
	return p, nil
}

func compile(kind uint32, src string) (uint32, error) {
	s := gl.CreateShader(kind)
	cs, free := gl.Strs(src + "\x00")
	gl.ShaderSource(s, 1, cs, nil)
	free()
	gl.CompileShader(s)

	var status int32
	gl.GetShaderiv(s, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var n int32
		gl.GetShaderiv(s, gl.INFO_LOG_LENGTH, &n)
		log := strings.Repeat("\x00", int(n+1))
		gl.GetShaderInfoLog(s, n, nil, gl.Str(log))
		gl.DeleteShader(s)
		return 0, fmt.Errorf("compile: %v", strings.TrimRight(log, "\x00"))
	}
	return s, nil
}

func (b *Backend) DeleteProgram(id uint32) {
	delete(b.models, id)
	gl.DeleteProgram(id)
}

func (b *Backend) CreateTexture() uint32 {
	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return id
}

func (b *Backend) DeleteTexture(id uint32) { gl.DeleteTextures(1, &id) }

func (b *Backend) CreateQuad() (uint32, error) {
	var id uint32
	gl.GenBuffers(1, &id)
	if id == 0 {
		return 0, fmt.Errorf("no buffer, gl error 0x%X", gl.GetError())
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, id)
	gl.BufferData(gl.ARRAY_BUFFER, len(quad)*4, gl.Ptr(quad), gl.STATIC_DRAW)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return id, nil
}

func (b *Backend) DeleteQuad(id uint32) { gl.DeleteBuffers(1, &id) }

func glFormat(f render.TexFormat) uint32 {
	switch f {
	case render.TexLuminanceAlpha:
		return gl.LUMINANCE_ALPHA
	case render.TexRGBA:
		return gl.RGBA
	}
	return gl.LUMINANCE
}

func (b *Backend) UploadTexture(id uint32, t render.Texels, alloc bool) {
	format := glFormat(t.Format)
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, int32(t.RowLength))
	if alloc {
		gl.TexImage2D(gl.TEXTURE_2D, 0, int32(format), int32(t.Width), int32(t.Height), 0, format, gl.UNSIGNED_BYTE, gl.Ptr(t.Data))
	} else {
		gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(t.Width), int32(t.Height), format, gl.UNSIGNED_BYTE, gl.Ptr(t.Data))
	}
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)
	gl.BindTexture(gl.TEXTURE_2D, 0)
}

func (b *Backend) Draw(d render.DrawCall) {
	vp := d.Viewport
	gl.Viewport(int32(vp.X), int32(vp.Y), int32(vp.W), int32(vp.H))
	gl.Enable(gl.SCISSOR_TEST)
	gl.Scissor(int32(vp.X), int32(vp.Y), int32(vp.W), int32(vp.H))

	gl.UseProgram(d.Program)
	gl.UniformMatrix4fv(b.models[d.Program], 1, false, &d.Model[0])
	for i, tex := range d.Textures {
		gl.ActiveTexture(gl.TEXTURE0 + uint32(i))
		gl.BindTexture(gl.TEXTURE_2D, tex)
	}

	gl.BindBuffer(gl.ARRAY_BUFFER, d.Quad)
	gl.EnableVertexAttribArray(attrPosition)
	gl.VertexAttribPointer(attrPosition, 2, gl.FLOAT, false, 16, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(attrTexcoord)
	gl.VertexAttribPointer(attrTexcoord, 2, gl.FLOAT, false, 16, gl.PtrOffset(8))
	gl.DrawArrays(gl.TRIANGLE_STRIP, 0, 4)
	gl.DisableVertexAttribArray(attrPosition)
	gl.DisableVertexAttribArray(attrTexcoord)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	gl.Disable(gl.SCISSOR_TEST)
}

func (b *Backend) Clear(c render.Color) {
	gl.Disable(gl.SCISSOR_TEST)
	gl.ClearColor(c.R, c.G, c.B, c.A)
	gl.Clear(gl.COLOR_BUFFER_BIT)
}

func (b *Backend) ReadPixels(r render.Rect, dst []byte) {
	gl.ReadPixels(int32(r.X), int32(r.Y), int32(r.W), int32(r.H), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(dst))
}

func (b *Backend) Error() error {
	if e := gl.GetError(); e != gl.NO_ERROR {
		return fmt.Errorf("gl error 0x%X", e)
	}
	return nil
}

func VersionInfo() string  { return get(gl.VERSION) }
func VendorInfo() string   { return get(gl.VENDOR) }
func RendererInfo() string { return get(gl.RENDERER) }
func GLSLInfo() string     { return get(gl.SHADING_LANGUAGE_VERSION) }

func get(name uint32) string { return gl.GoStr(gl.GetString(name)) }
