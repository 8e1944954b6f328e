package render

import "github.com/camview/camview/pkg/frame"

const vertexShader = `#version 120
attribute vec2 position;
attribute vec2 texcoord;
uniform mat4 model;
varying vec2 uv;
void main() {
	uv = texcoord;
	gl_Position = model * vec4(position, 0.0, 1.0);
}
`

// BT.601 limited range
const yuvHeader = `#version 120
varying vec2 uv;
const vec3 offset = vec3(-0.0625, -0.5, -0.5);
const mat3 yuv2rgb = mat3(1.164, 1.164, 1.164, 0.0, -0.392, 2.017, 1.596, -0.813, 0.0);
`

const i420Fragment = yuvHeader + `uniform sampler2D y_tex;
uniform sampler2D u_tex;
uniform sampler2D v_tex;
void main() {
	vec3 yuv = vec3(texture2D(y_tex, uv).r, texture2D(u_tex, uv).r, texture2D(v_tex, uv).r);
	gl_FragColor = vec4(yuv2rgb * (yuv + offset), 1.0);
}
`

const nv12Fragment = yuvHeader + `uniform sampler2D y_tex;
uniform sampler2D uv_tex;
void main() {
	vec4 c = texture2D(uv_tex, uv);
	vec3 yuv = vec3(texture2D(y_tex, uv).r, c.r, c.a);
	gl_FragColor = vec4(yuv2rgb * (yuv + offset), 1.0);
}
`

const nv21Fragment = yuvHeader + `uniform sampler2D y_tex;
uniform sampler2D vu_tex;
void main() {
	vec4 c = texture2D(vu_tex, uv);
	vec3 yuv = vec3(texture2D(y_tex, uv).r, c.a, c.r);
	gl_FragColor = vec4(yuv2rgb * (yuv + offset), 1.0);
}
`

const rgbaFragment = `#version 120
uniform sampler2D tex;
varying vec2 uv;
void main() {
	gl_FragColor = vec4(texture2D(tex, uv).rgb, 1.0);
}
`

const argbFragment = `#version 120
uniform sampler2D tex;
varying vec2 uv;
void main() {
	gl_FragColor = vec4(texture2D(tex, uv).gba, 1.0);
}
`

// program is the conversion routine of one pixel format.
type program struct {
	fragment string
	samplers []string
	planes   []TexFormat
}

var programs = map[frame.PixelFormat]program{
	frame.FormatI420: {i420Fragment, []string{"y_tex", "u_tex", "v_tex"}, []TexFormat{TexLuminance, TexLuminance, TexLuminance}},
	frame.FormatNV12: {nv12Fragment, []string{"y_tex", "uv_tex"}, []TexFormat{TexLuminance, TexLuminanceAlpha}},
	frame.FormatNV21: {nv21Fragment, []string{"y_tex", "vu_tex"}, []TexFormat{TexLuminance, TexLuminanceAlpha}},
	frame.FormatRGBA: {rgbaFragment, []string{"tex"}, []TexFormat{TexRGBA}},
	frame.FormatARGB: {argbFragment, []string{"tex"}, []TexFormat{TexRGBA}},
}

// supported lists the formats in the order their programs are built.
var supported = []frame.PixelFormat{
	frame.FormatI420, frame.FormatNV12, frame.FormatNV21, frame.FormatRGBA, frame.FormatARGB,
}

// texels maps the planes of f onto textures of the program. Rows whose
// stride is not a whole number of texels are packed into scratch.
func (p *program) texels(f *frame.VideoFrame, scratch [][]byte) []Texels {
	layout := frame.Layout(f.Format, f.Width, f.Height)
	out := make([]Texels, len(p.planes))
	for i, tf := range p.planes {
		bpt := tf.BytesPerTexel()
		l, pl := layout[i], f.Planes[i]
		t := Texels{Format: tf, Width: l.RowBytes / bpt, Height: l.Rows, RowLength: pl.Stride / bpt, Data: pl.Data}
		if pl.Stride%bpt != 0 {
			need := l.RowBytes * l.Rows
			if cap(scratch[i]) < need {
				scratch[i] = make([]byte, need)
			}
			buf := scratch[i][:need]
			for y := 0; y < l.Rows; y++ {
				copy(buf[y*l.RowBytes:(y+1)*l.RowBytes], pl.Data[y*pl.Stride:])
			}
			t.RowLength, t.Data = t.Width, buf
		}
		out[i] = t
	}
	return out
}
