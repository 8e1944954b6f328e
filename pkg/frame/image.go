package frame

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// FromImage fills dst with the pixels of src converted into the dst
// format. Both must have the same size. YUV values use BT.601 limited
// range; chroma is the average of each 2x2 block.
func FromImage(dst *VideoFrame, src *image.RGBA) {
	w, h := dst.Width, dst.Height
	switch dst.Format {
	case FormatRGBA:
		p := dst.Planes[0]
		for y := 0; y < h; y++ {
			copy(p.Data[y*p.Stride:y*p.Stride+w*4], src.Pix[y*src.Stride:])
		}
	case FormatARGB:
		p := dst.Planes[0]
		for y := 0; y < h; y++ {
			s, d := src.Pix[y*src.Stride:], p.Data[y*p.Stride:]
			for x := 0; x < w; x++ {
				d[x*4], d[x*4+1], d[x*4+2], d[x*4+3] = s[x*4+3], s[x*4], s[x*4+1], s[x*4+2]
			}
		}
	case FormatI420, FormatNV12, FormatNV21:
		luma := dst.Planes[0]
		for y := 0; y < h; y++ {
			s, d := src.Pix[y*src.Stride:], luma.Data[y*luma.Stride:]
			for x := 0; x < w; x++ {
				d[x] = rgbToY(int(s[x*4]), int(s[x*4+1]), int(s[x*4+2]))
			}
		}
		for y := 0; y < (h+1)/2; y++ {
			for x := 0; x < (w+1)/2; x++ {
				u, v := chroma(src, x*2, y*2)
				switch dst.Format {
				case FormatI420:
					dst.Planes[1].Data[y*dst.Planes[1].Stride+x] = u
					dst.Planes[2].Data[y*dst.Planes[2].Stride+x] = v
				case FormatNV12:
					i := y*dst.Planes[1].Stride + x*2
					dst.Planes[1].Data[i], dst.Planes[1].Data[i+1] = u, v
				case FormatNV21:
					i := y*dst.Planes[1].Stride + x*2
					dst.Planes[1].Data[i], dst.Planes[1].Data[i+1] = v, u
				}
			}
		}
	}
}

// ToRGBA converts the frame back into an image, ignoring orientation.
func (f *VideoFrame) ToRGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			img.SetRGBA(x, y, f.at(x, y))
		}
	}
	return img
}

func (f *VideoFrame) at(x, y int) color.RGBA {
	switch f.Format {
	case FormatRGBA:
		i := y*f.Planes[0].Stride + x*4
		p := f.Planes[0].Data[i : i+4]
		return color.RGBA{R: p[0], G: p[1], B: p[2], A: p[3]}
	case FormatARGB:
		i := y*f.Planes[0].Stride + x*4
		p := f.Planes[0].Data[i : i+4]
		return color.RGBA{R: p[1], G: p[2], B: p[3], A: p[0]}
	}
	yy := f.Planes[0].Data[y*f.Planes[0].Stride+x]
	var u, v byte
	switch f.Format {
	case FormatI420:
		u = f.Planes[1].Data[y/2*f.Planes[1].Stride+x/2]
		v = f.Planes[2].Data[y/2*f.Planes[2].Stride+x/2]
	case FormatNV12:
		i := y/2*f.Planes[1].Stride + x/2*2
		u, v = f.Planes[1].Data[i], f.Planes[1].Data[i+1]
	case FormatNV21:
		i := y/2*f.Planes[1].Stride + x/2*2
		v, u = f.Planes[1].Data[i], f.Planes[1].Data[i+1]
	}
	r, g, b := yuvToRGB(yy, u, v)
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// Scale resizes src to w x h.
func Scale(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

func chroma(src *image.RGBA, x, y int) (u, v byte) {
	b := src.Bounds()
	var r, g, bl, n int
	for dy := 0; dy < 2; dy++ {
		for dx := 0; dx < 2; dx++ {
			if x+dx >= b.Dx() || y+dy >= b.Dy() {
				continue
			}
			i := (y+dy)*src.Stride + (x+dx)*4
			r, g, bl, n = r+int(src.Pix[i]), g+int(src.Pix[i+1]), bl+int(src.Pix[i+2]), n+1
		}
	}
	r, g, bl = r/n, g/n, bl/n
	return clamp(128 + (-38*r-74*g+112*bl+128)>>8), clamp(128 + (112*r-94*g-18*bl+128)>>8)
}

func rgbToY(r, g, b int) byte { return clamp(16 + (66*r+129*g+25*b+128)>>8) }

func yuvToRGB(y, u, v byte) (r, g, b byte) {
	c, d, e := int(y)-16, int(u)-128, int(v)-128
	return clamp((298*c + 409*e + 128) >> 8),
		clamp((298*c - 100*d - 208*e + 128) >> 8),
		clamp((298*c + 516*d + 128) >> 8)
}

func clamp(v int) byte {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return byte(v)
}
