package raster

import (
	"image"
	"image/color"
	"image/draw"
)

// Image is a true-color raster without alpha: 3 bytes per pixel, rows
// top to bottom.
type Image struct {
	Width  int
	Height int
	Pix    []uint8
}

func NewImage(w, h int) *Image {
	return &Image{Width: w, Height: h, Pix: make([]uint8, 3*w*h)}
}

func (m *Image) ColorModel() color.Model { return color.RGBAModel }
func (m *Image) Bounds() image.Rectangle { return image.Rect(0, 0, m.Width, m.Height) }

func (m *Image) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return color.RGBA{}
	}
	i := 3 * (y*m.Width + x)
	return color.RGBA{R: m.Pix[i], G: m.Pix[i+1], B: m.Pix[i+2], A: 0xff}
}

// RGB returns the components of pixel (x, y).
func (m *Image) RGB(x, y int) (r, g, b uint8) {
	i := 3 * (y*m.Width + x)
	return m.Pix[i], m.Pix[i+1], m.Pix[i+2]
}

func (m *Image) SetRGB(x, y int, r, g, b uint8) {
	i := 3 * (y*m.Width + x)
	m.Pix[i], m.Pix[i+1], m.Pix[i+2] = r, g, b
}

// FromImage copies img into an Image, compositing any transparency onto
// white.
func FromImage(img image.Image) *Image {
	b := img.Bounds()
	out := NewImage(b.Dx(), b.Dy())
	if rgba, ok := img.(*image.RGBA); ok {
		for y := 0; y < out.Height; y++ {
			src := rgba.Pix[(y+b.Min.Y-rgba.Rect.Min.Y)*rgba.Stride+(b.Min.X-rgba.Rect.Min.X)*4:]
			dst := out.Pix[3*y*out.Width:]
			for x := 0; x < out.Width; x++ {
				a := uint16(src[4*x+3])
				// premultiplied over white: c + (255 - a)
				dst[3*x] = uint8(uint16(src[4*x]) + 255 - a)
				dst[3*x+1] = uint8(uint16(src[4*x+1]) + 255 - a)
				dst[3*x+2] = uint8(uint16(src[4*x+2]) + 255 - a)
			}
		}
		return out
	}
	rgba := image.NewRGBA(image.Rect(0, 0, out.Width, out.Height))
	draw.Draw(rgba, rgba.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Over)
	return FromImage(rgba)
}

// ToRGBA returns an opaque *image.RGBA copy.
func (m *Image) ToRGBA() *image.RGBA {
	out := image.NewRGBA(m.Bounds())
	for i, j := 0, 0; i < len(m.Pix); i, j = i+3, j+4 {
		out.Pix[j] = m.Pix[i]
		out.Pix[j+1] = m.Pix[i+1]
		out.Pix[j+2] = m.Pix[i+2]
		out.Pix[j+3] = 0xff
	}
	return out
}
