package analyzer

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"

	// Registered decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrDecode is the only error the pipeline produces. Empty, truncated and
// unrecognised inputs are deliberately indistinguishable.
var ErrDecode = errors.New("failed to load image")

// Decode turns an encoded buffer into the pipeline's working representation:
// an opaque RGB grid anchored at (0,0). Alpha is dropped and the stored
// colour kept, the way an OpenCV colour load treats it. buf is never modified.
func Decode(buf []byte) (*image.NRGBA, error) {
	if len(buf) == 0 {
		return nil, ErrDecode
	}

	src, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, ErrDecode
	}
	return toOpaqueRGB(src)
}

// toOpaqueRGB copies any image into a zero-origin NRGBA with alpha forced to
// 255. Colour channels of non-premultiplied sources are copied as stored,
// so fully transparent pixels keep their colour.
func toOpaqueRGB(src image.Image) (*image.NRGBA, error) {
	b := src.Bounds()
	if b.Dx() < 1 || b.Dy() < 1 {
		return nil, ErrDecode
	}
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	switch s := src.(type) {
	case *image.NRGBA:
		for y := 0; y < b.Dy(); y++ {
			off := s.PixOffset(b.Min.X, b.Min.Y+y)
			copy(out.Pix[y*out.Stride:y*out.Stride+4*b.Dx()], s.Pix[off:off+4*b.Dx()])
		}
	case *image.NRGBA64, *image.Paletted:
		for y := 0; y < b.Dy(); y++ {
			row := out.Pix[y*out.Stride:]
			for x := 0; x < b.Dx(); x++ {
				row[4*x], row[4*x+1], row[4*x+2] = storedRGB(src.At(b.Min.X+x, b.Min.Y+y))
			}
		}
	default:
		if o, ok := src.(interface{ Opaque() bool }); ok && o.Opaque() {
			// opaque: premultiplied and straight colour coincide
			rgba := &image.RGBA{Pix: out.Pix, Stride: out.Stride, Rect: out.Rect}
			draw.Draw(rgba, rgba.Rect, src, b.Min, draw.Src)
			break
		}
		// premultiplied sources keep only what unpremultiplying recovers
		draw.Draw(out, out.Rect, src, b.Min, draw.Src)
	}

	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xff
	}
	return out, nil
}

// storedRGB returns the non-premultiplied colour of c.
func storedRGB(c color.Color) (uint8, uint8, uint8) {
	switch n := c.(type) {
	case color.NRGBA:
		return n.R, n.G, n.B
	case color.NRGBA64:
		return uint8(n.R >> 8), uint8(n.G >> 8), uint8(n.B >> 8)
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return n.R, n.G, n.B
}
