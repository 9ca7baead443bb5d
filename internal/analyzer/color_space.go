package analyzer

import (
	"image"
	"math"
)

// plane is an interleaved 8-bit raster with cn channels per pixel.
type plane struct {
	w, h, cn int
	pix      []uint8
}

func newPlane(w, h, cn int) *plane {
	return &plane{w: w, h: h, cn: cn, pix: make([]uint8, w*h*cn)}
}

// split copies channels [from, from+n) into a new plane.
func (p *plane) split(from, n int) *plane {
	out := newPlane(p.w, p.h, n)
	for i, j := 0, 0; i < len(p.pix); i, j = i+p.cn, j+n {
		copy(out.pix[j:j+n], p.pix[i+from:i+from+n])
	}
	return out
}

// merge writes src's channels back at offset from.
func (p *plane) merge(src *plane, from int) {
	for i, j := 0, 0; i < len(p.pix); i, j = i+p.cn, j+src.cn {
		copy(p.pix[i+from:i+from+src.cn], src.pix[j:j+src.cn])
	}
}

// D65 reference white used by the 8-bit Lab conversion.
const (
	whiteX = 0.950456
	whiteZ = 1.088754

	labThreshold = 0.008856
	labKappa     = 903.3
)

var srgbToLinear [256]float64

func init() {
	for i := range srgbToLinear {
		v := float64(i) / 255
		if v <= 0.04045 {
			srgbToLinear[i] = v / 12.92
		} else {
			srgbToLinear[i] = math.Pow((v+0.055)/1.055, 2.4)
		}
	}
}

func labF(t float64) float64 {
	if t > labThreshold {
		return math.Cbrt(t)
	}
	return 7.787*t + 16.0/116.0
}

func saturate8(v float64) uint8 {
	r := math.RoundToEven(v)
	if r <= 0 {
		return 0
	}
	if r >= 255 {
		return 255
	}
	return uint8(r)
}

// rgbToLab converts one pixel to 8-bit CIE-Lab: L scaled to [0,255], a and b
// offset by 128. With gamma=false the input is taken as linear RGB.
func rgbToLab(r, g, b uint8, gamma bool) (uint8, uint8, uint8) {
	var rf, gf, bf float64
	if gamma {
		rf, gf, bf = srgbToLinear[r], srgbToLinear[g], srgbToLinear[b]
	} else {
		rf, gf, bf = float64(r)/255, float64(g)/255, float64(b)/255
	}

	x := (0.412453*rf + 0.357580*gf + 0.180423*bf) / whiteX
	y := 0.212671*rf + 0.715160*gf + 0.072169*bf
	z := (0.019334*rf + 0.119193*gf + 0.950227*bf) / whiteZ

	fx, fy, fz := labF(x), labF(y), labF(z)
	var l float64
	if y > labThreshold {
		l = 116*fy - 16
	} else {
		l = labKappa * y
	}

	return saturate8(l * 255 / 100), saturate8(500*(fx-fy) + 128), saturate8(200*(fy-fz) + 128)
}

func labFInv(f float64) float64 {
	if f > 0.206893 {
		return f * f * f
	}
	return (f - 16.0/116.0) / 7.787
}

// labToRGB inverts rgbToLab.
func labToRGB(l8, a8, b8 uint8, gamma bool) (uint8, uint8, uint8) {
	l := float64(l8) * 100 / 255
	a := float64(a8) - 128
	bb := float64(b8) - 128

	fy := (l + 16) / 116
	var y float64
	if l > labKappa*labThreshold {
		y = fy * fy * fy
	} else {
		y = l / labKappa
		fy = 7.787*y + 16.0/116.0
	}
	x := labFInv(fy+a/500) * whiteX
	z := labFInv(fy-bb/200) * whiteZ

	rf := 3.240479*x - 1.53715*y - 0.498535*z
	gf := -0.969256*x + 1.875991*y + 0.041556*z
	bf := 0.055648*x - 0.204043*y + 1.057311*z

	if gamma {
		rf, gf, bf = linearToSRGB(rf), linearToSRGB(gf), linearToSRGB(bf)
	}
	return saturate8(rf * 255), saturate8(gf * 255), saturate8(bf * 255)
}

func linearToSRGB(v float64) float64 {
	if v <= 0 {
		return 0
	}
	if v <= 0.0031308 {
		return 12.92 * v
	}
	return 1.055*math.Pow(v, 1/2.4) - 0.055
}

// toLab converts a decoded image into a 3-channel Lab plane.
func toLab(img *image.NRGBA, gamma bool) *plane {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := newPlane(w, h, 3)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		dst := out.pix[y*w*3:]
		for x := 0; x < w; x++ {
			dst[3*x], dst[3*x+1], dst[3*x+2] = rgbToLab(row[4*x], row[4*x+1], row[4*x+2], gamma)
		}
	}
	return out
}

// fromLab converts a Lab plane back into an opaque NRGBA image.
func fromLab(lab *plane, gamma bool) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, lab.w, lab.h))
	for y := 0; y < lab.h; y++ {
		src := lab.pix[y*lab.w*3:]
		row := out.Pix[y*out.Stride:]
		for x := 0; x < lab.w; x++ {
			row[4*x], row[4*x+1], row[4*x+2] = labToRGB(src[3*x], src[3*x+1], src[3*x+2], gamma)
			row[4*x+3] = 0xff
		}
	}
	return out
}

// Fixed-point tables for the 8-bit HSV conversion (12-bit fraction).
const hsvShift = 12

var sdivTable, hdivTable [256]int

func init() {
	for i := 1; i < 256; i++ {
		sdivTable[i] = int(math.Round(float64(255<<hsvShift) / float64(i)))
		hdivTable[i] = int(math.Round(float64(180<<hsvShift) / (6 * float64(i))))
	}
}

// rgbToHSV converts one pixel to 8-bit HSV: hue in [0,180) as degrees/2,
// saturation and value in [0,255].
func rgbToHSV(r, g, b uint8) (uint8, uint8, uint8) {
	ri, gi, bi := int(r), int(g), int(b)
	v := max(ri, gi, bi)
	vmin := min(ri, gi, bi)
	diff := v - vmin

	s := (diff*sdivTable[v] + (1 << (hsvShift - 1))) >> hsvShift

	var h int
	switch v {
	case ri:
		h = gi - bi
	case gi:
		h = bi - ri + 2*diff
	default:
		h = ri - gi + 4*diff
	}
	h = (h*hdivTable[diff] + (1 << (hsvShift - 1))) >> hsvShift
	if h < 0 {
		h += 180
	} else if h >= 180 {
		h -= 180
	}
	return uint8(h), uint8(s), uint8(v)
}

// toHSV converts a decoded image into a 3-channel HSV plane.
func toHSV(img *image.NRGBA) *plane {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := newPlane(w, h, 3)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		dst := out.pix[y*w*3:]
		for x := 0; x < w; x++ {
			dst[3*x], dst[3*x+1], dst[3*x+2] = rgbToHSV(row[4*x], row[4*x+1], row[4*x+2])
		}
	}
	return out
}

// toGray applies the fixed-point luminance weights 0.299/0.587/0.114.
func toGray(img *image.NRGBA) *image.Gray {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < w; x++ {
			r, g, b := int(row[4*x]), int(row[4*x+1]), int(row[4*x+2])
			dst[x] = uint8((r*4899 + g*9617 + b*1868 + (1 << 13)) >> 14)
		}
	}
	return out
}
