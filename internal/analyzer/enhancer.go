package analyzer

import "image"

// enhance equalises lightness with CLAHE in Lab space and sharpens the
// result. Chroma is left untouched.
func enhance(img *image.NRGBA, opts EnhanceOptions) *image.NRGBA {
	lab := toLab(img, true)
	l := clahe(lab.split(0, 1), opts.ClipLimit, opts.TileGridX, opts.TileGridY)
	lab.merge(l, 0)

	out := fromLab(lab, true)
	if opts.SkipSharpen {
		return out
	}
	return sharpen(out)
}
