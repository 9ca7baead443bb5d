package analyzer

import "image"

// leafMask selects pixels inside the green HSV box and cleans the result
// with a morphological close followed by an open.
func leafMask(hsv *plane, opts HealthOptions) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, hsv.w, hsv.h))
	lo, hi := opts.MaskLower, opts.MaskUpper
	for i, j := 0, 0; i < len(hsv.pix); i, j = i+3, j+1 {
		h, s, v := hsv.pix[i], hsv.pix[i+1], hsv.pix[i+2]
		if h >= lo[0] && h <= hi[0] && s >= lo[1] && s <= hi[1] && v >= lo[2] && v <= hi[2] {
			mask.Pix[j] = 0xff
		}
	}

	mask = morphClose(mask, opts.MorphKernelSize)
	return morphOpen(mask, opts.MorphKernelSize)
}

// segmentLeaf blacks out everything outside the leaf mask.
func segmentLeaf(img *image.NRGBA, opts HealthOptions) *SegmentedLeaf {
	mask := leafMask(toHSV(img), opts)

	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	inside := 0
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride:]
		dst := out.Pix[y*out.Stride:]
		m := mask.Pix[y*mask.Stride:]
		for x := 0; x < w; x++ {
			dst[4*x+3] = 0xff
			if m[x] == 0 {
				continue
			}
			copy(dst[4*x:4*x+3], src[4*x:4*x+3])
			inside++
		}
	}

	return &SegmentedLeaf{
		Image:    out,
		Mask:     mask,
		Coverage: float64(inside) / float64(w*h),
	}
}
