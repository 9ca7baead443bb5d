package analyzer

import "image"

// reflect101 maps an out-of-range coordinate back into [0,n) mirroring
// about the edge pixel without repeating it (gfedcb|abcdefgh|gfedcba).
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		} else {
			i = 2*n - 2 - i
		}
	}
	return i
}

// replicate clamps a coordinate to the edge pixel (aaaaaa|abcdefgh|hhhhhhh).
func replicate(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// borderTable precomputes reflect101 indices for [-pad, n+pad).
// Index with table[i+pad].
func borderTable(n, pad int) []int {
	t := make([]int, n+2*pad)
	for i := range t {
		t[i] = reflect101(i-pad, n)
	}
	return t
}

// sharpenKernel is the 3x3 unsharp-style kernel: 9 at the centre, -1 around it.
var sharpenKernel = [3][3]int{
	{-1, -1, -1},
	{-1, 9, -1},
	{-1, -1, -1},
}

// sharpen convolves every colour channel with sharpenKernel using reflect101
// borders and saturates the result to [0,255].
func sharpen(src *image.NRGBA) *image.NRGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	cols := borderTable(w, 1)
	rows := borderTable(h, 1)

	for y := 0; y < h; y++ {
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < w; x++ {
			for c := 0; c < 3; c++ {
				sum := 0
				for ky := 0; ky < 3; ky++ {
					row := src.Pix[rows[y+ky]*src.Stride:]
					for kx := 0; kx < 3; kx++ {
						sum += sharpenKernel[ky][kx] * int(row[4*cols[x+kx]+c])
					}
				}
				dst[4*x+c] = clamp8(sum)
			}
			dst[4*x+3] = 0xff
		}
	}
	return out
}

func clamp8(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// gaussianWeights is the 5-tap binomial kernel used for a 5x5 Gaussian
// when sigma is derived from the kernel size (sum 16).
var gaussianWeights = [5]int{1, 4, 6, 4, 1}

// gaussianBlur5 applies the separable 5x5 Gaussian with reflect101 borders.
// Both passes stay in integers and the result is rounded once.
func gaussianBlur5(src *image.Gray) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	cols := borderTable(w, 2)
	rows := borderTable(h, 2)

	// horizontal pass, scale 16
	tmp := make([]int, w*h)
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride:]
		for x := 0; x < w; x++ {
			sum := 0
			for k, wt := range gaussianWeights {
				sum += wt * int(row[cols[x+k]])
			}
			tmp[y*w+x] = sum
		}
	}

	// vertical pass, scale 256
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < w; x++ {
			sum := 0
			for k, wt := range gaussianWeights {
				sum += wt * tmp[rows[y+k]*w+x]
			}
			dst[x] = uint8((sum + 128) >> 8)
		}
	}
	return out
}

// sobel3 returns the horizontal and vertical 3x3 Sobel derivatives with
// replicated borders.
func sobel3(src *image.Gray) (dx, dy []int) {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dx = make([]int, w*h)
	dy = make([]int, w*h)
	at := func(x, y int) int {
		return int(src.Pix[replicate(y, h)*src.Stride+replicate(x, w)])
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			tl, t, tr := at(x-1, y-1), at(x, y-1), at(x+1, y-1)
			l, r := at(x-1, y), at(x+1, y)
			bl, b, br := at(x-1, y+1), at(x, y+1), at(x+1, y+1)

			dx[y*w+x] = (tr + 2*r + br) - (tl + 2*l + bl)
			dy[y*w+x] = (bl + 2*b + br) - (tl + 2*t + tr)
		}
	}
	return dx, dy
}

// morphRect applies a size x size rectangular erosion (erode=true) or
// dilation to a binary mask. Pixels outside the image do not take part.
func morphRect(src *image.Gray, size int, erode bool) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	r := size / 2

	// Separable: rows first, then columns.
	tmp := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride:]
		for x := 0; x < w; x++ {
			tmp[y*w+x] = extremum(row, x-r, x+r, w, 1, erode)
		}
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < w; x++ {
			dst[x] = extremum(tmp[x:], y-r, y+r, h, w, erode)
		}
	}
	return out
}

// extremum scans buf[i*step] for i in [lo,hi] clipped to [0,n).
func extremum(buf []uint8, lo, hi, n, step int, takeMin bool) uint8 {
	lo = max(lo, 0)
	hi = min(hi, n-1)
	v := buf[lo*step]
	for i := lo + 1; i <= hi; i++ {
		p := buf[i*step]
		if (takeMin && p < v) || (!takeMin && p > v) {
			v = p
		}
	}
	return v
}

// morphClose is dilation followed by erosion.
func morphClose(src *image.Gray, size int) *image.Gray {
	return morphRect(morphRect(src, size, false), size, true)
}

// morphOpen is erosion followed by dilation.
func morphOpen(src *image.Gray, size int) *image.Gray {
	return morphRect(morphRect(src, size, true), size, false)
}
