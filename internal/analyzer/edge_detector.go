package analyzer

import (
	"image"
	"math"
)

// tan(22.5°) in 15-bit fixed point, rounded.
const (
	cannyShift = 15
	tg22       = 13573
)

// Hysteresis labels.
const (
	edgeWeak   = 0
	edgeNone   = 1
	edgeStrong = 2
)

// detectEdges runs grayscale conversion, a 5x5 Gaussian blur and Canny.
func detectEdges(img *image.NRGBA, opts EdgeOptions) *image.Gray {
	return canny(gaussianBlur5(toGray(img)), opts.LowThreshold, opts.HighThreshold)
}

// canny marks edge pixels with 255. Gradients come from a 3x3 Sobel with
// L1 magnitude; thresholds are floored to integers like the gradients.
func canny(src *image.Gray, lowThreshold, highThreshold float64) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	low := int(math.Floor(lowThreshold))
	high := int(math.Floor(highThreshold))

	dx, dy := sobel3(src)
	mag := make([]int, w*h)
	for i := range mag {
		mag[i] = abs(dx[i]) + abs(dy[i])
	}
	magAt := func(x, y int) int {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 0
		}
		return mag[y*w+x]
	}

	labels := make([]uint8, w*h)
	var stack []int

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			labels[i] = edgeNone
			m := mag[i]
			if m <= low {
				continue
			}

			xs, ys := dx[i], dy[i]
			ax := abs(xs)
			ay := abs(ys) << cannyShift
			tg22x := ax * tg22

			var isMax bool
			if ay < tg22x {
				isMax = m > magAt(x-1, y) && m >= magAt(x+1, y)
			} else {
				tg67x := tg22x + (ax << (cannyShift + 1))
				if ay > tg67x {
					isMax = m > magAt(x, y-1) && m >= magAt(x, y+1)
				} else {
					s := 1
					if (xs ^ ys) < 0 {
						s = -1
					}
					isMax = m > magAt(x-s, y-1) && m > magAt(x+s, y+1)
				}
			}
			if !isMax {
				continue
			}

			if m > high {
				labels[i] = edgeStrong
				stack = append(stack, i)
			} else {
				labels[i] = edgeWeak
			}
		}
	}

	// Hysteresis: grow strong edges through 8-connected weak pixels.
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for ny := y - 1; ny <= y+1; ny++ {
			for nx := x - 1; nx <= x+1; nx++ {
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if labels[j] == edgeWeak {
					labels[j] = edgeStrong
					stack = append(stack, j)
				}
			}
		}
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < w; x++ {
			if labels[y*w+x] == edgeStrong {
				dst[x] = 0xff
			}
		}
	}
	return out
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
