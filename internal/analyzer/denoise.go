package analyzer

import (
	"image"
	"math"
	"runtime"
	"sync"
)

const (
	nlmWeightThreshold = 0.001
	nlmMaxSample       = 255
)

// nlmDenoiser runs non-local means over an 8-bit plane with one or more
// channels. Patch distance is the sum of squared differences over the
// template and all channels; averaging over the template is approximated by
// a shift with the next power of two of its area.
type nlmDenoiser struct {
	templateR  int
	searchR    int
	shift      uint
	fixedPoint int64
	weights    []int64
}

func newNLMDenoiser(h float64, templateSize, searchSize, cn int) *nlmDenoiser {
	d := &nlmDenoiser{
		templateR: templateSize / 2,
		searchR:   searchSize / 2,
	}

	area := templateSize * templateSize
	d.shift = nearestPowerOf2(area)
	d.fixedPoint = int64(math.MaxInt32) / int64(searchSize*searchSize*nlmMaxSample)
	scale := float64(int(1)<<d.shift) / float64(area)

	maxDist := nlmMaxSample * nlmMaxSample * cn
	maxIdx := int(float64(maxDist)/scale + 1)
	for idx := 0; idx < maxIdx; idx++ {
		dist := float64(idx) * scale
		w := math.Exp(-dist / (h * h * float64(cn)))
		if math.IsNaN(w) {
			w = 1
		}
		fw := int64(math.RoundToEven(float64(d.fixedPoint) * w))
		if float64(fw) < nlmWeightThreshold*float64(d.fixedPoint) {
			// weights only decrease with distance
			break
		}
		d.weights = append(d.weights, fw)
	}
	if len(d.weights) == 0 || d.weights[0] == 0 {
		d.weights = []int64{d.fixedPoint}
	}
	return d
}

// nearestPowerOf2 returns the smallest p with 2^p >= v.
func nearestPowerOf2(v int) uint {
	p := uint(0)
	for 1<<p < v {
		p++
	}
	return p
}

func (d *nlmDenoiser) weight(ssd int64) int64 {
	idx := ssd >> d.shift
	if idx >= int64(len(d.weights)) {
		return 0
	}
	return d.weights[idx]
}

// denoise returns a new plane. Rows are split into strips processed
// concurrently; each output pixel depends only on the input, so the result
// does not depend on the number of strips.
func (d *nlmDenoiser) denoise(src *plane) *plane {
	out := newPlane(src.w, src.h, src.cn)
	pad := d.searchR + d.templateR
	cols := borderTable(src.w, pad)
	rows := borderTable(src.h, pad)

	numWorkers := runtime.NumCPU()
	if src.h < numWorkers {
		numWorkers = src.h
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}
	rowsPerWorker := (src.h + numWorkers - 1) / numWorkers // ceil division

	var wg sync.WaitGroup
	for startY := 0; startY < src.h; startY += rowsPerWorker {
		endY := min(startY+rowsPerWorker, src.h)
		wg.Add(1)
		go func(startY, endY int) {
			defer wg.Done()
			d.denoiseStrip(src, out, cols, rows, pad, startY, endY)
		}(startY, endY)
	}
	wg.Wait()
	return out
}

// denoiseStrip fills rows [y0,y1) of out. For every search offset it builds
// an integral image of squared differences covering the strip plus the
// template margin, so each patch distance is four lookups.
func (d *nlmDenoiser) denoiseStrip(src, out *plane, cols, rows []int, pad, y0, y1 int) {
	w, cn := src.w, src.cn
	tr, sr := d.templateR, d.searchR
	n := y1 - y0

	// integral covers x in [-tr, w+tr), y in [y0-tr, y1+tr)
	iw := w + 2*tr + 1
	ih := n + 2*tr + 1
	integral := make([]int64, iw*ih)

	wsum := make([]int64, w*n)
	est := make([]int64, w*n*cn)

	pix := src.pix
	for dy := -sr; dy <= sr; dy++ {
		for dx := -sr; dx <= sr; dx++ {
			for iy := 1; iy < ih; iy++ {
				y := y0 - tr + iy - 1
				rowA := rows[y+pad] * w
				rowB := rows[y+dy+pad] * w
				var rowSum int64
				for ix := 1; ix < iw; ix++ {
					x := -tr + ix - 1
					a := (rowA + cols[x+pad]) * cn
					b := (rowB + cols[x+dx+pad]) * cn
					for c := 0; c < cn; c++ {
						diff := int64(pix[a+c]) - int64(pix[b+c])
						rowSum += diff * diff
					}
					integral[iy*iw+ix] = integral[(iy-1)*iw+ix] + rowSum
				}
			}

			for y := y0; y < y1; y++ {
				top := (y - y0) * iw
				bottom := (y - y0 + 2*tr + 1) * iw
				rowB := rows[y+dy+pad] * w
				for x := 0; x < w; x++ {
					left, right := x, x+2*tr+1
					ssd := integral[bottom+right] - integral[bottom+left] -
						integral[top+right] + integral[top+left]
					wt := d.weight(ssd)
					if wt == 0 {
						continue
					}
					i := (y-y0)*w + x
					b := (rowB + cols[x+dx+pad]) * cn
					wsum[i] += wt
					for c := 0; c < cn; c++ {
						est[i*cn+c] += wt * int64(pix[b+c])
					}
				}
			}
		}
	}

	for y := y0; y < y1; y++ {
		for x := 0; x < w; x++ {
			i := (y-y0)*w + x
			dst := out.pix[(y*w+x)*cn:]
			for c := 0; c < cn; c++ {
				if wsum[i] == 0 {
					dst[c] = src.pix[(y*w+x)*cn+c]
					continue
				}
				dst[c] = uint8((est[i*cn+c] + wsum[i]/2) / wsum[i])
			}
		}
	}
}

// denoiseColored is the colour variant of non-local means: the image is
// taken to linear-light Lab, lightness is filtered with h and the two chroma
// channels jointly with hColor, then converted back.
func denoiseColored(img *image.NRGBA, h, hColor float64, templateSize, searchSize int) *image.NRGBA {
	lab := toLab(img, false)

	l := newNLMDenoiser(h, templateSize, searchSize, 1).denoise(lab.split(0, 1))
	ab := newNLMDenoiser(hColor, templateSize, searchSize, 2).denoise(lab.split(1, 2))

	lab.merge(l, 0)
	lab.merge(ab, 1)
	return fromLab(lab, false)
}
