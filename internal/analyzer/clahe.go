package analyzer

import "math"

const histBins = 256

// clahe performs contrast-limited adaptive histogram equalisation on a
// single-channel plane and returns the equalised copy.
//
// When the plane does not divide evenly into the tile grid a reflect101
// border is added on the bottom and right, and tile sizes are taken from the
// padded plane. Lookup tables are built per tile and blended bilinearly
// between the four nearest tile centres.
func clahe(src *plane, clipLimit float64, tilesX, tilesY int) *plane {
	w, h := src.w, src.h

	lutSrc, lw := src.pix, w
	tileW, tileH := w/tilesX, h/tilesY
	if w%tilesX != 0 || h%tilesY != 0 {
		padW := w + tilesX - w%tilesX
		padH := h + tilesY - h%tilesY
		lutSrc = make([]uint8, padW*padH)
		for y := 0; y < padH; y++ {
			sy := reflect101(y, h)
			for x := 0; x < padW; x++ {
				lutSrc[y*padW+x] = src.pix[sy*w+reflect101(x, w)]
			}
		}
		lw = padW
		tileW, tileH = padW/tilesX, padH/tilesY
	}

	tileArea := tileW * tileH
	lutScale := float32(histBins-1) / float32(tileArea)
	clip := 0
	if clipLimit > 0 {
		clip = max(int(clipLimit*float64(tileArea)/histBins), 1)
	}

	luts := make([][histBins]uint8, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			var hist [histBins]int
			for y := ty * tileH; y < (ty+1)*tileH; y++ {
				row := lutSrc[y*lw:]
				for x := tx * tileW; x < (tx+1)*tileW; x++ {
					hist[row[x]]++
				}
			}
			if clip > 0 {
				clipHistogram(&hist, clip)
			}

			lut := &luts[ty*tilesX+tx]
			sum := 0
			for i := range hist {
				sum += hist[i]
				lut[i] = saturate8(float64(float32(sum) * lutScale))
			}
		}
	}

	out := newPlane(w, h, 1)
	invTW := 1 / float32(tileW)
	invTH := 1 / float32(tileH)

	// column interpolation terms are shared by every row
	tx1s, tx2s := make([]int, w), make([]int, w)
	xas := make([]float32, w)
	for x := 0; x < w; x++ {
		txf := float32(x)*invTW - 0.5
		tx1 := int(math.Floor(float64(txf)))
		xas[x] = txf - float32(tx1)
		tx1s[x] = max(tx1, 0)
		tx2s[x] = min(tx1+1, tilesX-1)
	}

	for y := 0; y < h; y++ {
		tyf := float32(y)*invTH - 0.5
		ty1 := int(math.Floor(float64(tyf)))
		ya := tyf - float32(ty1)
		ya1 := 1 - ya
		ty2 := min(ty1+1, tilesY-1)
		ty1 = max(ty1, 0)

		row := src.pix[y*w:]
		dst := out.pix[y*w:]
		for x := 0; x < w; x++ {
			v := row[x]
			xa := xas[x]
			xa1 := 1 - xa
			top := float32(luts[ty1*tilesX+tx1s[x]][v])*xa1 + float32(luts[ty1*tilesX+tx2s[x]][v])*xa
			bottom := float32(luts[ty2*tilesX+tx1s[x]][v])*xa1 + float32(luts[ty2*tilesX+tx2s[x]][v])*xa
			dst[x] = saturate8(float64(top*ya1 + bottom*ya))
		}
	}
	return out
}

// clipHistogram caps every bin at clip and spreads the excess evenly, with
// any remainder handed out one count at a time across the range.
func clipHistogram(hist *[histBins]int, clip int) {
	clipped := 0
	for i := range hist {
		if hist[i] > clip {
			clipped += hist[i] - clip
			hist[i] = clip
		}
	}

	batch := clipped / histBins
	residual := clipped - batch*histBins
	for i := range hist {
		hist[i] += batch
	}
	if residual != 0 {
		step := max(histBins/residual, 1)
		for i := 0; i < histBins && residual > 0; i += step {
			hist[i]++
			residual--
		}
	}
}
