package analyzer

import (
	"image"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// hueBins is the number of histogram bins over the 8-bit hue range.
const hueBins = 180

// analyzeHealth scores a leaf photo from its hue distribution. By default the
// histogram spans the whole frame; with MaskedHistogram only leaf-mask
// pixels count.
func analyzeHealth(img *image.NRGBA, opts HealthOptions) *HealthAnalysis {
	hsv := toHSV(img)

	var mask *image.Gray
	if opts.MaskedHistogram {
		mask = leafMask(hsv, opts)
	}
	return scoreHistogram(hueHistogram(hsv, mask), opts)
}

// scoreHistogram turns a hue histogram into a HealthAnalysis. An empty
// histogram yields zero ratios.
func scoreHistogram(hist []float64, opts HealthOptions) *HealthAnalysis {
	total := floats.Sum(hist)

	var green, yellow float64
	if total > 0 {
		green = floats.Sum(hist[opts.GreenHueMin:opts.GreenHueMax]) / total
		yellow = floats.Sum(hist[opts.YellowHueMin:opts.YellowHueMax]) / total
	}

	score := math.Min(100, math.Max(0, green*100-yellow*50))
	return &HealthAnalysis{
		HealthScore:           round2(score),
		GreenPercentage:       round2(green * 100),
		YellowBrownPercentage: round2(yellow * 100),
		PotentialIssue:        yellow > opts.IssueThreshold,
	}
}

// ScoreHueHistogram scores a hueBins-long histogram computed elsewhere.
func ScoreHueHistogram(hist []float64, opts HealthOptions) *HealthAnalysis {
	return scoreHistogram(hist, opts)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// hueHistogram counts hue values over horizontal strips in parallel. When
// mask is non-nil only pixels with a non-zero mask value are counted.
func hueHistogram(hsv *plane, mask *image.Gray) []float64 {
	numWorkers := runtime.NumCPU()
	if hsv.h < numWorkers {
		numWorkers = hsv.h
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}
	rowsPerWorker := (hsv.h + numWorkers - 1) / numWorkers // ceil division

	results := make(chan [hueBins]int, numWorkers)
	var wg sync.WaitGroup

	for startY := 0; startY < hsv.h; startY += rowsPerWorker {
		endY := min(startY+rowsPerWorker, hsv.h)
		wg.Add(1)
		go func(startY, endY int) {
			defer wg.Done()

			var local [hueBins]int
			for y := startY; y < endY; y++ {
				row := hsv.pix[y*hsv.w*3:]
				for x := 0; x < hsv.w; x++ {
					if mask != nil && mask.Pix[y*mask.Stride+x] == 0 {
						continue
					}
					local[row[3*x]]++
				}
			}
			results <- local
		}(startY, endY)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	hist := make([]float64, hueBins)
	for local := range results {
		for i, n := range local {
			hist[i] += float64(n)
		}
	}
	return hist
}
