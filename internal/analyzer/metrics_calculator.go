package analyzer

import (
	"image"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// metricsCalculator implements MetricsCalculator using Gonum for the
// statistics and strip-parallel sums for large images.
type metricsCalculator struct {
	slicePool sync.Pool
}

// NewMetricsCalculator creates a new metrics calculator using Gonum
func NewMetricsCalculator() MetricsCalculator {
	return &metricsCalculator{
		slicePool: sync.Pool{
			New: func() interface{} {
				return make([]float64, 0, 1024)
			},
		},
	}
}

// CalculateLaplacianVariance returns the variance of the 4-neighbour
// Laplacian over interior pixels. Low values indicate blur.
func (omc *metricsCalculator) CalculateLaplacianVariance(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	// Get reusable slice from pool
	data := omc.slicePool.Get().([]float64)[:0]
	if cap(data) < (width-2)*(height-2) {
		data = make([]float64, 0, (width-2)*(height-2))
	}
	defer func() { omc.slicePool.Put(data[:0]) }()

	// Laplacian kernel: [0, 1, 0; 1, -4, 1; 0, 1, 0]
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			center := float64(gray.GrayAt(x, y).Y)
			top := float64(gray.GrayAt(x, y-1).Y)
			bottom := float64(gray.GrayAt(x, y+1).Y)
			left := float64(gray.GrayAt(x-1, y).Y)
			right := float64(gray.GrayAt(x+1, y).Y)

			data = append(data, -4*center+top+bottom+left+right)
		}
	}

	if len(data) < 2 {
		return 0
	}

	// Use Gonum's variance calculation
	return stat.Variance(data, nil)
}

// CalculateBrightness computes average brightness with parallel processing
func (omc *metricsCalculator) CalculateBrightness(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	// Handle empty images
	if width == 0 || height == 0 {
		return 0
	}

	// Use parallel processing for large images
	if width*height < 100000 {
		// For small images, use simple sequential processing
		return omc.calculateBrightnessSequential(gray)
	}

	numWorkers := runtime.NumCPU()
	if height < numWorkers {
		numWorkers = height
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}
	rowsPerWorker := (height + numWorkers - 1) / numWorkers // ceil division

	results := make(chan float64, numWorkers)
	var wg sync.WaitGroup

	for startY := bounds.Min.Y; startY < bounds.Max.Y; startY += rowsPerWorker {
		endY := min(startY+rowsPerWorker, bounds.Max.Y)
		wg.Add(1)
		go func(startY, endY int) {
			defer wg.Done()

			var totalBrightness float64
			for y := startY; y < endY; y++ {
				for x := bounds.Min.X; x < bounds.Max.X; x++ {
					totalBrightness += float64(gray.GrayAt(x, y).Y)
				}
			}
			results <- totalBrightness
		}(startY, endY)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var totalBrightness float64
	for brightness := range results {
		totalBrightness += brightness
	}

	return totalBrightness / float64(width*height)
}

// calculateBrightnessSequential is a fallback for small images
func (omc *metricsCalculator) calculateBrightnessSequential(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	totalPixels := float64(bounds.Dx() * bounds.Dy())

	var totalBrightness float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			totalBrightness += float64(gray.GrayAt(x, y).Y)
		}
	}

	return totalBrightness / totalPixels
}

// photoMetrics measures brightness and sharpness on the grayscale image.
func photoMetrics(mc MetricsCalculator, img *image.NRGBA) PhotoMetrics {
	gray := toGray(img)
	return PhotoMetrics{
		Brightness:   mc.CalculateBrightness(gray),
		LaplacianVar: mc.CalculateLaplacianVariance(gray),
	}
}
