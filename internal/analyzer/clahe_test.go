package analyzer

import "testing"

func TestClahe_UniformPlane(t *testing.T) {
	src := newPlane(64, 64, 1)
	for i := range src.pix {
		src.pix[i] = 100
	}

	// one bin holds the whole tile; after clipping at 1 the 63 excess counts
	// are spread every 4th bin, 26 of them at or below 100
	out := clahe(src, 2.0, 8, 8)
	for i, v := range out.pix {
		if v != 108 {
			t.Fatalf("Expected 108 at %d, got %d", i, v)
		}
	}
}

func TestClahe_NoClipEqualises(t *testing.T) {
	src := newPlane(8, 8, 1)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if x < 4 {
				src.pix[y*8+x] = 50
			} else {
				src.pix[y*8+x] = 200
			}
		}
	}

	out := clahe(src, 0, 1, 1)
	if got := out.pix[0]; got != 128 {
		t.Errorf("Expected dark half at 128, got %d", got)
	}
	if got := out.pix[7]; got != 255 {
		t.Errorf("Expected bright half at 255, got %d", got)
	}
}

func TestClahe_NonDivisibleSize(t *testing.T) {
	src := newPlane(13, 7, 1)
	for i := range src.pix {
		src.pix[i] = uint8(i * 3)
	}

	out := clahe(src, 2.0, 8, 8)
	if out.w != 13 || out.h != 7 || len(out.pix) != 13*7 {
		t.Fatalf("Expected 13x7 output, got %dx%d", out.w, out.h)
	}
}

func TestClipHistogram(t *testing.T) {
	var hist [histBins]int
	hist[10] = 300
	clipHistogram(&hist, 10)

	total := 0
	for _, n := range hist {
		total += n
	}
	if total != 300 {
		t.Errorf("Expected clipping to preserve the count, got %d", total)
	}
	// 290 excess: one per bin plus 34 residual every 7th bin
	if hist[10] != 11 {
		t.Errorf("Expected clipped bin 11, got %d", hist[10])
	}
	if hist[0] != 2 || hist[1] != 1 {
		t.Errorf("Expected residual on bin 0 only, got %d and %d", hist[0], hist[1])
	}
}
