//go:build opencv

package opencv

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantcare-ai/leaf-inspector-go/internal/analyzer"
)

func encode(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func redSquare() *image.NRGBA {
	img := solid(50, 50, color.NRGBA{0, 0, 0, 255})
	for y := 10; y < 40; y++ {
		for x := 10; x < 40; x++ {
			img.SetNRGBA(x, y, color.NRGBA{255, 0, 0, 255})
		}
	}
	return img
}

func newPipelines(t *testing.T) (*Pipeline, analyzer.Pipeline) {
	t.Helper()
	opts := analyzer.FastOptions()
	ref, err := NewPipeline(opts)
	require.NoError(t, err)
	native, err := analyzer.NewPipeline(opts)
	require.NoError(t, err)
	return ref, native
}

func TestDecodeError(t *testing.T) {
	ref, _ := newPipelines(t)
	_, err := ref.Preprocess(nil)
	assert.True(t, errors.Is(err, analyzer.ErrDecode))
	_, err = ref.AnalyzeHealth([]byte("not an image"))
	assert.True(t, errors.Is(err, analyzer.ErrDecode))
}

func TestHealthMatchesNative(t *testing.T) {
	ref, native := newPipelines(t)
	for _, c := range []color.NRGBA{{0, 255, 0, 255}, {200, 150, 30, 255}, {0, 0, 0, 255}} {
		buf := encode(t, solid(32, 32, c))
		want, err := native.AnalyzeHealth(buf)
		require.NoError(t, err)
		got, err := ref.AnalyzeHealth(buf)
		require.NoError(t, err)
		assert.Equal(t, want, got, "colour %v", c)
	}
}

func TestEdgesMatchNative(t *testing.T) {
	ref, native := newPipelines(t)
	buf := encode(t, redSquare())

	want, err := native.DetectEdges(buf)
	require.NoError(t, err)
	got, err := ref.DetectEdges(buf)
	require.NoError(t, err)

	assert.Equal(t, want.Rect, got.Rect)
	count := func(g *image.Gray) int {
		n := 0
		for _, v := range g.Pix {
			if v != 0 {
				n++
			}
		}
		return n
	}
	assert.InDelta(t, count(want), count(got), float64(count(want))/10)
}

func TestTensorCloseToNative(t *testing.T) {
	ref, native := newPipelines(t)
	buf := encode(t, solid(40, 30, color.NRGBA{40, 160, 50, 255}))

	want, err := native.Preprocess(buf)
	require.NoError(t, err)
	got, err := ref.Preprocess(buf)
	require.NoError(t, err)

	require.Len(t, got.Data, len(want.Data))
	for i := range want.Data {
		assert.InDelta(t, want.Data[i], got.Data[i], 1.0/255)
	}
}

func TestAnalyzeAll(t *testing.T) {
	ref, _ := newPipelines(t)
	report, err := ref.AnalyzeAll(context.Background(), encode(t, redSquare()), analyzer.AllArtifacts())
	require.NoError(t, err)

	assert.Equal(t, 50, report.Width)
	assert.NotNil(t, report.Health)
	assert.NotNil(t, report.Enhanced)
	assert.NotNil(t, report.Edges)
	assert.NotNil(t, report.Segmented)
	assert.Equal(t, 224, report.Tensor.Width)
}
