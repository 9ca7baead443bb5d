package analyzer

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// preprocess produces the model-input tensor: optional colour denoising,
// a non-aspect-preserving bilinear resize and scaling to [0,1].
func preprocess(img *image.NRGBA, opts PreprocessOptions) *Tensor {
	src := img
	if !opts.SkipDenoise {
		src = denoiseColored(img, opts.DenoiseStrength, opts.DenoiseColorStrength,
			opts.TemplateWindow, opts.SearchWindow)
	}

	resized := resize(src, opts.TargetWidth, opts.TargetHeight)
	return toTensor(resized)
}

// resize stretches src to exactly width x height.
func resize(src *image.NRGBA, width, height int) *image.NRGBA {
	if src.Rect.Dx() == width && src.Rect.Dy() == height {
		return src
	}
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	xdraw.BiLinear.Scale(dst, dst.Rect, src, src.Rect, xdraw.Src, nil)
	return dst
}

// thumbnail shrinks src so its longer side is at most maxSide, keeping the
// aspect ratio. Smaller images are returned unchanged.
func thumbnail(src *image.NRGBA, maxSide int) *image.NRGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	if w <= maxSide && h <= maxSide {
		return src
	}
	if w >= h {
		return resize(src, maxSide, max(h*maxSide/w, 1))
	}
	return resize(src, max(w*maxSide/h, 1), maxSide)
}

// Thumbnail is the exported form used by back-ends that upload images.
func Thumbnail(img *image.NRGBA, maxSide int) *image.NRGBA {
	return thumbnail(img, maxSide)
}

func toTensor(img *image.NRGBA) *Tensor {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	t := &Tensor{Width: w, Height: h, Data: make([]float32, w*h*3)}
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			i := (y*w + x) * 3
			t.Data[i] = float32(row[4*x]) / 255
			t.Data[i+1] = float32(row[4*x+1]) / 255
			t.Data[i+2] = float32(row[4*x+2]) / 255
		}
	}
	return t
}
