package analyzer

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
)

const dataURIPrefix = "data:image/png;base64,"

// EncodePNG serialises a display artifact. Gray images stay single-channel.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeDataURI returns img as a data:image/png;base64 URI for embedding in a page.
func EncodeDataURI(img image.Image) (string, error) {
	raw, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(raw), nil
}
