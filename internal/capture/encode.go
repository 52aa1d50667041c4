package capture

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif" // Frame decoders.
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// dataURLPrefix is the prefix of the encoded payload sent to the portal.
const dataURLPrefix = "data:image/jpeg;base64,"

// encodeFrame decodes raw, scales it to the geometry and returns a JPEG data URL.
func encodeFrame(raw []byte, geometry Geometry) (string, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("decode frame: %w", err)
	}

	var dst image.Image = src

	bounds := image.Rect(0, 0, geometry.Width, geometry.Height)
	if src.Bounds().Dx() != geometry.Width || src.Bounds().Dy() != geometry.Height {
		scaled := image.NewRGBA(bounds)
		draw.CatmullRom.Scale(scaled, bounds, src, src.Bounds(), draw.Src, nil)
		dst = scaled
	}

	var buf bytes.Buffer

	if err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: geometry.Quality}); err != nil {
		return "", fmt.Errorf("encode frame: %w", err)
	}

	return dataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
