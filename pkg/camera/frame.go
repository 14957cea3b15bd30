// Package camera turns a live visual feed into periodic fixed-size JPEG frames.
package camera

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"time"

	"golang.org/x/image/draw"
)

const dataURLPrefix = "data:image/jpeg;base64,"

type Frame struct {
	JPEG       []byte
	Width      int
	Height     int
	Seq        uint64
	CapturedAt time.Time
}

// DataURL renders the frame the way the detection endpoint expects it.
func (f Frame) DataURL() string {
	return dataURLPrefix + base64.StdEncoding.EncodeToString(f.JPEG)
}

// Rasterizer scales source images into a fixed-size canvas and JPEG-encodes it.
type Rasterizer struct {
	Width   int
	Height  int
	Quality int
}

func (r Rasterizer) Encode(src image.Image) ([]byte, error) {
	if src == nil || src.Bounds().Empty() {
		return nil, fmt.Errorf("empty source image")
	}

	dst := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	quality := r.Quality
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
