package capture

import (
	"fmt"
	"image/jpeg"
	"image/png"
	"io"
	"strings"
)

// Encode writes the bitmap to w as "png" or "jpeg"/"jpg". quality (1-100)
// only applies to JPEG.
func Encode(w io.Writer, bmp *Bitmap, format string, quality int) error {
	if bmp == nil {
		return fmt.Errorf("encode: nil bitmap")
	}
	switch strings.ToLower(format) {
	case "png", "":
		return EncodePNG(w, bmp)
	case "jpeg", "jpg":
		return EncodeJPEG(w, bmp, quality)
	default:
		return fmt.Errorf("encode: unsupported format %q", format)
	}
}

// EncodeJPEG encodes the bitmap as JPEG with the specified quality (1-100)
func EncodeJPEG(w io.Writer, bmp *Bitmap, quality int) error {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	return jpeg.Encode(w, bmp.ToRGBA(), &jpeg.Options{Quality: quality})
}

// EncodePNG encodes the bitmap as PNG (lossless)
func EncodePNG(w io.Writer, bmp *Bitmap) error {
	return png.Encode(w, bmp.ToRGBA())
}
