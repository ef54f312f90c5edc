package capture

import (
	"fmt"
	"image"
	"image/color"
)

// PixelFormat is the channel layout of a Bitmap.
type PixelFormat int

const (
	// PixelFormatBGRA8 is 8 bits per channel in B, G, R, A byte order
	// (DXGI_FORMAT_B8G8R8A8_UNORM).
	PixelFormatBGRA8 PixelFormat = iota + 1
)

func (f PixelFormat) String() string {
	if f == PixelFormatBGRA8 {
		return "BGRA8"
	}
	return fmt.Sprintf("PixelFormat(%d)", int(f))
}

// AlphaMode says how the alpha channel relates to the color channels.
type AlphaMode int

const (
	// AlphaPremultiplied means color channels are already scaled by alpha.
	AlphaPremultiplied AlphaMode = iota
	// AlphaStraight means color channels are independent of alpha.
	AlphaStraight
	// AlphaIgnore means the alpha byte carries no information.
	AlphaIgnore
)

func (m AlphaMode) String() string {
	switch m {
	case AlphaPremultiplied:
		return "premultiplied"
	case AlphaStraight:
		return "straight"
	case AlphaIgnore:
		return "ignore"
	default:
		return fmt.Sprintf("AlphaMode(%d)", int(m))
	}
}

// Bitmap is a CPU copy of one captured frame. Pix holds Height rows of
// Stride bytes, top row first.
type Bitmap struct {
	Width  int
	Height int
	Stride int
	Format PixelFormat
	Alpha  AlphaMode
	Pix    []byte
}

// NewBitmap allocates a zeroed, tightly packed BGRA bitmap.
func NewBitmap(width, height int, alpha AlphaMode) *Bitmap {
	return &Bitmap{
		Width:  width,
		Height: height,
		Stride: width * 4,
		Format: PixelFormatBGRA8,
		Alpha:  alpha,
		Pix:    make([]byte, width*height*4),
	}
}

// CopyBGRA copies height rows of width BGRA pixels out of src, whose rows are
// rowPitch bytes apart (GPU readback rows are often padded), into a new
// tightly packed Bitmap.
func CopyBGRA(width, height int, src []byte, rowPitch int, alpha AlphaMode) (*Bitmap, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid bitmap size %dx%d", width, height)
	}
	rowBytes := width * 4
	if rowPitch < rowBytes {
		return nil, fmt.Errorf("row pitch %d is smaller than row size %d", rowPitch, rowBytes)
	}
	if need := (height-1)*rowPitch + rowBytes; len(src) < need {
		return nil, fmt.Errorf("source buffer holds %d bytes, need %d", len(src), need)
	}

	bmp := NewBitmap(width, height, alpha)
	if rowPitch == rowBytes {
		// Fast path: no padding, single copy
		copy(bmp.Pix, src[:height*rowBytes])
		return bmp, nil
	}
	for y := 0; y < height; y++ {
		copy(bmp.Pix[y*rowBytes:(y+1)*rowBytes], src[y*rowPitch:y*rowPitch+rowBytes])
	}
	return bmp, nil
}

// ColorModel implements image.Image. Go's color.RGBA is premultiplied, so a
// premultiplied bitmap maps onto it without arithmetic.
func (b *Bitmap) ColorModel() color.Model {
	if b.Alpha == AlphaStraight {
		return color.NRGBAModel
	}
	return color.RGBAModel
}

// Bounds implements image.Image.
func (b *Bitmap) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.Width, b.Height)
}

// At implements image.Image.
func (b *Bitmap) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return color.RGBA{}
	}
	i := y*b.Stride + x*4
	px := b.Pix[i : i+4 : i+4]
	switch b.Alpha {
	case AlphaStraight:
		return color.NRGBA{R: px[2], G: px[1], B: px[0], A: px[3]}
	case AlphaIgnore:
		return color.RGBA{R: px[2], G: px[1], B: px[0], A: 0xFF}
	default:
		return color.RGBA{R: px[2], G: px[1], B: px[0], A: px[3]}
	}
}

// ToRGBA swizzles the bitmap into a premultiplied *image.RGBA.
func (b *Bitmap) ToRGBA() *image.RGBA {
	dst := image.NewRGBA(b.Bounds())
	for y := 0; y < b.Height; y++ {
		src := b.Pix[y*b.Stride : y*b.Stride+b.Width*4]
		row := dst.Pix[y*dst.Stride : y*dst.Stride+b.Width*4]
		for i := 0; i < len(src); i += 4 {
			bl, g, r, a := src[i], src[i+1], src[i+2], src[i+3]
			switch b.Alpha {
			case AlphaIgnore:
				a = 0xFF
			case AlphaStraight:
				r = premultiply(r, a)
				g = premultiply(g, a)
				bl = premultiply(bl, a)
			}
			row[i+0] = r
			row[i+1] = g
			row[i+2] = bl
			row[i+3] = a
		}
	}
	return dst
}

func premultiply(c, a byte) byte {
	return byte((uint32(c)*uint32(a) + 127) / 255)
}
