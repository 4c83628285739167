// Package tileimg decodes HiPS image tiles and carves allsky images.
package tileimg

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"math"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/gogpu/hips/healpix"
)

// Decoding errors.
var (
	// ErrEmptyData is returned when the tile data is empty.
	ErrEmptyData = errors.New("tileimg: empty data")

	// ErrBadAllsky is returned when an allsky image cannot hold the
	// requested pixel.
	ErrBadAllsky = errors.New("tileimg: allsky image too small")

	// ErrTooLarge is returned for images above MaxPixels.
	ErrTooLarge = errors.New("tileimg: image too large")
)

// BytesPerPixel is the size of a decoded NRGBA pixel.
const BytesPerPixel = 4

// MaxPixels bounds the size declared by an image header. It fits a
// 16384×16384 allsky image.
const MaxPixels = 16384 * 16384

// Decode decodes a JPEG, PNG or WebP tile into an NRGBA image. It also
// returns the detected format name.
func Decode(data []byte) (*image.NRGBA, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyData
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("tileimg: decode: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("tileimg: decode: %w", err)
	}
	return ToNRGBA(img), format, nil
}

// ToNRGBA returns img as an NRGBA image with its origin at (0, 0). An NRGBA
// image already at the origin is returned as is.
func ToNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if n, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Cost returns the nominal memory cost of a decoded image.
func Cost(img *image.NRGBA) int64 {
	b := img.Bounds()
	return int64(b.Dx()) * int64(b.Dy()) * BytesPerPixel
}

// Transparency returns a 4-bit mask with bit i set when quadrant i of img
// is fully transparent. Quadrant i starts at x = (i/2)·w/2, y = (i%2)·h/2,
// matching the order of the HEALPix children of the tile.
//
// Images without an alpha channel (JPEG) always return 0.
func Transparency(img *image.NRGBA) uint8 {
	if img.Opaque() {
		return 0
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 2 || h < 2 {
		return 0
	}
	var mask uint8
	for i := range 4 {
		x0 := b.Min.X + (i/2)*w/2
		y0 := b.Min.Y + (i%2)*h/2
		if quadrantTransparent(img, x0, y0, w/2, h/2) {
			mask |= 1 << i
		}
	}
	return mask
}

func quadrantTransparent(img *image.NRGBA, x0, y0, w, h int) bool {
	for y := y0; y < y0+h; y++ {
		row := img.Pix[img.PixOffset(x0, y):img.PixOffset(x0+w, y)]
		for i := 3; i < len(row); i += 4 {
			if row[i] != 0 {
				return false
			}
		}
	}
	return true
}

// AllskyColumns returns the number of tile columns of an allsky image at
// the given order.
func AllskyColumns(order int) int {
	n := healpix.NPix(order)
	return int(math.Sqrt(float64(n)))
}

// AllskyRect returns the area of the allsky image holding pixel pix at the
// given order, for an allsky image of width width.
func AllskyRect(width, order, pix int) image.Rectangle {
	nbw := AllskyColumns(order)
	size := width / nbw
	x := (pix % nbw) * size
	y := (pix / nbw) * size
	return image.Rect(x, y, x+size, y+size)
}

// Carve copies the tile of pixel pix at the given order out of an allsky
// image.
func Carve(allsky *image.NRGBA, order, pix int) (*image.NRGBA, error) {
	b := allsky.Bounds()
	r := AllskyRect(b.Dx(), order, pix).Add(b.Min)
	if r.Empty() || !r.In(b) {
		return nil, fmt.Errorf("%w: %v for pixel %d at order %d", ErrBadAllsky, b, pix, order)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), allsky, r.Min, draw.Src)
	return dst, nil
}

// Resize scales img to size×size with bilinear filtering.
func Resize(img *image.NRGBA, size int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == size && b.Dy() == size {
		return img
	}
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
