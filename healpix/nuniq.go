package healpix

import (
	"errors"
	"math/bits"
)

// ErrInvalidNUNIQ is returned when a value is not a valid NUNIQ index.
var ErrInvalidNUNIQ = errors.New("healpix: invalid nuniq")

// NUNIQ packs (order, pix) into a single integer: pix + 4·4^order.
func NUNIQ(order, pix int) uint64 {
	return uint64(pix) + 4<<(2*uint(order))
}

// DecodeNUNIQ is the inverse of NUNIQ.
func DecodeNUNIQ(nuniq uint64) (order, pix int, err error) {
	if nuniq < 4 {
		return 0, 0, ErrInvalidNUNIQ
	}
	// nuniq lies in [4·4^order, 16·4^order), so its bit length is
	// 2·order+3 or 2·order+4.
	order = (bits.Len64(nuniq) - 3) / 2
	if order > MaxOrder {
		return 0, 0, ErrInvalidNUNIQ
	}
	return order, int(nuniq - 4<<(2*uint(order))), nil
}

// Valid reports whether (order, pix) is a valid pixel index.
func Valid(order, pix int) bool {
	return order >= 0 && order <= MaxOrder && pix >= 0 && pix < NPix(order)
}

// Parent returns the parent of a pixel and its child index inside it.
// It must not be called at order 0.
func Parent(order, pix int) (parentOrder, parentPix, child int) {
	return order - 1, pix / 4, pix % 4
}
