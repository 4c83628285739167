package hips

import (
	"github.com/gogpu/hips/uvmap"
)

// UVRect maps the UV square of a tile to a sub-rectangle of a texture:
// uv' = Scale·uv + Offset.
type UVRect struct {
	Scale  float64
	Offset [2]float64
}

// IdentityUV maps a tile to its own texture.
var IdentityUV = UVRect{Scale: 1}

// Parent returns the rectangle in the parent texture of a tile that is
// child i of its parent.
func (r UVRect) Parent(i int) UVRect {
	return UVRect{
		Scale: r.Scale / 2,
		Offset: [2]float64{
			r.Offset[0]/2 + float64(i/2)/2,
			r.Offset[1]/2 + float64(i%2)/2,
		},
	}
}

// Apply maps a tile UV coordinate to a texture coordinate.
func (r UVRect) Apply(uv [2]float64) [2]float64 {
	return [2]float64{r.Scale*uv[0] + r.Offset[0], r.Scale*uv[1] + r.Offset[1]}
}

// TextureResult is the outcome of TileTexture.
type TextureResult struct {
	// Texture is nil when nothing can be drawn.
	Texture *Texture

	// UV maps the requested tile into Texture.
	UV UVRect

	// Map is the UV map of the requested tile.
	Map uvmap.Map

	// Split is the number of subdivisions per side used to draw the tile.
	Split int

	Fade float64

	// Complete is true when the requested tile is final: its own texture
	// is loaded or it is known not to exist.
	Complete bool

	// Order and Pix identify the tile Texture belongs to.
	Order, Pix int
}

// TileTexture returns the texture to draw for tile (order, pix). When the
// tile is not loaded, it falls back on the closest loaded ancestor, then
// on the allsky image.
func (s *Survey) TileTexture(order, pix int, flags Flags) TextureResult {
	res := TextureResult{
		UV:    IdentityUV,
		Map:   uvmap.NewHealpix(order, pix, true, flags&Exterior == 0),
		Split: max(4, 12>>max(order, 0)),
		Fade:  1,
		Order: order,
		Pix:   pix,
	}
	if flags&ForceAllsky != 0 {
		res.Split = 4
	}
	if s.props == nil || s.err != nil || s.closed {
		return res
	}
	if order < s.minOrder {
		res.Complete = true
		return res
	}

	o, p := order, pix
	for {
		if flags&ForceAllsky == 0 {
			t, code := s.getTile(o, p, flags)
			if o == order && t == nil && code == StatusNotFound {
				res.Complete = true
				return res
			}
			if tex := tileTexture(t, code); tex != nil {
				res.Texture = tex
				res.Complete = o == order
				res.Order, res.Pix = o, p
				return res
			}
		}
		if o == 0 && s.HasAllsky() {
			if tex := s.allskyTexture(p); tex != nil {
				res.Texture = tex
				res.Complete = flags&ForceAllsky != 0 && o == order
				res.Order, res.Pix = o, p
				return res
			}
		}
		if o <= s.minOrder {
			break
		}
		res.UV = res.UV.Parent(p % 4)
		o--
		p /= 4
	}
	res.UV = IdentityUV
	res.Order, res.Pix = order, pix
	return res
}

func tileTexture(t *tile, code int) *Texture {
	if t == nil || code != StatusOK {
		return nil
	}
	tx, ok := t.payload.(texturer)
	if !ok {
		return nil
	}
	return tx.Texture()
}
