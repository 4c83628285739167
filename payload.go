package hips

import (
	"fmt"
	"image"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/hips/cache"
	"github.com/gogpu/hips/eph"
	"github.com/gogpu/hips/internal/tileimg"
)

// Payload is the decoded content of a tile: *ImageTile, *CatalogTile or
// *OpaqueTile.
type Payload interface {
	// release is called when the tile leaves the cache.
	release() cache.Release
}

// Decoded is the result of a TileFactory.
type Decoded struct {
	Payload Payload

	// Cost is the memory cost of the payload in bytes.
	Cost int64

	// Transparency has bit i set when child i of the tile is known to be
	// empty.
	Transparency uint8
}

// TileFactory decodes the data of a tile. It may run on a worker
// goroutine and must not touch the engine.
type TileFactory func(order, pix int, data []byte) (Decoded, error)

// Texture is a decoded image ready to be drawn.
type Texture struct {
	Format gputypes.TextureFormat
	Width  int
	Height int
	Image  *image.NRGBA
}

func newTexture(img *image.NRGBA) *Texture {
	b := img.Bounds()
	return &Texture{
		Format: gputypes.TextureFormatRGBA8Unorm,
		Width:  b.Dx(),
		Height: b.Dy(),
		Image:  img,
	}
}

// ImageTile is the payload of image surveys.
type ImageTile struct {
	Order, Pix int

	img *image.NRGBA
	tex *Texture
}

// Image returns the decoded pixels.
func (t *ImageTile) Image() *image.NRGBA { return t.img }

// Texture returns the texture of the tile, creating it on first use.
func (t *ImageTile) Texture() *Texture {
	if t.tex == nil && t.img != nil {
		t.tex = newTexture(t.img)
	}
	return t.tex
}

func (t *ImageTile) release() cache.Release {
	t.tex = nil
	return cache.Free
}

// CatalogChunk is one tile chunk of an EPH catalog tile.
type CatalogChunk struct {
	Type   string
	Header eph.TileHeader
	Table  *eph.Table
	Meta   map[string]any
}

// CatalogTile is the payload of eph surveys.
type CatalogTile struct {
	Order, Pix int
	Chunks     []CatalogChunk
}

// Rows returns the total number of rows of the tile.
func (t *CatalogTile) Rows() int {
	n := 0
	for _, c := range t.Chunks {
		n += c.Table.Rows
	}
	return n
}

func (t *CatalogTile) release() cache.Release { return cache.Free }

// OpaqueTile carries a payload decoded by a tenant factory.
type OpaqueTile struct {
	Value any

	// Tex is drawn by Render when set.
	Tex *Texture

	// Delete is called when the tile is about to leave the cache. It may
	// answer cache.Keep while Value is still in use.
	Delete func(any) cache.Release
}

// Texture returns Tex.
func (t *OpaqueTile) Texture() *Texture { return t.Tex }

func (t *OpaqueTile) release() cache.Release {
	if t.Delete == nil {
		return cache.Free
	}
	return t.Delete(t.Value)
}

// texturer is implemented by payloads that can be drawn.
type texturer interface {
	Texture() *Texture
}

// ImageFactory decodes JPEG, PNG and WebP tiles.
func ImageFactory(order, pix int, data []byte) (Decoded, error) {
	img, _, err := tileimg.Decode(data)
	if err != nil {
		return Decoded{}, err
	}
	return Decoded{
		Payload:      &ImageTile{Order: order, Pix: pix, img: img},
		Cost:         tileimg.Cost(img),
		Transparency: tileimg.Transparency(img),
	}, nil
}

// CatalogFactory decodes EPH catalog tiles.
func CatalogFactory(order, pix int, data []byte) (Decoded, error) {
	tile := &CatalogTile{Order: order, Pix: pix}
	var cost int64
	err := eph.Read(data, func(c eph.Chunk) error {
		if !c.IsTile() {
			return nil
		}
		h, t, err := eph.DecodeTile(c.Data)
		if err != nil {
			return fmt.Errorf("chunk %q: %w", c.Type, err)
		}
		if h.Order != order || h.Pix != pix {
			return fmt.Errorf("chunk %q holds tile %d/%d", c.Type, h.Order, h.Pix)
		}
		tile.Chunks = append(tile.Chunks, CatalogChunk{Type: c.Type, Header: h, Table: t, Meta: c.Meta})
		cost += int64(len(t.Data()))
		return nil
	})
	if err != nil {
		return Decoded{}, err
	}
	return Decoded{Payload: tile, Cost: cost}, nil
}

// factoryFor returns the default factory of a tile format.
func factoryFor(format string) (TileFactory, error) {
	switch format {
	case "jpg", "png", "webp":
		return ImageFactory, nil
	case "eph":
		return CatalogFactory, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}
