package hips

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gogpu/hips/asset"
	"github.com/gogpu/hips/internal/worker"
)

// Status codes returned by GetTile.
const (
	StatusPending   = asset.StatusPending
	StatusOK        = asset.StatusOK
	StatusNotFound  = asset.StatusNotFound
	StatusError     = asset.StatusError
	StatusTransient = asset.StatusTransient
)

// Flags modify tile lookups and rendering.
type Flags uint8

const (
	// Exterior renders the sphere seen from outside (planets).
	Exterior Flags = 1 << iota

	// ForceAllsky only uses the allsky image.
	ForceAllsky

	// LoadInThread decodes tiles on the worker pool.
	LoadInThread

	// CachedOnly returns cached tiles only and never fetches.
	CachedOnly

	// Delay lets requests for visible tiles go first.
	Delay
)

type tileFlags uint8

const (
	noChild0 tileFlags = 1 << iota
	noChild1
	noChild2
	noChild3
	loadError

	noChildMask = noChild0 | noChild1 | noChild2 | noChild3
)

// tile is the cache record of a (survey, order, pix) slot.
type tile struct {
	survey     int
	order, pix int
	flags      tileFlags
	payload    Payload
	loader     *worker.Task[Decoded]
}

// hasChild reports whether child i may exist.
func (t *tile) hasChild(i int) bool {
	return t.flags&(noChild0<<i) == 0
}

// tileKey returns the cache key of a tile: survey hash, order and pix,
// little endian.
func tileKey(hash uint32, order, pix int) []byte {
	var k [16]byte
	binary.LittleEndian.PutUint32(k[0:], hash)
	binary.LittleEndian.PutUint32(k[4:], uint32(int32(order)))
	binary.LittleEndian.PutUint64(k[8:], uint64(pix))
	return k[:]
}

// GetTile returns the payload of a tile and a status code: StatusOK with
// the payload, StatusPending while fetching or decoding, StatusNotFound
// for tiles known not to exist, StatusError if decoding failed and
// StatusTransient after a network failure that may be retried.
func (s *Survey) GetTile(order, pix int, flags Flags) (Payload, int) {
	t, code := s.getTile(order, pix, flags)
	if t == nil || code != StatusOK {
		return nil, code
	}
	return t.payload, code
}

func (s *Survey) getTile(order, pix int, flags Flags) (*tile, int) {
	e := s.engine
	key := tileKey(s.hash, order, pix)

	if t, ok := e.cache.Get(key); ok {
		if t.loader != nil {
			if !t.loader.Poll() {
				return nil, StatusPending
			}
			s.finishLoad(key, t)
		}
		if t.flags&loadError != 0 {
			return t, StatusError
		}
		return t, StatusOK
	}
	if flags&CachedOnly != 0 {
		return nil, StatusPending
	}
	if s.closed || s.err != nil || s.props == nil {
		return nil, StatusPending
	}
	if order < s.minOrder || (s.maxOrder > 0 && order > s.maxOrder) {
		return nil, StatusNotFound
	}

	var parent *tile
	if order > s.minOrder {
		p, code := s.getTile(order-1, pix/4, flags&(LoadInThread|Delay))
		if p == nil {
			return nil, code
		}
		if !p.hasChild(pix % 4) {
			return nil, StatusNotFound
		}
		parent = p
	} else if _, ok := s.missing[pix]; ok {
		return nil, StatusNotFound
	}

	url := s.TileURL(order, pix)
	fetchFlags := asset.Accept404 | asset.UsedOnce
	if flags&Delay != 0 {
		fetchFlags |= asset.Delay
	}
	data, code := e.fetcher.Fetch(url, fetchFlags)
	switch {
	case code == asset.StatusPending:
		return nil, StatusPending
	case code == asset.StatusTransient:
		e.stats.fetchTransient.Add(1)
		return nil, StatusTransient
	case code != asset.StatusOK:
		e.stats.fetchMissing.Add(1)
		if code != asset.StatusNotFound {
			e.log.Warn("hips: cannot get tile", "url", url, "status", code)
		}
		if parent != nil {
			parent.flags |= noChild0 << (pix % 4)
		} else {
			s.missing[pix] = struct{}{}
		}
		return nil, StatusNotFound
	}
	e.stats.fetchOK.Add(1)

	t := &tile{survey: s.id, order: order, pix: pix}
	factory := s.factory
	if flags&LoadInThread != 0 {
		buf := bytes.Clone(data)
		t.loader = worker.Spawn(e.pool, func() (Decoded, error) {
			return factory(order, pix, buf)
		})
	}
	e.cache.Add(key, t, e.opts.tileOverhead, e.releaseTile)
	s.tiles.Add(1)

	if t.loader != nil {
		// Queue the work now; inline loaders run on the next lookup.
		if e.pool != nil {
			t.loader.Poll()
		}
		return nil, StatusPending
	}
	d, err := factory(order, pix, data)
	s.install(key, t, d, err)
	if t.flags&loadError != 0 {
		return t, StatusError
	}
	return t, StatusOK
}

// finishLoad installs the result of a completed loader.
func (s *Survey) finishLoad(key []byte, t *tile) {
	d, err := t.loader.Result()
	t.loader = nil
	s.install(key, t, d, err)
}

func (s *Survey) install(key []byte, t *tile, d Decoded, err error) {
	e := s.engine
	if err == nil && d.Payload == nil {
		err = ErrNoPayload
	}
	if err != nil {
		t.flags |= loadError
		e.stats.decodeErrors.Add(1)
		e.log.Warn("hips: cannot load tile", "url", s.url, "order", t.order, "pix", t.pix, "err", err)
		return
	}
	e.stats.decodes.Add(1)
	t.payload = d.Payload
	t.flags |= tileFlags(d.Transparency) & noChildMask
	e.cache.SetCost(key, e.opts.tileOverhead+d.Cost)
}

// AddManualTile decodes data with the tile factory of the survey and
// caches the result as tile (order, pix).
func (s *Survey) AddManualTile(order, pix int, data []byte) (Payload, error) {
	if s.closed {
		return nil, ErrClosed
	}
	e := s.engine
	key := tileKey(s.hash, order, pix)
	if e.cache.Contains(key) {
		return nil, fmt.Errorf("%w: %d/%d", ErrTileExists, order, pix)
	}
	factory := s.factory
	if factory == nil {
		factory = s.opts.factory
	}
	if factory == nil {
		f, err := factoryFor(s.format)
		if err != nil {
			return nil, err
		}
		factory = f
	}
	d, err := factory(order, pix, data)
	if err == nil && d.Payload == nil {
		err = ErrNoPayload
	}
	if err != nil {
		return nil, fmt.Errorf("tile %d/%d: %w", order, pix, err)
	}
	t := &tile{survey: s.id, order: order, pix: pix}
	e.cache.Add(key, t, e.opts.tileOverhead, e.releaseTile)
	s.tiles.Add(1)
	s.install(key, t, d, nil)
	return t.payload, nil
}
